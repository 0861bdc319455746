package bind

import (
	"errors"
	"testing"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

func TestPrimaryKeyImmutableAfterInsertion(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice", "age": 30})

	err := alice.Set("name", "Mallory")
	if !errors.Is(err, types.ErrImmutablePrimaryKey) {
		t.Fatalf("Set(pk) = %v, want ErrImmutablePrimaryKey", err)
	}

	// The stored key is unchanged after the failed attempt.
	got, err := alice.Get("name")
	if err != nil || got != "Alice" {
		t.Errorf("Get(name) = %v, %v", got, err)
	}
}

func TestPrimaryKeyWritableWhileUnmanaged(t *testing.T) {
	st := newTestStore(t)
	schema, _ := st.Registry().Get("Person")
	o := NewObject(schema)
	if err := o.Set("name", "Alice"); err != nil {
		t.Fatalf("unmanaged Set(pk): %v", err)
	}
	got, _ := o.Get("name")
	if got != "Alice" {
		t.Errorf("Get(name) = %v", got)
	}
}

func TestBindingGetSet(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice", "age": 30})

	bd, err := st.Binding("Person")
	if err != nil {
		t.Fatalf("Binding: %v", err)
	}

	got, err := bd.Get(alice, "age")
	if err != nil || got != int64(30) {
		t.Errorf("Binding.Get = %v, %v", got, err)
	}
	if err := bd.Set(alice, "age", 31); err != nil {
		t.Fatalf("Binding.Set: %v", err)
	}
	got, _ = bd.Get(alice, "age")
	if got != int64(31) {
		t.Errorf("after Binding.Set, age = %v", got)
	}

	// Optional null reads boxed as nil.
	got, err = bd.Get(alice, "nickname")
	if err != nil || got != nil {
		t.Errorf("Binding.Get(nickname) = %v, %v", got, err)
	}

	if _, err := bd.Get(alice, "missing"); !errors.Is(err, types.ErrPropertyNotFound) {
		t.Errorf("Get(missing) = %v", err)
	}
}

func TestBindingRejectsForeignObject(t *testing.T) {
	st := newTestStore(t)
	other := newTestStore(t)
	if err := other.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	bob := mustCreate(t, other, "Person", map[string]any{"name": "Bob"})

	bd, err := st.Binding("Person")
	if err != nil {
		t.Fatalf("Binding: %v", err)
	}
	if _, err := bd.Get(bob, "age"); !errors.Is(err, types.ErrInvalidatedAccess) {
		t.Errorf("Get on foreign-store object = %v", err)
	}
}

func TestListAndBacklinkHaveNoWriter(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice"})
	rex := mustCreate(t, st, "Pet", map[string]any{"name": "Rex"})

	bd, _ := st.Binding("Person")
	if err := bd.Set(alice, "pets", []any{rex}); !errors.Is(err, types.ErrUnsupportedOperation) {
		t.Errorf("Set(list) through binding = %v", err)
	}

	petBd, _ := st.Binding("Pet")
	if err := petBd.Set(rex, "owners", alice); !errors.Is(err, types.ErrUnsupportedOperation) {
		t.Errorf("Set(backlink) through binding = %v", err)
	}
}

func TestIntReaderWidths(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice", "age": 0x1_02_03})

	bd, _ := st.Binding("Person")

	tests := []struct {
		width IntWidth
		want  any
	}{
		// Narrowing truncates; that is the documented contract.
		{Width8, int8(0x03)},
		{Width16, int16(0x0203)},
		{Width32, int32(0x1_02_03)},
		{Width64, int64(0x1_02_03)},
	}
	for _, tt := range tests {
		reader, err := bd.IntReader("age", tt.width)
		if err != nil {
			t.Fatalf("IntReader(%d): %v", tt.width, err)
		}
		got, err := reader(alice)
		if err != nil {
			t.Fatalf("reader(%d): %v", tt.width, err)
		}
		if got != tt.want {
			t.Errorf("width %d read = %#v (%T), want %#v", tt.width, got, got, tt.want)
		}
	}

	if _, err := bd.IntReader("name", Width64); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("IntReader on string property = %v", err)
	}
	if _, err := bd.IntReader("age", IntWidth(12)); !errors.Is(err, types.ErrUnsupportedOperation) {
		t.Errorf("IntReader with bogus width = %v", err)
	}
}

func TestAccessAfterDeletionFails(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice", "age": 30})
	if err := st.Delete(alice); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if alice.IsValid() {
		t.Error("deleted object still valid")
	}
	if _, err := alice.Get("age"); !errors.Is(err, types.ErrInvalidatedAccess) {
		t.Errorf("Get after delete = %v", err)
	}
	if err := alice.Set("age", 1); !errors.Is(err, types.ErrInvalidatedAccess) {
		t.Errorf("Set after delete = %v", err)
	}
}
