package bind

import (
	"errors"
	"testing"

	"github.com/mesh-intelligence/bindery/internal/memory"
	"github.com/mesh-intelligence/bindery/pkg/types"
)

func personSchema(t *testing.T) *types.Schema {
	t.Helper()
	reg := testRegistry(t)
	if err := reg.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	s, err := reg.Get("Person")
	if err != nil {
		t.Fatalf("Get(Person): %v", err)
	}
	return s
}

func TestUnmanagedObjectDefaults(t *testing.T) {
	o := NewObject(personSchema(t))

	if o.IsManaged() {
		t.Error("fresh object reports managed")
	}
	if !o.IsValid() {
		t.Error("fresh object reports invalid")
	}

	got, err := o.Get("age")
	if err != nil || got != int64(0) {
		t.Errorf("Get(age) = %v, %v", got, err)
	}
	got, err = o.Get("nickname")
	if err != nil || got != nil {
		t.Errorf("Get(nickname) = %v, %v", got, err)
	}
	got, err = o.Get("partner")
	if err != nil || got != nil {
		t.Errorf("Get(partner) = %v, %v", got, err)
	}
	got, err = o.Get("pets")
	if err != nil {
		t.Fatalf("Get(pets): %v", err)
	}
	if l, ok := got.([]any); !ok || len(l) != 0 {
		t.Errorf("Get(pets) = %#v, want empty slice", got)
	}
}

func TestUnmanagedSlotValidation(t *testing.T) {
	schema := personSchema(t)
	o := NewObject(schema)

	if err := o.Set("age", 30); err != nil {
		t.Fatalf("Set(age): %v", err)
	}
	if got, _ := o.Get("age"); got != int64(30) {
		t.Errorf("Get(age) = %v", got)
	}

	// Same coercion rules as managed writes.
	if err := o.Set("age", "thirty"); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Set(age, string) = %v", err)
	}
	if err := o.Set("age", nil); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Set(age, nil) = %v", err)
	}
	if err := o.Set("nickname", nil); err != nil {
		t.Errorf("Set(optional, nil) = %v", err)
	}

	// Unknown names are re-validated on every call.
	if err := o.Set("bogus", 1); !errors.Is(err, types.ErrPropertyNotFound) {
		t.Errorf("Set(bogus) = %v", err)
	}
	if _, err := o.Get("bogus"); !errors.Is(err, types.ErrPropertyNotFound) {
		t.Errorf("Get(bogus) = %v", err)
	}
}

func TestUnmanagedLinkSlots(t *testing.T) {
	schema := personSchema(t)
	o := NewObject(schema)

	partner := NewObject(schema)
	if err := o.Set("partner", partner); err != nil {
		t.Fatalf("Set(partner): %v", err)
	}
	got, _ := o.Get("partner")
	if got != partner {
		t.Errorf("Get(partner) = %v", got)
	}

	if err := o.Set("partner", nil); err != nil {
		t.Fatalf("clear partner: %v", err)
	}
	if got, _ := o.Get("partner"); got != nil {
		t.Errorf("cleared partner = %v", got)
	}

	// Wrong target schema is rejected.
	reg := testRegistry(t)
	if err := reg.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	pet, _ := reg.Get("Pet")
	if err := o.Set("partner", NewObject(pet)); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Set(partner, Pet) = %v", err)
	}

	// List slots accept object and map elements, nothing else.
	if err := o.Set("pets", []any{NewObject(pet), map[string]any{"name": "Rex"}}); err != nil {
		t.Fatalf("Set(pets): %v", err)
	}
	if err := o.Set("pets", []any{42}); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Set(pets, ints) = %v", err)
	}
	if err := o.Set("pets", "not a list"); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Set(pets, string) = %v", err)
	}
}

func TestUnmanagedBacklinkReadOnly(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	pet, _ := reg.Get("Pet")
	o := NewObject(pet)

	got, err := o.Get("owners")
	if err != nil {
		t.Fatalf("Get(owners): %v", err)
	}
	if l, ok := got.([]any); !ok || len(l) != 0 {
		t.Errorf("unmanaged backlink = %#v, want empty", got)
	}

	person, _ := reg.Get("Person")
	if err := o.Set("owners", NewObject(person)); !errors.Is(err, types.ErrUnsupportedOperation) {
		t.Errorf("Set(backlink) = %v", err)
	}
}

func TestUnmanagedListSlotIsUnaliased(t *testing.T) {
	reg := testRegistry(t)
	if err := reg.Freeze(); err != nil {
		t.Fatalf("Freeze: %v", err)
	}
	person, _ := reg.Get("Person")
	pet, _ := reg.Get("Pet")

	o := NewObject(person)
	rex := NewObject(pet)
	if err := o.Set("pets", []any{rex}); err != nil {
		t.Fatalf("Set(pets): %v", err)
	}

	// Mutating the returned slice must not write the slot: that would
	// bypass element validation.
	got, err := o.Get("pets")
	if err != nil {
		t.Fatalf("Get(pets): %v", err)
	}
	got.([]any)[0] = "garbage"

	again, err := o.Get("pets")
	if err != nil {
		t.Fatalf("Get(pets) again: %v", err)
	}
	if l := again.([]any); len(l) != 1 || l[0] != rex {
		t.Errorf("slot changed through returned slice: %#v", again)
	}
}

func TestBacklinkReadAcrossPromotion(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	defer st.Rollback()

	petSchema, err := st.registry.Get("Pet")
	if err != nil {
		t.Fatalf("Get(Pet): %v", err)
	}
	rex := NewObject(petSchema)
	if err := rex.Set("name", "Rex"); err != nil {
		t.Fatalf("Set(name): %v", err)
	}

	// Unmanaged: an empty slice, nothing can link to it yet.
	got, err := rex.Get("owners")
	if err != nil {
		t.Fatalf("Get(owners) unmanaged: %v", err)
	}
	if l, ok := got.([]any); !ok || len(l) != 0 {
		t.Fatalf("unmanaged owners = %#v, want empty []any", got)
	}

	// Managed: the live reverse-link view.
	if err := st.Add(rex); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err = rex.Get("owners")
	if err != nil {
		t.Fatalf("Get(owners) managed: %v", err)
	}
	view, ok := got.(*Backlinks)
	if !ok {
		t.Fatalf("managed owners = %T, want *Backlinks", got)
	}
	if n, err := view.Count(); err != nil || n != 0 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestIncrementUnmanaged(t *testing.T) {
	counter, err := types.NewSchema("Counter",
		types.Property{Name: "id", Kind: types.KindString, PrimaryKey: true},
		types.Property{Name: "count", Kind: types.KindInt},
		types.Property{Name: "bonus", Kind: types.KindInt, Optional: true},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	o := NewObject(counter)

	if err := o.Increment("count", 5); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if err := o.Increment("count", -2); err != nil {
		t.Fatalf("Increment negative: %v", err)
	}
	if got, _ := o.Get("count"); got != int64(3) {
		t.Errorf("count = %v, want 3", got)
	}

	if err := o.Increment("id", 1); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Increment(string) = %v", err)
	}
	if err := o.Increment("bonus", 1); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Increment(null) = %v", err)
	}
	if err := o.Increment("missing", 1); !errors.Is(err, types.ErrPropertyNotFound) {
		t.Errorf("Increment(missing) = %v", err)
	}
}

func TestIncrementManaged(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice", "age": 30})

	if err := alice.Increment("age", 12); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if got, _ := alice.Get("age"); got != int64(42) {
		t.Errorf("age = %v, want 42", got)
	}
	if err := st.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Increment is a mutation: no write transaction, no increment.
	if err := alice.Increment("age", 1); !errors.Is(err, types.ErrNotInWriteTransaction) {
		t.Errorf("Increment outside tx = %v", err)
	}
	if got, _ := alice.Get("age"); got != int64(42) {
		t.Errorf("age after failed increment = %v, want 42", got)
	}
}

func TestIncrementManagedGuards(t *testing.T) {
	counter, err := types.NewSchema("Counter",
		types.Property{Name: "id", Kind: types.KindInt, PrimaryKey: true},
		types.Property{Name: "count", Kind: types.KindInt},
		types.Property{Name: "bonus", Kind: types.KindInt, Optional: true},
	)
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	reg := types.NewRegistry()
	if err := reg.Add(counter); err != nil {
		t.Fatalf("Add: %v", err)
	}
	eng, err := memory.New(reg)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	st, err := Open(eng, reg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	defer st.Rollback()

	c, err := st.Create("Counter", map[string]any{"id": int64(7), "count": int64(1)}, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := c.Increment("id", 1); !errors.Is(err, types.ErrImmutablePrimaryKey) {
		t.Errorf("Increment(pk) = %v", err)
	}
	if got, _ := c.Get("id"); got != int64(7) {
		t.Errorf("pk after failed increment = %v, want 7", got)
	}

	if err := c.Increment("bonus", 1); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("Increment(null bonus) = %v", err)
	}
	if err := c.Set("bonus", int64(10)); err != nil {
		t.Fatalf("Set(bonus): %v", err)
	}
	if err := c.Increment("bonus", 1); err != nil {
		t.Fatalf("Increment(bonus): %v", err)
	}
	if got, _ := c.Get("bonus"); got != int64(11) {
		t.Errorf("bonus = %v, want 11", got)
	}

	if err := st.Delete(c); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Increment("count", 1); !errors.Is(err, types.ErrInvalidatedAccess) {
		t.Errorf("Increment after delete = %v", err)
	}
}

func TestListViewRequiresManaged(t *testing.T) {
	o := NewObject(personSchema(t))
	if _, err := o.List("pets"); !errors.Is(err, types.ErrInvalidatedAccess) {
		t.Errorf("List on unmanaged = %v", err)
	}
	if _, err := o.List("age"); !errors.Is(err, types.ErrTypeMismatch) {
		t.Errorf("List on scalar = %v", err)
	}
}
