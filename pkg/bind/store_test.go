package bind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mesh-intelligence/bindery/internal/memory"
	"github.com/mesh-intelligence/bindery/pkg/types"
)

// testRegistry declares the Person/Pet model used across the package
// tests: a primary-keyed schema with scalars, a self link, a link list,
// and a backlink on the target.
func testRegistry(t *testing.T) *types.Registry {
	t.Helper()
	reg := types.NewRegistry()

	person, err := types.NewSchema("Person",
		types.Property{Name: "name", Kind: types.KindString, PrimaryKey: true},
		types.Property{Name: "age", Kind: types.KindInt},
		types.Property{Name: "nickname", Kind: types.KindString, Optional: true},
		types.Property{Name: "partner", Kind: types.KindObject, TargetSchema: "Person"},
		types.Property{Name: "pets", Kind: types.KindList, TargetSchema: "Pet"},
	)
	if err != nil {
		t.Fatalf("NewSchema(Person): %v", err)
	}
	pet, err := types.NewSchema("Pet",
		types.Property{Name: "name", Kind: types.KindString},
		types.Property{Name: "owners", Kind: types.KindBacklink, TargetSchema: "Person", OriginProperty: "pets"},
	)
	if err != nil {
		t.Fatalf("NewSchema(Pet): %v", err)
	}

	for _, s := range []*types.Schema{person, pet} {
		if err := reg.Add(s); err != nil {
			t.Fatalf("Add(%s): %v", s.Name(), err)
		}
	}
	return reg
}

// newTestStore opens a store over a fresh in-memory engine.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	reg := testRegistry(t)
	eng, err := memory.New(reg)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	st, err := Open(eng, reg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

// mustCreate builds a managed row from a field map inside the currently
// open write transaction.
func mustCreate(t *testing.T, st *Store, schema string, fields map[string]any) *Object {
	t.Helper()
	o, err := st.Create(schema, fields, false)
	if err != nil {
		t.Fatalf("Create(%s): %v", schema, err)
	}
	return o
}

func TestOpenAssignsDistinctStoreIDs(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("store ids not distinct: %q, %q", a.ID(), b.ID())
	}
}

func TestMutationOutsideWriteTransaction(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice", "age": 30})
	if err := st.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := alice.Set("age", 31); !errors.Is(err, types.ErrNotInWriteTransaction) {
		t.Errorf("Set outside tx = %v", err)
	}
	if _, err := st.Create("Person", map[string]any{"name": "Bob"}, false); !errors.Is(err, types.ErrNotInWriteTransaction) {
		t.Errorf("Create outside tx = %v", err)
	}

	// Reads stay legal outside a write transaction.
	if _, err := alice.Get("age"); err != nil {
		t.Errorf("Get outside tx: %v", err)
	}
}

func TestCrossGoroutineAccessFails(t *testing.T) {
	st := newTestStore(t)
	if err := st.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	alice := mustCreate(t, st, "Person", map[string]any{"name": "Alice"})

	errCh := make(chan error, 3)
	go func() {
		_, err := alice.Get("age")
		errCh <- err
		errCh <- alice.Set("age", 1)
		_, err = st.Create("Person", map[string]any{"name": "Eve"}, false)
		errCh <- err
	}()
	for range 3 {
		if err := <-errCh; !errors.Is(err, types.ErrWrongThread) {
			t.Errorf("cross-goroutine access = %v, want ErrWrongThread", err)
		}
	}

	// The owning goroutine is unaffected.
	if err := alice.Set("age", 2); err != nil {
		t.Errorf("owner Set: %v", err)
	}
	if !alice.IsValid() {
		t.Error("object invalid on owner goroutine")
	}
}

func TestWriteHelperCommitsAndRollsBack(t *testing.T) {
	st := newTestStore(t)

	err := st.Write(func() error {
		_, err := st.Create("Person", map[string]any{"name": "Alice", "age": 30}, false)
		return err
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	alice, err := st.Find("Person", "Alice")
	if err != nil || alice == nil {
		t.Fatalf("Find after commit = %v, %v", alice, err)
	}

	boom := fmt.Errorf("boom")
	err = st.Write(func() error {
		if _, err := st.Create("Person", map[string]any{"name": "Bob"}, false); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Write error = %v, want boom", err)
	}
	bob, err := st.Find("Person", "Bob")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if bob != nil {
		t.Error("row created in rolled-back transaction survived")
	}
}

func TestClosedStoreRejectsAccess(t *testing.T) {
	st := newTestStore(t)
	if err := st.Write(func() error {
		_, err := st.Create("Person", map[string]any{"name": "Alice"}, false)
		return err
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	alice, _ := st.Find("Person", "Alice")

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := alice.Get("age"); !errors.Is(err, types.ErrStoreClosed) {
		t.Errorf("Get after close = %v", err)
	}
	if alice.IsValid() {
		t.Error("object valid after store close")
	}
	if err := st.BeginWrite(); !errors.Is(err, types.ErrStoreClosed) {
		t.Errorf("BeginWrite after close = %v", err)
	}
}

func TestBindingLookup(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Binding("Person"); err != nil {
		t.Errorf("Binding(Person): %v", err)
	}
	if _, err := st.Binding("Missing"); !errors.Is(err, types.ErrSchemaNotFound) {
		t.Errorf("Binding(Missing) = %v", err)
	}
}
