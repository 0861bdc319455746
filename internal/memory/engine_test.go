package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

func testRegistry(t *testing.T) *types.Registry {
	t.Helper()
	reg := types.NewRegistry()
	person, err := types.NewSchema("Person",
		types.Property{Name: "name", Kind: types.KindString},
		types.Property{Name: "age", Kind: types.KindInt},
		types.Property{Name: "pet", Kind: types.KindObject, TargetSchema: "Pet"},
		types.Property{Name: "pets", Kind: types.KindList, TargetSchema: "Pet"},
	)
	if err != nil {
		t.Fatalf("NewSchema(Person): %v", err)
	}
	pet, err := types.NewSchema("Pet",
		types.Property{Name: "name", Kind: types.KindString},
	)
	if err != nil {
		t.Fatalf("NewSchema(Pet): %v", err)
	}
	for _, s := range []*types.Schema{person, pet} {
		if err := reg.Add(s); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return reg
}

func openEngine(t *testing.T) (*Engine, types.Table, types.Table) {
	t.Helper()
	eng, err := New(testRegistry(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	people, err := eng.Table("Person")
	if err != nil {
		t.Fatalf("Table(Person): %v", err)
	}
	pets, err := eng.Table("Pet")
	if err != nil {
		t.Fatalf("Table(Pet): %v", err)
	}
	return eng, people, pets
}

func TestMutationRequiresWriteTransaction(t *testing.T) {
	_, people, _ := openEngine(t)
	if _, err := people.InsertRow(); !errors.Is(err, types.ErrNotInWriteTransaction) {
		t.Fatalf("InsertRow outside tx = %v", err)
	}
}

func TestScalarColumns(t *testing.T) {
	eng, people, _ := openEngine(t)
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	row, err := people.InsertRow()
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	if err := people.SetString(row, 0, "Alice"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := people.SetInt(row, 1, 30); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	if err := people.AddInt(row, 1, 12); err != nil {
		t.Fatalf("AddInt: %v", err)
	}

	name, err := people.GetString(row, 0)
	if err != nil || name != "Alice" {
		t.Errorf("GetString = %q, %v", name, err)
	}
	age, err := people.GetInt(row, 1)
	if err != nil || age != 42 {
		t.Errorf("GetInt = %d, %v", age, err)
	}

	// Fresh columns read as engine null.
	null, err := people.IsNull(row, 2)
	if err != nil || !null {
		t.Errorf("IsNull(fresh) = %v, %v", null, err)
	}
	if err := people.SetNull(row, 1); err != nil {
		t.Fatalf("SetNull: %v", err)
	}
	age, err = people.GetInt(row, 1)
	if err != nil || age != 0 {
		t.Errorf("GetInt(null) = %d, %v", age, err)
	}
}

func TestBinaryIsCopied(t *testing.T) {
	reg := types.NewRegistry()
	s, _ := types.NewSchema("Blob", types.Property{Name: "data", Kind: types.KindBinary})
	if err := reg.Add(s); err != nil {
		t.Fatalf("Add: %v", err)
	}
	eng, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tbl, _ := eng.Table("Blob")
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	row, _ := tbl.InsertRow()

	src := []byte{1, 2, 3}
	if err := tbl.SetBinary(row, 0, src); err != nil {
		t.Fatalf("SetBinary: %v", err)
	}
	src[0] = 9
	got, err := tbl.GetBinary(row, 0)
	if err != nil {
		t.Fatalf("GetBinary: %v", err)
	}
	if got[0] != 1 {
		t.Errorf("stored binary aliases caller slice: %v", got)
	}
	got[1] = 9
	again, _ := tbl.GetBinary(row, 0)
	if again[1] != 2 {
		t.Errorf("returned binary aliases store: %v", again)
	}
}

func TestLinkListOperations(t *testing.T) {
	eng, people, pets := openEngine(t)
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	owner, _ := people.InsertRow()
	a, _ := pets.InsertRow()
	b, _ := pets.InsertRow()
	c, _ := pets.InsertRow()

	list := people.LinkList(owner, 3)
	for i, target := range []int64{a, b} {
		if err := list.Insert(i, target); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if err := list.Insert(1, c); err != nil {
		t.Fatalf("Insert middle: %v", err)
	}

	want := []int64{a, c, b}
	for i, w := range want {
		got, err := list.Get(i)
		if err != nil || got != w {
			t.Errorf("Get(%d) = %d, %v; want %d", i, got, err, w)
		}
	}

	if err := list.Insert(9, a); !errors.Is(err, types.ErrIndexOutOfRange) {
		t.Errorf("Insert past end = %v", err)
	}
	if err := list.Swap(0, 2); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	first, _ := list.Get(0)
	if first != b {
		t.Errorf("after swap Get(0) = %d, want %d", first, b)
	}
	if err := list.Erase(1); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if n, _ := list.Size(); n != 2 {
		t.Errorf("Size after erase = %d", n)
	}
	if err := list.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := list.Size(); n != 0 {
		t.Errorf("Size after clear = %d", n)
	}
}

func TestDeleteRowClearsInboundReferences(t *testing.T) {
	eng, people, pets := openEngine(t)
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	owner, _ := people.InsertRow()
	rex, _ := pets.InsertRow()
	fido, _ := pets.InsertRow()

	if err := people.SetLink(owner, 2, rex); err != nil {
		t.Fatalf("SetLink: %v", err)
	}
	list := people.LinkList(owner, 3)
	_ = list.Insert(0, rex)
	_ = list.Insert(1, fido)
	_ = list.Insert(2, rex)

	if err := pets.DeleteRow(rex); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	if _, ok, _ := people.GetLink(owner, 2); ok {
		t.Error("object link survived target deletion")
	}
	if n, _ := list.Size(); n != 1 {
		t.Errorf("list size after target deletion = %d, want 1", n)
	}
	only, _ := list.Get(0)
	if only != fido {
		t.Errorf("remaining entry = %d, want %d", only, fido)
	}
	if pets.RowExists(rex) {
		t.Error("deleted row still attached")
	}
}

func TestBacklinkRows(t *testing.T) {
	eng, people, pets := openEngine(t)
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	p1, _ := people.InsertRow()
	p2, _ := people.InsertRow()
	p3, _ := people.InsertRow()
	rex, _ := pets.InsertRow()

	_ = people.SetLink(p1, 2, rex)
	_ = people.LinkList(p2, 3).Insert(0, rex)

	viaObject, err := people.BacklinkRows(2, rex)
	if err != nil {
		t.Fatalf("BacklinkRows(object): %v", err)
	}
	if len(viaObject) != 1 || viaObject[0] != p1 {
		t.Errorf("BacklinkRows(object) = %v", viaObject)
	}

	viaList, err := people.BacklinkRows(3, rex)
	if err != nil {
		t.Fatalf("BacklinkRows(list): %v", err)
	}
	if len(viaList) != 1 || viaList[0] != p2 {
		t.Errorf("BacklinkRows(list) = %v", viaList)
	}
	_ = p3
}

func TestFindByColumn(t *testing.T) {
	eng, people, _ := openEngine(t)
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	r1, _ := people.InsertRow()
	r2, _ := people.InsertRow()
	_ = people.SetString(r1, 0, "Alice")
	_ = people.SetString(r2, 0, "Bob")
	_ = people.SetInt(r2, 1, 7)

	row, ok, err := people.FindString(0, "Bob")
	if err != nil || !ok || row != r2 {
		t.Errorf("FindString = %d, %v, %v", row, ok, err)
	}
	if _, ok, _ := people.FindString(0, "Carol"); ok {
		t.Error("FindString matched missing value")
	}
	row, ok, err = people.FindInt(1, 7)
	if err != nil || !ok || row != r2 {
		t.Errorf("FindInt = %d, %v, %v", row, ok, err)
	}
}

func TestRollbackRestoresState(t *testing.T) {
	eng, people, _ := openEngine(t)
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	row, _ := people.InsertRow()
	_ = people.SetString(row, 0, "Alice")
	if err := eng.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	_ = people.SetString(row, 0, "Mallory")
	extra, _ := people.InsertRow()
	if err := eng.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	// The cached table handle must see the restored state.
	name, err := people.GetString(row, 0)
	if err != nil || name != "Alice" {
		t.Errorf("after rollback GetString = %q, %v", name, err)
	}
	if people.RowExists(extra) {
		t.Error("row inserted in rolled-back transaction survived")
	}
	if eng.InWriteTransaction() {
		t.Error("still in write transaction after rollback")
	}

	// Row ids are not reused after rollback.
	if err := eng.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	next, _ := people.InsertRow()
	if next == row {
		t.Errorf("row id %d reused", next)
	}
}

func TestTimeColumn(t *testing.T) {
	reg := types.NewRegistry()
	s, _ := types.NewSchema("Event", types.Property{Name: "at", Kind: types.KindTimestamp})
	_ = reg.Add(s)
	eng, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tbl, _ := eng.Table("Event")
	_ = eng.BeginWrite()
	row, _ := tbl.InsertRow()

	stamp := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	if err := tbl.SetTime(row, 0, stamp); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	got, err := tbl.GetTime(row, 0)
	if err != nil || !got.Equal(stamp) {
		t.Errorf("GetTime = %v, %v", got, err)
	}
}
