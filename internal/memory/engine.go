// Package memory implements the reference in-memory storage engine for
// Bindery. It exists for tests and scratch stores: rows live in maps,
// write transactions snapshot the whole engine so Rollback can restore
// it, and row ids are assigned from a per-table counter that never
// reuses ids within an open engine.
package memory

import (
	"fmt"
	"slices"
	"time"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// Engine is an in-memory types.Engine. Not safe for concurrent use; the
// bind layer confines every engine to a single goroutine.
type Engine struct {
	tables   map[string]*table
	order    []string
	inTx     bool
	snapshot map[string]*table
	closed   bool
}

// column describes one engine column of a table.
type column struct {
	kind   types.Kind
	target string // target table name for object/list columns
}

type table struct {
	name   string
	cols   []column
	rows   map[int64]*row
	order  []int64
	nextID int64
	eng    *Engine
}

type row struct {
	cells []any           // scalar and object-link cells; nil is the engine null
	lists map[int][]int64 // link-list columns
}

var _ types.Engine = (*Engine)(nil)

// New builds an engine with one table per schema in the registry. The
// registry is frozen if it is not already.
func New(reg *types.Registry) (*Engine, error) {
	if err := reg.Freeze(); err != nil {
		return nil, err
	}

	e := &Engine{tables: make(map[string]*table)}
	for _, name := range reg.Names() {
		schema, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		t := &table{name: name, rows: make(map[int64]*row), eng: e}
		for _, p := range schema.Properties() {
			if p.Kind == types.KindBacklink {
				continue
			}
			t.cols = append(t.cols, column{kind: p.Kind, target: p.TargetSchema})
		}
		e.tables[name] = t
		e.order = append(e.order, name)
	}
	return e, nil
}

// Table returns the table backing the named schema.
func (e *Engine) Table(name string) (types.Table, error) {
	t, ok := e.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrTableNotFound, name)
	}
	return t, nil
}

// BeginWrite snapshots the engine so Rollback can restore it.
func (e *Engine) BeginWrite() error {
	if e.closed {
		return types.ErrStoreClosed
	}
	if e.inTx {
		return fmt.Errorf("write transaction already open")
	}
	e.snapshot = e.copyTables()
	e.inTx = true
	return nil
}

// Commit discards the snapshot, keeping all changes.
func (e *Engine) Commit() error {
	if !e.inTx {
		return types.ErrNotInWriteTransaction
	}
	e.snapshot = nil
	e.inTx = false
	return nil
}

// Rollback restores the snapshot taken at BeginWrite. Contents are
// copied back into the live table structs so that Table handles held by
// callers stay valid across the rollback.
func (e *Engine) Rollback() error {
	if !e.inTx {
		return types.ErrNotInWriteTransaction
	}
	for name, t := range e.tables {
		snap := e.snapshot[name]
		t.rows = snap.rows
		t.order = snap.order
		t.nextID = snap.nextID
	}
	e.snapshot = nil
	e.inTx = false
	return nil
}

// InWriteTransaction reports whether BeginWrite is open.
func (e *Engine) InWriteTransaction() bool { return e.inTx }

// Close drops all state. Idempotent.
func (e *Engine) Close() error {
	e.tables = nil
	e.snapshot = nil
	e.inTx = false
	e.closed = true
	return nil
}

func (e *Engine) copyTables() map[string]*table {
	out := make(map[string]*table, len(e.tables))
	for name, t := range e.tables {
		ct := &table{
			name:   t.name,
			cols:   t.cols,
			rows:   make(map[int64]*row, len(t.rows)),
			order:  slices.Clone(t.order),
			nextID: t.nextID,
		}
		for id, r := range t.rows {
			cr := &row{cells: slices.Clone(r.cells), lists: make(map[int][]int64, len(r.lists))}
			for i, c := range cr.cells {
				if b, ok := c.([]byte); ok {
					cr.cells[i] = slices.Clone(b)
				}
			}
			for col, l := range r.lists {
				cr.lists[col] = slices.Clone(l)
			}
			ct.rows[id] = cr
		}
		out[name] = ct
	}
	return out
}

// --- types.Table ---

func (t *table) requireWrite() error {
	if !t.eng.inTx {
		return types.ErrNotInWriteTransaction
	}
	return nil
}

func (t *table) get(rowID int64) (*row, error) {
	r, ok := t.rows[rowID]
	if !ok {
		return nil, fmt.Errorf("%w: row %d of %q", types.ErrRowNotFound, rowID, t.name)
	}
	return r, nil
}

func (t *table) checkCol(col int) error {
	if col < 0 || col >= len(t.cols) {
		return fmt.Errorf("column %d out of range for table %q", col, t.name)
	}
	return nil
}

// InsertRow appends a row with every cell null.
func (t *table) InsertRow() (int64, error) {
	if err := t.requireWrite(); err != nil {
		return 0, err
	}
	id := t.nextID
	t.nextID++
	t.rows[id] = &row{cells: make([]any, len(t.cols)), lists: make(map[int][]int64)}
	t.order = append(t.order, id)
	return id, nil
}

// DeleteRow removes the row and clears every inbound reference to it
// across all tables of the engine.
func (t *table) DeleteRow(rowID int64) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	if _, err := t.get(rowID); err != nil {
		return err
	}
	delete(t.rows, rowID)
	if i := slices.Index(t.order, rowID); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}

	for _, name := range t.eng.order {
		src := t.eng.tables[name]
		for col, c := range src.cols {
			if c.target != t.name {
				continue
			}
			for _, r := range src.rows {
				switch c.kind {
				case types.KindObject:
					if v, ok := r.cells[col].(int64); ok && v == rowID {
						r.cells[col] = nil
					}
				case types.KindList:
					l := r.lists[col]
					for i := len(l) - 1; i >= 0; i-- {
						if l[i] == rowID {
							l = slices.Delete(l, i, i+1)
						}
					}
					r.lists[col] = l
				}
			}
		}
	}
	return nil
}

// RowExists reports whether the row is attached.
func (t *table) RowExists(rowID int64) bool {
	_, ok := t.rows[rowID]
	return ok
}

// Rows enumerates attached rows in insertion order.
func (t *table) Rows() ([]int64, error) {
	return slices.Clone(t.order), nil
}

func getCell[T any](t *table, rowID int64, col int) (T, error) {
	var zero T
	if err := t.checkCol(col); err != nil {
		return zero, err
	}
	r, err := t.get(rowID)
	if err != nil {
		return zero, err
	}
	cell := r.cells[col]
	if cell == nil {
		return zero, nil
	}
	v, ok := cell.(T)
	if !ok {
		return zero, fmt.Errorf("column %d of %q holds %T, want %T", col, t.name, cell, zero)
	}
	return v, nil
}

func setCell(t *table, rowID int64, col int, v any) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	if err := t.checkCol(col); err != nil {
		return err
	}
	r, err := t.get(rowID)
	if err != nil {
		return err
	}
	r.cells[col] = v
	return nil
}

func (t *table) GetInt(rowID int64, col int) (int64, error) {
	return getCell[int64](t, rowID, col)
}

func (t *table) SetInt(rowID int64, col int, v int64) error {
	return setCell(t, rowID, col, v)
}

func (t *table) AddInt(rowID int64, col int, delta int64) error {
	cur, err := t.GetInt(rowID, col)
	if err != nil {
		return err
	}
	return setCell(t, rowID, col, cur+delta)
}

func (t *table) GetFloat(rowID int64, col int) (float64, error) {
	return getCell[float64](t, rowID, col)
}

func (t *table) SetFloat(rowID int64, col int, v float64) error {
	return setCell(t, rowID, col, v)
}

func (t *table) GetBool(rowID int64, col int) (bool, error) {
	return getCell[bool](t, rowID, col)
}

func (t *table) SetBool(rowID int64, col int, v bool) error {
	return setCell(t, rowID, col, v)
}

func (t *table) GetString(rowID int64, col int) (string, error) {
	return getCell[string](t, rowID, col)
}

func (t *table) SetString(rowID int64, col int, v string) error {
	return setCell(t, rowID, col, v)
}

func (t *table) GetBinary(rowID int64, col int) ([]byte, error) {
	b, err := getCell[[]byte](t, rowID, col)
	return slices.Clone(b), err
}

func (t *table) SetBinary(rowID int64, col int, v []byte) error {
	return setCell(t, rowID, col, slices.Clone(v))
}

func (t *table) GetTime(rowID int64, col int) (time.Time, error) {
	return getCell[time.Time](t, rowID, col)
}

func (t *table) SetTime(rowID int64, col int, v time.Time) error {
	return setCell(t, rowID, col, v)
}

func (t *table) IsNull(rowID int64, col int) (bool, error) {
	if err := t.checkCol(col); err != nil {
		return false, err
	}
	r, err := t.get(rowID)
	if err != nil {
		return false, err
	}
	return r.cells[col] == nil, nil
}

func (t *table) SetNull(rowID int64, col int) error {
	return setCell(t, rowID, col, nil)
}

func (t *table) GetLink(rowID int64, col int) (int64, bool, error) {
	if err := t.checkCol(col); err != nil {
		return 0, false, err
	}
	r, err := t.get(rowID)
	if err != nil {
		return 0, false, err
	}
	v, ok := r.cells[col].(int64)
	return v, ok, nil
}

func (t *table) SetLink(rowID int64, col int, target int64) error {
	return setCell(t, rowID, col, target)
}

// LinkList returns the transient list view for (row, col).
func (t *table) LinkList(rowID int64, col int) types.LinkList {
	return &linkList{t: t, row: rowID, col: col}
}

func (t *table) FindInt(col int, v int64) (int64, bool, error) {
	if err := t.checkCol(col); err != nil {
		return 0, false, err
	}
	for _, id := range t.order {
		if cell, ok := t.rows[id].cells[col].(int64); ok && cell == v {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func (t *table) FindString(col int, v string) (int64, bool, error) {
	if err := t.checkCol(col); err != nil {
		return 0, false, err
	}
	for _, id := range t.order {
		if cell, ok := t.rows[id].cells[col].(string); ok && cell == v {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// BacklinkRows scans the table for rows whose column references target.
func (t *table) BacklinkRows(col int, target int64) ([]int64, error) {
	if err := t.checkCol(col); err != nil {
		return nil, err
	}
	var out []int64
	for _, id := range t.order {
		r := t.rows[id]
		switch t.cols[col].kind {
		case types.KindObject:
			if v, ok := r.cells[col].(int64); ok && v == target {
				out = append(out, id)
			}
		case types.KindList:
			if slices.Contains(r.lists[col], target) {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// --- types.LinkList ---

type linkList struct {
	t   *table
	row int64
	col int
}

func (l *linkList) list() ([]int64, error) {
	r, err := l.t.get(l.row)
	if err != nil {
		return nil, err
	}
	return r.lists[l.col], nil
}

func (l *linkList) store(v []int64) error {
	r, err := l.t.get(l.row)
	if err != nil {
		return err
	}
	r.lists[l.col] = v
	return nil
}

func (l *linkList) Size() (int, error) {
	list, err := l.list()
	return len(list), err
}

func (l *linkList) Get(index int) (int64, error) {
	list, err := l.list()
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(list) {
		return 0, fmt.Errorf("%w: %d of %d", types.ErrIndexOutOfRange, index, len(list))
	}
	return list[index], nil
}

func (l *linkList) Insert(index int, target int64) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	list, err := l.list()
	if err != nil {
		return err
	}
	if index < 0 || index > len(list) {
		return fmt.Errorf("%w: %d of %d", types.ErrIndexOutOfRange, index, len(list))
	}
	return l.store(slices.Insert(slices.Clone(list), index, target))
}

func (l *linkList) Set(index int, target int64) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	list, err := l.list()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: %d of %d", types.ErrIndexOutOfRange, index, len(list))
	}
	list[index] = target
	return nil
}

func (l *linkList) Erase(index int) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	list, err := l.list()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return fmt.Errorf("%w: %d of %d", types.ErrIndexOutOfRange, index, len(list))
	}
	return l.store(slices.Delete(slices.Clone(list), index, index+1))
}

func (l *linkList) Swap(i, j int) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	list, err := l.list()
	if err != nil {
		return err
	}
	if i < 0 || i >= len(list) || j < 0 || j >= len(list) {
		return fmt.Errorf("%w: %d, %d of %d", types.ErrIndexOutOfRange, i, j, len(list))
	}
	list[i], list[j] = list[j], list[i]
	return nil
}

func (l *linkList) Clear() error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	return l.store(nil)
}
