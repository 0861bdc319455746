package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// column describes one engine column of a table. List columns have no
// physical column in the object table; their entries live in the list
// table keyed by column index.
type column struct {
	kind   types.Kind
	target string
}

// table implements types.Table for one schema. Object rows live in
// obj_<name> with an autoincrement id (ids are never reused) and one
// physical column per scalar or link property; link lists live in
// list_<name> as (row, col, pos, target) with dense positions.
type table struct {
	eng      *Engine
	name     string
	objTbl   string
	lstTbl   string
	cols     []column
	hasLists bool
}

func newTable(e *Engine, schema *types.Schema) *table {
	t := &table{
		eng:    e,
		name:   schema.Name(),
		objTbl: "obj_" + schema.Name(),
		lstTbl: "list_" + schema.Name(),
	}
	for _, p := range schema.Properties() {
		if p.Kind == types.KindBacklink {
			continue
		}
		t.cols = append(t.cols, column{kind: p.Kind, target: p.TargetSchema})
		if p.Kind == types.KindList {
			t.hasLists = true
		}
	}
	return t
}

// sqlType maps a property kind to its SQLite column affinity. Booleans
// are stored as 0/1, timestamps as RFC 3339 text.
func sqlType(k types.Kind) string {
	switch k {
	case types.KindFloat, types.KindDouble:
		return "REAL"
	case types.KindString, types.KindTimestamp:
		return "TEXT"
	case types.KindBinary:
		return "BLOB"
	default:
		// Int, Bool, Object.
		return "INTEGER"
	}
}

// ddl returns the idempotent statements creating this table's storage.
func (t *table) ddl() []string {
	cols := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	for i, c := range t.cols {
		if c.kind == types.KindList {
			continue
		}
		cols += fmt.Sprintf(", c%d %s", i, sqlType(c.kind))
	}
	out := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(t.objTbl), cols)}
	if t.hasLists {
		out = append(out,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (row INTEGER NOT NULL, col INTEGER NOT NULL, pos INTEGER NOT NULL, target INTEGER NOT NULL)", quote(t.lstTbl)),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (row, col, pos)", quote(t.lstTbl+"_idx"), quote(t.lstTbl)))
	}
	return out
}

func (t *table) requireWrite() error {
	if t.eng.tx == nil {
		return types.ErrNotInWriteTransaction
	}
	return nil
}

func (t *table) checkCol(col int) error {
	if col < 0 || col >= len(t.cols) {
		return fmt.Errorf("column %d out of range for table %q", col, t.name)
	}
	return nil
}

// colName returns the physical column for a scalar or link column.
func (t *table) colName(col int) (string, error) {
	if err := t.checkCol(col); err != nil {
		return "", err
	}
	if t.cols[col].kind == types.KindList {
		return "", fmt.Errorf("column %d of %q is a link list", col, t.name)
	}
	return fmt.Sprintf("c%d", col), nil
}

func (t *table) exists(rowID int64) (bool, error) {
	var one int
	err := t.eng.q().QueryRow(
		fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", quote(t.objTbl)), rowID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("table %q: %w", t.name, err)
	}
	return true, nil
}

func (t *table) requireRow(rowID int64) error {
	ok, err := t.exists(rowID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: row %d of %q", types.ErrRowNotFound, rowID, t.name)
	}
	return nil
}

// InsertRow appends a row with every cell null.
func (t *table) InsertRow() (int64, error) {
	if err := t.requireWrite(); err != nil {
		return 0, err
	}
	res, err := t.eng.q().Exec(fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(t.objTbl)))
	if err != nil {
		return 0, fmt.Errorf("table %q: insert: %w", t.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("table %q: insert id: %w", t.name, err)
	}
	return id, nil
}

// DeleteRow removes the row, its own list entries, and every inbound
// reference to it across all tables of the engine.
func (t *table) DeleteRow(rowID int64) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	if err := t.requireRow(rowID); err != nil {
		return err
	}
	q := t.eng.q()
	if _, err := q.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", quote(t.objTbl)), rowID); err != nil {
		return fmt.Errorf("table %q: delete: %w", t.name, err)
	}
	if t.hasLists {
		if _, err := q.Exec(fmt.Sprintf("DELETE FROM %s WHERE row = ?", quote(t.lstTbl)), rowID); err != nil {
			return fmt.Errorf("table %q: delete lists: %w", t.name, err)
		}
	}

	for _, src := range t.eng.tables {
		for col, c := range src.cols {
			if c.target != t.name {
				continue
			}
			switch c.kind {
			case types.KindObject:
				stmt := fmt.Sprintf("UPDATE %s SET c%d = NULL WHERE c%d = ?", quote(src.objTbl), col, col)
				if _, err := q.Exec(stmt, rowID); err != nil {
					return fmt.Errorf("table %q: clear links: %w", src.name, err)
				}
			case types.KindList:
				if err := src.eraseListTargets(col, rowID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// eraseListTargets removes every list entry at col pointing at target
// and renumbers the affected lists back to dense positions.
func (t *table) eraseListTargets(col int, target int64) error {
	q := t.eng.q()
	rows, err := q.Query(fmt.Sprintf(
		"SELECT DISTINCT row FROM %s WHERE col = ? AND target = ?", quote(t.lstTbl)), col, target)
	if err != nil {
		return fmt.Errorf("table %q: scan lists: %w", t.name, err)
	}
	var affected []int64
	for rows.Next() {
		var r int64
		if err := rows.Scan(&r); err != nil {
			rows.Close()
			return fmt.Errorf("table %q: scan lists: %w", t.name, err)
		}
		affected = append(affected, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("table %q: scan lists: %w", t.name, err)
	}
	rows.Close()

	if _, err := q.Exec(fmt.Sprintf(
		"DELETE FROM %s WHERE col = ? AND target = ?", quote(t.lstTbl)), col, target); err != nil {
		return fmt.Errorf("table %q: erase targets: %w", t.name, err)
	}
	for _, r := range affected {
		if err := t.renumberList(r, col); err != nil {
			return err
		}
	}
	return nil
}

// renumberList rewrites one list's positions to 0..n-1 preserving
// order.
func (t *table) renumberList(row int64, col int) error {
	q := t.eng.q()
	rows, err := q.Query(fmt.Sprintf(
		"SELECT pos FROM %s WHERE row = ? AND col = ? ORDER BY pos", quote(t.lstTbl)), row, col)
	if err != nil {
		return fmt.Errorf("table %q: renumber: %w", t.name, err)
	}
	var old []int64
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return fmt.Errorf("table %q: renumber: %w", t.name, err)
		}
		old = append(old, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("table %q: renumber: %w", t.name, err)
	}
	rows.Close()

	for i, p := range old {
		if int64(i) == p {
			continue
		}
		if _, err := q.Exec(fmt.Sprintf(
			"UPDATE %s SET pos = ? WHERE row = ? AND col = ? AND pos = ?", quote(t.lstTbl)),
			i, row, col, p); err != nil {
			return fmt.Errorf("table %q: renumber: %w", t.name, err)
		}
	}
	return nil
}

// RowExists reports whether the row is attached.
func (t *table) RowExists(rowID int64) bool {
	ok, err := t.exists(rowID)
	return err == nil && ok
}

// Rows enumerates attached rows in insertion order.
func (t *table) Rows() ([]int64, error) {
	rows, err := t.eng.q().Query(fmt.Sprintf("SELECT id FROM %s ORDER BY id", quote(t.objTbl)))
	if err != nil {
		return nil, fmt.Errorf("table %q: rows: %w", t.name, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("table %q: rows: %w", t.name, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %q: rows: %w", t.name, err)
	}
	return out, nil
}

// getCell scans one nullable cell; a NULL scans as dest's zero value.
func (t *table) getCell(rowID int64, col int, dest any) error {
	name, err := t.colName(col)
	if err != nil {
		return err
	}
	err = t.eng.q().QueryRow(fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?", name, quote(t.objTbl)), rowID).Scan(dest)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: row %d of %q", types.ErrRowNotFound, rowID, t.name)
	}
	if err != nil {
		return fmt.Errorf("table %q: get c%d: %w", t.name, col, err)
	}
	return nil
}

func (t *table) setCell(rowID int64, col int, v any) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	name, err := t.colName(col)
	if err != nil {
		return err
	}
	res, err := t.eng.q().Exec(fmt.Sprintf(
		"UPDATE %s SET %s = ? WHERE id = ?", quote(t.objTbl), name), v, rowID)
	if err != nil {
		return fmt.Errorf("table %q: set c%d: %w", t.name, col, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("table %q: set c%d: %w", t.name, col, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: row %d of %q", types.ErrRowNotFound, rowID, t.name)
	}
	return nil
}

func (t *table) GetInt(rowID int64, col int) (int64, error) {
	var v sql.NullInt64
	if err := t.getCell(rowID, col, &v); err != nil {
		return 0, err
	}
	return v.Int64, nil
}

func (t *table) SetInt(rowID int64, col int, v int64) error {
	return t.setCell(rowID, col, v)
}

func (t *table) AddInt(rowID int64, col int, delta int64) error {
	if err := t.requireWrite(); err != nil {
		return err
	}
	name, err := t.colName(col)
	if err != nil {
		return err
	}
	res, err := t.eng.q().Exec(fmt.Sprintf(
		"UPDATE %s SET %s = COALESCE(%s, 0) + ? WHERE id = ?", quote(t.objTbl), name, name), delta, rowID)
	if err != nil {
		return fmt.Errorf("table %q: add c%d: %w", t.name, col, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("table %q: add c%d: %w", t.name, col, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: row %d of %q", types.ErrRowNotFound, rowID, t.name)
	}
	return nil
}

func (t *table) GetFloat(rowID int64, col int) (float64, error) {
	var v sql.NullFloat64
	if err := t.getCell(rowID, col, &v); err != nil {
		return 0, err
	}
	return v.Float64, nil
}

func (t *table) SetFloat(rowID int64, col int, v float64) error {
	return t.setCell(rowID, col, v)
}

func (t *table) GetBool(rowID int64, col int) (bool, error) {
	var v sql.NullInt64
	if err := t.getCell(rowID, col, &v); err != nil {
		return false, err
	}
	return v.Int64 != 0, nil
}

func (t *table) SetBool(rowID int64, col int, v bool) error {
	n := 0
	if v {
		n = 1
	}
	return t.setCell(rowID, col, n)
}

func (t *table) GetString(rowID int64, col int) (string, error) {
	var v sql.NullString
	if err := t.getCell(rowID, col, &v); err != nil {
		return "", err
	}
	return v.String, nil
}

func (t *table) SetString(rowID int64, col int, v string) error {
	return t.setCell(rowID, col, v)
}

func (t *table) GetBinary(rowID int64, col int) ([]byte, error) {
	var v []byte
	if err := t.getCell(rowID, col, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *table) SetBinary(rowID int64, col int, v []byte) error {
	if v == nil {
		v = []byte{}
	}
	return t.setCell(rowID, col, v)
}

func (t *table) GetTime(rowID int64, col int) (time.Time, error) {
	var v sql.NullString
	if err := t.getCell(rowID, col, &v); err != nil {
		return time.Time{}, err
	}
	if !v.Valid || v.String == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("table %q: bad timestamp in c%d: %w", t.name, col, err)
	}
	return ts, nil
}

func (t *table) SetTime(rowID int64, col int, v time.Time) error {
	return t.setCell(rowID, col, v.Format(time.RFC3339Nano))
}

func (t *table) IsNull(rowID int64, col int) (bool, error) {
	name, err := t.colName(col)
	if err != nil {
		return false, err
	}
	var null bool
	err = t.eng.q().QueryRow(fmt.Sprintf(
		"SELECT %s IS NULL FROM %s WHERE id = ?", name, quote(t.objTbl)), rowID).Scan(&null)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: row %d of %q", types.ErrRowNotFound, rowID, t.name)
	}
	if err != nil {
		return false, fmt.Errorf("table %q: isnull c%d: %w", t.name, col, err)
	}
	return null, nil
}

func (t *table) SetNull(rowID int64, col int) error {
	return t.setCell(rowID, col, nil)
}

func (t *table) GetLink(rowID int64, col int) (int64, bool, error) {
	var v sql.NullInt64
	if err := t.getCell(rowID, col, &v); err != nil {
		return 0, false, err
	}
	return v.Int64, v.Valid, nil
}

func (t *table) SetLink(rowID int64, col int, target int64) error {
	return t.setCell(rowID, col, target)
}

// LinkList returns the transient list view for (row, col).
func (t *table) LinkList(rowID int64, col int) types.LinkList {
	return &linkList{t: t, row: rowID, col: col}
}

func (t *table) findBy(col int, v any) (int64, bool, error) {
	name, err := t.colName(col)
	if err != nil {
		return 0, false, err
	}
	var id int64
	err = t.eng.q().QueryRow(fmt.Sprintf(
		"SELECT id FROM %s WHERE %s = ? ORDER BY id LIMIT 1", quote(t.objTbl), name), v).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("table %q: find c%d: %w", t.name, col, err)
	}
	return id, true, nil
}

func (t *table) FindInt(col int, v int64) (int64, bool, error) {
	return t.findBy(col, v)
}

func (t *table) FindString(col int, v string) (int64, bool, error) {
	return t.findBy(col, v)
}

// BacklinkRows returns the rows whose column references target, in row
// order. List columns count each referencing row once.
func (t *table) BacklinkRows(col int, target int64) ([]int64, error) {
	if err := t.checkCol(col); err != nil {
		return nil, err
	}
	var stmt string
	switch t.cols[col].kind {
	case types.KindObject:
		stmt = fmt.Sprintf("SELECT id FROM %s WHERE c%d = ? ORDER BY id", quote(t.objTbl), col)
	case types.KindList:
		stmt = fmt.Sprintf("SELECT DISTINCT row FROM %s WHERE col = %d AND target = ? ORDER BY row", quote(t.lstTbl), col)
	default:
		return nil, fmt.Errorf("column %d of %q is not a link column", col, t.name)
	}
	rows, err := t.eng.q().Query(stmt, target)
	if err != nil {
		return nil, fmt.Errorf("table %q: backlinks c%d: %w", t.name, col, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("table %q: backlinks c%d: %w", t.name, col, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table %q: backlinks c%d: %w", t.name, col, err)
	}
	return out, nil
}
