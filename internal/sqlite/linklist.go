package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// linkList is the types.LinkList view over one (row, col) of a list
// table. Positions stay dense: every mutation shifts or renumbers so
// pos always runs 0..n-1 in order.
type linkList struct {
	t   *table
	row int64
	col int
}

func (l *linkList) where() string {
	return fmt.Sprintf("row = %d AND col = %d", l.row, l.col)
}

func (l *linkList) size() (int, error) {
	if err := l.t.requireRow(l.row); err != nil {
		return 0, err
	}
	var n int
	err := l.t.eng.q().QueryRow(fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE %s", quote(l.t.lstTbl), l.where())).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("list %d of %q: %w", l.col, l.t.name, err)
	}
	return n, nil
}

func (l *linkList) outOfRange(index, size int) error {
	return fmt.Errorf("%w: %d of %d", types.ErrIndexOutOfRange, index, size)
}

func (l *linkList) Size() (int, error) {
	return l.size()
}

func (l *linkList) Get(index int) (int64, error) {
	n, err := l.size()
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= n {
		return 0, l.outOfRange(index, n)
	}
	var target int64
	err = l.t.eng.q().QueryRow(fmt.Sprintf(
		"SELECT target FROM %s WHERE %s AND pos = ?", quote(l.t.lstTbl), l.where()), index).Scan(&target)
	if err == sql.ErrNoRows {
		return 0, l.outOfRange(index, n)
	}
	if err != nil {
		return 0, fmt.Errorf("list %d of %q: %w", l.col, l.t.name, err)
	}
	return target, nil
}

func (l *linkList) Insert(index int, target int64) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	n, err := l.size()
	if err != nil {
		return err
	}
	if index < 0 || index > n {
		return l.outOfRange(index, n)
	}
	q := l.t.eng.q()
	if _, err := q.Exec(fmt.Sprintf(
		"UPDATE %s SET pos = pos + 1 WHERE %s AND pos >= ?", quote(l.t.lstTbl), l.where()), index); err != nil {
		return fmt.Errorf("list %d of %q: shift: %w", l.col, l.t.name, err)
	}
	if _, err := q.Exec(fmt.Sprintf(
		"INSERT INTO %s (row, col, pos, target) VALUES (?, ?, ?, ?)", quote(l.t.lstTbl)),
		l.row, l.col, index, target); err != nil {
		return fmt.Errorf("list %d of %q: insert: %w", l.col, l.t.name, err)
	}
	return nil
}

func (l *linkList) Set(index int, target int64) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	n, err := l.size()
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		return l.outOfRange(index, n)
	}
	if _, err := l.t.eng.q().Exec(fmt.Sprintf(
		"UPDATE %s SET target = ? WHERE %s AND pos = ?", quote(l.t.lstTbl), l.where()),
		target, index); err != nil {
		return fmt.Errorf("list %d of %q: set: %w", l.col, l.t.name, err)
	}
	return nil
}

func (l *linkList) Erase(index int) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	n, err := l.size()
	if err != nil {
		return err
	}
	if index < 0 || index >= n {
		return l.outOfRange(index, n)
	}
	q := l.t.eng.q()
	if _, err := q.Exec(fmt.Sprintf(
		"DELETE FROM %s WHERE %s AND pos = ?", quote(l.t.lstTbl), l.where()), index); err != nil {
		return fmt.Errorf("list %d of %q: erase: %w", l.col, l.t.name, err)
	}
	if _, err := q.Exec(fmt.Sprintf(
		"UPDATE %s SET pos = pos - 1 WHERE %s AND pos > ?", quote(l.t.lstTbl), l.where()), index); err != nil {
		return fmt.Errorf("list %d of %q: shift: %w", l.col, l.t.name, err)
	}
	return nil
}

func (l *linkList) Swap(i, j int) error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	n, err := l.size()
	if err != nil {
		return err
	}
	if i < 0 || i >= n || j < 0 || j >= n {
		return fmt.Errorf("%w: %d, %d of %d", types.ErrIndexOutOfRange, i, j, n)
	}
	if i == j {
		return nil
	}
	q := l.t.eng.q()
	// Park one entry at -1 so the positions can trade places.
	steps := [][2]int{{i, -1}, {j, i}, {-1, j}}
	for _, s := range steps {
		if _, err := q.Exec(fmt.Sprintf(
			"UPDATE %s SET pos = ? WHERE %s AND pos = ?", quote(l.t.lstTbl), l.where()),
			s[1], s[0]); err != nil {
			return fmt.Errorf("list %d of %q: swap: %w", l.col, l.t.name, err)
		}
	}
	return nil
}

func (l *linkList) Clear() error {
	if err := l.t.requireWrite(); err != nil {
		return err
	}
	if err := l.t.requireRow(l.row); err != nil {
		return err
	}
	if _, err := l.t.eng.q().Exec(fmt.Sprintf(
		"DELETE FROM %s WHERE %s", quote(l.t.lstTbl), l.where())); err != nil {
		return fmt.Errorf("list %d of %q: clear: %w", l.col, l.t.name, err)
	}
	return nil
}
