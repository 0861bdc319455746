package bind

import (
	"fmt"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// Backlinks is the read-only reverse-link view: the rows of the origin
// schema whose named forward-link property currently targets this row.
// The view owns no storage and is materialized lazily: every call asks
// the engine afresh, so it always reflects the current links.
type Backlinks struct {
	st      *Store
	schema  *types.Schema // schema owning the backlink property
	origin  *types.Schema // schema holding the forward link
	forward *types.Property
	row     int64
}

// Origin returns the schema and property name of the inverted forward
// link.
func (b *Backlinks) Origin() (schema, property string) {
	return b.origin.Name(), b.forward.Name
}

func (b *Backlinks) check() error {
	if err := b.st.check(); err != nil {
		return err
	}
	if !b.st.tables[b.schema.Name()].RowExists(b.row) {
		return fmt.Errorf("%w: backlinks of %q row %d", types.ErrInvalidatedAccess, b.schema.Name(), b.row)
	}
	return nil
}

// Rows returns the ids of the linking rows, in row order.
func (b *Backlinks) Rows() ([]int64, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	rows, err := b.st.tables[b.origin.Name()].BacklinkRows(b.forward.Column, b.row)
	if err != nil {
		return nil, wrapAccess(b.origin.Name(), b.forward.Name, err)
	}
	return rows, nil
}

// Count returns the number of linking rows.
func (b *Backlinks) Count() (int, error) {
	rows, err := b.Rows()
	return len(rows), err
}

// Objects returns the linking rows as managed objects.
func (b *Backlinks) Objects() ([]*Object, error) {
	rows, err := b.Rows()
	if err != nil {
		return nil, err
	}
	out := make([]*Object, len(rows))
	for i, row := range rows {
		out[i] = &Object{schema: b.origin, store: b.st, row: row}
	}
	return out, nil
}
