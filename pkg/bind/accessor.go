package bind

import (
	"fmt"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// accessor is the pair of bound operations synthesized for one property:
// a read returning the boxed dynamic value and, for mutable properties,
// a write. Both close over the property's column index, resolved once at
// store-open time; dispatch is a map lookup, never per-call reflection.
type accessor struct {
	prop *types.Property
	get  func(o *Object) (any, error)
	set  func(o *Object, v any) error // nil for List and Backlink
}

// bindings is the dispatch table for one schema.
type bindings struct {
	schema    *types.Schema
	accessors map[string]*accessor
}

// synthesize builds the dispatch table for a schema. Runs once per
// schema at Open.
func (st *Store) synthesize(schema *types.Schema) *bindings {
	props := schema.Properties()
	b := &bindings{
		schema:    schema,
		accessors: make(map[string]*accessor, len(props)),
	}
	for i := range props {
		p := &props[i]
		b.accessors[p.Name] = st.synthesizeProperty(schema, p)
	}
	return b
}

func (st *Store) synthesizeProperty(schema *types.Schema, p *types.Property) *accessor {
	name := schema.Name()
	acc := &accessor{prop: p}

	switch p.Kind {
	case types.KindList:
		target := p.TargetSchema
		acc.get = func(o *Object) (any, error) {
			ts, err := st.schema(target)
			if err != nil {
				return nil, err
			}
			return &List{st: st, schema: schema, prop: p, target: ts, row: o.row}, nil
		}
		// No writer: the List view is the mutation surface.

	case types.KindBacklink:
		acc.get = func(o *Object) (any, error) {
			origin, err := st.schema(p.TargetSchema)
			if err != nil {
				return nil, err
			}
			forward, ok := origin.Property(p.OriginProperty)
			if !ok {
				return nil, fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, p.OriginProperty, origin.Name())
			}
			return &Backlinks{st: st, schema: schema, origin: origin, forward: forward, row: o.row}, nil
		}

	case types.KindObject:
		tbl := st.tables[name]
		acc.get = func(o *Object) (any, error) {
			target, ok, err := tbl.GetLink(o.row, p.Column)
			if err != nil {
				return nil, wrapAccess(name, p.Name, err)
			}
			if !ok {
				return nil, nil
			}
			ts, err := st.schema(p.TargetSchema)
			if err != nil {
				return nil, err
			}
			return &Object{schema: ts, store: st, row: target}, nil
		}
		acc.set = func(o *Object, v any) error {
			ts, err := st.schema(p.TargetSchema)
			if err != nil {
				return err
			}
			ctx := newCreateCtx(ModePromote, false)
			target, null, err := st.resolveLink(name, p.Name, ts, v, ctx)
			if err != nil {
				return err
			}
			return st.applyLink(schema, o.row, p, target, null)
		}

	default: // scalar kinds
		tbl := st.tables[name]
		acc.get = func(o *Object) (any, error) {
			v, err := readScalar(tbl, o.row, p)
			if err != nil {
				return nil, wrapAccess(name, p.Name, err)
			}
			return v, nil
		}
		if p.PrimaryKey {
			// Read-only after insertion: the writer exists so dynamic
			// sets fail loudly, and it never touches storage.
			acc.set = func(o *Object, v any) error {
				return fmt.Errorf("%w: property %q of %q", types.ErrImmutablePrimaryKey, p.Name, name)
			}
		} else {
			acc.set = func(o *Object, v any) error {
				canon, err := unboxScalar(name, p, v)
				if err != nil {
					return err
				}
				return st.applyScalar(schema, o.row, p, canon)
			}
		}
	}
	return acc
}

// applyScalar writes a canonical value into a column inside the
// notification wrapper.
func (st *Store) applyScalar(schema *types.Schema, row int64, p *types.Property, canon any) error {
	name := schema.Name()
	tbl := st.tables[name]
	c := Change{Schema: name, Row: row, Property: p.Name, Kind: ChangeSet}
	return st.notify(c, func() error {
		return wrapAccess(name, p.Name, writeScalar(tbl, row, p, canon))
	})
}

// applyLink writes (or clears) an object link inside the notification
// wrapper.
func (st *Store) applyLink(schema *types.Schema, row int64, p *types.Property, target int64, null bool) error {
	name := schema.Name()
	tbl := st.tables[name]
	c := Change{Schema: name, Row: row, Property: p.Name, Kind: ChangeSet}
	return st.notify(c, func() error {
		if null {
			return wrapAccess(name, p.Name, tbl.SetNull(row, p.Column))
		}
		return wrapAccess(name, p.Name, tbl.SetLink(row, p.Column, target))
	})
}

// IntWidth selects the representation width of a synthesized integer
// reader.
type IntWidth int

const (
	Width8  IntWidth = 8
	Width16 IntWidth = 16
	Width32 IntWidth = 32
	Width64 IntWidth = 64
)

// Binding exposes one schema's synthesized accessors: the bound read and
// write operations for every declared property.
type Binding struct {
	st *Store
	b  *bindings
}

// Binding returns the accessor table for a schema.
func (st *Store) Binding(schemaName string) (*Binding, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	b, ok := st.bindings[schemaName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrSchemaNotFound, schemaName)
	}
	return &Binding{st: st, b: b}, nil
}

func (bd *Binding) resolve(o *Object, name string) (*accessor, error) {
	acc, ok := bd.b.accessors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, name, bd.b.schema.Name())
	}
	if o.schema != bd.b.schema {
		return nil, fmt.Errorf("%w: object is %q, binding is %q",
			types.ErrTypeMismatch, o.schema.Name(), bd.b.schema.Name())
	}
	if o.store != bd.st {
		return nil, fmt.Errorf("%w: object is not managed by this store", types.ErrInvalidatedAccess)
	}
	return acc, nil
}

// Get reads a property through its synthesized accessor, returning the
// boxed representation (nil for an engine null).
func (bd *Binding) Get(o *Object, name string) (any, error) {
	if err := bd.st.check(); err != nil {
		return nil, err
	}
	acc, err := bd.resolve(o, name)
	if err != nil {
		return nil, err
	}
	if !bd.st.tables[o.schema.Name()].RowExists(o.row) {
		return nil, fmt.Errorf("%w: property %q of %q", types.ErrInvalidatedAccess, name, o.schema.Name())
	}
	return acc.get(o)
}

// Set writes a property through its synthesized accessor.
func (bd *Binding) Set(o *Object, name string, v any) error {
	if err := bd.st.check(); err != nil {
		return err
	}
	acc, err := bd.resolve(o, name)
	if err != nil {
		return err
	}
	if !bd.st.tables[o.schema.Name()].RowExists(o.row) {
		return fmt.Errorf("%w: property %q of %q", types.ErrInvalidatedAccess, name, o.schema.Name())
	}
	if acc.set == nil {
		return fmt.Errorf("%w: property %q of %q has no writer",
			types.ErrUnsupportedOperation, name, o.schema.Name())
	}
	if err := bd.st.checkWrite(); err != nil {
		return err
	}
	return acc.set(o, v)
}

// IntReader returns a read operation for an integer property at the
// given representation width. The engine stores 64-bit values; narrower
// widths narrow by Go conversion, and truncation is not checked. Callers
// pick the width that matches their field.
func (bd *Binding) IntReader(name string, w IntWidth) (func(*Object) (any, error), error) {
	p, ok := bd.b.schema.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, name, bd.b.schema.Name())
	}
	if p.Kind != types.KindInt {
		return nil, fmt.Errorf("%w: property %q of %q is %s, not int",
			types.ErrTypeMismatch, name, bd.b.schema.Name(), p.Kind)
	}
	get := func(o *Object) (int64, error) {
		v, err := bd.Get(o, name)
		if err != nil {
			return 0, err
		}
		if v == nil {
			return 0, nil
		}
		return v.(int64), nil
	}
	switch w {
	case Width8:
		return func(o *Object) (any, error) { n, err := get(o); return int8(n), err }, nil
	case Width16:
		return func(o *Object) (any, error) { n, err := get(o); return int16(n), err }, nil
	case Width32:
		return func(o *Object) (any, error) { n, err := get(o); return int32(n), err }, nil
	case Width64:
		return func(o *Object) (any, error) { n, err := get(o); return n, err }, nil
	}
	return nil, fmt.Errorf("%w: int width %d", types.ErrUnsupportedOperation, w)
}
