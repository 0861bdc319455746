package bind

import (
	"fmt"
	"slices"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// Object is one record instance. Unmanaged objects hold their values in
// in-memory slots seeded from the schema's default-value table; managed
// objects bind to one row of one open store and dispatch every access
// through the store's synthesized accessors. The handle survives row
// deletion, but all further access fails with ErrInvalidatedAccess.
type Object struct {
	schema *types.Schema
	store  *Store // nil while unmanaged
	row    int64
	slots  map[string]any // unmanaged only
}

// NewObject builds an unmanaged instance with every property at its
// default value.
func NewObject(schema *types.Schema) *Object {
	slots := make(map[string]any)
	for _, p := range schema.Properties() {
		if p.Kind == types.KindBacklink {
			continue
		}
		slots[p.Name] = types.DefaultValue(p)
	}
	return &Object{schema: schema, slots: slots}
}

// Schema returns the object's record type.
func (o *Object) Schema() *types.Schema { return o.schema }

// IsManaged reports whether the object is bound to a store row.
func (o *Object) IsManaged() bool { return o.store != nil }

// Store returns the managing store, or nil for unmanaged objects.
func (o *Object) Store() *Store { return o.store }

// Row returns the bound row id; meaningful only when managed.
func (o *Object) Row() int64 { return o.row }

// IsValid reports whether the object can be accessed: unmanaged objects
// always can, managed ones only from the owning goroutine while the
// store is open and the row attached.
func (o *Object) IsValid() bool {
	if o.store == nil {
		return true
	}
	if o.store.check() != nil {
		return false
	}
	return o.store.tables[o.schema.Name()].RowExists(o.row)
}

// attach binds a freshly created row, turning the object managed. The
// unmanaged slots are dropped; all further access goes through the
// store.
func (o *Object) attach(st *Store, row int64) {
	o.store = st
	o.row = row
	o.slots = nil
}

// Get reads a property by name, re-validating the name on every call.
// Managed objects dispatch through the synthesized accessor; unmanaged
// ones read their slot directly. The collection kinds read differently
// across the two states: a managed list or backlink yields a *List or
// *Backlinks view, an unmanaged list yields its []any slot, and an
// unmanaged backlink yields an empty []any (nothing links to a record
// that is in no store). Slot-backed slices are copies; mutating them
// does not write the object.
func (o *Object) Get(name string) (any, error) {
	p, ok := o.schema.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, name, o.schema.Name())
	}

	if o.store == nil {
		if p.Kind == types.KindBacklink {
			return []any{}, nil
		}
		switch v := o.slots[name].(type) {
		case []byte:
			return slices.Clone(v), nil
		case []any:
			return slices.Clone(v), nil
		default:
			return v, nil
		}
	}

	if err := o.store.check(); err != nil {
		return nil, err
	}
	if !o.store.tables[o.schema.Name()].RowExists(o.row) {
		return nil, fmt.Errorf("%w: property %q of %q", types.ErrInvalidatedAccess, name, o.schema.Name())
	}
	return o.store.bindings[o.schema.Name()].accessors[name].get(o)
}

// Set writes a property by name, re-validating name and value on every
// call. The unmanaged path bypasses accessor synthesis and writes the
// slot directly, under the same coercion rules as managed writes.
func (o *Object) Set(name string, v any) error {
	p, ok := o.schema.Property(name)
	if !ok {
		return fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, name, o.schema.Name())
	}

	if o.store == nil {
		return o.setSlot(p, v)
	}

	if err := o.store.check(); err != nil {
		return err
	}
	if !o.store.tables[o.schema.Name()].RowExists(o.row) {
		return fmt.Errorf("%w: property %q of %q", types.ErrInvalidatedAccess, name, o.schema.Name())
	}
	acc := o.store.bindings[o.schema.Name()].accessors[name]
	if acc.set == nil {
		return fmt.Errorf("%w: property %q of %q has no writer",
			types.ErrUnsupportedOperation, name, o.schema.Name())
	}
	if err := o.store.checkWrite(); err != nil {
		return err
	}
	return acc.set(o, v)
}

// Increment adds delta to an integer property in place, as one logical
// mutation with one notification pair. The value must be present:
// incrementing a null optional fails with ErrTypeMismatch. Managed
// increments go through the engine's add-in-place, so the read-modify-
// write never leaves this layer.
func (o *Object) Increment(name string, delta int64) error {
	schemaName := o.schema.Name()
	p, ok := o.schema.Property(name)
	if !ok {
		return fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, name, schemaName)
	}
	if p.Kind != types.KindInt {
		return fmt.Errorf("%w: property %q of %q is %s, not int",
			types.ErrTypeMismatch, name, schemaName, p.Kind)
	}

	if o.store == nil {
		v := o.slots[name]
		if v == nil {
			return fmt.Errorf("%w: cannot increment null property %q of %q",
				types.ErrTypeMismatch, name, schemaName)
		}
		o.slots[name] = v.(int64) + delta
		return nil
	}

	if err := o.store.check(); err != nil {
		return err
	}
	tbl := o.store.tables[schemaName]
	if !tbl.RowExists(o.row) {
		return fmt.Errorf("%w: property %q of %q", types.ErrInvalidatedAccess, name, schemaName)
	}
	if err := o.store.checkWrite(); err != nil {
		return err
	}
	if p.PrimaryKey {
		return fmt.Errorf("%w: property %q of %q", types.ErrImmutablePrimaryKey, name, schemaName)
	}
	null, err := tbl.IsNull(o.row, p.Column)
	if err != nil {
		return wrapAccess(schemaName, name, err)
	}
	if null {
		return fmt.Errorf("%w: cannot increment null property %q of %q",
			types.ErrTypeMismatch, name, schemaName)
	}
	c := Change{Schema: schemaName, Row: o.row, Property: name, Kind: ChangeSet}
	return o.store.notify(c, func() error {
		return wrapAccess(schemaName, name, tbl.AddInt(o.row, p.Column, delta))
	})
}

// setSlot validates and stores an unmanaged value. Primary keys are
// still writable here: immutability starts at insertion.
func (o *Object) setSlot(p *types.Property, v any) error {
	name := o.schema.Name()
	switch p.Kind {
	case types.KindBacklink:
		return fmt.Errorf("%w: backlink %q of %q is read-only",
			types.ErrUnsupportedOperation, p.Name, name)

	case types.KindObject:
		switch target := v.(type) {
		case nil:
			o.slots[p.Name] = nil
		case *Object:
			if target.schema.Name() != p.TargetSchema {
				return fmt.Errorf("%w: property %q of %q expects %q, got %q",
					types.ErrTypeMismatch, p.Name, name, p.TargetSchema, target.schema.Name())
			}
			o.slots[p.Name] = target
		case map[string]any:
			o.slots[p.Name] = target
		default:
			return mismatch(name, p, v)
		}
		return nil

	case types.KindList:
		elems, ok := linkElements(v)
		if !ok {
			return mismatch(name, p, v)
		}
		for _, e := range elems {
			switch target := e.(type) {
			case *Object:
				if target.schema.Name() != p.TargetSchema {
					return fmt.Errorf("%w: property %q of %q expects %q elements, got %q",
						types.ErrTypeMismatch, p.Name, name, p.TargetSchema, target.schema.Name())
				}
			case map[string]any:
			default:
				return fmt.Errorf("%w: property %q of %q expects %q elements, got %T",
					types.ErrTypeMismatch, p.Name, name, p.TargetSchema, e)
			}
		}
		o.slots[p.Name] = slices.Clone(elems)
		if elems == nil {
			o.slots[p.Name] = []any{}
		}
		return nil

	default:
		canon, err := unboxScalar(name, p, v)
		if err != nil {
			return err
		}
		o.slots[p.Name] = canon
		return nil
	}
}

// List returns the mutable link-list view for a link-to-many property.
// Only managed objects have one; an unmanaged instance's list lives in
// its slot.
func (o *Object) List(name string) (*List, error) {
	p, ok := o.schema.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, name, o.schema.Name())
	}
	if p.Kind != types.KindList {
		return nil, fmt.Errorf("%w: property %q of %q is %s, not a list",
			types.ErrTypeMismatch, name, o.schema.Name(), p.Kind)
	}
	if o.store == nil {
		return nil, fmt.Errorf("%w: %q is not managed", types.ErrInvalidatedAccess, o.schema.Name())
	}
	v, err := o.Get(name)
	if err != nil {
		return nil, err
	}
	return v.(*List), nil
}

// Backlinks returns the read-only reverse-link view for a backlink
// property of a managed object.
func (o *Object) Backlinks(name string) (*Backlinks, error) {
	p, ok := o.schema.Property(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q on %q", types.ErrPropertyNotFound, name, o.schema.Name())
	}
	if p.Kind != types.KindBacklink {
		return nil, fmt.Errorf("%w: property %q of %q is %s, not a backlink",
			types.ErrTypeMismatch, name, o.schema.Name(), p.Kind)
	}
	if o.store == nil {
		return nil, fmt.Errorf("%w: %q is not managed", types.ErrInvalidatedAccess, o.schema.Name())
	}
	v, err := o.Get(name)
	if err != nil {
		return nil, err
	}
	return v.(*Backlinks), nil
}
