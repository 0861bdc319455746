package bind

import (
	"fmt"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// Mode selects how a dynamic value is resolved to a row.
type Mode int

const (
	// ModeNone performs no implicit creation: the value must already
	// resolve to an existing managed row.
	ModeNone Mode = iota
	// ModePromote adopts unmanaged objects into the store in place;
	// objects managed by a different store are an error.
	ModePromote
	// ModeCreate always constructs rows from the value, deep-copying
	// objects managed by other stores.
	ModeCreate
)

// managedKey identifies a row of another open store in a creation
// context's dedup map.
type managedKey struct {
	store  string
	schema string
	row    int64
}

// createCtx spans one top-level promotion/creation call. The seen map
// resolves a second encounter of the same instance (cycles, shared
// sub-objects) to the already-created row instead of recursing again.
type createCtx struct {
	mode   Mode
	update bool
	seen   map[any]int64
}

func newCreateCtx(mode Mode, update bool) *createCtx {
	return &createCtx{mode: mode, update: update, seen: make(map[any]int64)}
}

// Add adopts an unmanaged object (and, recursively, its unmanaged
// sub-objects) into the store in place. Adding an object this store
// already manages is a no-op; one managed by a different store fails
// with ErrCrossStoreLink.
func (st *Store) Add(o *Object) error {
	if err := st.checkWrite(); err != nil {
		return err
	}
	if o.store == st {
		return nil
	}
	if o.store != nil {
		return fmt.Errorf("%w: %q is managed elsewhere, use Create to copy it",
			types.ErrCrossStoreLink, o.schema.Name())
	}
	schema, err := st.schema(o.schema.Name())
	if err != nil {
		return err
	}
	ctx := newCreateCtx(ModePromote, false)
	_, _, err = st.resolveLink(schema.Name(), "value", schema, o, ctx)
	return err
}

// Create constructs a managed row from a dynamic value: a map of
// property values, an unmanaged object, or an object managed by another
// store (deep copy). With update set, a primary-key collision overwrites
// the existing row's fields instead of failing; the key itself is never
// rewritten.
func (st *Store) Create(schemaName string, value any, update bool) (*Object, error) {
	return st.Resolve(schemaName, value, ModeCreate, update)
}

// Resolve is the mode-flagged promotion/creation entry point: it coerces
// a dynamic value to a managed row under the given mode and returns the
// managed object.
func (st *Store) Resolve(schemaName string, value any, mode Mode, update bool) (*Object, error) {
	var err error
	if mode == ModeNone {
		err = st.check()
	} else {
		err = st.checkWrite()
	}
	if err != nil {
		return nil, err
	}
	schema, err := st.schema(schemaName)
	if err != nil {
		return nil, err
	}
	ctx := newCreateCtx(mode, update)
	row, null, err := st.resolveLink(schemaName, "value", schema, value, ctx)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, fmt.Errorf("%w: cannot resolve null to a %q row",
			types.ErrTypeMismatch, schemaName)
	}
	return &Object{schema: schema, store: st, row: row}, nil
}

// Find returns the managed object with the given primary-key value, or
// nil when no row matches.
func (st *Store) Find(schemaName string, pk any) (*Object, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	schema, err := st.schema(schemaName)
	if err != nil {
		return nil, err
	}
	prop := schema.PrimaryKey()
	if prop == nil {
		return nil, fmt.Errorf("%w: schema %q has no primary key", types.ErrInvalidSchema, schemaName)
	}
	canon, err := unboxScalar(schemaName, prop, pk)
	if err != nil {
		return nil, err
	}
	row, ok, err := st.findByPK(schema, canon)
	if err != nil {
		return nil, wrapAccess(schemaName, prop.Name, err)
	}
	if !ok {
		return nil, nil
	}
	return &Object{schema: schema, store: st, row: row}, nil
}

// All returns every attached row of a schema as managed objects, in
// insertion order.
func (st *Store) All(schemaName string) ([]*Object, error) {
	if err := st.check(); err != nil {
		return nil, err
	}
	schema, err := st.schema(schemaName)
	if err != nil {
		return nil, err
	}
	rows, err := st.tables[schemaName].Rows()
	if err != nil {
		return nil, fmt.Errorf("schema %q: %w", schemaName, err)
	}
	out := make([]*Object, len(rows))
	for i, row := range rows {
		out[i] = &Object{schema: schema, store: st, row: row}
	}
	return out, nil
}

// Delete removes a managed object's row. Observers of the row receive a
// matched invalidation pair and their registrations are dropped; the
// handle itself survives but all further access fails.
func (st *Store) Delete(o *Object) error {
	if err := st.checkWrite(); err != nil {
		return err
	}
	if o.store != st {
		return fmt.Errorf("%w: object is not managed by this store", types.ErrInvalidatedAccess)
	}
	name := o.schema.Name()
	tbl := st.tables[name]
	if !tbl.RowExists(o.row) {
		return fmt.Errorf("%w: row %d of %q", types.ErrInvalidatedAccess, o.row, name)
	}
	key := obsKey{name, o.row}
	c := Change{Schema: name, Row: o.row, Kind: ChangeInvalidate}
	err := st.notify(c, func() error {
		return wrapAccess(name, "", tbl.DeleteRow(o.row))
	})
	delete(st.observers, key)
	return err
}

// resolveLink coerces a dynamic value to a row of the target schema
// under the context's mode. Returns the row, or null=true for a nil
// value (clearing a link).
func (st *Store) resolveLink(ownerSchema, propName string, target *types.Schema, v any, ctx *createCtx) (int64, bool, error) {
	if v == nil {
		return 0, true, nil
	}

	switch val := v.(type) {
	case *Object:
		if val.schema.Name() != target.Name() {
			return 0, false, fmt.Errorf("%w: property %q of %q expects %q, got %q",
				types.ErrTypeMismatch, propName, ownerSchema, target.Name(), val.schema.Name())
		}

		if val.store == st {
			if !st.tables[target.Name()].RowExists(val.row) {
				return 0, false, fmt.Errorf("%w: %q row %d", types.ErrInvalidatedAccess, target.Name(), val.row)
			}
			return val.row, false, nil
		}

		if val.store != nil {
			// Managed by a different open store.
			if val.store.closed || !val.store.tables[val.schema.Name()].RowExists(val.row) {
				return 0, false, fmt.Errorf("%w: %q row %d", types.ErrInvalidatedAccess, target.Name(), val.row)
			}
			if ctx.mode != ModeCreate {
				return 0, false, fmt.Errorf("%w: property %q of %q: use Create to copy the object into this store",
					types.ErrCrossStoreLink, propName, ownerSchema)
			}
			key := managedKey{val.store.id, val.schema.Name(), val.row}
			if row, ok := ctx.seen[key]; ok {
				return row, false, nil
			}
			fields, err := snapshotFields(val)
			if err != nil {
				return 0, false, err
			}
			row, err := st.createRow(target, fields, ctx, key, nil)
			return row, false, err
		}

		// Unmanaged instance.
		if ctx.mode == ModeNone {
			row, err := st.lookupExisting(target, val.slots)
			return row, false, err
		}
		if row, ok := ctx.seen[val]; ok {
			return row, false, nil
		}
		var attach *Object
		if ctx.mode == ModePromote {
			attach = val
		}
		row, err := st.createRow(target, val.slots, ctx, val, attach)
		return row, false, err

	case map[string]any:
		if ctx.mode == ModeNone {
			row, err := st.lookupExisting(target, val)
			return row, false, err
		}
		row, err := st.createRow(target, val, ctx, nil, nil)
		return row, false, err

	default:
		// A plain scalar stands for the target's primary key.
		pk := target.PrimaryKey()
		if pk == nil {
			return 0, false, fmt.Errorf("%w: property %q of %q cannot resolve %T without a primary key on %q",
				types.ErrTypeMismatch, propName, ownerSchema, v, target.Name())
		}
		canon, err := unboxScalar(target.Name(), pk, v)
		if err != nil {
			return 0, false, err
		}
		row, ok, err := st.findByPK(target, canon)
		if err != nil {
			return 0, false, wrapAccess(target.Name(), pk.Name, err)
		}
		if ok {
			return row, false, nil
		}
		if ctx.mode != ModeCreate {
			return 0, false, fmt.Errorf("%w: no %q with primary key %v",
				types.ErrRowNotFound, target.Name(), canon)
		}
		row, err = st.createRow(target, map[string]any{pk.Name: canon}, ctx, nil, nil)
		return row, false, err
	}
}

// lookupExisting resolves a field set to an existing row by primary key,
// with no creation.
func (st *Store) lookupExisting(target *types.Schema, fields map[string]any) (int64, error) {
	pk := target.PrimaryKey()
	if pk == nil {
		return 0, fmt.Errorf("%w: schema %q has no primary key", types.ErrInvalidSchema, target.Name())
	}
	canon, err := unboxScalar(target.Name(), pk, fields[pk.Name])
	if err != nil {
		return 0, err
	}
	row, ok, err := st.findByPK(target, canon)
	if err != nil {
		return 0, wrapAccess(target.Name(), pk.Name, err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: no %q with primary key %v", types.ErrRowNotFound, target.Name(), canon)
	}
	return row, nil
}

func (st *Store) findByPK(schema *types.Schema, canon any) (int64, bool, error) {
	pk := schema.PrimaryKey()
	tbl := st.tables[schema.Name()]
	switch key := canon.(type) {
	case int64:
		return tbl.FindInt(pk.Column, key)
	case string:
		return tbl.FindString(pk.Column, key)
	}
	return 0, false, fmt.Errorf("%w: primary key %q of %q", types.ErrTypeMismatch, pk.Name, schema.Name())
}

// snapshotFields reads every data property of an object managed by
// another store into a field map, so createRow can deep-copy it. Link
// values stay as managed objects of the source store; recursion copies
// them with cross-store dedup.
func snapshotFields(o *Object) (map[string]any, error) {
	fields := make(map[string]any)
	for _, p := range o.schema.Properties() {
		switch p.Kind {
		case types.KindBacklink:
			continue
		case types.KindList:
			list, err := o.List(p.Name)
			if err != nil {
				return nil, err
			}
			elems, err := list.Objects()
			if err != nil {
				return nil, err
			}
			fields[p.Name] = elems
		default:
			v, err := o.Get(p.Name)
			if err != nil {
				return nil, err
			}
			fields[p.Name] = v
		}
	}
	return fields, nil
}

// createRow inserts (or, in create-or-update, locates) a row for the
// schema and applies the fields. seenKey, when non-nil, is registered in
// the context before any link recursion so cycles terminate; attach,
// when non-nil, is the unmanaged object to promote onto the row before
// its own fields are applied.
func (st *Store) createRow(schema *types.Schema, fields map[string]any, ctx *createCtx, seenKey any, attach *Object) (int64, error) {
	name := schema.Name()
	tbl := st.tables[name]
	pk := schema.PrimaryKey()

	var row int64
	existing := false
	if pk != nil {
		raw, present := fields[pk.Name]
		if !present {
			raw = types.DefaultValue(*pk)
		}
		canon, err := unboxScalar(name, pk, raw)
		if err != nil {
			return 0, err
		}
		found, ok, err := st.findByPK(schema, canon)
		if err != nil {
			return 0, wrapAccess(name, pk.Name, err)
		}
		if ok {
			if !ctx.update {
				return 0, fmt.Errorf("%w: %q with primary key %v already exists",
					types.ErrDuplicateName, name, canon)
			}
			row, existing = found, true
		} else {
			row, err = tbl.InsertRow()
			if err != nil {
				return 0, wrapAccess(name, pk.Name, err)
			}
			if err := writeScalar(tbl, row, pk, canon); err != nil {
				return 0, wrapAccess(name, pk.Name, err)
			}
		}
	} else {
		var err error
		row, err = tbl.InsertRow()
		if err != nil {
			return 0, wrapAccess(name, "", err)
		}
	}

	if seenKey != nil {
		ctx.seen[seenKey] = row
	}
	if attach != nil {
		attach.attach(st, row)
	}

	defaults := st.registry.Defaults(name)
	props := schema.Properties()
	for i := range props {
		p := &props[i]
		if p.Kind == types.KindBacklink || p.PrimaryKey {
			continue
		}
		raw, present := fields[p.Name]
		if !present {
			if existing {
				// Create-or-update leaves absent fields untouched.
				continue
			}
			raw = defaults[p.Name]
		}

		switch p.Kind {
		case types.KindObject:
			ts, err := st.schema(p.TargetSchema)
			if err != nil {
				return 0, err
			}
			target, null, err := st.resolveLink(name, p.Name, ts, raw, ctx)
			if err != nil {
				return 0, err
			}
			if err := st.applyLink(schema, row, p, target, null); err != nil {
				return 0, err
			}
		case types.KindList:
			ts, err := st.schema(p.TargetSchema)
			if err != nil {
				return 0, err
			}
			elems, ok := linkElements(raw)
			if !ok {
				return 0, mismatch(name, p, raw)
			}
			targets := make([]int64, 0, len(elems))
			for _, e := range elems {
				tgt, null, err := st.resolveLink(name, p.Name, ts, e, ctx)
				if err != nil {
					return 0, err
				}
				if null {
					return 0, fmt.Errorf("%w: null element in list %q of %q",
						types.ErrTypeMismatch, p.Name, name)
				}
				targets = append(targets, tgt)
			}
			if err := st.replaceList(schema, row, p, targets); err != nil {
				return 0, err
			}
		default:
			canon, err := unboxScalar(name, p, raw)
			if err != nil {
				return 0, err
			}
			if err := st.applyScalar(schema, row, p, canon); err != nil {
				return 0, err
			}
		}
	}
	return row, nil
}

// replaceList swaps a link list's entire contents under one replacement
// notification. Targets are fully resolved before this runs, so the
// engine mutation is all-or-nothing at the value level.
func (st *Store) replaceList(schema *types.Schema, row int64, p *types.Property, targets []int64) error {
	name := schema.Name()
	ll := st.tables[name].LinkList(row, p.Column)
	n, err := ll.Size()
	if err != nil {
		return wrapAccess(name, p.Name, err)
	}
	span := max(n, len(targets))
	c := Change{Schema: name, Row: row, Property: p.Name, Kind: ChangeReplace, Indices: indexRange(0, span)}
	return st.notify(c, func() error {
		if err := ll.Clear(); err != nil {
			return wrapAccess(name, p.Name, err)
		}
		for i, t := range targets {
			if err := ll.Insert(i, t); err != nil {
				return wrapAccess(name, p.Name, err)
			}
		}
		return nil
	})
}

// indexRange returns [lo, hi) as a slice of indices.
func indexRange(lo, hi int) []int {
	if hi <= lo {
		return nil
	}
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}
