package types

import "fmt"

// Registry collects the schemas for one open store. It is created empty,
// populated with Add, and frozen exactly once at store-open time. Freeze
// assigns column indices, resolves cross-schema link targets, and builds
// the per-schema default-value tables. A frozen registry is immutable and
// shared read-only by every accessor for the lifetime of the open store.
type Registry struct {
	schemas  map[string]*Schema
	order    []string
	defaults map[string]map[string]any
	frozen   bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		schemas:  make(map[string]*Schema),
		defaults: make(map[string]map[string]any),
	}
}

// Add registers a schema. Returns ErrRegistryFrozen after Freeze and
// ErrDuplicateName if a schema with the same name is already registered.
func (r *Registry) Add(s *Schema) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot add schema %q", ErrRegistryFrozen, s.Name())
	}
	if _, exists := r.schemas[s.Name()]; exists {
		return fmt.Errorf("%w: schema %q", ErrDuplicateName, s.Name())
	}
	r.schemas[s.Name()] = s
	r.order = append(r.order, s.Name())
	return nil
}

// Get returns the named schema or ErrSchemaNotFound.
func (r *Registry) Get(name string) (*Schema, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSchemaNotFound, name)
	}
	return s, nil
}

// Names returns all registered schema names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Frozen reports whether Freeze has run.
func (r *Registry) Frozen() bool { return r.frozen }

// Freeze validates cross-schema references, binds every data property to
// an engine column index (declaration order, backlinks excluded), and
// builds the default-value tables. Idempotent: a second call is a no-op.
func (r *Registry) Freeze() error {
	if r.frozen {
		return nil
	}

	for _, name := range r.order {
		s := r.schemas[name]
		col := 0
		for i := range s.props {
			p := &s.props[i]

			if p.Kind.IsLink() {
				target, ok := r.schemas[p.TargetSchema]
				if !ok {
					return fmt.Errorf("%w: %q, referenced by property %q of %q",
						ErrSchemaNotFound, p.TargetSchema, p.Name, name)
				}
				if p.Kind == KindBacklink {
					origin, ok := target.Property(p.OriginProperty)
					if !ok {
						return fmt.Errorf("%w: %q on schema %q, referenced by backlink %q of %q",
							ErrPropertyNotFound, p.OriginProperty, p.TargetSchema, p.Name, name)
					}
					if origin.Kind != KindObject && origin.Kind != KindList {
						return fmt.Errorf("%w: backlink %q of %q inverts %q.%q which is not a forward link",
							ErrInvalidSchema, p.Name, name, p.TargetSchema, p.OriginProperty)
					}
					if origin.TargetSchema != name {
						return fmt.Errorf("%w: backlink %q of %q inverts %q.%q which targets %q",
							ErrInvalidSchema, p.Name, name, p.TargetSchema, p.OriginProperty, origin.TargetSchema)
					}
					p.Column = -1
					continue
				}
			}

			p.Column = col
			col++
		}

		def := make(map[string]any, len(s.props))
		for _, p := range s.props {
			if p.Kind == KindBacklink {
				continue
			}
			def[p.Name] = DefaultValue(p)
		}
		r.defaults[name] = def
	}

	r.frozen = true
	return nil
}

// Defaults returns the default-value table for a schema, keyed by
// property name. Only valid after Freeze. The returned map is shared;
// callers must not modify it.
func (r *Registry) Defaults(schema string) map[string]any {
	return r.defaults[schema]
}
