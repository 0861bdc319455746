package types

import (
	"fmt"
	"regexp"
)

// identPattern restricts schema and property names so they can double as
// engine identifiers (SQL table and column names) without quoting games.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema describes one record type as an ordered sequence of properties.
// Schemas own no data; every record instance of the type references the
// same Schema. A Schema is immutable after registration.
type Schema struct {
	name   string
	props  []Property
	byName map[string]int
	pk     int // index into props, -1 when no primary key
}

// NewSchema builds and validates a schema from an ordered property list.
// Validation rejects empty or malformed names, duplicate property names,
// more than one primary key, primary keys that are optional or not
// Int/String, link kinds without a target, backlinks without an origin
// property, and the "any" kind outright.
func NewSchema(name string, props ...Property) (*Schema, error) {
	if !identPattern.MatchString(name) {
		return nil, fmt.Errorf("%w: schema name %q", ErrInvalidSchema, name)
	}
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: schema %q declares no properties", ErrInvalidSchema, name)
	}

	s := &Schema{
		name:   name,
		props:  make([]Property, len(props)),
		byName: make(map[string]int, len(props)),
		pk:     -1,
	}
	copy(s.props, props)

	for i := range s.props {
		p := &s.props[i]
		if !identPattern.MatchString(p.Name) {
			return nil, fmt.Errorf("%w: property name %q of %q", ErrInvalidSchema, p.Name, name)
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, fmt.Errorf("%w: property %q of %q", ErrDuplicateName, p.Name, name)
		}
		s.byName[p.Name] = i

		switch {
		case p.Kind == KindAny:
			return nil, fmt.Errorf("%w: property %q of %q has kind %q",
				ErrUnsupportedOperation, p.Name, name, KindAny)
		case p.Kind.IsLink() && p.TargetSchema == "":
			return nil, fmt.Errorf("%w: link property %q of %q names no target schema",
				ErrInvalidSchema, p.Name, name)
		case p.Kind == KindBacklink && p.OriginProperty == "":
			return nil, fmt.Errorf("%w: backlink property %q of %q names no origin property",
				ErrInvalidSchema, p.Name, name)
		case p.Kind != KindBacklink && p.OriginProperty != "":
			return nil, fmt.Errorf("%w: property %q of %q sets OriginProperty but is not a backlink",
				ErrInvalidSchema, p.Name, name)
		case p.Kind.IsScalar() && p.TargetSchema != "":
			return nil, fmt.Errorf("%w: scalar property %q of %q names a target schema",
				ErrInvalidSchema, p.Name, name)
		}

		if p.PrimaryKey {
			if s.pk >= 0 {
				return nil, fmt.Errorf("%w: schema %q declares more than one primary key",
					ErrInvalidSchema, name)
			}
			if p.Kind != KindInt && p.Kind != KindString {
				return nil, fmt.Errorf("%w: primary key %q of %q must be int or string",
					ErrInvalidSchema, p.Name, name)
			}
			if p.Optional {
				return nil, fmt.Errorf("%w: primary key %q of %q cannot be optional",
					ErrInvalidSchema, p.Name, name)
			}
			s.pk = i
		}

		// Columns are assigned at Registry.Freeze; until then every
		// property is unbound.
		p.Column = -1
	}

	return s, nil
}

// Name returns the schema's record-type name.
func (s *Schema) Name() string { return s.name }

// Properties returns the schema's properties in declaration order. The
// returned slice is shared; callers must not modify it.
func (s *Schema) Properties() []Property { return s.props }

// Property returns the named property. The second return value reports
// whether the property exists.
func (s *Schema) Property(name string) (*Property, bool) {
	i, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return &s.props[i], true
}

// PrimaryKey returns the schema's primary-key property, or nil when the
// schema declares none.
func (s *Schema) PrimaryKey() *Property {
	if s.pk < 0 {
		return nil
	}
	return &s.props[s.pk]
}
