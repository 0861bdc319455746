package types

import "time"

// Kind is the semantic type of a property.
type Kind int

// Property kinds. Scalar kinds map one-to-one onto engine column types;
// link kinds reference rows of another schema.
const (
	KindInt       Kind = iota // 64-bit signed integer column
	KindFloat                 // 32-bit floating point
	KindDouble                // 64-bit floating point
	KindBool                  // boolean
	KindString                // UTF-8 string
	KindBinary                // opaque byte blob
	KindTimestamp             // point in time
	KindObject                // link to a single row of the target schema
	KindList                  // ordered link list to rows of the target schema
	KindBacklink              // derived reverse-link view, no storage
	KindAny                   // dynamic; rejected at schema creation
)

// kindNames maps kinds to their canonical string form, used by schema
// definition files and error messages.
var kindNames = map[Kind]string{
	KindInt:       "int",
	KindFloat:     "float",
	KindDouble:    "double",
	KindBool:      "bool",
	KindString:    "string",
	KindBinary:    "binary",
	KindTimestamp: "timestamp",
	KindObject:    "object",
	KindList:      "list",
	KindBacklink:  "backlink",
	KindAny:       "any",
}

// String returns the canonical name of the kind, or "unknown".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// KindFromString parses a canonical kind name. The second return value
// reports whether the name was recognized.
func KindFromString(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindAny, false
}

// IsLink reports whether the kind references rows of another schema.
func (k Kind) IsLink() bool {
	return k == KindObject || k == KindList || k == KindBacklink
}

// IsScalar reports whether the kind is stored in a typed value column.
func (k Kind) IsScalar() bool {
	switch k {
	case KindInt, KindFloat, KindDouble, KindBool, KindString, KindBinary, KindTimestamp:
		return true
	}
	return false
}

// Property describes one named, typed attribute of a Schema.
type Property struct {
	// Name is unique within the owning schema.
	Name string

	// Kind is the semantic type of the property.
	Kind Kind

	// Optional marks scalar properties that accept the engine null.
	// Link properties are nullable by nature and ignore this flag.
	Optional bool

	// PrimaryKey marks the property as the schema's primary key.
	// Primary keys must be Int or String, non-optional, and are
	// immutable once the owning row has been inserted.
	PrimaryKey bool

	// TargetSchema names the schema referenced by Object, List, and
	// Backlink properties. Empty for scalar kinds.
	TargetSchema string

	// OriginProperty names the forward-link property on TargetSchema
	// that a Backlink view inverts. Empty for all other kinds.
	OriginProperty string

	// Column is the bound engine column index, assigned exactly once at
	// Registry.Freeze and immutable afterward. Backlink properties own
	// no storage and keep Column == -1.
	Column int
}

// DefaultValue returns the value an unmanaged record slot holds for a
// property that was never assigned. Optional and link-to-one properties
// default to nil, link lists to an empty slice, and scalar kinds to their
// zero value.
func DefaultValue(p Property) any {
	if p.Optional {
		return nil
	}
	switch p.Kind {
	case KindInt:
		return int64(0)
	case KindFloat:
		return float32(0)
	case KindDouble:
		return float64(0)
	case KindBool:
		return false
	case KindString:
		return ""
	case KindBinary:
		return []byte{}
	case KindTimestamp:
		return time.Time{}
	case KindList:
		return []any{}
	default:
		// Object, Backlink: no sensible non-nil default.
		return nil
	}
}
