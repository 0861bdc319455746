package bind

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// Value coercion: "unbox" converts a dynamic value into the canonical
// engine-native representation for a property's kind, "box" is the
// inverse. Canonical representations are int64, float32 (Float), float64
// (Double), bool, string, []byte, time.Time, and nil for the engine null.

// intValue widens any signed Go integer to int64. The second return
// value reports whether the input was an acceptable integer.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

// floatValue widens numeric input to float64.
func floatValue(v any) (float64, bool) {
	switch f := v.(type) {
	case float32:
		return float64(f), true
	case float64:
		return f, true
	}
	if n, ok := intValue(v); ok {
		return float64(n), true
	}
	return 0, false
}

// mismatch builds the standard type-mismatch error naming the expected
// and actual type.
func mismatch(schema string, p *types.Property, v any) error {
	return fmt.Errorf("%w: property %q of %q expects %s, got %T",
		types.ErrTypeMismatch, p.Name, schema, p.Kind, v)
}

// unboxScalar validates and converts a dynamic value into the canonical
// engine representation for a scalar property. nil maps to the engine
// null only when the property is optional.
func unboxScalar(schema string, p *types.Property, v any) (any, error) {
	if v == nil {
		if p.Optional {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: null for non-optional property %q of %q",
			types.ErrTypeMismatch, p.Name, schema)
	}

	switch p.Kind {
	case types.KindInt:
		if n, ok := intValue(v); ok {
			return n, nil
		}
	case types.KindFloat:
		if f, ok := floatValue(v); ok {
			return float32(f), nil
		}
	case types.KindDouble:
		if f, ok := floatValue(v); ok {
			return f, nil
		}
	case types.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case types.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case types.KindBinary:
		if b, ok := v.([]byte); ok {
			return slices.Clone(b), nil
		}
	case types.KindTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	default:
		return nil, fmt.Errorf("%w: property %q of %q has non-scalar kind %s",
			types.ErrUnsupportedOperation, p.Name, schema, p.Kind)
	}
	return nil, mismatch(schema, p, v)
}

// writeScalar stores a canonical value into the property's bound column.
func writeScalar(tbl types.Table, row int64, p *types.Property, canon any) error {
	if canon == nil {
		return tbl.SetNull(row, p.Column)
	}
	switch p.Kind {
	case types.KindInt:
		return tbl.SetInt(row, p.Column, canon.(int64))
	case types.KindFloat:
		return tbl.SetFloat(row, p.Column, float64(canon.(float32)))
	case types.KindDouble:
		return tbl.SetFloat(row, p.Column, canon.(float64))
	case types.KindBool:
		return tbl.SetBool(row, p.Column, canon.(bool))
	case types.KindString:
		return tbl.SetString(row, p.Column, canon.(string))
	case types.KindBinary:
		return tbl.SetBinary(row, p.Column, canon.([]byte))
	case types.KindTimestamp:
		return tbl.SetTime(row, p.Column, canon.(time.Time))
	}
	return fmt.Errorf("%w: kind %s", types.ErrUnsupportedOperation, p.Kind)
}

// readScalar pulls the property's column into the boxed dynamic
// representation: canonical value, or nil for an optional null.
func readScalar(tbl types.Table, row int64, p *types.Property) (any, error) {
	null, err := tbl.IsNull(row, p.Column)
	if err != nil {
		return nil, err
	}
	if null && p.Optional {
		return nil, nil
	}
	switch p.Kind {
	case types.KindInt:
		return tbl.GetInt(row, p.Column)
	case types.KindFloat:
		f, err := tbl.GetFloat(row, p.Column)
		return float32(f), err
	case types.KindDouble:
		return tbl.GetFloat(row, p.Column)
	case types.KindBool:
		return tbl.GetBool(row, p.Column)
	case types.KindString:
		return tbl.GetString(row, p.Column)
	case types.KindBinary:
		return tbl.GetBinary(row, p.Column)
	case types.KindTimestamp:
		return tbl.GetTime(row, p.Column)
	}
	return nil, fmt.Errorf("%w: kind %s", types.ErrUnsupportedOperation, p.Kind)
}

// linkElements normalizes the accepted link-to-many representations into
// a []any of element values. nil means the empty list.
func linkElements(v any) ([]any, bool) {
	switch seq := v.(type) {
	case nil:
		return nil, true
	case []any:
		return seq, true
	case []*Object:
		out := make([]any, len(seq))
		for i, o := range seq {
			out[i] = o
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(seq))
		for i, m := range seq {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// wrapAccess translates an engine error at the accessor boundary into
// the domain taxonomy, naming the property and schema. A detached row
// becomes ErrInvalidatedAccess; everything else keeps its sentinel and
// gains context.
func wrapAccess(schema, prop string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrRowNotFound) {
		return fmt.Errorf("%w: property %q of %q", types.ErrInvalidatedAccess, prop, schema)
	}
	return fmt.Errorf("property %q of %q: %w", prop, schema, err)
}
