// Shared helpers for bindery CLI commands.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mesh-intelligence/bindery/internal/sqlite"
	"github.com/mesh-intelligence/bindery/pkg/bind"
	"github.com/mesh-intelligence/bindery/pkg/types"
)

// openStore resolves directories, loads the schema registry, and opens
// a store over the SQLite engine. The caller must invoke the returned
// close function.
func openStore() (*bind.Store, func(), error) {
	configDir, err := resolveConfigDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, nil, err
	}
	reg, err := loadRegistry(resolveSchemaPath(configDir, cfg))
	if err != nil {
		return nil, nil, err
	}

	dataDir, err := resolveDataDir(cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	eng, err := sqlite.Open(filepath.Join(dataDir, databaseName), reg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	st, err := bind.Open(eng, reg)
	if err != nil {
		eng.Close()
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return st, func() { _ = st.Close() }, nil
}

// objectFields renders a managed object as a map: scalars boxed, object
// links as the target's primary key (row id without one), lists as
// slices of the same.
func objectFields(o *bind.Object) (map[string]any, error) {
	out := make(map[string]any)
	schema := o.Schema()
	for _, p := range schema.Properties() {
		switch p.Kind {
		case types.KindBacklink:
			continue
		case types.KindObject:
			v, err := o.Get(p.Name)
			if err != nil {
				return nil, err
			}
			if v == nil {
				out[p.Name] = nil
				break
			}
			ref, err := objectRef(v.(*bind.Object))
			if err != nil {
				return nil, err
			}
			out[p.Name] = ref
		case types.KindList:
			list, err := o.List(p.Name)
			if err != nil {
				return nil, err
			}
			elems, err := list.Objects()
			if err != nil {
				return nil, err
			}
			refs := make([]any, len(elems))
			for i, e := range elems {
				refs[i], err = objectRef(e)
				if err != nil {
					return nil, err
				}
			}
			out[p.Name] = refs
		default:
			v, err := o.Get(p.Name)
			if err != nil {
				return nil, err
			}
			out[p.Name] = renderScalar(p, v)
		}
	}
	return out, nil
}

// objectRef identifies a linked object for output: its primary key
// value, or its row id when the schema has none.
func objectRef(o *bind.Object) (any, error) {
	if pk := o.Schema().PrimaryKey(); pk != nil {
		return o.Get(pk.Name)
	}
	return o.Row(), nil
}

// renderScalar converts a boxed scalar to its JSON-friendly form.
func renderScalar(p types.Property, v any) any {
	switch val := v.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// parseValue converts a command-line string to the property's boxed
// form. The literal "null" clears optional scalars and links.
func parseValue(schema *types.Schema, p *types.Property, s string) (any, error) {
	if s == "null" {
		return nil, nil
	}
	switch p.Kind {
	case types.KindInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("property %q of %q: %w", p.Name, schema.Name(), err)
		}
		return n, nil
	case types.KindFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("property %q of %q: %w", p.Name, schema.Name(), err)
		}
		return float32(f), nil
	case types.KindDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("property %q of %q: %w", p.Name, schema.Name(), err)
		}
		return f, nil
	case types.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("property %q of %q: %w", p.Name, schema.Name(), err)
		}
		return b, nil
	case types.KindString:
		return s, nil
	case types.KindBinary:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("property %q of %q: bad base64: %w", p.Name, schema.Name(), err)
		}
		return b, nil
	case types.KindTimestamp:
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("property %q of %q: %w", p.Name, schema.Name(), err)
		}
		return ts, nil
	case types.KindObject:
		// The string is the target's primary key; link coercion resolves it.
		return s, nil
	default:
		return nil, fmt.Errorf("property %q of %q: %s values cannot be set from the command line",
			p.Name, schema.Name(), p.Kind)
	}
}

// printObject writes one object, honoring --json.
func printObject(o *bind.Object) error {
	fields, err := objectFields(o)
	if err != nil {
		return err
	}
	if flagJSON {
		data, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	for _, p := range o.Schema().Properties() {
		if p.Kind == types.KindBacklink {
			continue
		}
		fmt.Printf("%s: %v\n", p.Name, fields[p.Name])
	}
	return nil
}

// findOrFail looks up a row by primary key, coercing the key string to
// the key's kind first.
func findOrFail(st *bind.Store, schemaName, key string) (*bind.Object, error) {
	schema, err := st.Registry().Get(schemaName)
	if err != nil {
		return nil, err
	}
	pk := schema.PrimaryKey()
	if pk == nil {
		return nil, fmt.Errorf("schema %q has no primary key; records are addressable only through links", schemaName)
	}
	raw, err := parseValue(schema, pk, key)
	if err != nil {
		return nil, err
	}
	o, err := st.Find(schemaName, raw)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("no %q with primary key %q", schemaName, key)
	}
	return o, nil
}
