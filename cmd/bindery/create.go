// Create command: build a record (and linked records) from JSON.
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

var createUpdate bool

var createCmd = &cobra.Command{
	Use:   "create <schema> <json>",
	Short: "Create a record from a JSON value",
	Long: `Create builds a record from a JSON object. Nested objects create
linked records; scalar link values resolve by primary key. With
--update, a primary-key collision overwrites the existing record's
given fields instead of failing.

Example:
  bindery create Person '{"name": "Alice", "age": 30, "pets": [{"name": "Rex"}]}'
  bindery create Person '{"name": "Alice", "age": 31}' --update`,
	Args: cobra.ExactArgs(2),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().BoolVar(&createUpdate, "update", false, "overwrite fields on primary-key collision")
}

func runCreate(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	var fields map[string]any
	if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
		return fmt.Errorf("parse value: %w", err)
	}
	normalizeFields(st.Registry(), args[0], fields)

	var created *jsonRef
	err = st.Write(func() error {
		o, err := st.Create(args[0], fields, createUpdate)
		if err != nil {
			return err
		}
		ref, err := objectRef(o)
		if err != nil {
			return err
		}
		created = &jsonRef{Schema: args[0], Key: ref}
		return nil
	})
	if err != nil {
		return err
	}

	if flagJSON {
		data, err := json.Marshal(created)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("created %s %v\n", created.Schema, created.Key)
	return nil
}

type jsonRef struct {
	Schema string `json:"schema"`
	Key    any    `json:"key"`
}

// normalizeFields rewrites JSON-decoded values to the forms value
// coercion accepts: numbers arrive as float64 and become int64 or
// float32 where the schema says so, binary strings are base64-decoded,
// timestamp strings parsed. Link values recurse. Anything that does not
// match is left as is for coercion to report.
func normalizeFields(reg *types.Registry, schemaName string, fields map[string]any) {
	schema, err := reg.Get(schemaName)
	if err != nil {
		return
	}
	for i := range schema.Properties() {
		p := schema.Properties()[i]
		v, ok := fields[p.Name]
		if !ok || v == nil {
			continue
		}
		switch p.Kind {
		case types.KindInt:
			if f, ok := v.(float64); ok && f == float64(int64(f)) {
				fields[p.Name] = int64(f)
			}
		case types.KindFloat:
			if f, ok := v.(float64); ok {
				fields[p.Name] = float32(f)
			}
		case types.KindBinary:
			if s, ok := v.(string); ok {
				if b, err := base64.StdEncoding.DecodeString(s); err == nil {
					fields[p.Name] = b
				}
			}
		case types.KindTimestamp:
			if s, ok := v.(string); ok {
				if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
					fields[p.Name] = ts
				}
			}
		case types.KindObject:
			switch link := v.(type) {
			case map[string]any:
				normalizeFields(reg, p.TargetSchema, link)
			default:
				fields[p.Name] = normalizeKey(reg, p.TargetSchema, v)
			}
		case types.KindList:
			if arr, ok := v.([]any); ok {
				for j, e := range arr {
					if m, ok := e.(map[string]any); ok {
						normalizeFields(reg, p.TargetSchema, m)
					} else {
						arr[j] = normalizeKey(reg, p.TargetSchema, e)
					}
				}
			}
		}
	}
}

// normalizeKey adjusts a scalar link value to the target's primary-key
// kind.
func normalizeKey(reg *types.Registry, targetName string, v any) any {
	target, err := reg.Get(targetName)
	if err != nil {
		return v
	}
	pk := target.PrimaryKey()
	if pk == nil || pk.Kind != types.KindInt {
		return v
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return int64(f)
	}
	return v
}
