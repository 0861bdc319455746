// Set command: write one property of a record.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <schema> <key> <property> <value>",
	Short: "Set a property of a record",
	Long: `Set writes one property inside a write transaction. Scalar values are
parsed by the property's kind; "null" clears optional properties and
links; object-link values name the target's primary key. Binary values
are base64, timestamps RFC 3339.

Example:
  bindery set Person Alice age 31
  bindery set Person Alice partner Bob
  bindery set Person Alice nickname null`,
	Args: cobra.ExactArgs(4),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	schemaName, key, propName, raw := args[0], args[1], args[2], args[3]
	schema, err := st.Registry().Get(schemaName)
	if err != nil {
		return err
	}
	p, ok := schema.Property(propName)
	if !ok {
		return fmt.Errorf("schema %q has no property %q", schemaName, propName)
	}

	v, err := parseValue(schema, p, raw)
	if err != nil {
		return err
	}

	return st.Write(func() error {
		o, err := findOrFail(st, schemaName, key)
		if err != nil {
			return err
		}
		return o.Set(propName, v)
	})
}
