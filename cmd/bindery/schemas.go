// Schemas command: describe the loaded schema registry.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the schemas and their properties",
	Args:  cobra.NoArgs,
	RunE:  runSchemas,
}

func runSchemas(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	reg := st.Registry()
	if flagJSON {
		out := make(map[string][]map[string]any)
		for _, name := range reg.Names() {
			schema, err := reg.Get(name)
			if err != nil {
				return err
			}
			var props []map[string]any
			for _, p := range schema.Properties() {
				entry := map[string]any{"name": p.Name, "kind": p.Kind.String()}
				if p.Optional {
					entry["optional"] = true
				}
				if p.PrimaryKey {
					entry["primaryKey"] = true
				}
				if p.TargetSchema != "" {
					entry["target"] = p.TargetSchema
				}
				if p.OriginProperty != "" {
					entry["origin"] = p.OriginProperty
				}
				props = append(props, entry)
			}
			out[name] = props
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, name := range reg.Names() {
		schema, err := reg.Get(name)
		if err != nil {
			return err
		}
		fmt.Println(name)
		for _, p := range schema.Properties() {
			line := fmt.Sprintf("  %s %s", p.Name, p.Kind)
			if p.TargetSchema != "" {
				line += " -> " + p.TargetSchema
				if p.Kind == types.KindBacklink {
					line += "." + p.OriginProperty
				}
			}
			if p.PrimaryKey {
				line += " (primary key)"
			}
			if p.Optional {
				line += " (optional)"
			}
			fmt.Println(line)
		}
	}
	return nil
}
