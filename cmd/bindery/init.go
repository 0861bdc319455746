// Init command: scaffold configuration and create the database.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// exampleSchemaJSON is written to schema.json on first init so a new
// project has something to edit.
const exampleSchemaJSON = `{
  "schemas": [
    {
      "name": "Person",
      "properties": [
        {"name": "name", "kind": "string", "primaryKey": true},
        {"name": "age", "kind": "int"},
        {"name": "pets", "kind": "list", "target": "Pet"}
      ]
    },
    {
      "name": "Pet",
      "properties": [
        {"name": "name", "kind": "string", "primaryKey": true},
        {"name": "owners", "kind": "backlink", "target": "Person", "origin": "pets"}
      ]
    }
  ]
}
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize bindery configuration and storage",
	Long: `Create the configuration directory with a default config.yaml and an
example schema.json (both kept if present), then create the database
tables for the schema.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := resolveConfigDir()
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := writeIfMissing(filepath.Join(configDir, configYAMLName), defaultConfigYAML); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := writeIfMissing(filepath.Join(configDir, schemaFileName), exampleSchemaJSON); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}

	// Opening the store creates the tables.
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized bindery in %s (%d schemas)\n",
		configDir, len(st.Registry().Names()))
	return nil
}

// writeIfMissing creates the file with content unless it already
// exists. Idempotent.
func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
