// Root command for the bindery CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bindery/internal/paths"
)

// version is the CLI version string printed by the version command.
const version = "0.1.0"

// Exit codes: 1 for user errors (bad arguments, unknown schemas), 2 for
// system errors (storage failures).
const (
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
)

var rootCmd = &cobra.Command{
	Use:   "bindery",
	Short: "Bindery is a schema-driven object store",
	Long: `Bindery manages typed records defined by a schema file. Records live
in a SQLite database; the schema describes their properties, links, and
primary keys.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.bindery)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.bindery-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)
}

// resolveConfigDir returns the configuration directory following the
// precedence flag > BINDERY_CONFIG_DIR env > $(CWD)/.bindery.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}

// resolveDataDir returns the data directory following the precedence
// flag > config.yaml data_dir > BINDERY_DATA_DIR env > $(CWD)/.bindery-db.
func resolveDataDir(configDataDir string) (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}
