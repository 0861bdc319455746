// Delete command: remove a record and its link-list rows.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <schema> <key>",
	Aliases: []string{"del"},
	Short:   "Delete a record by primary key",
	Long: `Delete removes the record whose primary key matches, inside a write
transaction. Links pointing at the record are cleared and its list
entries removed.

Example:
  bindery delete Person Alice`,
	Args: cobra.ExactArgs(2),
	RunE: runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	schemaName, key := args[0], args[1]
	if err := st.Write(func() error {
		o, err := findOrFail(st, schemaName, key)
		if err != nil {
			return err
		}
		return st.Delete(o)
	}); err != nil {
		return err
	}
	fmt.Printf("deleted %s %s\n", schemaName, key)
	return nil
}
