// List command: enumerate the records of one schema.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <schema>",
	Short: "List every record of a schema",
	Long: `List prints each record of the named schema in insertion order.

Example:
  bindery list Person`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	all, err := st.All(args[0])
	if err != nil {
		return err
	}

	if flagJSON {
		records := make([]map[string]any, 0, len(all))
		for _, o := range all {
			fields, err := objectFields(o)
			if err != nil {
				return err
			}
			records = append(records, fields)
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for i, o := range all {
		if i > 0 {
			fmt.Println("---")
		}
		if err := printObject(o); err != nil {
			return err
		}
	}
	if len(all) == 0 {
		fmt.Printf("no %s records\n", args[0])
	}
	return nil
}
