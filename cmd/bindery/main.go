// Package main provides the bindery CLI: a thin command surface over a
// schema registry loaded from schema.json and a store opened on the
// SQLite engine.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
