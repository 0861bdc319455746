// Get command: read one record, or one property of it.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/bindery/pkg/bind"
	"github.com/mesh-intelligence/bindery/pkg/types"
)

var getCmd = &cobra.Command{
	Use:   "get <schema> <key> [property]",
	Short: "Get a record by primary key",
	Long: `Get looks a record up by its primary key and prints it. With a
property name, only that property is printed; backlink properties print
the keys of the linking records.

Example:
  bindery get Person Alice
  bindery get Person Alice age
  bindery get Pet Rex owners`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	o, err := findOrFail(st, args[0], args[1])
	if err != nil {
		return err
	}
	if len(args) == 2 {
		return printObject(o)
	}

	name := args[2]
	p, ok := o.Schema().Property(name)
	if !ok {
		return fmt.Errorf("schema %q has no property %q", args[0], name)
	}

	var out any
	switch p.Kind {
	case types.KindBacklink:
		view, err := o.Backlinks(name)
		if err != nil {
			return err
		}
		objs, err := view.Objects()
		if err != nil {
			return err
		}
		refs := make([]any, len(objs))
		for i, e := range objs {
			refs[i], err = objectRef(e)
			if err != nil {
				return err
			}
		}
		out = refs
	case types.KindList:
		list, err := o.List(name)
		if err != nil {
			return err
		}
		objs, err := list.Objects()
		if err != nil {
			return err
		}
		refs := make([]any, len(objs))
		for i, e := range objs {
			refs[i], err = objectRef(e)
			if err != nil {
				return err
			}
		}
		out = refs
	case types.KindObject:
		v, err := o.Get(name)
		if err != nil {
			return err
		}
		if v != nil {
			out, err = objectRef(v.(*bind.Object))
			if err != nil {
				return err
			}
		}
	default:
		v, err := o.Get(name)
		if err != nil {
			return err
		}
		out = renderScalar(*p, v)
	}

	if flagJSON {
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("%v\n", out)
	return nil
}
