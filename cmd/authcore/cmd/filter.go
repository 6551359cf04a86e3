package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidegate/authcore/internal/policy"
	"github.com/tidegate/authcore/internal/store"
	"github.com/tidegate/authcore/internal/types"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Derive the row filter and field visibility for a resource and action",
	RunE:  runFilter,
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterCmd.Flags().String("resource", "", "resource name")
	filterCmd.Flags().String("action", "", "action (create, read, update, delete)")
	filterCmd.Flags().String("user-id", "", "acting user ID")
	filterCmd.Flags().String("roles", "", "comma-separated user roles")
	filterCmd.Flags().String("permissions", "", "comma-separated user permissions")
	filterCmd.Flags().String("params", "", "request parameters JSON (inline or @file)")
	filterCmd.MarkFlagRequired("resource")
	filterCmd.MarkFlagRequired("action")
}

func runFilter(cmd *cobra.Command, args []string) error {
	engine, _, err := loadEngine()
	if err != nil {
		return err
	}

	resource, _ := cmd.Flags().GetString("resource")
	actionStr, _ := cmd.Flags().GetString("action")
	action := types.Action(actionStr)
	if !action.IsValid() {
		return fmt.Errorf("invalid action %q", actionStr)
	}

	params, err := jsonFlag(cmd, "params")
	if err != nil {
		return err
	}

	rowFilter, ok := engine.RowFilterFor(resource, action, userFlag(cmd), params)
	if !ok {
		return fmt.Errorf("no policy for %s/%s", resource, actionStr)
	}
	read, write, _ := engine.FieldsFor(resource, action)

	result := map[string]any{
		"rowFilter": rowFilter,
		"fields": map[string]any{
			"read":  read,
			"write": write,
		},
	}
	if where, args, err := store.BuildWhere(rowFilter, identityColumns(rowFilter)); err == nil {
		result["sql"] = map[string]any{"where": where, "args": args}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// identityColumns maps every leaf field in the filter to itself, previewing
// the SQL a store with same-named columns would run.
func identityColumns(f policy.RowFilter) map[string]string {
	columns := make(map[string]string)
	var walk func(policy.RowFilter)
	walk = func(f policy.RowFilter) {
		for key, value := range f {
			if key == policy.CombinatorAnd || key == policy.CombinatorOr {
				if children, ok := value.([]policy.RowFilter); ok {
					for _, child := range children {
						walk(child)
					}
				}
				continue
			}
			columns[key] = key
		}
	}
	walk(f)
	return columns
}
