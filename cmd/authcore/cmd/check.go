package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/policy"
	"github.com/tidegate/authcore/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a user may perform an action on a record",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("resource", "", "resource name")
	checkCmd.Flags().String("action", "", "action (create, read, update, delete)")
	checkCmd.Flags().String("user-id", "", "acting user ID")
	checkCmd.Flags().String("roles", "", "comma-separated user roles")
	checkCmd.Flags().String("permissions", "", "comma-separated user permissions")
	checkCmd.Flags().String("record", "", "record JSON (inline or @file)")
	checkCmd.Flags().String("params", "", "request parameters JSON (inline or @file)")
	checkCmd.MarkFlagRequired("resource")
	checkCmd.MarkFlagRequired("action")
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	record, err := jsonFlag(cmd, "record")
	if err != nil {
		return err
	}
	params, err := jsonFlag(cmd, "params")
	if err != nil {
		return err
	}

	allowed, err := engine.CheckAccess(policy.AccessRequest{
		Resource: resource,
		Action:   action,
		User:     userFlag(cmd),
		Record:   record,
		Params:   params,
	})
	if err != nil {
		return fmt.Errorf("access check failed: %w", err)
	}

	out, _ := json.Marshal(map[string]any{"allowed": allowed})
	fmt.Println(string(out))
	if !allowed {
		// Scriptable denial without stderr noise.
		cmd.SilenceErrors = true
		cmd.SilenceUsage = true
		return fmt.Errorf("denied")
	}
	return nil
}

// userFlag assembles the acting user from the shared identity flags.
func userFlag(cmd *cobra.Command) expr.User {
	id, _ := cmd.Flags().GetString("user-id")
	roles, _ := cmd.Flags().GetString("roles")
	permissions, _ := cmd.Flags().GetString("permissions")
	return expr.User{
		ID:          id,
		Roles:       splitList(roles),
		Permissions: splitList(permissions),
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// jsonFlag decodes a flag carrying inline JSON or, with a leading @, the
// path of a JSON file.
func jsonFlag(cmd *cobra.Command, name string) (map[string]any, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	data := []byte(raw)
	if strings.HasPrefix(raw, "@") {
		var err error
		data, err = os.ReadFile(raw[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read --%s file: %w", name, err)
		}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid --%s JSON: %w", name, err)
	}
	return m, nil
}
