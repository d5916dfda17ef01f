// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"modcore/internal/kernel/orchestrator"
)

// NewLoadCommand returns the `modcore load` command.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <module>",
		Short: "Load a registered module through the full validation pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}
	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result := rt.orchestrator.Execute(orchestrator.NewAction("load.module", map[string]interface{}{
		"module": args[0],
	}, "cli"))

	return printEnvelope(cmd, result)
}

func printEnvelope(cmd *cobra.Command, envelope map[string]interface{}) error {
	encoded, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))

	if ok, _ := envelope["ok"].(bool); !ok {
		if msg, _ := envelope["error"].(string); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("action failed")
	}
	return nil
}
