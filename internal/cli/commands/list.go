// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"modcore/internal/modules"
)

// NewListCommand returns the `modcore list` command. It reports every
// module descriptor registered at compile time (available to load),
// as distinct from the orchestrator's "list.modules" action, which
// reports only modules already loaded in the current process.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every module descriptor registered with the kernel",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	names := modules.List()
	detailed := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		desc, ok := modules.Get(name)
		if !ok {
			continue
		}
		detailed = append(detailed, map[string]interface{}{
			"name":        desc.Name,
			"version":     desc.Manifest.Version,
			"description": desc.Manifest.Description,
		})
	}

	encoded, err := json.MarshalIndent(map[string]interface{}{
		"count":   len(detailed),
		"modules": detailed,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
