// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"github.com/spf13/cobra"

	"modcore/internal/kernel/orchestrator"
)

// NewStatusCommand returns the `modcore status` command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the runtime's current status",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	result := rt.orchestrator.Execute(orchestrator.NewAction("query.status", nil, "cli"))
	return printEnvelope(cmd, result)
}
