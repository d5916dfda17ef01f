// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"modcore/internal/kernel/orchestrator"
)

// NewTaskCommand returns the `modcore task` command group: running a
// diagnostic task and inspecting scheduler/async task manager stats.
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Run diagnostic tasks or inspect the scheduler/async task manager",
	}
	cmd.AddCommand(newTaskRunCommand())
	cmd.AddCommand(newTaskStatsCommand())
	return cmd
}

func newTaskRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Execute a diagnostic task by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			result := rt.orchestrator.Execute(orchestrator.NewAction("execute.task", map[string]interface{}{
				"task_name": args[0],
			}, "cli"))
			return printEnvelope(cmd, result)
		},
	}
}

func newTaskStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print scheduler and async task manager statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(map[string]interface{}{
				"scheduler": rt.scheduler.GetStats(),
				"async":     rt.asyncManager.GetStats(),
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}
