// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"modcore/internal/kernel/orchestrator"
)

// NewRunCommand returns the `modcore run` command.
func NewRunCommand() *cobra.Command {
	var payloadJSON string

	cmd := &cobra.Command{
		Use:   "run <module>",
		Short: "Load then run a module's entrypoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, payloadJSON)
		},
	}
	cmd.Flags().StringVar(&payloadJSON, "payload", "{}", "JSON object passed as the module's run payload")
	return cmd
}

func runRun(cmd *cobra.Command, args []string, payloadJSON string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing --payload: %w", err)
	}

	moduleName := args[0]

	loadResult := rt.orchestrator.Execute(orchestrator.NewAction("load.module", map[string]interface{}{
		"module": moduleName,
	}, "cli"))
	if ok, _ := loadResult["ok"].(bool); !ok {
		return printEnvelope(cmd, loadResult)
	}

	payload["module"] = moduleName
	runResult := rt.orchestrator.Execute(orchestrator.NewAction("run.module", payload, "cli"))

	return printEnvelope(cmd, runResult)
}
