// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli wires together the modcore root Cobra command and global
// CLI options.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"modcore/internal/cli/commands"
)

// NewRootCommand constructs the modcore root Cobra command, wiring
// subcommands for listing registered modules, loading them, running
// them, inspecting runtime status, running diagnostic tasks and printing
// task statistics, hosting the runtime as a long-lived process, and
// reporting its own version.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("MODCORE_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "modcore",
		Short:         "modcore - an in-process module runtime kernel",
		Long:          "modcore loads, sandboxes, and runs modules under a capability-scoped kernel with an event bus, a cooperative scheduler, and async task execution.",
		SilenceUsage:  true, // don't dump usage on user errors
		SilenceErrors: true, // centralize error printing in main()
	}

	cmd.PersistentFlags().StringP("config", "c", "", "path to modcore.yaml")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	// Subcommands - kept in lexicographic order by .Use for deterministic
	// help output.
	cmd.AddCommand(commands.NewListCommand())
	cmd.AddCommand(commands.NewLoadCommand())
	cmd.AddCommand(commands.NewRunCommand())
	cmd.AddCommand(commands.NewServeCommand())
	cmd.AddCommand(commands.NewStatusCommand())
	cmd.AddCommand(commands.NewTaskCommand())
	cmd.AddCommand(commands.NewVersionCommand(version))

	return cmd
}
