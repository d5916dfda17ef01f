// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands contains Cobra subcommands for the modcore CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"modcore/internal/integrity"
	"modcore/internal/kernel/asynctask"
	"modcore/internal/kernel/capability"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/loader"
	"modcore/internal/kernel/orchestrator"
	"modcore/internal/kernel/scheduler"
	"modcore/pkg/config"
	"modcore/pkg/logging"
	"modcore/pkg/metrics"

	// Registers every bundled demo module descriptor with
	// internal/modules so the CLI has something to load and run.
	_ "modcore/internal/modules/demo"
)

// runtime bundles every kernel subsystem a CLI command needs, built
// fresh for each invocation (every subcommand except serve is a one-shot
// process; module state round-trips through disk via
// internal/kernel/storage, but in-memory bookkeeping like integrity
// baselines starts clean on every invocation).
type runtime struct {
	cfg          *config.Config
	logger       logging.Logger
	eventBus     *eventbus.Bus
	scheduler    *scheduler.Scheduler
	asyncManager *asynctask.Manager
	metrics      *metrics.Registry
	orchestrator *orchestrator.Orchestrator
	loader       *loader.Loader
}

// newRuntime loads config from the command's --config flag and wires
// every kernel subsystem together. Every subcommand that needs the
// kernel, including the long-running serve, builds it here.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath)
	if err != nil && err != config.ErrConfigNotFound {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	logger := logging.New(verbose)
	bus := eventbus.New()

	sched := scheduler.New(bus, logger)
	sched.SetMaxTasksPerTick(cfg.Scheduler.MaxTasksPerTick)

	asyncMgr := asynctask.New(bus, logger)
	asyncMgr.Configure(cfg.Async.MaxTasksPerTick, cfg.Async.MaxRunningTasks, cfg.Async.MaxPendingTasks)

	bus.SetScheduler(sched)
	bus.SetAsyncManager(asyncMgr)

	capManager := capability.NewManager(logger)
	validator := loader.NewValidator(capManager, nil)
	verifier := integrity.NewVerifier()
	l := loader.New(validator, capManager, verifier, bus, sched, asyncMgr, cfg.DataRoot, logger)

	var metricsReg *metrics.Registry
	if cfg.Metrics.Enabled {
		metricsReg = metrics.New()
	}

	orch := orchestrator.New(l, bus, sched, asyncMgr, metricsReg, logger)

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		eventBus:     bus,
		scheduler:    sched,
		asyncManager: asyncMgr,
		metrics:      metricsReg,
		orchestrator: orch,
		loader:       l,
	}, nil
}
