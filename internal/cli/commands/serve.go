// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"modcore/internal/kernel/orchestrator"
	"modcore/pkg/logging"
)

// tickInterval is how often `serve` drives the scheduler and async
// manager forward while idle, by dispatching a query.status action
// (Execute ticks both subsystems before routing any action).
const tickInterval = 100 * time.Millisecond

// NewServeCommand returns the `modcore serve` command: the one
// long-running entrypoint in an otherwise one-shot CLI, for hosting the
// runtime standalone instead of embedding it in another process. It
// ticks the scheduler/async manager on an interval and, when
// metrics.enabled is set, serves /metrics until interrupted.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run modcore as a long-lived process, ticking the scheduler/async manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var wg sync.WaitGroup
			if rt.metrics != nil && rt.cfg.Metrics.Addr != "" {
				wg.Add(1)
				go func() {
					defer wg.Done()
					rt.logger.Info("metrics server listening", logging.F("addr", rt.cfg.Metrics.Addr))
					if err := rt.metrics.Serve(ctx, rt.cfg.Metrics.Addr); err != nil {
						rt.logger.Error("metrics server exited", logging.F("error", err.Error()))
					}
				}()
			} else {
				rt.logger.Info("metrics server disabled (set metrics.enabled: true in config to serve /metrics)")
			}

			rt.logger.Info("modcore runtime started", logging.F("data_root", rt.cfg.DataRoot))

			ticker := time.NewTicker(tickInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					rt.logger.Info("modcore runtime shutting down")
					wg.Wait()
					return nil
				case <-ticker.C:
					rt.orchestrator.Execute(orchestrator.NewAction("query.status", nil, "serve"))
				}
			}
		},
	}
}
