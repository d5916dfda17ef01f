// SPDX-License-Identifier: AGPL-3.0-or-later

package demo

import (
	"fmt"
	"time"

	"modcore/internal/kernel/capability"
	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/runtimectx"
	"modcore/internal/modules"
	"modcore/pkg/logging"
)

// Greeter exercises the full hook set (init/pre_run/post_run/on_error)
// plus, when granted, the async.schedule and task.schedule.interval
// capabilities: Init schedules a recurring heartbeat task, and Run
// submits a follow-up async task alongside its synchronous greeting.
type Greeter struct {
	ctx             *runtimectx.Context
	runCount        int
	lastErr         error
	heartbeatTaskID string
}

func newGreeter(ctx *runtimectx.Context) modules.Instance {
	return &Greeter{ctx: ctx}
}

// Init greets once at load time and, if task.schedule.interval was
// granted, schedules a recurring heartbeat.
func (g *Greeter) Init() error {
	g.ctx.Logger().Info("greeter module initialized")

	if proxy, ok := g.ctx.Use("task.schedule.interval").(*capability.TaskScheduleIntervalProxy); ok {
		g.heartbeatTaskID = proxy.Schedule(func() error {
			g.ctx.Logger().Info("greeter heartbeat", logging.F("run_count", g.runCount))
			return nil
		}, 5*time.Minute, map[string]interface{}{"module": "demo.greeter", "kind": "heartbeat"})
	}
	return nil
}

// PreRun runs immediately before Run.
func (g *Greeter) PreRun() error {
	g.runCount++
	return nil
}

// PostRun runs immediately after a successful Run.
func (g *Greeter) PostRun() error {
	g.ctx.Logger().Info("greeter run complete", logging.F("run_count", g.runCount))
	return nil
}

// OnError is invoked by the orchestrator when Run returns an error.
func (g *Greeter) OnError(err error) {
	g.lastErr = err
}

// Run greets the name in the payload, defaulting to "world". When
// async.schedule was granted, it also submits a follow-up async task and
// reports its ID so a caller can poll for completion.
func (g *Greeter) Run(payload map[string]interface{}) (map[string]interface{}, error) {
	name, _ := payload["name"].(string)
	if name == "" {
		name = "world"
	}

	result := map[string]interface{}{
		"greeting":  fmt.Sprintf("hello, %s", name),
		"run_count": g.runCount,
	}

	if proxy, ok := g.ctx.Use("async.schedule").(*capability.AsyncScheduleProxy); ok {
		followUpID := proxy.Schedule(func() (interface{}, error) {
			return map[string]interface{}{"greeted": name}, nil
		}, map[string]interface{}{"module": "demo.greeter", "kind": "greeting_followup"})
		if followUpID != "" {
			result["followup_task_id"] = followUpID
		}
	}

	return result, nil
}

func init() {
	modules.Register(modules.Descriptor{
		Name: "demo.greeter",
		Manifest: &manifest.Manifest{
			Name:        "demo.greeter",
			Version:     "1.0.0",
			Entrypoint:  "demo.greeter",
			Description: "greets by name, exercising the full hook set",
			Capabilities: manifest.Capabilities{
				Requires: []string{"log.basic"},
				Optional: []string{"async.schedule", "task.schedule.interval"},
			},
			Hooks: manifest.Hooks{Init: true, PreRun: true, PostRun: true, OnError: true},
		},
		Source:      greeterSource,
		NewInstance: newGreeter,
	})
}

const greeterSource = "demo.greeter.v1"
