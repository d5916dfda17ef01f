// SPDX-License-Identifier: AGPL-3.0-or-later

// Package demo provides reference modules exercising the full loader
// pipeline: lifecycle hooks, reactive handlers, capabilities, and the
// run entrypoint. They are registered the same way a real module
// would be, and are used both by the loader's own tests and by the
// CLI's "list"/"load" demo walkthrough.
package demo

import (
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/runtimectx"
	"modcore/internal/modules"
)

// Counter is a minimal module that increments an in-memory count on
// every "counter.increment" event and exposes the running total
// through its Run entrypoint.
type Counter struct {
	ctx   *runtimectx.Context
	count int
}

func newCounter(ctx *runtimectx.Context) modules.Instance {
	return &Counter{ctx: ctx}
}

// Init is invoked once at load time, before the module is marked idle.
func (c *Counter) Init() error {
	c.ctx.Logger().Info("counter module initialized")
	return nil
}

// OnIncrement is the reactive handler wired to "counter.increment".
func (c *Counter) OnIncrement(ctx eventbus.EventContext) (interface{}, error) {
	c.count++
	return map[string]interface{}{"count": c.count}, nil
}

// Run returns the module's current count, optionally resetting it
// first when the payload requests it.
func (c *Counter) Run(payload map[string]interface{}) (map[string]interface{}, error) {
	if reset, _ := payload["reset"].(bool); reset {
		c.count = 0
	}
	return map[string]interface{}{"count": c.count}, nil
}

func init() {
	modules.Register(modules.Descriptor{
		Name: "demo.counter",
		Manifest: &manifest.Manifest{
			Name:        "demo.counter",
			Version:     "1.0.0",
			Entrypoint:  "demo.counter",
			Description: "increments a counter in response to events",
			Capabilities: manifest.Capabilities{
				Requires: []string{"log.basic"},
			},
			Hooks: manifest.Hooks{Init: true},
			Reactive: manifest.Reactive{
				Enabled:  true,
				Handlers: map[string]string{"counter.increment": "OnIncrement"},
			},
			DefaultState: map[string]interface{}{"count": 0},
		},
		Source:      counterSource,
		NewInstance: newCounter,
	})
}

// counterSource is the text integrity hashing is computed over. It is
// a stand-in for the module's packaged source in this all-Go build,
// where every module ships compiled rather than as a loaded file.
const counterSource = "demo.counter.v1"
