// SPDX-License-Identifier: AGPL-3.0-or-later

// Package runtimectx implements the per-module execution context
// passed into every hook and handler call: the module's bound
// capability map, its lifecycle stage, and access to the shared
// scheduler and async task manager.
package runtimectx

import (
	"sync"

	"modcore/internal/kernel/asynctask"
	"modcore/internal/kernel/scheduler"
	"modcore/pkg/logging"
)

// Stage names a point in a module's execution lifecycle.
type Stage string

const (
	StageIdle    Stage = "idle"
	StageInit    Stage = "init"
	StagePreRun  Stage = "pre_run"
	StageRun     Stage = "run"
	StagePostRun Stage = "post_run"
	StageOnError Stage = "on_error"
)

// Context is the execution environment handed to a loaded module's
// hooks and entrypoint. It is safe for concurrent use.
type Context struct {
	mu           sync.RWMutex
	moduleName   string
	capabilities map[string]interface{}
	stage        Stage
	logger       logging.Logger
	scheduler    *scheduler.Scheduler
	asyncManager *asynctask.Manager
}

// New creates an idle Context for moduleName with no capabilities bound.
func New(moduleName string, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Context{
		moduleName:   moduleName,
		capabilities: make(map[string]interface{}),
		stage:        StageIdle,
		logger:       logger,
	}
}

// SetCapabilities replaces the context's bound capability map, as
// produced by capability.Manager.CreateCapabilityMap.
func (c *Context) SetCapabilities(capabilities map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capabilities = capabilities
}

// Use returns the capability object bound under name, or nil if the
// module was not granted it.
func (c *Context) Use(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capabilities[name]
}

// HasCapability reports whether name is bound in this context.
func (c *Context) HasCapability(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.capabilities[name]
	return ok
}

// ListCapabilities returns the names of every capability bound in this
// context.
func (c *Context) ListCapabilities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.capabilities))
	for name := range c.capabilities {
		names = append(names, name)
	}
	return names
}

// SetStage records the module's current lifecycle stage.
func (c *Context) SetStage(stage Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stage = stage
}

// Stage returns the module's current lifecycle stage.
func (c *Context) Stage() Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage
}

// Logger returns the context's logger, tagged with the module name.
func (c *Context) Logger() logging.Logger {
	return c.logger.WithFields(logging.F("module", c.moduleName))
}

// SetScheduler wires in the shared scheduler, letting the module's
// hooks reach it directly when needed beyond its bound capabilities.
func (c *Context) SetScheduler(s *scheduler.Scheduler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scheduler = s
}

// Scheduler returns the shared scheduler, or nil if unset.
func (c *Context) Scheduler() *scheduler.Scheduler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scheduler
}

// SetAsyncManager wires in the shared async task manager.
func (c *Context) SetAsyncManager(m *asynctask.Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asyncManager = m
}

// AsyncManager returns the shared async task manager, or nil if unset.
func (c *Context) AsyncManager() *asynctask.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.asyncManager
}
