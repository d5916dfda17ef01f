// SPDX-License-Identifier: AGPL-3.0-or-later

// Package modules is the kernel's static module registry: the Go
// replacement for the original runtime's reflective
// import-module-from-file loading. Every module ships as Go source and
// self-registers a Descriptor from an init() function, the same
// pattern bartekus-stagecraft's migration drivers use to register
// themselves with their backend registry.
package modules

import (
	"fmt"
	"sync"

	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/runtimectx"
)

// Instance is a loaded module's entrypoint object. It carries no
// required methods itself; the optional lifecycle and execution
// surfaces below are detected via type assertion once an instance
// exists.
type Instance interface{}

// Initializer is implemented by modules that declare an init hook.
type Initializer interface {
	Init() error
}

// PreRunner is implemented by modules that declare a pre_run hook.
type PreRunner interface {
	PreRun() error
}

// PostRunner is implemented by modules that declare a post_run hook.
type PostRunner interface {
	PostRun() error
}

// ErrorHandler is implemented by modules that declare an on_error hook.
type ErrorHandler interface {
	OnError(err error)
}

// Runner is the module's main entrypoint, invoked by the orchestrator's
// run.module action.
type Runner interface {
	Run(payload map[string]interface{}) (map[string]interface{}, error)
}

// Descriptor is the static, compile-time registration of a module: its
// manifest, the source text integrity hashing is computed over, and a
// factory producing a fresh instance bound to a runtime context.
type Descriptor struct {
	Name        string
	Manifest    *manifest.Manifest
	Source      string
	NewInstance func(ctx *runtimectx.Context) Instance
}

var (
	mu          sync.RWMutex
	descriptors = make(map[string]Descriptor)
)

// Register adds d to the module registry. Panics on an empty or
// duplicate name, matching the registry idiom used by
// capability.Registry. Also panics on a missing manifest or instance
// factory.
func Register(d Descriptor) {
	mu.Lock()
	defer mu.Unlock()

	if d.Name == "" {
		panic("modules.Register: empty module name")
	}
	if _, exists := descriptors[d.Name]; exists {
		panic(fmt.Sprintf("modules.Register: duplicate module name %q", d.Name))
	}
	if d.Manifest == nil {
		panic(fmt.Sprintf("modules.Register: module %q has no manifest", d.Name))
	}
	if d.NewInstance == nil {
		panic(fmt.Sprintf("modules.Register: module %q has no instance factory", d.Name))
	}
	descriptors[d.Name] = d
}

// Get returns the descriptor registered under name.
func Get(name string) (Descriptor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := descriptors[name]
	return d, ok
}

// List returns the names of every registered module.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	return names
}
