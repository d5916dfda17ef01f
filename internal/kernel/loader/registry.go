// SPDX-License-Identifier: AGPL-3.0-or-later

// Package loader implements the module load pipeline: integrity check,
// manifest/entrypoint/capability/hook/state/reactive validation,
// capability injection, instantiation, and registration. It is the Go
// counterpart of module_loader.py, replacing reflective file import
// with lookups into the static internal/modules descriptor registry.
package loader

import (
	"sync"

	"modcore/internal/integrity"
	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/state"
	"modcore/internal/modules"
)

// Status is a loaded module's availability for execution.
type Status string

const (
	StatusLoaded  Status = "loaded"
	StatusBlocked Status = "blocked"
)

// Entry is everything the runtime knows about one loaded module.
type Entry struct {
	ModuleName      string
	Manifest        *manifest.Manifest
	Instance        modules.Instance
	Status          Status
	Capabilities    map[string]interface{}
	State           *state.State
	IntegrityStatus integrity.Status
}

// Registry indexes loaded module entries by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty module Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds or replaces the entry for e.ModuleName.
func (r *Registry) Register(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.ModuleName] = e
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// List returns the names of every registered module.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// SetIntegrityStatus updates an entry's integrity status and derived
// load status in place.
func (r *Registry) SetIntegrityStatus(name string, status integrity.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.IntegrityStatus = status
	if status == integrity.StatusVerified || status == integrity.StatusBaselineCreated {
		e.Status = StatusLoaded
	} else {
		e.Status = StatusBlocked
	}
}
