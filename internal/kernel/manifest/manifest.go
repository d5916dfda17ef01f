// SPDX-License-Identifier: AGPL-3.0-or-later

// Package manifest defines the Manifest data model every module
// descriptor carries: identity, capability requirements, lifecycle
// hooks, default state, and reactive event handlers.
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Hooks reports which lifecycle hooks a module declares.
type Hooks struct {
	Init    bool `yaml:"init" json:"init"`
	PreRun  bool `yaml:"pre_run" json:"pre_run"`
	PostRun bool `yaml:"post_run" json:"post_run"`
	OnError bool `yaml:"on_error" json:"on_error"`
}

// Any reports whether at least one hook is declared.
func (h Hooks) Any() bool {
	return h.Init || h.PreRun || h.PostRun || h.OnError
}

// Capabilities is a manifest's capability request section.
type Capabilities struct {
	Requires []string `yaml:"requires" json:"requires"`
	Optional []string `yaml:"optional" json:"optional"`
}

// All returns the union of required and optional capabilities.
func (c Capabilities) All() []string {
	return append(append([]string{}, c.Requires...), c.Optional...)
}

// Reactive is a manifest's reactive-handler declaration: event type to
// handler method name, wired up via reflection by the loader.
type Reactive struct {
	Enabled  bool              `yaml:"enabled" json:"enabled"`
	Handlers map[string]string `yaml:"handlers" json:"handlers"`
}

// Manifest describes a module: its identity, version, entrypoint, and
// the runtime surface (capabilities, hooks, state, events) it wants.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Entrypoint  string `yaml:"entrypoint" json:"entrypoint"`
	Description string `yaml:"description" json:"description"`
	Author      string `yaml:"author" json:"author"`

	Capabilities       Capabilities      `yaml:"capabilities" json:"capabilities"`
	Hooks              Hooks             `yaml:"hooks" json:"hooks"`
	DefaultState       map[string]interface{} `yaml:"default_state" json:"default_state"`
	StateVersion       int               `yaml:"state_version" json:"state_version"`
	EventSubscriptions map[string]string `yaml:"event_subscriptions" json:"event_subscriptions"`
	Reactive           Reactive          `yaml:"reactive" json:"reactive"`
}

// forbiddenStateKeys mirrors the original runtime's reserved keys that a
// module must not use in its default_state, since they would collide
// with internal bookkeeping if ever promoted to top-level fields.
var forbiddenStateKeys = []string{"__internal__", "_state", "_snapshot"}

// ValidateStructure checks that the required identity fields are present.
func (m *Manifest) ValidateStructure() error {
	if m.Name == "" {
		return fmt.Errorf("manifest missing required field: name")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest missing required field: version")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("manifest missing required field: entrypoint")
	}
	return nil
}

// ParsedVersion parses the manifest's Version as a semantic version.
func (m *Manifest) ParsedVersion() (*semver.Version, error) {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("manifest %q has invalid version %q: %w", m.Name, m.Version, err)
	}
	return v, nil
}

// GetStateVersion returns the declared state version, defaulting to 1.
func (m *Manifest) GetStateVersion() int {
	if m.StateVersion <= 0 {
		return 1
	}
	return m.StateVersion
}

// HasDefaultState reports whether the manifest declares a default state.
func (m *Manifest) HasDefaultState() bool {
	return m.DefaultState != nil
}

// ValidateDefaultState checks default_state for forbidden reserved keys
// and rejects a default_state that cannot be encoded as JSON (for
// example one holding a channel or a func value).
func (m *Manifest) ValidateDefaultState() error {
	if !m.HasDefaultState() {
		return nil
	}
	for _, forbidden := range forbiddenStateKeys {
		if _, ok := m.DefaultState[forbidden]; ok {
			return fmt.Errorf("forbidden key %q in default_state", forbidden)
		}
	}
	if _, err := json.Marshal(m.DefaultState); err != nil {
		return fmt.Errorf("default_state is not JSON-serializable: %w", err)
	}
	return nil
}

// HasReactive reports whether reactive handlers are enabled.
func (m *Manifest) HasReactive() bool {
	return m.Reactive.Enabled
}
