// SPDX-License-Identifier: AGPL-3.0-or-later

package loader

import (
	"fmt"
	"reflect"

	"github.com/Masterminds/semver/v3"

	"modcore/internal/kernel/capability"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/manifest"
	"modcore/internal/modules"
)

// eventContextType is the expected sole parameter type of a reactive
// handler method, checked by reflection since manifest-declared method
// names have no static Go type until an instance exists.
var eventContextType = reflect.TypeOf(eventbus.EventContext{})

// errorType is the built-in error interface, used to check a reactive
// handler's second return value by reflection.
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Validator runs the multi-stage checks a module must pass before it
// is registered and made runnable. Each stage mirrors one method of
// the original module_validation.py, split across two calling points:
// manifest/entrypoint/capabilities/default_state can be checked before
// an instance exists, while hooks/reactive handlers need one (Go has
// no "hasattr on an unconstructed class").
type Validator struct {
	capManager *capability.Manager
	minVersion *semver.Version
}

// NewValidator creates a Validator enforcing at least minVersion (nil
// accepts any parseable manifest version).
func NewValidator(capManager *capability.Manager, minVersion *semver.Version) *Validator {
	return &Validator{capManager: capManager, minVersion: minVersion}
}

// ValidateManifest checks manifest structure and version compatibility.
func (v *Validator) ValidateManifest(m *manifest.Manifest) error {
	if err := m.ValidateStructure(); err != nil {
		return fmt.Errorf("manifest invalid: %w", err)
	}
	ver, err := m.ParsedVersion()
	if err != nil {
		return err
	}
	if v.minVersion != nil && ver.LessThan(v.minVersion) {
		return fmt.Errorf("module %q version %s is older than the minimum supported version %s", m.Name, ver, v.minVersion)
	}
	return nil
}

// ValidateEntrypoint checks that descriptorName resolves to a
// registered module descriptor.
func (v *Validator) ValidateEntrypoint(descriptorName string) error {
	if _, ok := modules.Get(descriptorName); !ok {
		return fmt.Errorf("entrypoint %q is not registered", descriptorName)
	}
	return nil
}

// ValidateCapabilities checks the manifest's requested capabilities
// against the capability catalog.
func (v *Validator) ValidateCapabilities(m *manifest.Manifest) error {
	return v.capManager.ValidateManifestCapabilities(m)
}

// ValidateDefaultState checks the manifest's default_state for
// forbidden reserved keys.
func (v *Validator) ValidateDefaultState(m *manifest.Manifest) error {
	return m.ValidateDefaultState()
}

// ValidateHooks checks that every hook the manifest declares is
// actually implemented by instance.
func (v *Validator) ValidateHooks(m *manifest.Manifest, instance modules.Instance) error {
	if !m.Hooks.Any() {
		return nil
	}
	if m.Hooks.Init {
		if _, ok := instance.(modules.Initializer); !ok {
			return fmt.Errorf("hook 'init' declared in manifest but %q does not implement Init() error", m.Name)
		}
	}
	if m.Hooks.PreRun {
		if _, ok := instance.(modules.PreRunner); !ok {
			return fmt.Errorf("hook 'pre_run' declared in manifest but %q does not implement PreRun() error", m.Name)
		}
	}
	if m.Hooks.PostRun {
		if _, ok := instance.(modules.PostRunner); !ok {
			return fmt.Errorf("hook 'post_run' declared in manifest but %q does not implement PostRun() error", m.Name)
		}
	}
	if m.Hooks.OnError {
		if _, ok := instance.(modules.ErrorHandler); !ok {
			return fmt.Errorf("hook 'on_error' declared in manifest but %q does not implement OnError(error)", m.Name)
		}
	}
	return nil
}

// ValidateReactiveHandlers checks that every reactive handler method
// the manifest names exists on instance with the signature
// func(eventbus.EventContext) (interface{}, error).
func (v *Validator) ValidateReactiveHandlers(m *manifest.Manifest, instance modules.Instance) error {
	if !m.HasReactive() {
		return nil
	}
	for eventType, methodName := range m.Reactive.Handlers {
		method := reflect.ValueOf(instance).MethodByName(methodName)
		if !method.IsValid() {
			return fmt.Errorf("reactive handler %q for event %q not found on module %q", methodName, eventType, m.Name)
		}
		t := method.Type()
		if t.NumIn() != 1 || t.In(0) != eventContextType {
			return fmt.Errorf("reactive handler %q for event %q must accept a single eventbus.EventContext argument", methodName, eventType)
		}
		if t.NumOut() != 2 || !t.Out(1).Implements(errorType) {
			return fmt.Errorf("reactive handler %q for event %q must return (value, error)", methodName, eventType)
		}
	}
	return nil
}
