// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"fmt"

	"modcore/internal/kernel/asynctask"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/scheduler"
	"modcore/internal/kernel/storage"
	"modcore/pkg/logging"
)

// Manager turns a manifest's requested capability names into bound
// proxy objects, wiring each to the concrete kernel subsystem it
// mediates access to.
type Manager struct {
	registry *Registry
	logger   logging.Logger
}

// NewManager creates a Manager backed by DefaultRegistry.
func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{registry: DefaultRegistry, logger: logger}
}

// ValidateManifestCapabilities checks every capability named in m's
// manifest against the registry, rejecting unknown or restricted names.
func (mgr *Manager) ValidateManifestCapabilities(m *manifest.Manifest) error {
	if err := mgr.registry.ValidateList(m.Capabilities.Requires); err != nil {
		return fmt.Errorf("required capabilities: %w", err)
	}
	if err := mgr.registry.ValidateList(m.Capabilities.Optional); err != nil {
		return fmt.Errorf("optional capabilities: %w", err)
	}
	return nil
}

// Deps bundles the kernel subsystems a capability proxy may need.
// Any of these may be nil; a capability requiring an unset dependency
// fails to construct. An optional one is then omitted from the resulting
// map, while a required one makes CreateCapabilityMap return an error.
type Deps struct {
	EventBus     *eventbus.Bus
	Scheduler    *scheduler.Scheduler
	AsyncManager *asynctask.Manager
	Storage      *storage.Storage
}

// CreateCapabilityMap builds the set of proxy objects a module
// instance will receive, one per capability it requires or optionally
// requests (when granted). module.run is always present.
func (mgr *Manager) CreateCapabilityMap(m *manifest.Manifest, moduleName string, deps Deps) (map[string]interface{}, error) {
	capMap := make(map[string]interface{})

	all := m.Capabilities.All()
	if len(all) == 0 {
		capMap["module.run"] = &ModuleRunProxy{}
		return capMap, nil
	}

	for _, name := range m.Capabilities.Requires {
		obj, err := mgr.createCapabilityObject(name, moduleName, deps)
		if err != nil {
			return nil, fmt.Errorf("required capability %q: %w", name, err)
		}
		capMap[name] = obj
	}

	for _, name := range m.Capabilities.Optional {
		if !mgr.registry.Has(name) {
			continue
		}
		obj, err := mgr.createCapabilityObject(name, moduleName, deps)
		if err != nil {
			mgr.logger.Warn("optional capability unavailable", logging.F("capability", name), logging.F("error", err.Error()))
			continue
		}
		capMap[name] = obj
	}

	if _, ok := capMap["module.run"]; !ok {
		capMap["module.run"] = &ModuleRunProxy{}
	}

	return capMap, nil
}

// createCapabilityObject dispatches by capability name to build the
// concrete proxy, mirroring the kernel's fixed capability catalog.
func (mgr *Manager) createCapabilityObject(name, moduleName string, deps Deps) (interface{}, error) {
	kind, ok := mgr.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown capability")
	}

	switch name {
	case "log.basic":
		return &LogBasicProxy{moduleName: moduleName, logger: mgr.logger}, nil
	case "log.advanced":
		return &LogAdvancedProxy{moduleName: moduleName, logger: mgr.logger}, nil
	case "storage.read":
		if deps.Storage == nil {
			return nil, fmt.Errorf("storage.read requires a Storage instance")
		}
		return &StorageReadProxy{storage: deps.Storage}, nil
	case "storage.write":
		if deps.Storage == nil {
			return nil, fmt.Errorf("storage.write requires a Storage instance")
		}
		return &StorageWriteProxy{StorageReadProxy{storage: deps.Storage}}, nil
	case "network":
		return &NetworkProxy{}, nil
	case "crypto":
		return &CryptoProxy{}, nil
	case "time":
		return &TimeProxy{}, nil
	case "module.run":
		return &ModuleRunProxy{}, nil
	case "event.publish":
		if deps.EventBus == nil {
			return nil, fmt.Errorf("event.publish requires an EventBus instance")
		}
		return &EventPublishProxy{bus: deps.EventBus, moduleName: moduleName}, nil
	case "event.subscribe":
		if deps.EventBus == nil {
			return nil, fmt.Errorf("event.subscribe requires an EventBus instance")
		}
		return &EventSubscribeProxy{bus: deps.EventBus, moduleName: moduleName}, nil
	case "task.schedule.interval":
		if deps.Scheduler == nil {
			return nil, fmt.Errorf("task.schedule.interval requires a Scheduler instance")
		}
		return &TaskScheduleIntervalProxy{scheduler: deps.Scheduler}, nil
	case "task.schedule.oneshot":
		if deps.Scheduler == nil {
			return nil, fmt.Errorf("task.schedule.oneshot requires a Scheduler instance")
		}
		return &TaskScheduleOneshotProxy{scheduler: deps.Scheduler}, nil
	case "task.schedule.event":
		if deps.Scheduler == nil {
			return nil, fmt.Errorf("task.schedule.event requires a Scheduler instance")
		}
		return &TaskScheduleEventProxy{scheduler: deps.Scheduler}, nil
	case "task.cancel":
		if deps.Scheduler == nil {
			return nil, fmt.Errorf("task.cancel requires a Scheduler instance")
		}
		return &TaskCancelProxy{scheduler: deps.Scheduler}, nil
	case "async.schedule":
		if deps.AsyncManager == nil {
			return nil, fmt.Errorf("async.schedule requires an AsyncTaskManager instance")
		}
		return &AsyncScheduleProxy{asyncManager: deps.AsyncManager}, nil
	case "async.await":
		if deps.AsyncManager == nil {
			return nil, fmt.Errorf("async.await requires an AsyncTaskManager instance")
		}
		return &AsyncAwaitProxy{asyncManager: deps.AsyncManager}, nil
	default:
		return &GenericProxy{Name: kind.Name, Description: kind.Description}, nil
	}
}

// NeedsStorage reports whether m's capability set requests read or
// write sandboxed storage access, so the loader knows whether to
// construct a Storage instance for this module.
func NeedsStorage(m *manifest.Manifest) bool {
	for _, name := range m.Capabilities.All() {
		if name == "storage.read" || name == "storage.write" {
			return true
		}
	}
	return false
}
