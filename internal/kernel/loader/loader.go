// SPDX-License-Identifier: AGPL-3.0-or-later

package loader

import (
	"errors"
	"fmt"
	"reflect"

	"modcore/internal/integrity"
	"modcore/internal/kernel/asynctask"
	"modcore/internal/kernel/capability"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/runtimectx"
	"modcore/internal/kernel/scheduler"
	"modcore/internal/kernel/state"
	"modcore/internal/kernel/storage"
	"modcore/internal/modules"
	"modcore/pkg/logging"
)

// Loader runs the full load pipeline for a registered module
// descriptor: integrity check, validation, capability injection, state
// loading, instantiation, hook invocation, reactive wiring, and
// registration.
type Loader struct {
	validator    *Validator
	capManager   *capability.Manager
	integrity    *integrity.Verifier
	eventBus     *eventbus.Bus
	scheduler    *scheduler.Scheduler
	asyncManager *asynctask.Manager
	dataRoot     string
	logger       logging.Logger
	registry     *Registry
}

// New creates a Loader. Any of scheduler/asyncManager may be nil if the
// kernel is running without them; eventBus must be non-nil.
func New(
	validator *Validator,
	capManager *capability.Manager,
	verifier *integrity.Verifier,
	eventBus *eventbus.Bus,
	sched *scheduler.Scheduler,
	asyncManager *asynctask.Manager,
	dataRoot string,
	logger logging.Logger,
) *Loader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{
		validator:    validator,
		capManager:   capManager,
		integrity:    verifier,
		eventBus:     eventBus,
		scheduler:    sched,
		asyncManager: asyncManager,
		dataRoot:     dataRoot,
		logger:       logger,
		registry:     NewRegistry(),
	}
}

// Registry returns the loader's module registry.
func (l *Loader) Registry() *Registry { return l.registry }

// Load runs the full pipeline for the module registered under
// descriptorName and returns its registered Entry.
func (l *Loader) Load(descriptorName string) (*Entry, error) {
	desc, ok := modules.Get(descriptorName)
	if !ok {
		return nil, fmt.Errorf("module %q is not registered", descriptorName)
	}
	m := desc.Manifest

	l.logger.Info("loading module", logging.F("module", desc.Name))

	integrityStatus, err := l.checkIntegrity(desc.Name, desc.Source)
	if err != nil {
		l.logger.Error("integrity check blocked module load", logging.F("module", desc.Name), logging.F("error", err.Error()))
		return nil, err
	}

	if err := l.validator.ValidateManifest(m); err != nil {
		return nil, err
	}
	if err := l.validator.ValidateEntrypoint(desc.Name); err != nil {
		return nil, err
	}
	if err := l.validator.ValidateCapabilities(m); err != nil {
		return nil, fmt.Errorf("capability validation failed: %w", err)
	}
	if err := l.validator.ValidateDefaultState(m); err != nil {
		return nil, fmt.Errorf("state validation failed: %w", err)
	}

	var strg *storage.Storage
	if capability.NeedsStorage(m) {
		strg, err = storage.New(l.dataRoot, desc.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage for %q: %w", desc.Name, err)
		}
	}

	capMap, err := l.capManager.CreateCapabilityMap(m, desc.Name, capability.Deps{
		EventBus:     l.eventBus,
		Scheduler:    l.scheduler,
		AsyncManager: l.asyncManager,
		Storage:      strg,
	})
	if err != nil {
		return nil, fmt.Errorf("capability injection failed: %w", err)
	}

	// Every loaded module gets a dedicated sandboxed storage for state
	// persistence, even if it did not request storage capabilities.
	stateStorage := strg
	if stateStorage == nil {
		stateStorage, err = storage.New(l.dataRoot, desc.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create state storage for %q: %w", desc.Name, err)
		}
	}
	moduleState := state.Load(desc.Name, stateStorage, m.DefaultState)

	ctx := runtimectx.New(desc.Name, l.logger)
	ctx.SetCapabilities(capMap)
	ctx.SetScheduler(l.scheduler)
	ctx.SetAsyncManager(l.asyncManager)

	instance := desc.NewInstance(ctx)

	if err := l.validator.ValidateHooks(m, instance); err != nil {
		return nil, fmt.Errorf("hook validation failed: %w", err)
	}
	if err := l.validator.ValidateReactiveHandlers(m, instance); err != nil {
		return nil, fmt.Errorf("reactive handler validation failed: %w", err)
	}

	if m.Hooks.Init {
		if initializer, ok := instance.(modules.Initializer); ok {
			ctx.SetStage(runtimectx.StageInit)
			if err := initializer.Init(); err != nil {
				return nil, fmt.Errorf("init() hook failed: %w", err)
			}
		}
	}
	ctx.SetStage(runtimectx.StageIdle)

	reactiveRegistered := l.wireReactiveHandlers(desc.Name, m, instance)

	entry := &Entry{
		ModuleName:      desc.Name,
		Manifest:        m,
		Instance:        instance,
		Status:          StatusLoaded,
		Capabilities:    capMap,
		State:           moduleState,
		IntegrityStatus: integrityStatus,
	}
	if integrityStatus != integrity.StatusVerified && integrityStatus != integrity.StatusBaselineCreated {
		entry.Status = StatusBlocked
	}
	l.registry.Register(entry)

	l.eventBus.Publish("module.loaded", "loader", map[string]interface{}{
		"module_name":       desc.Name,
		"version":           m.Version,
		"capabilities":      capMapKeys(capMap),
		"reactive_handlers": reactiveRegistered,
		"integrity_status":  string(integrityStatus),
	})

	l.logger.Info("module loaded",
		logging.F("module", desc.Name),
		logging.F("integrity_status", string(integrityStatus)),
		logging.F("reactive_handlers", reactiveRegistered))

	return entry, nil
}

// checkIntegrity runs the integrity verifier's auto-baseline flow: a
// missing baseline is recorded and treated as passing, while a
// mismatch blocks the load.
func (l *Loader) checkIntegrity(moduleName, source string) (integrity.Status, error) {
	status, err := l.integrity.EnsureCompliance(moduleName, source)
	if err == nil {
		return status, nil
	}
	if errors.Is(err, integrity.ErrMissingBaseline) {
		l.integrity.RecordBaseline(moduleName, source)
		return integrity.StatusBaselineCreated, nil
	}
	return "", err
}

// wireReactiveHandlers subscribes instance's manifest-declared reactive
// methods on the event bus via reflection, since the handler names are
// data, not compile-time identifiers. Returns the number wired.
func (l *Loader) wireReactiveHandlers(moduleName string, m *manifest.Manifest, instance modules.Instance) int {
	if !m.HasReactive() {
		return 0
	}

	registered := 0
	for eventType, methodName := range m.Reactive.Handlers {
		method := reflect.ValueOf(instance).MethodByName(methodName)
		if !method.IsValid() {
			continue
		}
		handler := func(ctx eventbus.EventContext) (interface{}, error) {
			out := method.Call([]reflect.Value{reflect.ValueOf(ctx)})
			result := out[0].Interface()
			if errVal := out[1].Interface(); errVal != nil {
				return result, errVal.(error)
			}
			return result, nil
		}
		l.eventBus.Subscribe(eventType, moduleName+"."+methodName, handler)
		registered++
	}
	return registered
}

func capMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
