// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"modcore/internal/kernel/asynctask"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/loader"
	"modcore/internal/kernel/scheduler"
	"modcore/internal/modules"
	"modcore/pkg/logging"
	"modcore/pkg/metrics"
)

// statusError pairs an error with a machine-readable status string, so
// errorEnvelope can surface it in the envelope's "status" field for the
// well-known failure modes spec.md §4.9 and §8 require callers to be
// able to discriminate on (e.g. "not_loaded", "capability_denied")
// without parsing the human-readable message.
type statusError struct {
	status string
	err    error
}

func newStatusError(status, format string, args ...interface{}) *statusError {
	return &statusError{status: status, err: fmt.Errorf(format, args...)}
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// handlerFn is one action handler. It returns the envelope's "data"
// value, or an error which is folded into "error" by Execute.
type handlerFn func(a Action) (interface{}, error)

// Orchestrator is the runtime's single dispatch entrypoint: it ticks
// the scheduler and async manager cooperatively, routes an Action to
// its handler, and normalizes every outcome into a strict envelope.
type Orchestrator struct {
	loader    *loader.Loader
	eventBus  *eventbus.Bus
	scheduler *scheduler.Scheduler
	async     *asynctask.Manager
	metrics   *metrics.Registry
	logger    logging.Logger

	handlers map[string]handlerFn
}

// New creates an Orchestrator wired to the given kernel subsystems.
// metricsReg may be nil to run without instrumentation.
func New(
	l *loader.Loader,
	eventBus *eventbus.Bus,
	sched *scheduler.Scheduler,
	async *asynctask.Manager,
	metricsReg *metrics.Registry,
	logger logging.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	o := &Orchestrator{
		loader:    l,
		eventBus:  eventBus,
		scheduler: sched,
		async:     async,
		metrics:   metricsReg,
		logger:    logger,
	}
	o.handlers = map[string]handlerFn{
		"run.module":   o.handleRunModule,
		"query.status": o.handleQueryStatus,
		"execute.task": o.handleExecuteTask,
		"load.module":  o.handleLoadModule,
		"list.modules": o.handleListModules,
	}
	return o
}

// LoaderRegistry exposes the underlying module registry, chiefly so
// tests can fabricate entries that the real load pipeline would never
// produce (e.g. one missing the implicit module.run capability).
func (o *Orchestrator) LoaderRegistry() *loader.Registry {
	return o.loader.Registry()
}

// Execute dispatches action to its handler and returns a strict
// envelope: {"ok": true, "action_type": ..., "data": ...} on success,
// or {"ok": false, "action_type": ..., "error": "..."} on failure.
// Scheduler and async-manager ticks run before dispatch on every call,
// cooperative scheduling piggy-backing on the caller's own cadence.
func (o *Orchestrator) Execute(a Action) map[string]interface{} {
	o.logger.Info("executing action",
		logging.F("action_type", a.ActionType),
		logging.F("source", a.Source),
		logging.F("request_id", a.RequestID))

	o.tickSubsystems()

	handler, ok := o.handlers[a.ActionType]
	if !ok {
		return o.errorEnvelope(a, fmt.Errorf("unknown action: %s", a.ActionType))
	}

	data, err := handler(a)
	if err != nil {
		o.logger.Error("action failed",
			logging.F("action_type", a.ActionType),
			logging.F("error", err.Error()))
		return o.errorEnvelope(a, err)
	}

	o.recordOutcome(a.ActionType, true)
	return map[string]interface{}{
		"ok":          true,
		"action_type": a.ActionType,
		"data":        data,
	}
}

func (o *Orchestrator) errorEnvelope(a Action, err error) map[string]interface{} {
	o.recordOutcome(a.ActionType, false)
	envelope := map[string]interface{}{
		"ok":          false,
		"action_type": a.ActionType,
		"error":       err.Error(),
	}
	var se *statusError
	if errors.As(err, &se) {
		envelope["status"] = se.status
	}
	return envelope
}

func (o *Orchestrator) recordOutcome(actionType string, ok bool) {
	if o.metrics != nil {
		o.metrics.RecordAction(actionType, ok)
	}
}

// tickSubsystems runs one scheduler and async-manager tick, swallowing
// any panic so a misbehaving task never takes down action dispatch.
func (o *Orchestrator) tickSubsystems() {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic while ticking subsystems", logging.F("panic", fmt.Sprintf("%v", r)))
		}
	}()
	if o.scheduler != nil {
		o.scheduler.Tick()
	}
	if o.async != nil {
		o.async.Tick()
	}
}

// handleRunModule executes a loaded module's entrypoint with full
// lifecycle hook support (pre_run/run/post_run/on_error) and persists
// any resulting state change.
func (o *Orchestrator) handleRunModule(a Action) (interface{}, error) {
	moduleName, _ := a.Payload["module"].(string)
	if moduleName == "" {
		return nil, fmt.Errorf("missing 'module' in payload")
	}

	entry, ok := o.loader.Registry().Get(moduleName)
	if !ok {
		return nil, newStatusError("not_loaded", "module %q is not loaded", moduleName)
	}
	if _, granted := entry.Capabilities["module.run"]; !granted {
		return nil, newStatusError("capability_denied", "module %q lacks module.run capability", moduleName)
	}

	runner, ok := entry.Instance.(modules.Runner)
	if !ok {
		return nil, fmt.Errorf("module %q does not implement Run", moduleName)
	}

	if entry.State != nil {
		entry.State.Refresh()
	}

	result, runErr := runWithHooks(entry, a.Payload, runner)

	if entry.State != nil {
		if _, err := entry.State.Save(); err != nil {
			o.logger.Warn("failed to persist module state",
				logging.F("module", moduleName), logging.F("error", err.Error()))
		}
	}

	if runErr != nil {
		return nil, fmt.Errorf("module %q run failed: %w", moduleName, runErr)
	}
	return result, nil
}

// runWithHooks invokes pre_run/run/post_run/on_error on instance around
// runner.Run, mirroring the original runtime's hook ordering.
func runWithHooks(entry *loader.Entry, payload map[string]interface{}, runner modules.Runner) (map[string]interface{}, error) {
	instance := entry.Instance

	if entry.Manifest.Hooks.PreRun {
		if pr, ok := instance.(modules.PreRunner); ok {
			if err := pr.PreRun(); err != nil {
				return nil, fmt.Errorf("pre_run hook failed: %w", err)
			}
		}
	}

	result, err := runner.Run(payload)
	if err != nil {
		if entry.Manifest.Hooks.OnError {
			if eh, ok := instance.(modules.ErrorHandler); ok {
				eh.OnError(err)
			}
		}
		return nil, err
	}

	if entry.Manifest.Hooks.PostRun {
		if pr, ok := instance.(modules.PostRunner); ok {
			if err := pr.PostRun(); err != nil {
				return nil, fmt.Errorf("post_run hook failed: %w", err)
			}
		}
	}

	return result, nil
}

// handleQueryStatus reports the runtime's high-level health: loaded
// module count and whether the event bus is wired.
func (o *Orchestrator) handleQueryStatus(a Action) (interface{}, error) {
	loaded := o.loader.Registry().List()
	return map[string]interface{}{
		"runtime":           "modcore",
		"status":            "ok",
		"source":            a.Source,
		"loaded_modules":    loaded,
		"module_count":      len(loaded),
		"event_bus_active":  o.eventBus != nil,
	}, nil
}

// handleExecuteTask submits an ad-hoc one-shot task to the scheduler,
// running payload.task_name/args outside of any loaded module, and
// returns the new task's ID. The task itself runs on a later tick, not
// inline, so this handler only confirms scheduling.
func (o *Orchestrator) handleExecuteTask(a Action) (interface{}, error) {
	taskName, _ := a.Payload["task_name"].(string)
	if taskName == "" {
		return nil, fmt.Errorf("missing 'task_name' in payload")
	}
	args, _ := a.Payload["args"].(map[string]interface{})

	if o.scheduler == nil {
		return nil, fmt.Errorf("scheduler not wired")
	}

	taskID := o.scheduler.ScheduleOneshot(func() error {
		o.logger.Info("ad-hoc task executed",
			logging.F("task_name", taskName))
		return nil
	}, time.Now(), map[string]interface{}{"task_name": taskName, "args": args})
	if taskID == "" {
		return nil, fmt.Errorf("failed to schedule task %q", taskName)
	}

	return map[string]interface{}{
		"task_id":   taskID,
		"task_name": taskName,
		"status":    "scheduled",
	}, nil
}

// handleLoadModule runs the loader's full pipeline for the descriptor
// named in the payload.
func (o *Orchestrator) handleLoadModule(a Action) (interface{}, error) {
	moduleName, _ := a.Payload["module"].(string)
	if moduleName == "" {
		return nil, fmt.Errorf("missing 'module' in payload")
	}

	entry, err := o.loader.Load(moduleName)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"module":           entry.ModuleName,
		"status":           string(entry.Status),
		"integrity_status": string(entry.IntegrityStatus),
		"capabilities":     capabilityNames(entry),
	}, nil
}

// handleListModules reports every loaded module with its version and
// bound capability names.
func (o *Orchestrator) handleListModules(a Action) (interface{}, error) {
	names := o.loader.Registry().List()
	detailed := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		entry, ok := o.loader.Registry().Get(name)
		if !ok {
			continue
		}
		detailed = append(detailed, map[string]interface{}{
			"name":         name,
			"status":       string(entry.Status),
			"version":      entry.Manifest.Version,
			"capabilities": capabilityNames(entry),
		})
	}
	return map[string]interface{}{
		"count":   len(names),
		"modules": detailed,
	}, nil
}

func capabilityNames(entry *loader.Entry) []string {
	names := make([]string, 0, len(entry.Capabilities))
	for name := range entry.Capabilities {
		names = append(names, name)
	}
	return names
}
