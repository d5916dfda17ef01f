package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modcore/internal/integrity"
	"modcore/internal/kernel/asynctask"
	"modcore/internal/kernel/capability"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/loader"
	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/orchestrator"
	"modcore/internal/kernel/scheduler"
	"modcore/pkg/logging"
	"modcore/pkg/metrics"

	_ "modcore/internal/modules/demo"
)

func newTestOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	bus := eventbus.New()
	sched := scheduler.New(bus, logging.Discard())
	asyncMgr := asynctask.New(bus, logging.Discard())
	capMgr := capability.NewManager(logging.Discard())
	validator := loader.NewValidator(capMgr, nil)
	verifier := integrity.NewVerifier()
	l := loader.New(validator, capMgr, verifier, bus, sched, asyncMgr, t.TempDir(), logging.Discard())

	return orchestrator.New(l, bus, sched, asyncMgr, metrics.New(), logging.Discard())
}

func TestExecute_UnknownActionReturnsErrorEnvelope(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.Execute(orchestrator.NewAction("nonsense.action", nil, "test"))
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "nonsense.action", result["action_type"])
	assert.Contains(t, result, "error")
}

func TestExecute_QueryStatus(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.Execute(orchestrator.NewAction("query.status", nil, "test"))
	require.Equal(t, true, result["ok"])

	data, ok := result["data"].(map[string]interface{})
	require.True(t, ok, "data is not a map: %#v", result["data"])
	assert.Equal(t, "ok", data["status"])
}

func TestExecute_LoadThenRunModule(t *testing.T) {
	o := newTestOrchestrator(t)

	loadResult := o.Execute(orchestrator.NewAction("load.module", map[string]interface{}{"module": "demo.counter"}, "test"))
	require.Equal(t, true, loadResult["ok"], "load.module failed: %#v", loadResult)

	runResult := o.Execute(orchestrator.NewAction("run.module", map[string]interface{}{"module": "demo.counter"}, "test"))
	require.Equal(t, true, runResult["ok"], "run.module failed: %#v", runResult)

	data, ok := runResult["data"].(map[string]interface{})
	require.True(t, ok, "data is not a map: %#v", runResult["data"])
	assert.Contains(t, data, "count")
}

func TestExecute_RunModuleWithoutLoadFails(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.Execute(orchestrator.NewAction("run.module", map[string]interface{}{"module": "demo.counter"}, "test"))
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "not_loaded", result["status"])
}

func TestExecute_RunModuleMissingPayloadFails(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.Execute(orchestrator.NewAction("run.module", nil, "test"))
	assert.Equal(t, false, result["ok"])
	assert.NotContains(t, result, "status")
}

func TestExecute_RunModuleWithoutCapabilityIsDenied(t *testing.T) {
	o := newTestOrchestrator(t)

	// module.run is implicit and always granted by the real load
	// pipeline (spec.md §4.3), so to exercise the denial path we
	// register an entry directly with an empty capability map, as
	// spec.md's own test harness does ("a hypothetical registry where
	// module.run is not implicit").
	o.LoaderRegistry().Register(&loader.Entry{
		ModuleName:   "demo.nocap",
		Manifest:     &manifest.Manifest{Name: "demo.nocap", Version: "1.0.0", Entrypoint: "demo.nocap"},
		Instance:     &stubRunner{},
		Status:       loader.StatusLoaded,
		Capabilities: map[string]interface{}{},
	})

	result := o.Execute(orchestrator.NewAction("run.module", map[string]interface{}{"module": "demo.nocap"}, "test"))
	assert.Equal(t, false, result["ok"])
	assert.Equal(t, "capability_denied", result["status"])
}

type stubRunner struct{}

func (s *stubRunner) Run(payload map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func TestExecute_RunGreeterModule_SubmitsAsyncFollowUp(t *testing.T) {
	o := newTestOrchestrator(t)

	loadResult := o.Execute(orchestrator.NewAction("load.module", map[string]interface{}{"module": "demo.greeter"}, "test"))
	require.Equal(t, true, loadResult["ok"], "load.module failed: %#v", loadResult)

	runResult := o.Execute(orchestrator.NewAction("run.module", map[string]interface{}{"module": "demo.greeter", "name": "ada"}, "test"))
	require.Equal(t, true, runResult["ok"], "run.module failed: %#v", runResult)

	data := runResult["data"].(map[string]interface{})
	assert.Equal(t, "hello, ada", data["greeting"])
	assert.NotEmpty(t, data["followup_task_id"])
}

func TestExecute_ListModulesAfterLoad(t *testing.T) {
	o := newTestOrchestrator(t)
	o.Execute(orchestrator.NewAction("load.module", map[string]interface{}{"module": "demo.greeter"}, "test"))

	result := o.Execute(orchestrator.NewAction("list.modules", nil, "test"))
	require.Equal(t, true, result["ok"], "list.modules failed: %#v", result)

	data := result["data"].(map[string]interface{})
	assert.GreaterOrEqual(t, data["count"].(int), 1)
}

func TestExecute_ExecuteTask(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.Execute(orchestrator.NewAction("execute.task", map[string]interface{}{"task_name": "smoke", "args": map[string]interface{}{"n": 1}}, "test"))
	require.Equal(t, true, result["ok"], "execute.task failed: %#v", result)

	data, ok := result["data"].(map[string]interface{})
	require.True(t, ok, "data is not a map: %#v", result["data"])
	assert.Equal(t, "smoke", data["task_name"])
	assert.Equal(t, "scheduled", data["status"])
	assert.NotEmpty(t, data["task_id"])
}

func TestExecute_ExecuteTaskMissingNameFails(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.Execute(orchestrator.NewAction("execute.task", nil, "test"))
	assert.Equal(t, false, result["ok"])
}

func TestNewAction_DefaultsSourceAndRequestID(t *testing.T) {
	a := orchestrator.NewAction("query.status", nil, "")
	assert.Equal(t, "cli", a.Source)
	assert.NotEmpty(t, a.RequestID)
	assert.NotNil(t, a.Payload)
}
