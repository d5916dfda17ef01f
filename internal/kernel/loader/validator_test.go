package loader

import (
	"testing"

	"github.com/Masterminds/semver/v3"

	"modcore/internal/kernel/capability"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/manifest"
)

type fakeInitOnly struct{ initCalled bool }

func (f *fakeInitOnly) Init() error { f.initCalled = true; return nil }

type fakeReactive struct{}

func (f *fakeReactive) OnTick(ctx eventbus.EventContext) (interface{}, error) { return nil, nil }

func TestValidateManifest_RejectsMissingFields(t *testing.T) {
	v := NewValidator(capability.NewManager(nil), nil)
	m := &manifest.Manifest{}
	if err := v.ValidateManifest(m); err == nil {
		t.Fatalf("expected error for empty manifest")
	}
}

func TestValidateManifest_RejectsOldVersion(t *testing.T) {
	minVer := semver.MustParse("2.0.0")
	v := NewValidator(capability.NewManager(nil), minVer)
	m := &manifest.Manifest{Name: "demo", Version: "1.0.0", Entrypoint: "Demo"}

	if err := v.ValidateManifest(m); err == nil {
		t.Fatalf("expected error for version below minimum")
	}
}

func TestValidateEntrypoint_UnregisteredFails(t *testing.T) {
	v := NewValidator(capability.NewManager(nil), nil)
	if err := v.ValidateEntrypoint("does-not-exist"); err == nil {
		t.Fatalf("expected error for unregistered entrypoint")
	}
}

func TestValidateHooks_MissingImplementationFails(t *testing.T) {
	v := NewValidator(capability.NewManager(nil), nil)
	m := &manifest.Manifest{Hooks: manifest.Hooks{PreRun: true}}

	if err := v.ValidateHooks(m, &fakeInitOnly{}); err == nil {
		t.Fatalf("expected error: instance does not implement PreRunner")
	}
}

func TestValidateHooks_SatisfiedPasses(t *testing.T) {
	v := NewValidator(capability.NewManager(nil), nil)
	m := &manifest.Manifest{Hooks: manifest.Hooks{Init: true}}

	if err := v.ValidateHooks(m, &fakeInitOnly{}); err != nil {
		t.Fatalf("ValidateHooks() error = %v", err)
	}
}

func TestValidateReactiveHandlers_MissingMethodFails(t *testing.T) {
	v := NewValidator(capability.NewManager(nil), nil)
	m := &manifest.Manifest{
		Reactive: manifest.Reactive{Enabled: true, Handlers: map[string]string{"tick": "DoesNotExist"}},
	}

	if err := v.ValidateReactiveHandlers(m, &fakeReactive{}); err == nil {
		t.Fatalf("expected error for missing reactive method")
	}
}

func TestValidateReactiveHandlers_ValidMethodPasses(t *testing.T) {
	v := NewValidator(capability.NewManager(nil), nil)
	m := &manifest.Manifest{
		Reactive: manifest.Reactive{Enabled: true, Handlers: map[string]string{"tick": "OnTick"}},
	}

	if err := v.ValidateReactiveHandlers(m, &fakeReactive{}); err != nil {
		t.Fatalf("ValidateReactiveHandlers() error = %v", err)
	}
}

