package capability

import (
	"testing"

	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/manifest"
	"modcore/internal/kernel/storage"
)

func TestCreateCapabilityMap_DefaultsToModuleRun(t *testing.T) {
	mgr := NewManager(nil)
	m := &manifest.Manifest{Name: "demo"}

	capMap, err := mgr.CreateCapabilityMap(m, "demo", Deps{})
	if err != nil {
		t.Fatalf("CreateCapabilityMap() error = %v", err)
	}
	if _, ok := capMap["module.run"]; !ok {
		t.Errorf("capMap missing module.run: %+v", capMap)
	}
}

func TestCreateCapabilityMap_RequiredMissingDependencyErrors(t *testing.T) {
	mgr := NewManager(nil)
	m := &manifest.Manifest{
		Name:         "demo",
		Capabilities: manifest.Capabilities{Requires: []string{"storage.write"}},
	}

	if _, err := mgr.CreateCapabilityMap(m, "demo", Deps{}); err == nil {
		t.Fatalf("expected error for missing storage dependency")
	}
}

func TestCreateCapabilityMap_OptionalWithoutDependencyIsGranted(t *testing.T) {
	mgr := NewManager(nil)
	m := &manifest.Manifest{
		Name:         "demo",
		Capabilities: manifest.Capabilities{Optional: []string{"network"}},
	}

	capMap, err := mgr.CreateCapabilityMap(m, "demo", Deps{})
	if err != nil {
		t.Fatalf("CreateCapabilityMap() error = %v", err)
	}
	if _, ok := capMap["network"]; !ok {
		t.Errorf("expected network capability to be present: %+v", capMap)
	}
}

func TestCreateCapabilityMap_StorageWiredWhenProvided(t *testing.T) {
	mgr := NewManager(nil)
	m := &manifest.Manifest{
		Name:         "demo",
		Capabilities: manifest.Capabilities{Requires: []string{"storage.read", "storage.write"}},
	}
	s, err := storage.New(t.TempDir(), "demo")
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}

	capMap, err := mgr.CreateCapabilityMap(m, "demo", Deps{Storage: s})
	if err != nil {
		t.Fatalf("CreateCapabilityMap() error = %v", err)
	}
	if _, ok := capMap["storage.read"].(*StorageReadProxy); !ok {
		t.Errorf("storage.read is not a *StorageReadProxy: %T", capMap["storage.read"])
	}
	if _, ok := capMap["storage.write"].(*StorageWriteProxy); !ok {
		t.Errorf("storage.write is not a *StorageWriteProxy: %T", capMap["storage.write"])
	}
}

func TestCreateCapabilityMap_EventCapabilitiesWired(t *testing.T) {
	mgr := NewManager(nil)
	m := &manifest.Manifest{
		Name:         "demo",
		Capabilities: manifest.Capabilities{Requires: []string{"event.publish", "event.subscribe"}},
	}
	bus := eventbus.New()

	capMap, err := mgr.CreateCapabilityMap(m, "demo", Deps{EventBus: bus})
	if err != nil {
		t.Fatalf("CreateCapabilityMap() error = %v", err)
	}
	pub, ok := capMap["event.publish"].(*EventPublishProxy)
	if !ok {
		t.Fatalf("event.publish is not *EventPublishProxy: %T", capMap["event.publish"])
	}
	results := pub.Publish("demo.tick", map[string]interface{}{"n": 1})
	if results == nil {
		t.Errorf("Publish returned nil results slice")
	}
}

func TestValidateManifestCapabilities_RejectsRestricted(t *testing.T) {
	mgr := NewManager(nil)
	m := &manifest.Manifest{Capabilities: manifest.Capabilities{Requires: []string{"os.exec"}}}

	if err := mgr.ValidateManifestCapabilities(m); err == nil {
		t.Fatalf("expected error for restricted capability os.exec")
	}
}

func TestGenericProxy_UnknownCapabilityInCatalog(t *testing.T) {
	reg := DefaultRegistry
	reg.Register(Kind{Name: "demo.custom", Description: "a custom capability", Level: LevelSafe})

	mgr := NewManager(nil)
	m := &manifest.Manifest{Capabilities: manifest.Capabilities{Requires: []string{"demo.custom"}}}

	capMap, err := mgr.CreateCapabilityMap(m, "demo", Deps{})
	if err != nil {
		t.Fatalf("CreateCapabilityMap() error = %v", err)
	}
	if _, ok := capMap["demo.custom"].(*GenericProxy); !ok {
		t.Errorf("demo.custom is not *GenericProxy: %T", capMap["demo.custom"])
	}
}
