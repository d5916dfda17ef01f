package state

import (
	"encoding/json"
	"errors"
	"testing"
)

var errCorrupt = errors.New("corrupt or missing state file")

// fakeStorage is a minimal in-memory backingStorage for tests.
type fakeStorage struct {
	files map[string][]byte
	fail  bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (f *fakeStorage) Exists(relPath string) bool {
	_, ok := f.files[relPath]
	return ok
}

func (f *fakeStorage) ReadJSON(relPath string, out interface{}) error {
	if f.fail {
		return errCorrupt
	}
	data, ok := f.files[relPath]
	if !ok {
		return errCorrupt
	}
	return json.Unmarshal(data, out)
}

func (f *fakeStorage) WriteJSON(relPath string, in interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	f.files[relPath] = data
	return nil
}

func TestLoad_SeedsFromDefaults(t *testing.T) {
	storage := newFakeStorage()
	s := Load("demo", storage, map[string]interface{}{"counter": float64(0)})

	v, ok := s.Get("counter")
	if !ok || v != float64(0) {
		t.Fatalf("Get(counter) = %v, %v, want 0, true", v, ok)
	}
	if !s.IsModified() {
		t.Error("freshly seeded state should be marked modified so it gets persisted")
	}
}

func TestSetAndSave(t *testing.T) {
	storage := newFakeStorage()
	s := Load("demo", storage, map[string]interface{}{"counter": float64(0)})

	if err := s.Set("counter", float64(5)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	saved, err := s.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !saved {
		t.Error("Save() = false, want true for modified state")
	}
	if s.IsModified() {
		t.Error("state should not be modified immediately after Save()")
	}

	saved, err = s.Save()
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if saved {
		t.Error("Save() should no-op when nothing changed")
	}
}

func TestReload_AfterSave(t *testing.T) {
	storage := newFakeStorage()
	s := Load("demo", storage, map[string]interface{}{"counter": float64(0)})
	_ = s.Set("counter", float64(7))
	if _, err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s2 := Load("demo", storage, map[string]interface{}{"counter": float64(0)})
	v, _ := s2.Get("counter")
	if v != float64(7) {
		t.Errorf("reloaded counter = %v, want 7", v)
	}
}

func TestLoad_CorruptStateFallsBackToDefaults(t *testing.T) {
	storage := newFakeStorage()
	storage.fail = true
	storage.files[stateFileName] = []byte("not json")

	s := Load("demo", storage, map[string]interface{}{"counter": float64(3)})
	v, ok := s.Get("counter")
	if !ok || v != float64(3) {
		t.Errorf("Get(counter) = %v, %v, want 3, true (fallback to defaults)", v, ok)
	}
}

func TestRollback(t *testing.T) {
	storage := newFakeStorage()
	s := Load("demo", storage, map[string]interface{}{"counter": float64(0)})
	if _, err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	_ = s.Set("counter", float64(99))
	s.Rollback()

	v, _ := s.Get("counter")
	if v != float64(0) {
		t.Errorf("after Rollback, counter = %v, want 0", v)
	}
	if s.IsModified() {
		t.Error("Rollback should clear the modified flag")
	}
}

func TestSet_RejectsUnserializableValue(t *testing.T) {
	storage := newFakeStorage()
	s := Load("demo", storage, nil)

	err := s.Set("bad", make(chan int))
	if err == nil {
		t.Fatal("Set() error = nil, want error for unserializable value")
	}
}

func TestDelete(t *testing.T) {
	storage := newFakeStorage()
	s := Load("demo", storage, map[string]interface{}{"counter": float64(1)})

	s.Delete("counter")
	if s.Has("counter") {
		t.Error("Has(counter) = true after Delete, want false")
	}
}
