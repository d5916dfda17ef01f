// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state provides per-module persistent state: a JSON document
// seeded from the module's manifest-declared default state, tracked for
// modification, and saved atomically through the module's own Storage.
package state

import (
	"encoding/json"
	"fmt"
	"sync"
)

// backingStorage is the subset of storage.Storage that state needs,
// kept narrow so tests can fake it without pulling in the real sandbox.
type backingStorage interface {
	ReadJSON(relPath string, out interface{}) error
	WriteJSON(relPath string, in interface{}) error
	Exists(relPath string) bool
}

const stateFileName = "state.json"

// document is the on-disk shape written to state.json.
type document struct {
	Module  string                 `json:"module"`
	Version int                    `json:"version"`
	State   map[string]interface{} `json:"state"`
}

// State is a single module's persistent key-value state.
type State struct {
	mu           sync.Mutex
	moduleName   string
	storage      backingStorage
	defaults     map[string]interface{}
	data         map[string]interface{}
	modified     bool
	lastSnapshot map[string]interface{}
}

// Load constructs a State for moduleName, seeding it from defaultState and
// attempting to load any existing state.json from storage. A missing or
// corrupt state.json falls back to a deep copy of defaultState and marks
// the state as modified so the next Save persists it.
func Load(moduleName string, storage backingStorage, defaultState map[string]interface{}) *State {
	s := &State{
		moduleName: moduleName,
		storage:    storage,
		defaults:   deepCopy(defaultState),
	}
	s.load()
	return s
}

func (s *State) load() {
	if !s.storage.Exists(stateFileName) {
		s.resetToDefaults()
		return
	}

	var doc document
	if err := s.storage.ReadJSON(stateFileName, &doc); err != nil || doc.State == nil {
		s.resetToDefaults()
		return
	}

	s.data = doc.State
	s.lastSnapshot = deepCopy(s.data)
	s.modified = false
}

func (s *State) resetToDefaults() {
	s.data = deepCopy(s.defaults)
	s.lastSnapshot = deepCopy(s.data)
	s.modified = true
}

// Refresh reloads the state from storage, discarding any in-memory
// changes made since the last Save.
func (s *State) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
}

// Get returns the value for key, and whether it was present.
func (s *State) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Has reports whether key is present in the state.
func (s *State) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Set assigns key to value. Returns an error if value is not
// JSON-serializable.
func (s *State) Set(key string, value interface{}) error {
	if err := checkJSONSerializable(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.modified = true
	return nil
}

// Update merges updates into the state. Returns an error without applying
// any change if any value is not JSON-serializable.
func (s *State) Update(updates map[string]interface{}) error {
	for _, v := range updates {
		if err := checkJSONSerializable(v); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range updates {
		s.data[k] = v
	}
	s.modified = true
	return nil
}

// Delete removes key from the state, if present.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.modified = true
	}
}

// Reset restores the state to the module's default state.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = deepCopy(s.defaults)
	s.modified = true
}

// Dump returns a deep copy of the current state.
func (s *State) Dump() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopy(s.data)
}

// IsModified reports whether the state has unsaved changes.
func (s *State) IsModified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

// Save persists the state to storage if modified, and returns whether a
// write occurred.
func (s *State) Save() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.modified {
		return false, nil
	}

	doc := document{Module: s.moduleName, Version: 1, State: s.data}
	if err := s.storage.WriteJSON(stateFileName, doc); err != nil {
		return false, fmt.Errorf("saving state for module %q: %w", s.moduleName, err)
	}

	s.lastSnapshot = deepCopy(s.data)
	s.modified = false
	return true, nil
}

// Rollback restores the state to the last saved snapshot, discarding
// in-memory changes.
func (s *State) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = deepCopy(s.lastSnapshot)
	s.modified = false
}

func deepCopy(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return map[string]interface{}{}
	}
	data, err := json.Marshal(in)
	if err != nil {
		out := make(map[string]interface{}, len(in))
		for k, v := range in {
			out[k] = v
		}
		return out
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

func checkJSONSerializable(v interface{}) error {
	if _, err := json.Marshal(v); err != nil {
		return fmt.Errorf("value is not JSON-serializable: %w", err)
	}
	return nil
}
