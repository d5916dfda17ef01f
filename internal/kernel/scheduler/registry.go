// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"sync"
	"time"
)

// TaskRegistry indexes tasks by ID and, for event tasks, by event type.
// insertOrder tracks registration order separately from tasksByID (a Go
// map has no iteration order of its own), so ListDue and other full-scan
// methods stay deterministic the way the original's plain-dict
// `_tasks_by_id` was. Every method is defensive: a lookup miss or an
// empty registry returns a zero value rather than an error, since task
// bookkeeping must never be the reason a tick crashes.
type TaskRegistry struct {
	mu            sync.Mutex
	tasksByID     map[string]*Task
	insertOrder   []string
	eventHandlers map[string][]*Task
}

// NewTaskRegistry creates an empty TaskRegistry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{
		tasksByID:     make(map[string]*Task),
		eventHandlers: make(map[string][]*Task),
	}
}

// Register adds a task to the registry, indexing it by event type too if
// it is an event task.
func (r *TaskRegistry) Register(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasksByID[t.ID]; !exists {
		r.insertOrder = append(r.insertOrder, t.ID)
	}
	r.tasksByID[t.ID] = t
	if t.Type == TaskEvent {
		r.eventHandlers[t.EventTyp] = append(r.eventHandlers[t.EventTyp], t)
	}
}

// Unregister removes a task from both indexes.
func (r *TaskRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasksByID[id]
	if !ok {
		return
	}
	delete(r.tasksByID, id)
	for i, existingID := range r.insertOrder {
		if existingID == id {
			r.insertOrder = append(r.insertOrder[:i], r.insertOrder[i+1:]...)
			break
		}
	}

	if t.Type == TaskEvent {
		handlers := r.eventHandlers[t.EventTyp]
		for i, h := range handlers {
			if h.ID == id {
				r.eventHandlers[t.EventTyp] = append(handlers[:i], handlers[i+1:]...)
				break
			}
		}
		if len(r.eventHandlers[t.EventTyp]) == 0 {
			delete(r.eventHandlers, t.EventTyp)
		}
	}
}

// Get returns the task registered under id, or nil if not found.
func (r *TaskRegistry) Get(id string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasksByID[id]
}

// List returns every registered task in registration order.
func (r *TaskRegistry) List() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks := make([]*Task, 0, len(r.insertOrder))
	for _, id := range r.insertOrder {
		tasks = append(tasks, r.tasksByID[id])
	}
	return tasks
}

// ListDue returns every task due to run at or before now, in registration
// order, so truncation to maxTasksPerTick is deterministic rather than
// dependent on map iteration order.
func (r *TaskRegistry) ListDue(now time.Time) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*Task
	for _, id := range r.insertOrder {
		t := r.tasksByID[id]
		if t.Due(now) {
			due = append(due, t)
		}
	}
	return due
}

// ListEventHandlers returns every enabled event task registered for
// eventType.
func (r *TaskRegistry) ListEventHandlers(eventType string) []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	var handlers []*Task
	for _, t := range r.eventHandlers[eventType] {
		if t.Enabled {
			handlers = append(handlers, t)
		}
	}
	return handlers
}

// Count returns the total number of registered tasks.
func (r *TaskRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasksByID)
}

// CountEnabled returns the number of registered tasks that are enabled.
func (r *TaskRegistry) CountEnabled() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.tasksByID {
		if t.Enabled {
			n++
		}
	}
	return n
}

// Clear removes every task from the registry.
func (r *TaskRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasksByID = make(map[string]*Task)
	r.insertOrder = nil
	r.eventHandlers = make(map[string][]*Task)
}
