// SPDX-License-Identifier: AGPL-3.0-or-later

package asynctask

import (
	"errors"
	"sort"
	"sync"
	"time"

	"modcore/internal/kernel/eventbus"
	"modcore/pkg/logging"
)

const (
	defaultMaxTasksPerTick = 10
	defaultMaxRunningTasks = 16
	defaultMaxPendingTasks = 128
	historyLimit           = 100
)

// errPendingQueueFull is returned by CreateTask when the pending queue
// is at capacity.
var errPendingQueueFull = errors.New("async task pending queue is full")

// eventPublisher is the narrow surface Manager needs from the event
// bus: publishing its own lifecycle events. Satisfied by *eventbus.Bus.
// Manager implements eventbus.AsyncTaskCreator in the other direction;
// importing the concrete type here is safe since eventbus never
// imports asynctask.
type eventPublisher interface {
	Publish(eventType, source string, payload map[string]interface{}) []eventbus.HandlerResult
}

// EventFn is an async event handler: it runs on its own goroutine when
// the subscribed event type fires.
type EventFn func(ctx map[string]interface{}) (interface{}, error)

// Manager runs cooperative async tasks, bounding how many may be
// pending or running at once, and drains completions on Tick rather
// than blocking on them.
type Manager struct {
	mu            sync.Mutex
	tasksByID     map[string]*Task
	pending       []*Task
	running       []*Task
	eventHandlers map[string][]EventFn

	eventBus eventPublisher
	logger   logging.Logger

	maxTasksPerTick int
	maxRunningTasks int
	maxPendingTasks int
	tickCount       int64
}

// New creates a Manager publishing lifecycle events on bus, which may
// be nil to run standalone.
func New(bus eventPublisher, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		tasksByID:       make(map[string]*Task),
		eventHandlers:   make(map[string][]EventFn),
		eventBus:        bus,
		logger:          logger,
		maxTasksPerTick: defaultMaxTasksPerTick,
		maxRunningTasks: defaultMaxRunningTasks,
		maxPendingTasks: defaultMaxPendingTasks,
	}
}

// Configure overrides the manager's concurrency limits; zero values
// leave the existing setting untouched.
func (m *Manager) Configure(maxTasksPerTick, maxRunningTasks, maxPendingTasks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxTasksPerTick > 0 {
		m.maxTasksPerTick = maxTasksPerTick
	}
	if maxRunningTasks > 0 {
		m.maxRunningTasks = maxRunningTasks
	}
	if maxPendingTasks > 0 {
		m.maxPendingTasks = maxPendingTasks
	}
}

// CreateTask queues run for execution and returns its task ID, or an
// error if the pending queue is full. CreateTask implements
// eventbus.AsyncTaskCreator.
func (m *Manager) CreateTask(run func() (interface{}, error), metadata map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) >= m.maxPendingTasks {
		return "", errPendingQueueFull
	}

	t := NewTask(run, metadata)
	m.tasksByID[t.ID] = t
	m.pending = append(m.pending, t)
	return t.ID, nil
}

// Tick admits pending tasks up to the running cap, steps running
// tasks, publishes completion events, and prunes old history. Tick
// never panics.
func (m *Manager) Tick() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("async tick recovered from panic", logging.F("panic", r))
		}
	}()

	m.mu.Lock()
	m.tickCount++

	for len(m.running) < m.maxRunningTasks && len(m.pending) > 0 {
		t := m.pending[0]
		m.pending = m.pending[1:]
		t.Start()
		m.running = append(m.running, t)
	}

	toStep := m.running
	if len(toStep) > m.maxTasksPerTick {
		toStep = toStep[:m.maxTasksPerTick]
	}

	var finished []*Task
	for _, t := range toStep {
		if !t.Step() {
			finished = append(finished, t)
		}
	}
	if len(finished) > 0 {
		m.running = removeFinished(m.running, finished)
	}

	m.cleanupOldTasks()

	pendingCount := len(m.pending)
	runningCount := len(m.running)
	tick := m.tickCount
	m.mu.Unlock()

	for _, t := range finished {
		m.publishTaskDone(t)
	}
	m.publishTick(tick, pendingCount, runningCount)
}

func removeFinished(running []*Task, finished []*Task) []*Task {
	doneSet := make(map[string]struct{}, len(finished))
	for _, t := range finished {
		doneSet[t.ID] = struct{}{}
	}
	remaining := running[:0:0]
	for _, t := range running {
		if _, done := doneSet[t.ID]; !done {
			remaining = append(remaining, t)
		}
	}
	return remaining
}

// Cancel cancels a task by ID, removing it from the pending/running
// queues if present.
func (m *Manager) Cancel(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasksByID[taskID]
	if !ok {
		return false
	}
	m.pending = removeByID(m.pending, taskID)
	m.running = removeByID(m.running, taskID)
	return t.Cancel()
}

func removeByID(tasks []*Task, id string) []*Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// Get returns the task registered under taskID, or nil if not found.
func (m *Manager) Get(taskID string) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasksByID[taskID]
}

// ListTasks returns every task, optionally filtered by status.
func (m *Manager) ListTasks(status Status) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]*Task, 0, len(m.tasksByID))
	for _, t := range m.tasksByID {
		if status == "" || t.Status == status {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks
}

// RegisterEventHandler registers an async handler invoked whenever
// eventType fires via TriggerEvent.
func (m *Manager) RegisterEventHandler(eventType string, fn EventFn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHandlers[eventType] = append(m.eventHandlers[eventType], fn)
}

// TriggerEvent schedules every handler registered for eventType as a
// new async task.
func (m *Manager) TriggerEvent(eventType string, payload map[string]interface{}) {
	m.mu.Lock()
	handlers := append([]EventFn(nil), m.eventHandlers[eventType]...)
	m.mu.Unlock()

	for _, h := range handlers {
		handler := h
		_, _ = m.CreateTask(func() (interface{}, error) {
			return handler(payload)
		}, map[string]interface{}{"type": "event_handler", "event_type": eventType})
	}
}

// GetStats returns a snapshot of the manager's counters.
func (m *Manager) GetStats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	completed, failed := 0, 0
	for _, t := range m.tasksByID {
		switch t.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return map[string]interface{}{
		"tick_count":      m.tickCount,
		"total_tasks":     len(m.tasksByID),
		"pending_tasks":   len(m.pending),
		"running_tasks":   len(m.running),
		"completed_tasks": completed,
		"failed_tasks":    failed,
		"event_types":     len(m.eventHandlers),
	}
}

// cleanupOldTasks keeps at most historyLimit terminal tasks, evicting
// the oldest completions first. Callers must hold m.mu.
func (m *Manager) cleanupOldTasks() {
	var terminal []*Task
	for _, t := range m.tasksByID {
		if t.IsDone() {
			terminal = append(terminal, t)
		}
	}
	if len(terminal) <= historyLimit {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].CompletedAt.Before(terminal[j].CompletedAt)
	})
	for _, t := range terminal[:len(terminal)-historyLimit] {
		delete(m.tasksByID, t.ID)
	}
}

func (m *Manager) publishTaskDone(t *Task) {
	if m.eventBus == nil {
		return
	}
	defer func() { _ = recover() }()
	var result interface{}
	if t.Status == StatusCompleted {
		result = t.Result
	}
	m.eventBus.Publish("system.async.done", "async_manager", map[string]interface{}{
		"task_id":  t.ID,
		"status":   string(t.Status),
		"result":   result,
		"error":    t.Err,
		"metadata": t.Metadata,
	})
}

func (m *Manager) publishTick(tick int64, pending, running int) {
	if m.eventBus == nil {
		return
	}
	defer func() { _ = recover() }()
	m.eventBus.Publish("system.async.tick", "async_manager", map[string]interface{}{
		"tick_count": tick,
		"timestamp":  time.Now(),
		"pending":    pending,
		"running":    running,
	})
}
