// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scheduler implements the kernel's cooperative, tick-driven task
// scheduler: interval, one-shot, event-triggered, and system tasks, all
// executed from repeated Tick() calls rather than preemptively.
package scheduler

import (
	"time"

	"modcore/internal/kernel/eventbus"
	"modcore/pkg/logging"
)

// defaultMaxTasksPerTick bounds how much work a single Tick() performs,
// so a burst of due tasks cannot starve the orchestrator loop.
const defaultMaxTasksPerTick = 10

// eventPublisher is the narrow surface scheduler needs from the event
// bus: publishing its own lifecycle events.
type eventPublisher interface {
	Publish(eventType, source string, payload map[string]interface{}) []eventbus.HandlerResult
}

// Scheduler runs cooperative tasks. It never panics out of Tick: every
// task failure is caught, recorded on the task, and reported via an
// event instead of propagating.
type Scheduler struct {
	registry        *TaskRegistry
	eventBus        eventPublisher
	logger          logging.Logger
	maxTasksPerTick int
	tickCount       int64
	now             func() time.Time
}

// New creates a Scheduler publishing its lifecycle events on bus (which
// may be nil to run standalone, e.g. in unit tests).
func New(bus eventPublisher, logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		registry:        NewTaskRegistry(),
		eventBus:        bus,
		logger:          logger,
		maxTasksPerTick: defaultMaxTasksPerTick,
		now:             time.Now,
	}
}

// SetMaxTasksPerTick overrides the per-tick work bound.
func (s *Scheduler) SetMaxTasksPerTick(n int) {
	if n > 0 {
		s.maxTasksPerTick = n
	}
}

// ScheduleInterval registers a recurring task and returns its ID, or an
// empty string if the task could not be constructed.
func (s *Scheduler) ScheduleInterval(fn Fn, interval time.Duration, metadata map[string]interface{}) string {
	t, err := NewIntervalTask(fn, interval, s.now(), metadata)
	if err != nil {
		s.logger.Warn("failed to schedule interval task", logging.F("error", err.Error()))
		return ""
	}
	s.registry.Register(t)
	return t.ID
}

// ScheduleOneshot registers a task to run once at runAt.
func (s *Scheduler) ScheduleOneshot(fn Fn, runAt time.Time, metadata map[string]interface{}) string {
	t, err := NewOneshotTask(fn, runAt, metadata)
	if err != nil {
		s.logger.Warn("failed to schedule oneshot task", logging.F("error", err.Error()))
		return ""
	}
	s.registry.Register(t)
	return t.ID
}

// ScheduleEvent registers a task invoked whenever eventType is triggered.
func (s *Scheduler) ScheduleEvent(eventType string, fn EventFn, metadata map[string]interface{}) string {
	t, err := NewEventTask(eventType, fn, metadata)
	if err != nil {
		s.logger.Warn("failed to schedule event task", logging.F("error", err.Error()))
		return ""
	}
	s.registry.Register(t)
	return t.ID
}

// Cancel removes a previously scheduled task.
func (s *Scheduler) Cancel(taskID string) {
	s.registry.Unregister(taskID)
}

// GetStats returns a snapshot of the scheduler's current counters.
func (s *Scheduler) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"tick_count":    s.tickCount,
		"task_count":    s.registry.Count(),
		"enabled_count": s.registry.CountEnabled(),
	}
}

// ListTasks returns every registered task.
func (s *Scheduler) ListTasks() []*Task {
	return s.registry.List()
}

// Tick advances the scheduler by one step: it publishes a tick event,
// runs every due task (bounded by maxTasksPerTick), and reschedules or
// disables each as appropriate. Tick never returns an error or panics;
// all failures are captured per-task.
func (s *Scheduler) Tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler tick recovered from panic", logging.F("panic", r))
		}
	}()

	s.tickCount++
	now := s.now()

	s.publish("system.scheduler.tick", map[string]interface{}{
		"tick_count": s.tickCount,
		"timestamp":  now,
	})

	due := s.registry.ListDue(now)
	if len(due) > s.maxTasksPerTick {
		due = due[:s.maxTasksPerTick]
	}

	for _, t := range due {
		s.execute(t, now)
	}
}

func (s *Scheduler) execute(t *Task, now time.Time) {
	err := t.Run()
	if err != nil {
		t.MarkFailure(err)
		s.publish("system.scheduler.executed", map[string]interface{}{
			"task_id":       t.ID,
			"task_type":     string(t.Type),
			"success":       false,
			"error":         err.Error(),
			"failure_count": t.FailureCount,
			"disabled":      !t.Enabled,
		})
		return
	}

	t.MarkSuccess()
	t.Reschedule(now)
	s.publish("system.scheduler.executed", map[string]interface{}{
		"task_id":   t.ID,
		"task_type": string(t.Type),
		"success":   true,
		"next_run":  t.NextRun,
	})
}

// TriggerEvent runs every enabled event task registered for eventType,
// passing through the publishing event's payload.
func (s *Scheduler) TriggerEvent(eventType string, ctx eventbus.EventContext) {
	defer func() {
		_ = recover()
	}()

	for _, t := range s.registry.ListEventHandlers(eventType) {
		err := t.RunEvent(ctx.Payload)
		if err != nil {
			t.MarkFailure(err)
			s.publish("system.scheduler.executed", map[string]interface{}{
				"task_id":    t.ID,
				"task_type":  "event",
				"event_type": eventType,
				"success":    false,
				"error":      err.Error(),
			})
			continue
		}
		t.MarkSuccess()
		s.publish("system.scheduler.executed", map[string]interface{}{
			"task_id":    t.ID,
			"task_type":  "event",
			"event_type": eventType,
			"success":    true,
		})
	}
}

func (s *Scheduler) publish(eventType string, payload map[string]interface{}) {
	if s.eventBus == nil {
		return
	}
	defer func() { _ = recover() }()
	s.eventBus.Publish(eventType, "scheduler", payload)
}
