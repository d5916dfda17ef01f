// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the scheduling mode of a Task.
type TaskType string

const (
	TaskInterval TaskType = "interval"
	TaskOneshot  TaskType = "oneshot"
	TaskEvent    TaskType = "event"
	TaskSystem   TaskType = "system"
)

// maxConsecutiveFailures is the number of consecutive failures after
// which a task auto-disables rather than keep being retried forever.
const maxConsecutiveFailures = 3

// Fn is the callable body of an interval or one-shot task.
type Fn func() error

// EventFn is the callable body of an event-triggered task.
type EventFn func(ctx map[string]interface{}) error

// Task is a single unit of scheduled, cooperative work.
type Task struct {
	ID       string
	Type     TaskType
	Interval time.Duration
	EventTyp string
	NextRun  time.Time
	Enabled  bool
	Metadata map[string]interface{}

	FailureCount int
	LastError    string

	fn      Fn
	eventFn EventFn
}

// NewIntervalTask creates a recurring task that runs every interval,
// starting at now+interval.
func NewIntervalTask(fn Fn, interval time.Duration, now time.Time, metadata map[string]interface{}) (*Task, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval task requires a positive interval")
	}
	return &Task{
		ID: uuid.NewString(), Type: TaskInterval, Interval: interval,
		NextRun: now.Add(interval), Enabled: true, Metadata: metadata, fn: fn,
	}, nil
}

// NewOneshotTask creates a task that runs once at runAt and then disables.
func NewOneshotTask(fn Fn, runAt time.Time, metadata map[string]interface{}) (*Task, error) {
	return &Task{
		ID: uuid.NewString(), Type: TaskOneshot, NextRun: runAt, Enabled: true,
		Metadata: metadata, fn: fn,
	}, nil
}

// NewEventTask creates a task invoked whenever eventType is triggered on
// the scheduler, rather than on a time schedule.
func NewEventTask(eventType string, fn EventFn, metadata map[string]interface{}) (*Task, error) {
	if eventType == "" {
		return nil, fmt.Errorf("event task requires a non-empty event type")
	}
	return &Task{
		ID: uuid.NewString(), Type: TaskEvent, EventTyp: eventType, Enabled: true,
		Metadata: metadata, eventFn: fn,
	}, nil
}

// Due reports whether the task should run at or before now. Event tasks
// are never "due" on a time basis; they run via TriggerEvent instead.
func (t *Task) Due(now time.Time) bool {
	if !t.Enabled {
		return false
	}
	if t.Type == TaskEvent {
		return false
	}
	return !now.Before(t.NextRun)
}

// Reschedule advances an interval task's NextRun, or disables a one-shot
// task after it runs.
func (t *Task) Reschedule(now time.Time) {
	switch t.Type {
	case TaskInterval:
		t.NextRun = now.Add(t.Interval)
	case TaskOneshot:
		t.Enabled = false
	}
}

// MarkSuccess clears the task's failure streak.
func (t *Task) MarkSuccess() {
	t.FailureCount = 0
	t.LastError = ""
}

// MarkFailure records a failed run, auto-disabling the task once it has
// failed maxConsecutiveFailures times in a row.
func (t *Task) MarkFailure(err error) {
	t.FailureCount++
	t.LastError = err.Error()
	if t.FailureCount >= maxConsecutiveFailures {
		t.Enabled = false
	}
}

// Run invokes the task's callable. Event tasks ignore the tick-driven
// Run path; they run exclusively through RunEvent.
func (t *Task) Run() error {
	if t.fn == nil {
		return fmt.Errorf("task %s has no callable body", t.ID)
	}
	return t.fn()
}

// RunEvent invokes an event task's callable with the triggering context.
func (t *Task) RunEvent(ctx map[string]interface{}) error {
	if t.eventFn == nil {
		return fmt.Errorf("task %s has no event callable", t.ID)
	}
	return t.eventFn(ctx)
}
