// SPDX-License-Identifier: AGPL-3.0-or-later

// Package asynctask implements cooperative background work: a task
// body runs on its own goroutine, and the manager's Tick drains
// completions non-blockingly rather than awaiting them. This is the Go
// mapping of a cooperative coroutine-per-tick model onto goroutines and
// channels.
package asynctask

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is a Task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Run is the body of an async task, executed on its own goroutine.
type Run func() (interface{}, error)

// Task is a single unit of cooperative background work.
type Task struct {
	ID       string
	Status   Status
	Result   interface{}
	Err      string
	Metadata map[string]interface{}

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	run    Run
	done   chan struct{}
	cancel chan struct{}
}

// NewTask creates a pending task wrapping run. It does not start the
// goroutine; call Start for that.
func NewTask(run Run, metadata map[string]interface{}) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Metadata:  metadata,
		CreatedAt: time.Now(),
		run:       run,
		done:      make(chan struct{}),
		cancel:    make(chan struct{}),
	}
}

// Start launches the task's goroutine. It is a no-op if the task has
// already been started.
func (t *Task) Start() {
	if t.Status != StatusPending {
		return
	}
	t.Status = StatusRunning
	t.StartedAt = time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Result = nil
				t.Err = fmt.Sprintf("task panicked: %v", r)
			}
			close(t.done)
		}()

		result, err := t.run()
		select {
		case <-t.cancel:
			// Already cancelled; drop the result.
			return
		default:
		}
		if err != nil {
			t.Result = nil
			t.Err = err.Error()
		} else {
			t.Result = result
		}
	}()
}

// Step performs one non-blocking check of the task's goroutine and
// reports whether it is still running (true) or has finished (false).
// Finishing updates Status/CompletedAt from the goroutine's outcome.
func (t *Task) Step() bool {
	if t.Status == StatusPending {
		return true
	}
	if t.IsDone() {
		return false
	}

	select {
	case <-t.done:
		if t.Status == StatusCancelled {
			return false
		}
		if t.Err != "" {
			t.Status = StatusFailed
		} else {
			t.Status = StatusCompleted
		}
		t.CompletedAt = time.Now()
		return false
	default:
		return true
	}
}

// Cancel marks the task cancelled. The underlying goroutine, if still
// running, is signalled to drop its result but is not forcibly killed
// (Go has no preemptive goroutine cancellation).
func (t *Task) Cancel() bool {
	if t.IsDone() {
		return false
	}
	select {
	case <-t.cancel:
	default:
		close(t.cancel)
	}
	t.Status = StatusCancelled
	t.CompletedAt = time.Now()
	return true
}

// IsDone reports whether the task has reached a terminal state.
func (t *Task) IsDone() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ToMap serializes the task for status reporting, omitting internal
// channels.
func (t *Task) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":         t.ID,
		"status":     string(t.Status),
		"error":      t.Err,
		"metadata":   t.Metadata,
		"created_at": t.CreatedAt,
		"is_done":    t.IsDone(),
	}
	if t.Status == StatusCompleted {
		m["result"] = t.Result
	} else {
		m["result"] = nil
	}
	if !t.StartedAt.IsZero() {
		m["started_at"] = t.StartedAt
	}
	if !t.CompletedAt.IsZero() {
		m["completed_at"] = t.CompletedAt
	}
	return m
}
