package scheduler

import (
	"errors"
	"testing"
	"time"

	"modcore/internal/kernel/eventbus"
)

type fakeBus struct {
	published []string
}

func (f *fakeBus) Publish(eventType, source string, payload map[string]interface{}) []eventbus.HandlerResult {
	f.published = append(f.published, eventType)
	return nil
}

func TestScheduleInterval_RunsWhenDue(t *testing.T) {
	bus := &fakeBus{}
	s := New(bus, nil)
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixedNow }

	runs := 0
	id := s.ScheduleInterval(func() error { runs++; return nil }, time.Second, nil)
	if id == "" {
		t.Fatalf("ScheduleInterval returned empty ID")
	}

	// Not due yet.
	s.Tick()
	if runs != 0 {
		t.Fatalf("runs = %d before due, want 0", runs)
	}

	s.now = func() time.Time { return fixedNow.Add(2 * time.Second) }
	s.Tick()
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}

	task := s.registry.Get(id)
	if task == nil {
		t.Fatalf("task %s not found after run", id)
	}
	if !task.NextRun.After(fixedNow.Add(2 * time.Second)) {
		t.Errorf("NextRun not advanced: %v", task.NextRun)
	}
}

func TestScheduleOneshot_DisablesAfterRun(t *testing.T) {
	bus := &fakeBus{}
	s := New(bus, nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	ran := false
	id := s.ScheduleOneshot(func() error { ran = true; return nil }, now, nil)
	s.Tick()

	if !ran {
		t.Fatalf("oneshot task did not run")
	}
	task := s.registry.Get(id)
	if task.Enabled {
		t.Errorf("oneshot task still enabled after running")
	}
}

func TestTick_AutoDisablesAfterThreeFailures(t *testing.T) {
	bus := &fakeBus{}
	s := New(bus, nil)
	now := time.Now()
	s.now = func() time.Time { return now }

	id := s.ScheduleInterval(func() error { return errors.New("boom") }, time.Nanosecond, nil)

	for i := 0; i < 3; i++ {
		s.now = func() time.Time { return now.Add(time.Duration(i+1) * time.Second) }
		s.Tick()
	}

	task := s.registry.Get(id)
	if task.Enabled {
		t.Errorf("task still enabled after 3 consecutive failures")
	}
	if task.FailureCount != 3 {
		t.Errorf("FailureCount = %d, want 3", task.FailureCount)
	}
}

func TestTick_BoundedByMaxTasksPerTick(t *testing.T) {
	bus := &fakeBus{}
	s := New(bus, nil)
	now := time.Now()
	s.now = func() time.Time { return now }
	s.SetMaxTasksPerTick(2)

	var ran []int
	for i := 0; i < 5; i++ {
		i := i
		s.ScheduleOneshot(func() error { ran = append(ran, i); return nil }, now, nil)
	}

	s.Tick()
	if len(ran) != 2 {
		t.Fatalf("ran = %v, want 2 tasks (bounded)", ran)
	}
	if ran[0] != 0 || ran[1] != 1 {
		t.Fatalf("ran = %v, want [0 1] (registration order, not map order)", ran)
	}

	// Second tick picks up where the first left off, in the same stable order.
	s.Tick()
	if len(ran) != 4 || ran[2] != 2 || ran[3] != 3 {
		t.Fatalf("ran after second tick = %v, want [0 1 2 3]", ran)
	}
}

func TestTick_PublishesLifecycleEvents(t *testing.T) {
	bus := &fakeBus{}
	s := New(bus, nil)
	s.ScheduleOneshot(func() error { return nil }, s.now(), nil)

	s.Tick()

	if len(bus.published) < 2 {
		t.Fatalf("published = %v, want at least tick+executed", bus.published)
	}
	if bus.published[0] != "system.scheduler.tick" {
		t.Errorf("first published event = %s, want system.scheduler.tick", bus.published[0])
	}
}

func TestTriggerEvent_RunsMatchingEventTasks(t *testing.T) {
	bus := &fakeBus{}
	s := New(bus, nil)

	var received map[string]interface{}
	s.ScheduleEvent("module.loaded", func(ctx map[string]interface{}) error {
		received = ctx
		return nil
	}, nil)

	s.TriggerEvent("module.loaded", eventbus.EventContext{
		EventType: "module.loaded",
		Payload:   map[string]interface{}{"module": "demo"},
	})

	if received == nil || received["module"] != "demo" {
		t.Errorf("event task did not receive payload: %+v", received)
	}
}

func TestTriggerEvent_IgnoresOtherEventTypes(t *testing.T) {
	bus := &fakeBus{}
	s := New(bus, nil)

	ran := false
	s.ScheduleEvent("module.loaded", func(ctx map[string]interface{}) error {
		ran = true
		return nil
	}, nil)

	s.TriggerEvent("module.unloaded", eventbus.EventContext{EventType: "module.unloaded"})

	if ran {
		t.Errorf("event task ran for non-matching event type")
	}
}

func TestCancel_RemovesTask(t *testing.T) {
	s := New(nil, nil)
	id := s.ScheduleOneshot(func() error { return nil }, time.Now(), nil)
	s.Cancel(id)

	if s.registry.Get(id) != nil {
		t.Errorf("task still present after Cancel")
	}
}

func TestGetStats(t *testing.T) {
	s := New(nil, nil)
	s.ScheduleOneshot(func() error { return nil }, time.Now(), nil)
	s.Tick()

	stats := s.GetStats()
	if stats["tick_count"].(int64) != 1 {
		t.Errorf("tick_count = %v, want 1", stats["tick_count"])
	}
}
