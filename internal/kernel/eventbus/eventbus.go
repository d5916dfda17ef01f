// SPDX-License-Identifier: AGPL-3.0-or-later

// Package eventbus implements the kernel's publish/subscribe layer.
// Handlers may run synchronously or, if registered as async, on their
// own goroutine; a handler's failure is captured and returned alongside
// other results rather than propagated, so one misbehaving subscriber
// never breaks publish for the others.
package eventbus

import (
	"strconv"
	"sync"
	"time"
)

// EventContext is the structured payload delivered to every handler.
type EventContext struct {
	EventType string
	Source    string
	Payload   map[string]interface{}
	Category  string
	Priority  int
	Timestamp time.Time
}

// NewEventContext creates an EventContext with sane defaults (category
// "general", priority 5, timestamp now).
func NewEventContext(eventType, source string, payload map[string]interface{}) EventContext {
	return EventContext{
		EventType: eventType,
		Source:    source,
		Payload:   payload,
		Category:  "general",
		Priority:  5,
		Timestamp: time.Now(),
	}
}

// HandlerResult is one handler's outcome from a Publish call.
type HandlerResult struct {
	Async  bool
	TaskID string
	Error  string
}

// Handler is a synchronous event subscriber.
type Handler func(EventContext) (interface{}, error)

// AsyncTaskCreator lets the bus hand async handler invocations off to a
// task manager rather than blocking Publish. Implemented by
// internal/kernel/asynctask.Manager.
type AsyncTaskCreator interface {
	CreateTask(run func() (interface{}, error), metadata map[string]interface{}) (string, error)
}

// SchedulerTrigger lets the bus notify the scheduler's event-triggered
// tasks after fan-out. Implemented by internal/kernel/scheduler.Scheduler.
type SchedulerTrigger interface {
	TriggerEvent(eventType string, ctx EventContext)
}

type subscription struct {
	id      string
	handler Handler
	async   bool
	name    string
}

// Bus is the event publish/subscribe hub.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string][]subscription
	nextID      int

	asyncManager AsyncTaskCreator
	scheduler    SchedulerTrigger
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string][]subscription)}
}

// SetAsyncManager wires in the async task manager used to run handlers
// registered via SubscribeAsync.
func (b *Bus) SetAsyncManager(m AsyncTaskCreator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.asyncManager = m
}

// SetScheduler wires in the scheduler notified after every publish so
// its event-triggered tasks can run too.
func (b *Bus) SetScheduler(s SchedulerTrigger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduler = s
}

// Subscribe registers a synchronous handler for eventType and returns a
// subscription ID usable with Unsubscribe.
func (b *Bus) Subscribe(eventType string, name string, handler Handler) string {
	return b.subscribe(eventType, name, handler, false)
}

// SubscribeAsync registers a handler that runs on the async task manager
// rather than inline during Publish.
func (b *Bus) SubscribeAsync(eventType string, name string, handler Handler) string {
	return b.subscribe(eventType, name, handler, true)
}

func (b *Bus) subscribe(eventType, name string, handler Handler, async bool) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := eventType + "#" + strconv.Itoa(b.nextID)
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{
		id: id, handler: handler, async: async, name: name,
	})
	return id
}

// Unsubscribe removes a subscription previously returned by Subscribe or
// SubscribeAsync. Removing an unknown ID is a no-op.
func (b *Bus) Unsubscribe(eventType, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to every current subscriber of eventType and
// returns each handler's result. The subscriber list is snapshotted under
// lock and then released before dispatch, so a handler that subscribes
// or unsubscribes doesn't deadlock against Publish.
func (b *Bus) Publish(eventType, source string, payload map[string]interface{}) []HandlerResult {
	ctx := NewEventContext(eventType, source, payload)

	b.mu.Lock()
	subs := make([]subscription, len(b.subscribers[eventType]))
	copy(subs, b.subscribers[eventType])
	asyncManager := b.asyncManager
	scheduler := b.scheduler
	b.mu.Unlock()

	results := make([]HandlerResult, 0, len(subs))
	for _, s := range subs {
		if s.async {
			if asyncManager == nil {
				results = append(results, HandlerResult{Error: "async handler but no async manager configured"})
				continue
			}
			handler := s.handler
			taskID, err := asyncManager.CreateTask(func() (interface{}, error) {
				return handler(ctx)
			}, map[string]interface{}{"type": "event_handler", "event_type": eventType, "handler": s.name})
			if err != nil {
				results = append(results, HandlerResult{Error: "async handler error: " + err.Error()})
				continue
			}
			results = append(results, HandlerResult{Async: true, TaskID: taskID})
			continue
		}

		result := invoke(s.handler, ctx)
		results = append(results, result)
	}

	if scheduler != nil {
		scheduler.TriggerEvent(eventType, ctx)
	}

	return results
}

func invoke(h Handler, ctx EventContext) (result HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			result = HandlerResult{Error: "handler panicked"}
		}
	}()

	if _, err := h(ctx); err != nil {
		return HandlerResult{Error: err.Error()}
	}
	return HandlerResult{}
}

// ListEventTypes returns every event type with at least one subscriber.
func (b *Bus) ListEventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make([]string, 0, len(b.subscribers))
	for t, subs := range b.subscribers {
		if len(subs) > 0 {
			types = append(types, t)
		}
	}
	return types
}

// ListHandlers returns the names of every handler subscribed to eventType.
func (b *Bus) ListHandlers(eventType string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.subscribers[eventType]))
	for _, s := range b.subscribers[eventType] {
		names = append(names, s.name)
	}
	return names
}
