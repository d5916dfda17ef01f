// SPDX-License-Identifier: AGPL-3.0-or-later

package capability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"modcore/internal/kernel/asynctask"
	"modcore/internal/kernel/eventbus"
	"modcore/internal/kernel/scheduler"
	"modcore/internal/kernel/storage"
	"modcore/pkg/logging"
)

// LogBasicProxy lets a module write plain log lines tagged with its
// own name.
type LogBasicProxy struct {
	moduleName string
	logger     logging.Logger
}

func (p *LogBasicProxy) Info(msg string)  { p.logger.Info(msg, logging.F("module", p.moduleName)) }
func (p *LogBasicProxy) Warn(msg string)  { p.logger.Warn(msg, logging.F("module", p.moduleName)) }
func (p *LogBasicProxy) Error(msg string) { p.logger.Error(msg, logging.F("module", p.moduleName)) }

// LogAdvancedProxy additionally accepts structured fields.
type LogAdvancedProxy struct {
	moduleName string
	logger     logging.Logger
}

func (p *LogAdvancedProxy) WithFields(fields map[string]interface{}) logging.Logger {
	lf := make([]logging.Field, 0, len(fields)+1)
	lf = append(lf, logging.F("module", p.moduleName))
	for k, v := range fields {
		lf = append(lf, logging.F(k, v))
	}
	return p.logger.WithFields(lf...)
}

// StorageReadProxy restricts a module to read-only sandboxed storage
// access.
type StorageReadProxy struct {
	storage *storage.Storage
}

func (p *StorageReadProxy) ReadText(relPath string) (string, error) { return p.storage.ReadText(relPath) }
func (p *StorageReadProxy) ReadJSON(relPath string, out interface{}) error {
	return p.storage.ReadJSON(relPath, out)
}
func (p *StorageReadProxy) Exists(relPath string) bool  { return p.storage.Exists(relPath) }
func (p *StorageReadProxy) ListFiles() ([]string, error) { return p.storage.ListFiles() }

// StorageWriteProxy grants write access on top of read access.
type StorageWriteProxy struct {
	StorageReadProxy
}

func (p *StorageWriteProxy) WriteText(relPath, content string) error {
	return p.storage.WriteText(relPath, content)
}
func (p *StorageWriteProxy) WriteJSON(relPath string, v interface{}) error {
	return p.storage.WriteJSON(relPath, v)
}

// NetworkProxy is a placeholder mediation point for outbound requests.
// It exposes no methods: it is only a capability marker, and makes no
// network requests itself.
type NetworkProxy struct{}

// CryptoProxy exposes host-provided cryptographic primitives.
type CryptoProxy struct{}

func (p *CryptoProxy) SHA256Hex(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// TimeProxy lets a module read the current time without importing
// "time" directly, keeping the capability boundary explicit.
type TimeProxy struct{}

func (p *TimeProxy) Now() time.Time { return time.Now() }

// ModuleRunProxy is a no-data marker capability: every loaded module
// implicitly has permission to be invoked by the orchestrator.
type ModuleRunProxy struct{}

// EventPublishProxy lets a module publish events under its own name as
// source.
type EventPublishProxy struct {
	bus        *eventbus.Bus
	moduleName string
}

func (p *EventPublishProxy) Publish(eventType string, payload map[string]interface{}) []eventbus.HandlerResult {
	return p.bus.Publish(eventType, p.moduleName, payload)
}

// EventSubscribeProxy lets a module subscribe to events.
type EventSubscribeProxy struct {
	bus        *eventbus.Bus
	moduleName string
}

func (p *EventSubscribeProxy) Subscribe(eventType string, handler eventbus.Handler) string {
	return p.bus.Subscribe(eventType, p.moduleName, handler)
}
func (p *EventSubscribeProxy) SubscribeAsync(eventType string, handler eventbus.Handler) string {
	return p.bus.SubscribeAsync(eventType, p.moduleName, handler)
}
func (p *EventSubscribeProxy) Unsubscribe(eventType, id string) {
	p.bus.Unsubscribe(eventType, id)
}

// TaskScheduleIntervalProxy lets a module schedule recurring tasks.
type TaskScheduleIntervalProxy struct {
	scheduler *scheduler.Scheduler
}

func (p *TaskScheduleIntervalProxy) Schedule(fn scheduler.Fn, interval time.Duration, metadata map[string]interface{}) string {
	return p.scheduler.ScheduleInterval(fn, interval, metadata)
}

// TaskScheduleOneshotProxy lets a module schedule a single future run.
type TaskScheduleOneshotProxy struct {
	scheduler *scheduler.Scheduler
}

func (p *TaskScheduleOneshotProxy) Schedule(fn scheduler.Fn, runAt time.Time, metadata map[string]interface{}) string {
	return p.scheduler.ScheduleOneshot(fn, runAt, metadata)
}

// TaskScheduleEventProxy lets a module react to events on the
// scheduler's own tick rather than inline during Publish.
type TaskScheduleEventProxy struct {
	scheduler *scheduler.Scheduler
}

func (p *TaskScheduleEventProxy) Schedule(eventType string, fn scheduler.EventFn, metadata map[string]interface{}) string {
	return p.scheduler.ScheduleEvent(eventType, fn, metadata)
}

// TaskCancelProxy lets a module cancel tasks it previously scheduled.
type TaskCancelProxy struct {
	scheduler *scheduler.Scheduler
}

func (p *TaskCancelProxy) Cancel(taskID string) { p.scheduler.Cancel(taskID) }

// AsyncScheduleProxy lets a module submit cooperative background work.
type AsyncScheduleProxy struct {
	asyncManager *asynctask.Manager
}

func (p *AsyncScheduleProxy) Schedule(run func() (interface{}, error), metadata map[string]interface{}) string {
	id, err := p.asyncManager.CreateTask(run, metadata)
	if err != nil {
		return ""
	}
	return id
}

// AsyncAwaitProxy lets a module poll or cancel async task results.
type AsyncAwaitProxy struct {
	asyncManager *asynctask.Manager
}

func (p *AsyncAwaitProxy) Poll(taskID string) map[string]interface{} {
	task := p.asyncManager.Get(taskID)
	if task == nil {
		return map[string]interface{}{"ok": false, "error": "task not found"}
	}
	m := task.ToMap()
	m["ok"] = true
	return m
}

func (p *AsyncAwaitProxy) Cancel(taskID string) bool {
	return p.asyncManager.Cancel(taskID)
}

// GenericProxy is the fallback for any capability in the registry that
// has no dedicated proxy type yet: it exposes only the catalog
// metadata, granting no additional surface.
type GenericProxy struct {
	Name        string
	Description string
}

func (p *GenericProxy) String() string {
	return fmt.Sprintf("<Capability:%s>", p.Name)
}
