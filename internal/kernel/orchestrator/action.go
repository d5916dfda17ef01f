// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator is the kernel's single execution entrypoint: it
// dispatches Actions to handlers, ticks the scheduler and async
// manager cooperatively on every call, and returns a strict
// {ok, data|error} envelope regardless of what the handler does
// internally.
package orchestrator

import (
	"fmt"

	"github.com/google/uuid"
)

// Action is a single unit of work the orchestrator dispatches: a
// command or query submitted by the CLI, an HTTP handler, or (in the
// original runtime) an LLM tool call.
type Action struct {
	ActionType string
	Payload    map[string]interface{}
	Source     string
	RequestID  string
}

// NewAction creates an Action, defaulting Source to "cli" and
// RequestID to a fresh UUID when left empty.
func NewAction(actionType string, payload map[string]interface{}, source string) Action {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	if source == "" {
		source = "cli"
	}
	return Action{
		ActionType: actionType,
		Payload:    payload,
		Source:     source,
		RequestID:  uuid.NewString(),
	}
}

func (a Action) String() string {
	return fmt.Sprintf("%s[%s]", a.ActionType, a.RequestID)
}
