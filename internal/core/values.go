// Package core holds types shared across the scheduler, require subsystem,
// async bridge, and built-in libraries. It intentionally knows nothing
// about any particular JS engine backend.
package core

import "fmt"

// Values is the list of arguments/return values passed across a resume or
// a require result. The scheduler never inspects individual elements; it
// only threads the slice through to the VM's resume call.
type Values []any

// ScriptError wraps an arbitrary value raised by script-level `error`,
// preserving it unchanged end to end — a script can throw a string, a
// table, or anything else — and only formats it for the error callback
// on request.
type ScriptError struct {
	Value any
	Trace string
}

func (e *ScriptError) Error() string {
	if e.Trace != "" {
		return fmt.Sprintf("%v\n%s", e.Value, e.Trace)
	}
	return fmt.Sprintf("%v", e.Value)
}

// NewScriptError wraps a raw script value as an error.
func NewScriptError(v any, trace string) *ScriptError {
	return &ScriptError{Value: v, Trace: trace}
}

// ResumePayload is what a queued thread is resumed with: either a list of
// values delivered as normal return values, or an error re-raised inside
// the coroutine. Exactly one of Err / Vals is meaningful, selected by Err
// being non-nil.
type ResumePayload struct {
	Vals Values
	Err  error
}

// ValuesPayload builds a normal-resume payload.
func ValuesPayload(vals Values) ResumePayload {
	return ResumePayload{Vals: vals}
}

// ErrorPayload builds an error-resume payload.
func ErrorPayload(err error) ResumePayload {
	return ResumePayload{Err: err}
}
