package core

import "errors"

// Scheduler errors indicate a bug in the embedder or a double-resume
// race; callers turn them into a controlled failure rather than letting
// them leak into script state.
var (
	ErrClosed   = errors.New("lune: scheduler closed")
	ErrNotFound = errors.New("lune: thread id not found")
)

// Require resolution errors ARE raised into the requiring coroutine as
// script errors, unlike the scheduler errors above.
var (
	ErrRequireNotFound      = errors.New("lune: module not found")
	ErrRequireAmbiguous     = errors.New("lune: ambiguous module match")
	ErrRequireAliasNotFound = errors.New("lune: alias not found")
	ErrRequireCycle         = errors.New("lune: cyclic require detected")
)
