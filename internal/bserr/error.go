// Package bserr defines the closed error taxonomy shared between the
// runner and the CLI, so a failure's exit code is decided once, at the
// point it occurs, rather than re-derived from error text later.
package bserr

import "fmt"

// Kind classifies a failure and determines the process exit code it maps
// to when it reaches the CLI.
type Kind int

const (
	// KindStepFailure covers a resolver refusal, an executor action
	// error, or a substitution failure — anything that fails one step
	// without indicating the environment itself is broken.
	KindStepFailure Kind = iota + 1
	// KindTimeout covers a step or global timeout and other
	// infrastructure-level failures (browser launch, vault bridge down).
	KindTimeout
	// KindSkipped marks a step that never ran because an earlier step of
	// the same script failed or the run was cancelled; its exit code also
	// marks a script that a bailing batch never started.
	KindSkipped
)

// ExitCode returns the process exit code this Kind maps to.
func (k Kind) ExitCode() int {
	switch k {
	case KindStepFailure:
		return 1
	case KindTimeout:
		return 2
	case KindSkipped:
		return -1
	default:
		return 2
	}
}

// Error is a typed failure carrying enough context for the runner to
// decide what to do next and for the CLI to decide how to exit.
type Error struct {
	Kind    Kind
	Step    string // step id, empty for script-level failures
	Op      string // short operation name, e.g. "resolve", "click", "vault.unlock"
	Err     error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %v", e.Step, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err as a Kind-classified Error attributed to op (and
// optionally a step id).
func New(kind Kind, step, op string, err error) *Error {
	return &Error{Kind: kind, Step: step, Op: op, Err: err}
}

// StepFailure is a convenience constructor for the common case.
func StepFailure(step, op string, err error) *Error {
	return New(KindStepFailure, step, op, err)
}

// Timeout is a convenience constructor for timeout/infra failures.
func Timeout(step, op string, err error) *Error {
	return New(KindTimeout, step, op, err)
}

// KindOf recovers the Kind of err if it is (or wraps) a *Error, defaulting to
// KindTimeout for unrecognized errors since those indicate something the
// runner did not anticipate.
func KindOf(err error) Kind {
	var be *Error
	if ok := asError(err, &be); ok {
		return be.Kind
	}
	return KindTimeout
}

func asError(err error, target **Error) bool {
	for err != nil {
		if be, ok := err.(*Error); ok {
			*target = be
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
