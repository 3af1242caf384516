package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// PanicError is a panic caught at a stage boundary. The pipelines wrap every
// Trainer capability call with SafeExecute, so a misbehaving model turns
// into an ordinary error instead of taking the process down.
type PanicError struct {
	PanicValue interface{}
	StackTrace string // goroutine stack at recovery time
	Operation  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String appends the captured stack to Error.
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.StackTrace
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *PanicError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Interface("panic_value", e.PanicValue).
		Str("type", "PanicError")
}

// NewPanicError captures the current stack for a recovered panic value.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover must be deferred directly. It stores a recovered panic in *err:
//
//	func (r *runner) fit() (err error) {
//	    defer errors.Recover(&err, "runner.fit")
//	    ...
//	}
//
// When *err already holds an error it stays the primary one and the panic
// is attached as a secondary error, visible with %+v.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	p := NewPanicError(operation, r)
	if *err == nil {
		*err = p
		return
	}
	*err = errors.WithSecondaryError(*err, p)
}

// SafeExecute calls fn under Recover.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
