// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"errors"
	"fmt"
)

var (
	// ErrInterrupted matches (via errors.Is) any FailureError whose cause
	// contains an interruption.
	ErrInterrupted = errors.New("fiber: interrupted")

	// ErrTimeout is the failure of an effect guarded by Timeout whose
	// deadline elapsed first.
	ErrTimeout = errors.New("fiber: timeout")

	// ErrNilEffect is the defect raised when a nil effect reaches the
	// interpreter, e.g. a continuation that returned a zero Effect.
	ErrNilEffect = errors.New("fiber: nil effect")

	// ErrRuntimeClosed is returned when work is submitted to a closed Runtime.
	ErrRuntimeClosed = errors.New("fiber: runtime closed")
)

// FailureError is the error form of a Cause. It is what Exit.Err returns
// for failed exits, and what Sync thunks may panic with to fail the
// current fiber with an exact cause instead of a defect.
type FailureError struct {
	Cause *Cause
}

func (e *FailureError) Error() string {
	return "fiber: " + e.Cause.String()
}

// Unwrap exposes the expected failures, any error-typed defects, and
// ErrInterrupted when the cause was interrupted.
func (e *FailureError) Unwrap() []error {
	errs := e.Cause.Failures()
	for _, d := range e.Cause.Defects() {
		if err, ok := d.(error); ok {
			errs = append(errs, err)
		}
	}
	if e.Cause.IsInterrupted() {
		errs = append(errs, ErrInterrupted)
	}
	return errs
}

// PanicError is the defect recorded when a host-level panic escapes
// user code run by the interpreter.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return "fiber: panic: " + sprint(e.Value)
}

// Unwrap returns the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func sprint(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}

// UnhandledError is the defect raised when a kont computation suspends on
// an operation that nothing dispatches.
type UnhandledError struct {
	Op any
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("fiber: unhandled effect %T", e.Op)
}
