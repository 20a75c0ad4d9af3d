package compose

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrCallContext is matched by every *CallContextError.
// A context-scoped operation was called while no Scope was active.
var ErrCallContext = errors.New("compose: call out of context")

// ErrNotProvided is returned by a Resolver that has no value for a token.
var ErrNotProvided = errors.New("compose: token not provided")

// ErrDisposed is returned when an operation targets a Scope that has
// already been disposed.
var ErrDisposed = errors.New("compose: scope disposed")

// ErrRenderBudget is reported when a Scheduler is marked dirty more often
// than Config.MaxRendersPerFlush within a single flush.
var ErrRenderBudget = errors.New("compose: render budget exceeded")

// CallContextError reports the operation that required an active Scope.
type CallContextError struct {
	Op string
}

func (e *CallContextError) Error() string {
	return fmt.Sprintf("compose: %s called out of context", e.Op)
}

// Is makes errors.Is(err, ErrCallContext) true.
func (e *CallContextError) Is(target error) bool {
	return target == ErrCallContext
}

func callContextError(op string) error {
	return &CallContextError{Op: op}
}

// PanicError wraps a value recovered from a panicking reaction, computed
// function, or host render.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("compose: panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// asError converts a recovered value into an error. Errors raised with
// panic(err) keep their identity so handlers can match them.
func asError(r any) error {
	switch v := r.(type) {
	case *PanicError:
		return v
	case error:
		return &PanicError{Value: v, Stack: debug.Stack()}
	default:
		return newPanicError(v)
	}
}

// ResolveError wraps a failure to resolve a dependency token.
type ResolveError struct {
	Token any
	Err   error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("compose: resolve %v: %v", e.Token, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
