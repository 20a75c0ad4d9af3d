package compose

import (
	"errors"
	"log/slog"
)

// ErrorHandler receives errors escalated by effects, bindings and host
// renders. It must not panic.
type ErrorHandler interface {
	HandleError(err error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(err error)

// HandleError calls f(err).
func (f ErrorHandlerFunc) HandleError(err error) {
	f(err)
}

// LogErrorHandler logs errors at Error level.
type LogErrorHandler struct {
	// Logger defaults to the configured runtime logger.
	Logger *slog.Logger
}

// HandleError implements ErrorHandler.
func (h LogErrorHandler) HandleError(err error) {
	l := h.Logger
	if l == nil {
		l = logger()
	}
	attrs := []any{slog.Any("error", err)}
	var pe *PanicError
	if errors.As(err, &pe) && CurrentConfig().DevMode {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	l.Error("compose: unhandled error", attrs...)
}

// DefaultErrorHandler is used by scopes and effects created without one.
func DefaultErrorHandler() ErrorHandler {
	return LogErrorHandler{}
}
