package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// AnnotatedError includes more context than a plain error that is useful for troubleshooting.
type AnnotatedError struct {
	// msg is the error message.
	msg string
	// pc is the program counter for the location of the error provided by runtime.Callers.
	pc uintptr
	// attrs are slog attributes that are added to the log event to provide more context for the error.
	attrs []slog.Attr
	// wrapped is the underlying error, nil for leaf errors.
	wrapped error
}

func newAnnotated(skip int, msg string, wrapped error, attrs []slog.Attr) AnnotatedError {
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	return AnnotatedError{
		msg:     msg,
		pc:      pcs[0],
		attrs:   attrs,
		wrapped: wrapped,
	}
}

// New creates a new AnnotatedError with the given message and attributes.
func New(msg string, attrs ...slog.Attr) error {
	// Skip runtime.Callers, newAnnotated and this function.
	return newAnnotated(3, msg, nil, attrs) //nolint:mnd // call depth
}

// NewSentinel creates a plain error without other context that can be used as sentinel error that can be
// detected with errors.Is.
func NewSentinel(msg string) error {
	return errors.New(msg)
}

// Wrap annotates err with msg and attrs while keeping err detectable with errors.Is and errors.As.
// Returns nil if err is nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return newAnnotated(3, msg, err, attrs) //nolint:mnd // call depth
}

// Error implements error interface.
func (err AnnotatedError) Error() string {
	if err.wrapped == nil {
		return err.msg
	}
	return fmt.Sprintf("%s: %s", err.msg, err.wrapped.Error())
}

// Unwrap exposes the wrapped error to errors.Is and errors.As.
func (err AnnotatedError) Unwrap() error {
	return err.wrapped
}

// LogValue formats the error for useful logging.
func (err AnnotatedError) LogValue() slog.Value {
	// Retrieve the source location of the error so that developers can locate it faster.
	frames := runtime.CallersFrames([]uintptr{err.pc})
	source, _ := frames.Next()
	attrs := []slog.Attr{
		slog.String("msg", err.Error()),
		slog.String("source", fmt.Sprintf("%s:%d", source.File, source.Line)),
	}
	attrs = append(attrs, err.attrs...)

	// Collect the attributes of the wrapped annotated errors too.
	var inner AnnotatedError
	if errors.As(err.wrapped, &inner) {
		attrs = append(attrs, inner.collectAttrs()...)
	}

	return slog.GroupValue(attrs...)
}

func (err AnnotatedError) collectAttrs() []slog.Attr {
	attrs := append([]slog.Attr{}, err.attrs...)
	var inner AnnotatedError
	if errors.As(err.wrapped, &inner) {
		attrs = append(attrs, inner.collectAttrs()...)
	}
	return attrs
}

// SlogError returns an attribute that logs err under the "error" key. Annotated errors log their source
// location and attributes as a group.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	if e, ok := err.(AnnotatedError); ok { //nolint:errorlint // the outermost error carries the full message
		return slog.Any("error", e)
	}
	var annotated AnnotatedError
	if errors.As(err, &annotated) {
		return slog.Group("error", slog.String("msg", err.Error()), slog.Any("cause", annotated))
	}
	return slog.String("error", err.Error())
}

// As exposes stdlib errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is exposes stdlib errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap exposes stdlib errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join exposes stdlib errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
