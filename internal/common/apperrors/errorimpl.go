package apperrors

import (
	"errors"
	"strings"
)

// appError is the concrete Error. Derived errors keep the receiver as their base so
// errors.Is matches every ancestor.
type appError struct {
	msg           string
	base          error
	wrappedErrors []error
	exitCode      int
	expandError   bool
	prefix        string
	suffix        string
}

// Error returns the message with prefix and suffix applied.
func (e *appError) Error() string {
	msg := e.msg
	if e.prefix != "" {
		msg = e.prefix + ": " + msg
	}
	if e.suffix != "" {
		msg = msg + ": " + e.suffix
	}
	return msg
}

// ErrorAll returns Error followed by every attached error when expansion is on.
// Otherwise it equals Error.
func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, err := range e.wrappedErrors {
		if err == error(e.base) {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the base error for errors.Is and errors.As.
func (e *appError) Unwrap() error {
	return e.base
}

// UnwrapAll returns the attached errors in the order they were added.
func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

func (e *appError) derive(msg string, errs []error) *appError {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: append([]error{e}, errs...),
		exitCode:      e.exitCode,
		expandError:   e.expandError,
	}
}

// Msg derives an error with a new message that wraps e and keeps its exit code.
func (e *appError) Msg(msg string) Error {
	return e.derive(msg, e.wrappedErrors)
}

// New derives a fresh error from e as a template. Nothing is attached.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:         msg,
		base:        e,
		exitCode:    e.exitCode,
		expandError: e.expandError,
	}
}

// MsgErr derives an error with a new message and attaches errs. Nil entries are skipped.
func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, nonNil(errs))
}

// Err attaches errs and keeps the message of e.
func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, nonNil(errs))
}

// Prefix returns a copy with p prepended to the message.
func (e *appError) Prefix(p string) Error {
	cp := *e
	cp.prefix = p
	return &cp
}

// Suffix returns a copy with s appended to the message.
func (e *appError) Suffix(s string) Error {
	cp := *e
	cp.suffix = s
	return &cp
}

// SetExpandError returns a copy with ErrorAll expansion switched by flag.
func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

// SetExitCode returns a copy carrying code as its process exit code.
func (e *appError) SetExitCode(code int) Error {
	cp := *e
	cp.exitCode = code
	return &cp
}

// ExitCode returns the configured exit code, or ExitFailure when none was set.
func (e *appError) ExitCode() int {
	if e.exitCode == 0 {
		return ExitFailure
	}
	return e.exitCode
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}

// Is reports whether target is the base error or any attached error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ExitCodeOf returns the exit code carried by err, or ExitFailure for foreign errors.
func ExitCodeOf(err error) int {
	var ae Error
	if errors.As(err, &ae) {
		return ae.ExitCode()
	}
	return ExitFailure
}

func nonNil(errs []error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
