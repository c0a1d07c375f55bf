// Package apperrors provides chainable application errors. An Error keeps a base error for
// errors.Is / errors.As, a list of attached errors, and the process exit code the CLI uses
// when the error terminates a command.
package apperrors

// Error is the interface for application errors. All mutating methods return a new Error
// so that package-level sentinels can be used as templates.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // new error using current as template
	Msg(msg string) Error                  // new message, wraps original
	MsgErr(msg string, err ...error) Error // new message, wraps original and extra errors
	Err(err ...error) Error                // same message, attaches extra errors
	SetExpandError(bool) Error             // whether ErrorAll expands attached errors
	SetExitCode(int) Error                 // exit code reported by the CLI
	ExitCode() int
	Prefix(string) Error
	Suffix(string) Error
	ErrorAll() string    // message including attached errors when expansion is on
	UnwrapAll() []error  // attached errors in insertion order
}

// Exit codes shared by all commands.
const (
	ExitFailure    = 1
	ExitValidation = 2
	ExitTimeout    = 3
)
