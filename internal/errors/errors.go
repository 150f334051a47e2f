package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrProcess            = errors.New("external process failed")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNotSupported       = errors.New("operation not supported")
	ErrLookup             = errors.New("lookup failed")
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// CommandError reports an external process that exited non-zero.
// Command never includes secret-bearing arguments.
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

func (e CommandError) Is(target error) bool {
	return target == ErrProcess
}

// ConnectionNotFoundError is returned when no connection carries the requested name.
type ConnectionNotFoundError struct {
	Name string
}

func (e ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("connection name %q not found", e.Name)
}

func (e ConnectionNotFoundError) Is(target error) bool {
	return target == ErrConnectionNotFound
}

// NotSupportedError marks a requested feature that is not implemented.
type NotSupportedError struct {
	Feature string
	Details string
}

func (e NotSupportedError) Error() string {
	msg := fmt.Sprintf("%s is not supported", e.Feature)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}

// LookupError is returned when a process succeeded but did not report the
// expected key.
type LookupError struct {
	Key    string
	Source string
}

func (e LookupError) Error() string {
	return fmt.Sprintf("%s not found in %s output", e.Key, e.Source)
}

func (e LookupError) Is(target error) bool {
	return target == ErrLookup
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"codesign": "Install the Xcode command line tools: 'xcode-select --install'",
		"security": "The 'security' tool ships with macOS; make sure /usr/bin is in your PATH",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	msg := "command not found"
	if err != nil {
		msg = err.Error()
	}

	return CommandError{
		Command:    command,
		ExitCode:   -1,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// ExitStatus maps an error to the status the CLI exits with. A failed
// external process propagates its own exit code.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var ce CommandError
	if errors.As(err, &ce) && ce.ExitCode > 0 {
		return ce.ExitCode
	}
	return 1
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	switch err.(type) {
	case UserError, ConfigError, CommandError, ConnectionNotFoundError, NotSupportedError, LookupError:
		return err
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "plist:") {
		return UserError{
			Message:    "Connections file is not a valid property list",
			Suggestion: "Check that --connections-path points at TablePlus' Connections.plist",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
