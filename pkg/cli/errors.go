package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitError is returned for configuration, usage and infrastructure errors.
	ExitError = 1
	// ExitDenied is returned by evaluate when a quota is exceeded.
	ExitDenied = 2
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// DeniedError reports a quota decision that is not allowed. It carries no
// underlying failure.
type DeniedError struct {
	Actor  string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Actor, e.Reason)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var denied *DeniedError
	if errors.As(err, &denied) {
		return ExitDenied
	}
	return ExitError
}
