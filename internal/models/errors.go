package models

import (
	"fmt"
	"strings"
)

// ErrorType identifies the category of error that occurred.
type ErrorType string

const (
	// Simulator execution
	ErrExecutionTimeout ErrorType = "execution_timeout"
	ErrSimulatorFailed  ErrorType = "simulator_failed"

	// Output parsing
	ErrIncompleteMetrics ErrorType = "incomplete_metrics"

	// Design changes
	ErrPartAssignment ErrorType = "part_assignment"

	// Caller input
	ErrParameterType ErrorType = "parameter_type"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

// TypedError is implemented by every error of the taxonomy above.
type TypedError interface {
	error
	Type() ErrorType
}

// ExecutionTimeoutError is returned when the simulator exceeds its wall-clock deadline.
type ExecutionTimeoutError struct {
	Path    Path
	Timeout string
}

func (e *ExecutionTimeoutError) Error() string {
	return fmt.Sprintf("flight dynamics timed out on path %d after %s", e.Path, e.Timeout)
}

func (e *ExecutionTimeoutError) Type() ErrorType { return ErrExecutionTimeout }

// SimulatorFailedError is returned when the simulator exits with a nonzero code.
type SimulatorFailedError struct {
	Path     Path
	ExitCode int
	Stderr   string
}

func (e *SimulatorFailedError) Error() string {
	msg := fmt.Sprintf("flight dynamics failed on path %d with exit code %d", e.Path, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *SimulatorFailedError) Type() ErrorType { return ErrSimulatorFailed }

// IncompleteMetricsError is returned when a required label is absent from simulator output.
type IncompleteMetricsError struct {
	Kind  string
	Label string
}

func (e *IncompleteMetricsError) Error() string {
	return fmt.Sprintf("incomplete %s metrics: missing %q", e.Kind, e.Label)
}

func (e *IncompleteMetricsError) Type() ErrorType { return ErrIncompleteMetrics }

// PartAssignmentError is returned when no catalog part complements the requested one.
type PartAssignmentError struct {
	Part   string
	Reason string
}

func (e *PartAssignmentError) Error() string {
	return fmt.Sprintf("assigning part %s: %s", e.Part, e.Reason)
}

func (e *PartAssignmentError) Type() ErrorType { return ErrPartAssignment }

// ParameterTypeError is returned when a mapping was expected but something else was supplied.
type ParameterTypeError struct {
	Name string
	Got  string
}

func (e *ParameterTypeError) Error() string {
	return fmt.Sprintf("expecting %s to be a mapping, got %s instead", e.Name, e.Got)
}

func (e *ParameterTypeError) Type() ErrorType { return ErrParameterType }
