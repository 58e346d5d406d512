package service

import "fmt"

// InvalidSpecError reports a missing or invalid field in a workflow spec or
// duration vector. Validation happens before any dispatch is attempted, so
// an InvalidSpecError never leaves a history record behind.
type InvalidSpecError struct {
	Field  string
	Reason string
}

func (e *InvalidSpecError) Error() string {
	return fmt.Sprintf("invalid workflow spec: %s: %s", e.Field, e.Reason)
}

func invalidSpec(field, reason string) *InvalidSpecError {
	return &InvalidSpecError{Field: field, Reason: reason}
}

// Logger defines the logging interface for the services.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
