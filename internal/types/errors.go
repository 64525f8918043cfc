package types

import "fmt"

// NonRetriableError marks a failure that redelivering the message will not
// fix (missing entity, bad configuration, caller bug). The worker dead-letters
// the message instead of retrying it.
type NonRetriableError struct {
	Message string
}

func (e *NonRetriableError) Error() string { return e.Message }

func NewNonRetriableError(format string, args ...interface{}) *NonRetriableError {
	return &NonRetriableError{Message: fmt.Sprintf(format, args...)}
}

// MissingArgumentError names a required message property or query parameter
// that was absent from the inbound request.
type MissingArgumentError struct {
	ArgumentName string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("Missing required argument: '%s'", e.ArgumentName)
}

func NewMissingArgumentError(name string) *MissingArgumentError {
	return &MissingArgumentError{ArgumentName: name}
}
