package agent

import (
	"errors"
	"fmt"
)

// MalformedEnvelope is the ServiceError message used when the service reply
// lacks the expected text payload.
const MalformedEnvelope = "malformed"

// ServiceError is a transport or envelope failure from the remote service.
type ServiceError struct {
	Status     int
	StatusText string
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("service error (status %d %s): %s", e.Status, e.StatusText, msg)
	}
	return fmt.Sprintf("service error: %s", msg)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether the service answered without a text payload.
func (e *ServiceError) IsMalformed() bool {
	return e.Message == MalformedEnvelope
}

func newMalformedError(cause error) *ServiceError {
	return &ServiceError{Message: MalformedEnvelope, Err: cause}
}

// IsServiceError reports whether err wraps a ServiceError.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
