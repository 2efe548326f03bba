package lighting

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceFailure matches every failed light command.
	ErrDeviceFailure = errors.New("lighting: device command failed")

	// ErrAckTimeout is the cause when no acknowledgement arrives in time.
	ErrAckTimeout = errors.New("lighting: acknowledgement timed out")

	// ErrStopped is the cause for commands pending when the controller stops.
	ErrStopped = errors.New("lighting: controller stopped")
)

// DeviceError describes a light command the device did not confirm.
//
// It matches ErrDeviceFailure and its Cause with errors.Is. Callers decide
// whether to retry; the controller never does.
type DeviceError struct {
	DeviceID  string
	Method    string
	RequestID string

	// Status is the acknowledgement status, or 0 when no ack arrived.
	Status int

	Cause error
}

func (e *DeviceError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("lighting: device %s rejected %s (request %s): status %d", e.DeviceID, e.Method, e.RequestID, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("lighting: device %s %s (request %s): %v", e.DeviceID, e.Method, e.RequestID, e.Cause)
	default:
		return fmt.Sprintf("lighting: device %s %s (request %s) failed", e.DeviceID, e.Method, e.RequestID)
	}
}

// Unwrap exposes both ErrDeviceFailure and the underlying cause.
func (e *DeviceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDeviceFailure}
	}
	return []error{ErrDeviceFailure, e.Cause}
}

// Retryable reports that the command may be sent again. Light commands are
// idempotent so every failure is retryable.
func (e *DeviceError) Retryable() bool {
	return true
}
