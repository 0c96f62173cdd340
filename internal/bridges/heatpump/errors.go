package heatpump

import "errors"

// Domain-specific errors for the heat pump bridge.
var (
	// ErrUnknownDevice is returned when a device ID has no session.
	ErrUnknownDevice = errors.New("heatpump: unknown device")

	// ErrUnknownParameter is returned when a write targets an identifier that
	// is neither in the effective map nor in the writable map.
	ErrUnknownParameter = errors.New("heatpump: unknown parameter")

	// ErrNotWritable is returned when an attribute has no writable parameter.
	ErrNotWritable = errors.New("heatpump: attribute is not writable")

	// ErrInvalidValue is returned when a write value cannot be sent as a number.
	ErrInvalidValue = errors.New("heatpump: invalid value")

	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("heatpump: session closed")
)
