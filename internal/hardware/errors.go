package hardware

import "errors"

var (
	// ErrHardwareFailure wraps any failed controller call.
	ErrHardwareFailure = errors.New("hardware failure")

	// ErrUnknownDriver is returned for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown hardware driver")

	// ErrNotConnected is returned when a disconnected controller is used.
	ErrNotConnected = errors.New("controller not connected")
)
