package device

import "errors"

// Domain errors for the device package.
//
//	if errors.Is(err, device.ErrInvalidDevice) {
//	    // reply with an invalid_device error
//	}
var (
	// ErrInvalidDevice is returned for an id outside 0..Count()-1.
	ErrInvalidDevice = errors.New("device: invalid device")
)
