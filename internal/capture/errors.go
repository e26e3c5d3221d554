package capture

import "errors"

// Domain errors for the capture archive.
var (
	// ErrNotFound is returned when no archived capture has the given id.
	ErrNotFound = errors.New("capture: not found")

	// ErrChecksumMismatch is returned when a stored sample blob does not
	// match its recorded checksum.
	ErrChecksumMismatch = errors.New("capture: checksum mismatch")

	// ErrUnknownEncoding is returned for an encoding name the codec does not
	// support.
	ErrUnknownEncoding = errors.New("capture: unknown encoding")

	// ErrCorruptBlob is returned when a sample blob cannot be decoded.
	ErrCorruptBlob = errors.New("capture: corrupt sample blob")
)
