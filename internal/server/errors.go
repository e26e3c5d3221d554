package server

import "errors"

var (
	// ErrSocketFailure is returned when the UDP socket cannot be bound.
	ErrSocketFailure = errors.New("server: socket failure")

	// ErrClientExit is returned by Serve after the client sent "e" and the
	// exit policy is enabled.
	ErrClientExit = errors.New("server: client requested exit")

	// ErrNotListening is returned by Serve before Listen succeeded.
	ErrNotListening = errors.New("server: not listening")

	// ErrNoRegistry is returned by New without a device registry.
	ErrNoRegistry = errors.New("server: registry is required")
)
