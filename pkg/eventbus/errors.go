package eventbus

import "errors"

// Common errors
var (
	// ErrInvalidConfiguration is returned when a sink is misconfigured
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNotConnected is returned when writing before Connect
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by a second Connect
	ErrAlreadyConnected = errors.New("already connected")

	// ErrSerializationFailed is returned when a discovery cannot be encoded
	ErrSerializationFailed = errors.New("serialization failed")
)
