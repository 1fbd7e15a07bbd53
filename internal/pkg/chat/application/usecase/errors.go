package usecase

import "errors"

// Error taxonomy of the delivery engine. Use cases wrap the underlying cause,
// so callers match with errors.Is.
var (
	// ErrInvalidPayload rejects a request before any persistence attempt.
	ErrInvalidPayload = errors.New("chat: invalid payload")
	// ErrPersistence is reported once store retries are exhausted.
	ErrPersistence = errors.New("chat: persistence failed")
	// ErrNotFound marks a missing conversation or message.
	ErrNotFound = errors.New("chat: not found")
	// ErrNotConnected is returned when the gate refuses a pair.
	ErrNotConnected = errors.New("chat: users are not connected")
	// ErrTransport marks a connection-level failure.
	ErrTransport = errors.New("chat: transport error")
)
