package state

import "errors"

var (
	// ErrInvalidEntityID is returned when an entity ID is malformed.
	ErrInvalidEntityID = errors.New("state: invalid entity ID")

	// ErrInvalidState is returned when the new state is empty.
	ErrInvalidState = errors.New("state: invalid state")

	// ErrInvalidPayload is returned when an MQTT state message cannot be decoded.
	ErrInvalidPayload = errors.New("state: invalid payload")
)
