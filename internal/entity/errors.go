package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrEntryNotFound is returned when an entity ID is not registered.
	ErrEntryNotFound = errors.New("entity: not found")

	// ErrEntryExists is returned when registering an entity ID twice.
	ErrEntryExists = errors.New("entity: already registered")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("entity: invalid")
)
