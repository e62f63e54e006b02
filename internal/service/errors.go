package service

import "errors"

var (
	// ErrServiceNotFound is returned when no handler is registered for a domain/service pair.
	ErrServiceNotFound = errors.New("service: not found")

	// ErrServiceExists is returned when a handler is registered twice.
	ErrServiceExists = errors.New("service: already registered")

	// ErrInvalidServiceData is returned when service data lacks a usable entity_id.
	ErrInvalidServiceData = errors.New("service: invalid service data")
)
