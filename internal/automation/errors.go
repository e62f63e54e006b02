package automation

import (
	"errors"
	"fmt"
)

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrSchema) {
//	    // reject the descriptor
//	}
var (
	// ErrSchema is matched by every SchemaError.
	ErrSchema = errors.New("automation: invalid descriptor")

	// ErrPlatformNotFound is returned when no platform is registered for a domain.
	ErrPlatformNotFound = errors.New("automation: platform not found")

	// ErrPlatformExists is returned when registering a second platform for a domain.
	ErrPlatformExists = errors.New("automation: platform already registered")
)

// SchemaError describes why a raw descriptor failed validation.
type SchemaError struct {
	Schema SchemaID
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s schema: %s", e.Schema, e.Reason)
	}
	return fmt.Sprintf("%s schema: %s: %s", e.Schema, e.Field, e.Reason)
}

// Is reports whether target is ErrSchema.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func schemaErr(schema SchemaID, field, format string, args ...any) *SchemaError {
	return &SchemaError{
		Schema: schema,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}
