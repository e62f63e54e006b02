package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

const maxNameLength = 100

// Entry is one entity registry record.
type Entry struct {
	// EntityID has the form "<domain>.<object_id>", e.g. "light.kitchen".
	EntityID string `json:"entity_id" yaml:"entity_id"`

	// Domain is the integration that owns the entity. It is not the
	// entity ID prefix: "light.kitchen" may belong to integration "knx".
	Domain string `json:"domain" yaml:"domain"`

	DeviceID  string    `json:"device_id" yaml:"device_id"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`

	// seq is the registration position (SQLite rowid).
	seq int64
}

// Validate checks that the entry can be registered.
func (e *Entry) Validate() error {
	if !core.ValidEntityID(e.EntityID) {
		return fmt.Errorf("%w: entity_id %q must be <domain>.<object_id>", ErrInvalidEntry, e.EntityID)
	}
	if strings.TrimSpace(e.Domain) == "" {
		return fmt.Errorf("%w: domain cannot be empty", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.DeviceID) == "" {
		return fmt.Errorf("%w: device_id cannot be empty", ErrInvalidEntry)
	}
	if len(e.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidEntry, maxNameLength)
	}
	return nil
}
