package core

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Well-known entity states.
const (
	StateOn  = "on"
	StateOff = "off"
)

// Well-known service names.
const (
	ServiceTurnOn  = "turn_on"
	ServiceTurnOff = "turn_off"
)

// AttrEntityID is the service data key carrying the target entity.
const AttrEntityID = "entity_id"

// ErrServiceInvocation matches any ServiceInvocationError via errors.Is.
var ErrServiceInvocation = errors.New("service: invocation failed")

// Context identifies the origin of a state change or service call so that
// downstream effects can be attributed to a user or a parent execution.
type Context struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// NewContext creates a Context with a fresh ID.
func NewContext(userID, parentID string) *Context {
	return &Context{
		ID:       uuid.NewString(),
		UserID:   userID,
		ParentID: parentID,
	}
}

// DetachFunc removes a previously attached listener. Implementations must be
// safe to call more than once and from any goroutine.
type DetachFunc func()

// ServiceInvocationError reports that a service call failed downstream.
type ServiceInvocationError struct {
	Domain  string
	Service string
	Err     error
}

func (e *ServiceInvocationError) Error() string {
	return fmt.Sprintf("service %s.%s: %v", e.Domain, e.Service, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ServiceInvocationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrServiceInvocation.
func (e *ServiceInvocationError) Is(target error) bool {
	return target == ErrServiceInvocation
}

var entityIDRegex = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)

// ValidEntityID reports whether id has the form "<domain>.<object_id>".
func ValidEntityID(id string) bool {
	return entityIDRegex.MatchString(id)
}

