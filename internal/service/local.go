package service

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// StateSetter applies a state change. *state.Machine satisfies it.
type StateSetter interface {
	Set(ctx context.Context, entityID, newState string, origin *core.Context) error
}

// LocalSwitch applies on/off services straight to the state machine,
// standing in for a bridge in dev mode.
type LocalSwitch struct {
	states StateSetter
}

// NewLocalSwitch creates a LocalSwitch writing to states.
func NewLocalSwitch(states StateSetter) *LocalSwitch {
	return &LocalSwitch{states: states}
}

// RegisterOn registers turn_on and turn_off for domain on bus.
func (l *LocalSwitch) RegisterOn(bus *Bus, domain string) error {
	return registerSwitch(bus, domain, l.Handle)
}

// Handle sets the target entity on or off with the call's context as origin.
func (l *LocalSwitch) Handle(ctx context.Context, call Call) error {
	entityID, err := call.EntityID()
	if err != nil {
		return err
	}

	var target string
	switch call.Service {
	case core.ServiceTurnOn:
		target = core.StateOn
	case core.ServiceTurnOff:
		target = core.StateOff
	default:
		return fmt.Errorf("%w: %s", ErrServiceNotFound, call.Service)
	}

	return l.states.Set(ctx, entityID, target, call.Context)
}
