package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// EntityRegistry is the read side of the entity registry the adapter lists from.
type EntityRegistry interface {
	// EntriesForDevice returns the device's entries in registration order.
	EntriesForDevice(ctx context.Context, deviceID string) ([]Entry, error)
}

// StateReader reports the current state string of an entity.
// An unknown entity reports the empty string.
type StateReader interface {
	Current(entityID string) string
}

// StateWatcher registers callbacks for entity state transitions.
type StateWatcher interface {
	WatchTransition(entityID, from, to string, h core.TransitionHandler, meta core.WatchMetadata) core.DetachFunc
}

// ServiceBus invokes named services.
type ServiceBus interface {
	Call(ctx context.Context, domain, service string, data map[string]any, blocking bool, origin *core.Context) error
}

// Recorder is notified of fired triggers and executed actions.
type Recorder interface {
	RecordTrigger(ctx context.Context, ev TriggerEvent)
	RecordAction(ctx context.Context, d ActionDescriptor, origin *core.Context, err error)
}

// Logger defines the logging interface used by the Adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// noopRecorder discards every record.
type noopRecorder struct{}

func (noopRecorder) RecordTrigger(context.Context, TriggerEvent)                          {}
func (noopRecorder) RecordAction(context.Context, ActionDescriptor, *core.Context, error) {}

// Deps holds the collaborators an Adapter is constructed with.
// Validator, Recorder and Logger are optional.
type Deps struct {
	Entities  EntityRegistry
	States    StateReader
	Watcher   StateWatcher
	Services  ServiceBus
	Validator Validator
	Recorder  Recorder
	Logger    Logger
}

// Adapter exposes the device automations of one integration domain.
//
// The Adapter holds no mutable state; all methods are safe for concurrent use.
type Adapter struct {
	domain    string
	entities  EntityRegistry
	states    StateReader
	watcher   StateWatcher
	services  ServiceBus
	validator Validator
	recorder  Recorder
	logger    Logger
	now       func() time.Time
}

// NewAdapter creates the device automation adapter for an integration domain.
func NewAdapter(domain string, deps Deps) *Adapter {
	a := &Adapter{
		domain:    domain,
		entities:  deps.Entities,
		states:    deps.States,
		watcher:   deps.Watcher,
		services:  deps.Services,
		validator: deps.Validator,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		now:       time.Now,
	}
	if a.validator == nil {
		a.validator = NewSchemaValidator(domain)
	}
	if a.recorder == nil {
		a.recorder = noopRecorder{}
	}
	if a.logger == nil {
		a.logger = noopLogger{}
	}
	return a
}

// Domain returns the integration domain the adapter serves.
func (a *Adapter) Domain() string {
	return a.domain
}

// entries returns the device's registry entries belonging to this domain.
func (a *Adapter) entries(ctx context.Context, deviceID string) ([]Entry, error) {
	all, err := a.entities.EntriesForDevice(ctx, deviceID)
	if err != nil {
		a.logger.Warn("listing device entities failed", "device_id", deviceID, "error", err)
		return nil, err
	}

	matched := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.Domain == a.domain {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (a *Adapter) target(e Entry, deviceID string) Target {
	return Target{
		Platform: PlatformDevice,
		DeviceID: deviceID,
		Domain:   a.domain,
		EntityID: e.EntityID,
	}
}

// ListTriggers returns the triggers available for a device: every trigger
// kind for every entry of this domain, in registry order then kind order.
func (a *Adapter) ListTriggers(ctx context.Context, deviceID string) ([]TriggerDescriptor, error) {
	entries, err := a.entries(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	kinds := TriggerKinds()
	out := make([]TriggerDescriptor, 0, len(entries)*len(kinds))
	for _, e := range entries {
		for _, k := range kinds {
			out = append(out, TriggerDescriptor{Target: a.target(e, deviceID), Kind: k})
		}
	}
	return out, nil
}

// ListConditions returns the conditions available for a device.
func (a *Adapter) ListConditions(ctx context.Context, deviceID string) ([]ConditionDescriptor, error) {
	entries, err := a.entries(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	kinds := ConditionKinds()
	out := make([]ConditionDescriptor, 0, len(entries)*len(kinds))
	for _, e := range entries {
		for _, k := range kinds {
			out = append(out, ConditionDescriptor{Target: a.target(e, deviceID), Kind: k})
		}
	}
	return out, nil
}

// ListActions returns the actions available for a device.
func (a *Adapter) ListActions(ctx context.Context, deviceID string) ([]ActionDescriptor, error) {
	entries, err := a.entries(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	kinds := ActionKinds()
	out := make([]ActionDescriptor, 0, len(entries)*len(kinds))
	for _, e := range entries {
		for _, k := range kinds {
			out = append(out, ActionDescriptor{Target: a.target(e, deviceID), Kind: k})
		}
	}
	return out, nil
}

// BuildConditionChecker turns a condition descriptor into a predicate.
//
// When validate is false the descriptor is assumed to have been validated
// already and is only decoded. The predicate reports true iff the entity's
// current state equals the state the condition kind expects.
func (a *Adapter) BuildConditionChecker(raw map[string]any, validate bool) (ConditionChecker, error) {
	var d ConditionDescriptor
	if validate {
		var err error
		if d, err = a.validator.ValidateCondition(raw); err != nil {
			return nil, err
		}
	} else if err := decodeLenient(SchemaCondition, raw, &d); err != nil {
		return nil, err
	}

	expected, err := d.Kind.ExpectedState()
	if err != nil {
		return nil, err
	}

	entityID := d.EntityID
	return func(_ context.Context, _ Variables) bool {
		return a.states.Current(entityID) == expected
	}, nil
}

// AttachTrigger registers action to run whenever the trigger's state
// transition occurs. The returned DetachFunc removes the registration and
// may be called any number of times.
func (a *Adapter) AttachTrigger(ctx context.Context, raw map[string]any, action TriggerAction, info AutomationInfo) (core.DetachFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := a.validator.ValidateTrigger(raw)
	if err != nil {
		return nil, err
	}
	from, to, err := d.Kind.Transition()
	if err != nil {
		return nil, err
	}

	handler := func(hctx context.Context, t core.Transition) {
		ev := TriggerEvent{
			Platform:    PlatformDevice,
			Kind:        d.Kind,
			DeviceID:    d.DeviceID,
			Domain:      d.Domain,
			EntityID:    t.EntityID,
			FromState:   t.From,
			ToState:     t.To,
			Description: fmt.Sprintf("%s %s", d.Kind, t.EntityID),
			Automation:  info.Name,
			Context:     t.Context,
			FiredAt:     t.At,
		}
		if ev.FiredAt.IsZero() {
			ev.FiredAt = a.now()
		}

		a.logger.Debug("device trigger fired",
			"domain", d.Domain,
			"entity_id", t.EntityID,
			"kind", string(d.Kind),
			"automation", info.Name,
		)
		a.recorder.RecordTrigger(hctx, ev)
		action(hctx, ev)
	}

	detach := a.watcher.WatchTransition(d.EntityID, from, to, handler, core.WatchMetadata{
		PlatformType: PlatformDevice,
		Name:         info.Name,
	})

	a.logger.Info("device trigger attached",
		"domain", d.Domain,
		"entity_id", d.EntityID,
		"kind", string(d.Kind),
		"automation", info.Name,
	)
	return detach, nil
}

// ExecuteAction performs the action's service call and blocks until it completes.
// Service bus errors are returned unchanged.
func (a *Adapter) ExecuteAction(ctx context.Context, raw map[string]any, _ Variables, origin *core.Context) error {
	d, err := a.validator.ValidateAction(raw)
	if err != nil {
		return err
	}
	service, err := d.Kind.Service()
	if err != nil {
		return err
	}

	data := map[string]any{core.AttrEntityID: d.EntityID}
	err = a.services.Call(ctx, a.domain, service, data, true, origin)
	a.recorder.RecordAction(ctx, d, origin, err)
	if err != nil {
		a.logger.Warn("device action failed",
			"domain", a.domain,
			"entity_id", d.EntityID,
			"service", service,
			"error", err,
		)
		return err
	}

	a.logger.Debug("device action executed",
		"domain", a.domain,
		"entity_id", d.EntityID,
		"service", service,
	)
	return nil
}
