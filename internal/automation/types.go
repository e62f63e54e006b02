package automation

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// PlatformDevice is the platform value carried by every device automation descriptor.
const PlatformDevice = "device"

// Descriptor map keys.
const (
	KeyPlatform = "platform"
	KeyDeviceID = "device_id"
	KeyDomain   = "domain"
	KeyEntityID = "entity_id"
	KeyKind     = "kind"

	// keyLegacyKind is accepted in place of KeyKind on input.
	keyLegacyKind = "type"
)

// TriggerKind is the vocabulary of device triggers.
type TriggerKind string

const (
	TriggerTurnedOn  TriggerKind = "turned_on"
	TriggerTurnedOff TriggerKind = "turned_off"
)

// ConditionKind is the vocabulary of device conditions.
type ConditionKind string

const (
	ConditionIsOn ConditionKind = "is_on"
)

// ActionKind is the vocabulary of device actions.
type ActionKind string

const (
	ActionTurnOn  ActionKind = "turn_on"
	ActionTurnOff ActionKind = "turn_off"
)

// triggerTable is the single source for trigger ordering, validation and
// the from/to transition each kind watches for.
var triggerTable = []struct {
	kind     TriggerKind
	from, to string
}{
	{TriggerTurnedOn, core.StateOff, core.StateOn},
	{TriggerTurnedOff, core.StateOn, core.StateOff},
}

// conditionTable maps each condition kind to the state it expects.
var conditionTable = []struct {
	kind  ConditionKind
	state string
}{
	{ConditionIsOn, core.StateOn},
}

// actionTable maps each action kind to the service it calls.
var actionTable = []struct {
	kind    ActionKind
	service string
}{
	{ActionTurnOn, core.ServiceTurnOn},
	{ActionTurnOff, core.ServiceTurnOff},
}

// TriggerKinds returns the supported trigger kinds in listing order.
func TriggerKinds() []TriggerKind {
	kinds := make([]TriggerKind, len(triggerTable))
	for i, row := range triggerTable {
		kinds[i] = row.kind
	}
	return kinds
}

// ConditionKinds returns the supported condition kinds in listing order.
func ConditionKinds() []ConditionKind {
	kinds := make([]ConditionKind, len(conditionTable))
	for i, row := range conditionTable {
		kinds[i] = row.kind
	}
	return kinds
}

// ActionKinds returns the supported action kinds in listing order.
func ActionKinds() []ActionKind {
	kinds := make([]ActionKind, len(actionTable))
	for i, row := range actionTable {
		kinds[i] = row.kind
	}
	return kinds
}

// Transition returns the state change the trigger kind watches for.
func (k TriggerKind) Transition() (from, to string, err error) {
	for _, row := range triggerTable {
		if row.kind == k {
			return row.from, row.to, nil
		}
	}
	return "", "", schemaErr(SchemaTrigger, KeyKind, "unsupported value %q", string(k))
}

// ExpectedState returns the entity state the condition tests for.
func (k ConditionKind) ExpectedState() (string, error) {
	for _, row := range conditionTable {
		if row.kind == k {
			return row.state, nil
		}
	}
	return "", schemaErr(SchemaCondition, KeyKind, "unsupported value %q", string(k))
}

// Service returns the service name the action kind calls.
func (k ActionKind) Service() (string, error) {
	for _, row := range actionTable {
		if row.kind == k {
			return row.service, nil
		}
	}
	return "", schemaErr(SchemaAction, KeyKind, "unsupported value %q", string(k))
}

// Target holds the fields common to every device automation descriptor.
type Target struct {
	Platform string `json:"platform" mapstructure:"platform"`
	DeviceID string `json:"device_id" mapstructure:"device_id"`
	Domain   string `json:"domain" mapstructure:"domain"`
	EntityID string `json:"entity_id" mapstructure:"entity_id"`
}

func (t Target) toMap(kind string) map[string]any {
	return map[string]any{
		KeyPlatform: t.Platform,
		KeyDeviceID: t.DeviceID,
		KeyDomain:   t.Domain,
		KeyEntityID: t.EntityID,
		KeyKind:     kind,
	}
}

// TriggerDescriptor identifies one device trigger.
type TriggerDescriptor struct {
	Target `mapstructure:",squash"`
	Kind   TriggerKind `json:"kind" mapstructure:"kind"`
}

// ToMap returns the flat wire form of the descriptor.
func (d TriggerDescriptor) ToMap() map[string]any {
	return d.toMap(string(d.Kind))
}

// ConditionDescriptor identifies one device condition.
type ConditionDescriptor struct {
	Target `mapstructure:",squash"`
	Kind   ConditionKind `json:"kind" mapstructure:"kind"`
}

// ToMap returns the flat wire form of the descriptor.
func (d ConditionDescriptor) ToMap() map[string]any {
	return d.toMap(string(d.Kind))
}

// ActionDescriptor identifies one device action.
type ActionDescriptor struct {
	Target `mapstructure:",squash"`
	Kind   ActionKind `json:"kind" mapstructure:"kind"`
}

// ToMap returns the flat wire form of the descriptor.
func (d ActionDescriptor) ToMap() map[string]any {
	return d.toMap(string(d.Kind))
}

// Entry is the read-only view of an entity registry entry.
type Entry struct {
	EntityID string
	Domain   string
	DeviceID string
}

// Variables carries template variables from the automation engine.
type Variables map[string]any

// AutomationInfo describes the automation a trigger is attached for.
type AutomationInfo struct {
	Name      string
	Variables Variables
}

// TriggerEvent is passed to a TriggerAction when an attached trigger fires.
type TriggerEvent struct {
	Platform    string        `json:"platform"`
	Kind        TriggerKind   `json:"kind"`
	DeviceID    string        `json:"device_id"`
	Domain      string        `json:"domain"`
	EntityID    string        `json:"entity_id"`
	FromState   string        `json:"from_state"`
	ToState     string        `json:"to_state"`
	Description string        `json:"description"`
	Automation  string        `json:"automation,omitempty"`
	Context     *core.Context `json:"context,omitempty"`
	FiredAt     time.Time     `json:"fired_at"`
}

// TriggerAction is invoked each time an attached trigger fires.
type TriggerAction func(ctx context.Context, ev TriggerEvent)

// ConditionChecker evaluates a device condition against current state.
type ConditionChecker func(ctx context.Context, vars Variables) bool
