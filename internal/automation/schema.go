package automation

import (
	"errors"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// SchemaID names the schema a raw descriptor is validated against.
type SchemaID string

const (
	SchemaTrigger   SchemaID = "trigger"
	SchemaCondition SchemaID = "condition"
	SchemaAction    SchemaID = "action"
)

// requiredKeys must be present in every raw descriptor.
var requiredKeys = []string{KeyPlatform, KeyDeviceID, KeyDomain, KeyEntityID, KeyKind}

// Validator turns raw descriptor maps into typed descriptors.
// Every method returns a *SchemaError on failure.
type Validator interface {
	ValidateTrigger(raw map[string]any) (TriggerDescriptor, error)
	ValidateCondition(raw map[string]any) (ConditionDescriptor, error)
	ValidateAction(raw map[string]any) (ActionDescriptor, error)
}

// SchemaValidator is the Validator for a single integration domain.
//
// It rejects unknown keys, requires platform "device", a non-empty device_id,
// a domain equal to the integration's, a well-formed entity_id and a kind
// from the schema's vocabulary.
type SchemaValidator struct {
	domain string
}

// NewSchemaValidator creates a validator bound to an integration domain.
func NewSchemaValidator(domain string) *SchemaValidator {
	return &SchemaValidator{domain: domain}
}

// ValidateTrigger validates raw against the trigger schema.
func (v *SchemaValidator) ValidateTrigger(raw map[string]any) (TriggerDescriptor, error) {
	var d TriggerDescriptor
	if err := decodeStrict(SchemaTrigger, raw, &d); err != nil {
		return TriggerDescriptor{}, err
	}
	if err := v.checkTarget(SchemaTrigger, d.Target); err != nil {
		return TriggerDescriptor{}, err
	}
	if _, _, err := d.Kind.Transition(); err != nil {
		return TriggerDescriptor{}, err
	}
	return d, nil
}

// ValidateCondition validates raw against the condition schema.
func (v *SchemaValidator) ValidateCondition(raw map[string]any) (ConditionDescriptor, error) {
	var d ConditionDescriptor
	if err := decodeStrict(SchemaCondition, raw, &d); err != nil {
		return ConditionDescriptor{}, err
	}
	if err := v.checkTarget(SchemaCondition, d.Target); err != nil {
		return ConditionDescriptor{}, err
	}
	if _, err := d.Kind.ExpectedState(); err != nil {
		return ConditionDescriptor{}, err
	}
	return d, nil
}

// ValidateAction validates raw against the action schema.
func (v *SchemaValidator) ValidateAction(raw map[string]any) (ActionDescriptor, error) {
	var d ActionDescriptor
	if err := decodeStrict(SchemaAction, raw, &d); err != nil {
		return ActionDescriptor{}, err
	}
	if err := v.checkTarget(SchemaAction, d.Target); err != nil {
		return ActionDescriptor{}, err
	}
	if _, err := d.Kind.Service(); err != nil {
		return ActionDescriptor{}, err
	}
	return d, nil
}

func (v *SchemaValidator) checkTarget(schema SchemaID, t Target) error {
	if t.Platform != PlatformDevice {
		return schemaErr(schema, KeyPlatform, "expected %q, got %q", PlatformDevice, t.Platform)
	}
	if strings.TrimSpace(t.DeviceID) == "" {
		return schemaErr(schema, KeyDeviceID, "must be a non-empty string")
	}
	if t.Domain == "" {
		return schemaErr(schema, KeyDomain, "must be a non-empty string")
	}
	if v.domain != "" && t.Domain != v.domain {
		return schemaErr(schema, KeyDomain, "expected %q, got %q", v.domain, t.Domain)
	}
	if !core.ValidEntityID(t.EntityID) {
		return schemaErr(schema, KeyEntityID, "invalid entity ID %q", t.EntityID)
	}
	return nil
}

// decodeStrict decodes raw into out, rejecting missing required keys,
// unknown keys and type mismatches.
func decodeStrict(schema SchemaID, raw map[string]any, out any) error {
	if raw == nil {
		return schemaErr(schema, "", "descriptor is empty")
	}
	in := normaliseKeys(raw)

	for _, key := range requiredKeys {
		if _, ok := in[key]; !ok {
			return schemaErr(schema, key, "required key not provided")
		}
	}

	return decode(schema, in, out, true)
}

// decodeLenient decodes raw into out without presence or unknown-key checks.
// Used when the caller has already validated the descriptor.
func decodeLenient(schema SchemaID, raw map[string]any, out any) error {
	return decode(schema, normaliseKeys(raw), out, false)
}

func decode(schema SchemaID, in map[string]any, out any, strict bool) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: strict,
		TagName:     "mapstructure",
	})
	if err != nil {
		return schemaErr(schema, "", "building decoder: %v", err)
	}

	if err := dec.Decode(in); err != nil {
		var mErr *mapstructure.Error
		if errors.As(err, &mErr) {
			return schemaErr(schema, "", "%s", strings.Join(mErr.Errors, "; "))
		}
		return schemaErr(schema, "", "%v", err)
	}
	return nil
}

// normaliseKeys returns a copy of raw with the legacy "type" key renamed to
// "kind" when "kind" is absent.
func normaliseKeys(raw map[string]any) map[string]any {
	in := make(map[string]any, len(raw))
	for k, val := range raw {
		in[k] = val
	}
	if legacy, ok := in[keyLegacyKind]; ok {
		if _, has := in[KeyKind]; !has {
			in[KeyKind] = legacy
			delete(in, keyLegacyKind)
		}
	}
	return in
}
