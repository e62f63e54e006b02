package automation

import (
	"errors"
	"strings"
	"testing"
)

func validAction() map[string]any {
	return map[string]any{
		"platform":  "device",
		"device_id": "d1",
		"domain":    "demo",
		"entity_id": "light.x",
		"kind":      "turn_on",
	}
}

func TestValidateAction(t *testing.T) {
	v := NewSchemaValidator("demo")

	tests := []struct {
		name      string
		mutate    func(m map[string]any)
		wantField string
	}{
		{"valid", func(map[string]any) {}, ""},
		{"legacy type key", func(m map[string]any) { delete(m, "kind"); m["type"] = "turn_off" }, ""},
		{"missing device_id", func(m map[string]any) { delete(m, "device_id") }, KeyDeviceID},
		{"missing entity_id", func(m map[string]any) { delete(m, "entity_id") }, KeyEntityID},
		{"empty device_id", func(m map[string]any) { m["device_id"] = " " }, KeyDeviceID},
		{"wrong platform", func(m map[string]any) { m["platform"] = "state" }, KeyPlatform},
		{"other domain", func(m map[string]any) { m["domain"] = "hue" }, KeyDomain},
		{"uppercase entity", func(m map[string]any) { m["entity_id"] = "Light.X" }, KeyEntityID},
		{"entity without object id", func(m map[string]any) { m["entity_id"] = "light" }, KeyEntityID},
		{"unknown kind", func(m map[string]any) { m["kind"] = "toggle" }, KeyKind},
		{"unknown key", func(m map[string]any) { m["brightness"] = 100 }, ""},
		{"kind and type both set", func(m map[string]any) { m["type"] = "turn_on" }, ""},
		{"wrong value type", func(m map[string]any) { m["device_id"] = 42 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validAction()
			tt.mutate(raw)

			d, err := v.ValidateAction(raw)
			if tt.name == "valid" || tt.name == "legacy type key" {
				if err != nil {
					t.Fatalf("ValidateAction() error = %v", err)
				}
				if d.EntityID != "light.x" || d.Domain != "demo" {
					t.Errorf("ValidateAction() = %+v", d)
				}
				return
			}

			var se *SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("ValidateAction() error = %v, want *SchemaError", err)
			}
			if !errors.Is(err, ErrSchema) {
				t.Error("errors.Is(err, ErrSchema) = false")
			}
			if se.Schema != SchemaAction {
				t.Errorf("Schema = %s, want %s", se.Schema, SchemaAction)
			}
			if tt.wantField != "" && se.Field != tt.wantField {
				t.Errorf("Field = %q, want %q (%v)", se.Field, tt.wantField, err)
			}
		})
	}
}

func TestValidateAction_LegacyKindValue(t *testing.T) {
	raw := validAction()
	delete(raw, "kind")
	raw["type"] = "turn_off"

	d, err := NewSchemaValidator("demo").ValidateAction(raw)
	if err != nil {
		t.Fatalf("ValidateAction() error = %v", err)
	}
	if d.Kind != ActionTurnOff {
		t.Errorf("Kind = %s, want %s", d.Kind, ActionTurnOff)
	}
	if _, ok := raw["type"]; !ok {
		t.Error("input map was modified")
	}
}

func TestValidateTrigger_SchemaID(t *testing.T) {
	raw := validAction()
	raw["kind"] = "turn_on"

	_, err := NewSchemaValidator("demo").ValidateTrigger(raw)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("ValidateTrigger() error = %v, want *SchemaError", err)
	}
	if se.Schema != SchemaTrigger || se.Field != KeyKind {
		t.Errorf("error = %+v, want trigger/kind", se)
	}
}

func TestValidateCondition(t *testing.T) {
	raw := validAction()
	raw["kind"] = "is_on"

	d, err := NewSchemaValidator("demo").ValidateCondition(raw)
	if err != nil {
		t.Fatalf("ValidateCondition() error = %v", err)
	}
	if d.Kind != ConditionIsOn {
		t.Errorf("Kind = %s, want %s", d.Kind, ConditionIsOn)
	}
}

func TestValidate_NilDescriptor(t *testing.T) {
	_, err := NewSchemaValidator("demo").ValidateCondition(nil)
	if !errors.Is(err, ErrSchema) {
		t.Errorf("ValidateCondition(nil) error = %v, want ErrSchema", err)
	}
}

func TestSchemaError_Error(t *testing.T) {
	err := schemaErr(SchemaAction, KeyKind, "unsupported value %q", "toggle")
	want := `action schema: kind: unsupported value "toggle"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	noField := schemaErr(SchemaTrigger, "", "descriptor is empty")
	if !strings.HasPrefix(noField.Error(), "trigger schema: ") {
		t.Errorf("Error() = %q", noField.Error())
	}
}

func TestKindTables(t *testing.T) {
	for _, k := range TriggerKinds() {
		from, to, err := k.Transition()
		if err != nil || from == to {
			t.Errorf("%s.Transition() = %q, %q, %v", k, from, to, err)
		}
	}
	if from, to, _ := TriggerTurnedOn.Transition(); from != "off" || to != "on" {
		t.Errorf("turned_on transition = %s→%s, want off→on", from, to)
	}
	if from, to, _ := TriggerTurnedOff.Transition(); from != "on" || to != "off" {
		t.Errorf("turned_off transition = %s→%s, want on→off", from, to)
	}
	for _, k := range ActionKinds() {
		if svc, err := k.Service(); err != nil || svc != string(k) {
			t.Errorf("%s.Service() = %q, %v", k, svc, err)
		}
	}
	if state, _ := ConditionIsOn.ExpectedState(); state != "on" {
		t.Errorf("is_on expected state = %q, want on", state)
	}
	if _, err := ActionKind("explode").Service(); !errors.Is(err, ErrSchema) {
		t.Errorf("unknown action kind error = %v, want ErrSchema", err)
	}
	if _, _, err := TriggerKind("").Transition(); !errors.Is(err, ErrSchema) {
		t.Errorf("empty trigger kind error = %v, want ErrSchema", err)
	}
	if _, err := ConditionKind("is_off").ExpectedState(); !errors.Is(err, ErrSchema) {
		t.Errorf("unknown condition kind error = %v, want ErrSchema", err)
	}
}
