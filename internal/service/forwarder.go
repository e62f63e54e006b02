package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automation/internal/core"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
)

// Publisher is the part of the MQTT client the forwarder needs.
type Publisher interface {
	PublishJSON(topic string, v any, qos byte) error
}

// Command is the message a protocol bridge receives on
// graylogic/command/{integration}/{entity_id}.
type Command struct {
	ID        string `json:"id"`
	EntityID  string `json:"entity_id"`
	Service   string `json:"service"`
	ContextID string `json:"context_id"`
	UserID    string `json:"user_id,omitempty"`
	ParentID  string `json:"parent_id,omitempty"`
	Source    string `json:"source"`
}

// commandSource marks commands issued by this service.
const commandSource = "automation"

// MQTTForwarder turns service calls into bridge commands.
//
// A call succeeds once the command is accepted by the broker; the bridge
// confirms the change by publishing the new state.
type MQTTForwarder struct {
	pub    Publisher
	qos    byte
	logger Logger
}

// NewMQTTForwarder creates a forwarder publishing at qos.
func NewMQTTForwarder(pub Publisher, qos byte) *MQTTForwarder {
	return &MQTTForwarder{pub: pub, qos: qos, logger: noopLogger{}}
}

// SetLogger sets the logger for the forwarder.
func (f *MQTTForwarder) SetLogger(logger Logger) {
	f.logger = logger
}

// RegisterOn registers turn_on and turn_off for domain on bus.
func (f *MQTTForwarder) RegisterOn(bus *Bus, domain string) error {
	return registerSwitch(bus, domain, f.Handle)
}

// Handle publishes the call as a Command.
func (f *MQTTForwarder) Handle(ctx context.Context, call Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entityID, err := call.EntityID()
	if err != nil {
		return err
	}

	cmd := Command{
		ID:        uuid.NewString(),
		EntityID:  entityID,
		Service:   call.Service,
		ContextID: call.Context.ID,
		UserID:    call.Context.UserID,
		ParentID:  call.Context.ParentID,
		Source:    commandSource,
	}

	topic := mqtt.Topics{}.EntityCommand(call.Domain, entityID)
	if err := f.pub.PublishJSON(topic, cmd, f.qos); err != nil {
		return fmt.Errorf("publishing command to %s: %w", topic, err)
	}

	f.logger.Info("device command sent",
		"entity_id", entityID,
		"service", call.Service,
		"command_id", cmd.ID,
		"context_id", cmd.ContextID,
	)
	return nil
}

// registerSwitch registers h for the on/off services of domain.
func registerSwitch(bus *Bus, domain string, h Handler) error {
	for _, svc := range []string{core.ServiceTurnOn, core.ServiceTurnOff} {
		if err := bus.Register(domain, svc, h); err != nil {
			return err
		}
	}
	return nil
}
