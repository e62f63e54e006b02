package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-automation/internal/core"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
)

// Subscriber is the part of the MQTT client the Ingestor needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// statePayload is the JSON body of a bridge state message.
//
//	{"entity_id": "light.kitchen", "state": "on", "context_id": "...", "user_id": "..."}
//
// entity_id may be omitted; it then defaults to the last topic segment.
type statePayload struct {
	EntityID  string `json:"entity_id"`
	State     string `json:"state"`
	ContextID string `json:"context_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// Ingestor feeds bridge state messages from MQTT into a Machine.
type Ingestor struct {
	sub     Subscriber
	machine *Machine
	topic   string
	qos     byte
	logger  Logger
}

// NewIngestor creates an ingestor for topic. An empty topic subscribes to
// every bridge state message.
func NewIngestor(sub Subscriber, machine *Machine, topic string, qos byte) *Ingestor {
	if topic == "" {
		topic = mqtt.Topics{}.AllEntityStates()
	}
	return &Ingestor{
		sub:     sub,
		machine: machine,
		topic:   topic,
		qos:     qos,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the ingestor.
func (i *Ingestor) SetLogger(logger Logger) {
	i.logger = logger
}

// Start subscribes to the state topic.
func (i *Ingestor) Start() error {
	if err := i.sub.Subscribe(i.topic, i.qos, i.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", i.topic, err)
	}
	i.logger.Info("state ingest started", "topic", i.topic)
	return nil
}

// Stop unsubscribes from the state topic.
func (i *Ingestor) Stop() error {
	return i.sub.Unsubscribe(i.topic)
}

func (i *Ingestor) handleMessage(topic string, payload []byte) error {
	var msg statePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if msg.EntityID == "" {
		msg.EntityID = topic[strings.LastIndex(topic, "/")+1:]
	}

	origin := core.NewContext(msg.UserID, "")
	if msg.ContextID != "" {
		origin.ID = msg.ContextID
	}

	if err := i.machine.Set(context.Background(), msg.EntityID, msg.State, origin); err != nil {
		return fmt.Errorf("applying state from %s: %w", topic, err)
	}
	return nil
}
