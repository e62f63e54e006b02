package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

type published struct {
	topic string
	v     any
	qos   byte
}

type mockPublisher struct {
	msgs []published
	err  error
}

func (m *mockPublisher) PublishJSON(topic string, v any, qos byte) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, published{topic, v, qos})
	return nil
}

func TestMQTTForwarder_PublishesCommand(t *testing.T) {
	pub := &mockPublisher{}
	bus := NewBus(0)
	if err := NewMQTTForwarder(pub, 1).RegisterOn(bus, "knx"); err != nil {
		t.Fatalf("RegisterOn() error = %v", err)
	}

	origin := &core.Context{ID: "ctx-1", UserID: "u1", ParentID: "p1"}
	data := map[string]any{core.AttrEntityID: "light.kitchen"}
	if err := bus.Call(context.Background(), "knx", core.ServiceTurnOff, data, true, origin); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.topic != "graylogic/command/knx/light.kitchen" || msg.qos != 1 {
		t.Errorf("topic = %s qos = %d", msg.topic, msg.qos)
	}

	cmd, ok := msg.v.(Command)
	if !ok {
		t.Fatalf("payload type %T, want Command", msg.v)
	}
	if cmd.ID == "" || cmd.EntityID != "light.kitchen" || cmd.Service != core.ServiceTurnOff {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.ContextID != "ctx-1" || cmd.UserID != "u1" || cmd.ParentID != "p1" || cmd.Source != "automation" {
		t.Errorf("command attribution = %+v", cmd)
	}
}

func TestMQTTForwarder_Errors(t *testing.T) {
	pubErr := errors.New("not connected")
	fwd := NewMQTTForwarder(&mockPublisher{err: pubErr}, 1)
	origin := core.NewContext("", "")

	err := fwd.Handle(context.Background(), Call{
		Domain: "knx", Service: "turn_on", Context: origin,
		Data: map[string]any{core.AttrEntityID: "light.a"},
	})
	if !errors.Is(err, pubErr) {
		t.Errorf("Handle() error = %v, want publish error", err)
	}

	err = fwd.Handle(context.Background(), Call{Domain: "knx", Service: "turn_on", Context: origin})
	if !errors.Is(err, ErrInvalidServiceData) {
		t.Errorf("Handle(no entity) error = %v, want ErrInvalidServiceData", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = fwd.Handle(ctx, Call{Domain: "knx", Service: "turn_on", Context: origin})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Handle(cancelled) error = %v", err)
	}
}

func TestRegisterOn_Twice(t *testing.T) {
	bus := NewBus(0)
	fwd := NewMQTTForwarder(&mockPublisher{}, 1)
	if err := fwd.RegisterOn(bus, "knx"); err != nil {
		t.Fatalf("RegisterOn() error = %v", err)
	}
	if err := NewLocalSwitch(nil).RegisterOn(bus, "knx"); !errors.Is(err, ErrServiceExists) {
		t.Errorf("RegisterOn(dup) error = %v, want ErrServiceExists", err)
	}
}
