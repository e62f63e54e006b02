package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/nerrad567/gray-logic-automation/internal/audit"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/core"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/influxdb"
)

type mockAudit struct {
	logs []*audit.AuditLog
	err  error
	ctx  context.Context
}

func (m *mockAudit) Create(ctx context.Context, log *audit.AuditLog) error {
	m.ctx = ctx
	if m.err != nil {
		return m.err
	}
	m.logs = append(m.logs, log)
	return nil
}

type mockPoints struct {
	events []influxdb.AutomationEvent
}

func (m *mockPoints) WriteAutomationEvent(ev influxdb.AutomationEvent) {
	m.events = append(m.events, ev)
}

type mockEvents struct {
	topics []string
	err    error
}

func (m *mockEvents) PublishJSON(topic string, _ any, _ byte) error {
	m.topics = append(m.topics, topic)
	return m.err
}

type mockLogger struct {
	warns []string
}

func (m *mockLogger) Debug(string, ...any) {}
func (m *mockLogger) Warn(msg string, _ ...any) {
	m.warns = append(m.warns, msg)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

type fixture struct {
	rec     *Recorder
	audit   *mockAudit
	points  *mockPoints
	events  *mockEvents
	metrics *Metrics
	logger  *mockLogger
}

func newFixture() *fixture {
	f := &fixture{
		audit:   &mockAudit{},
		points:  &mockPoints{},
		events:  &mockEvents{},
		metrics: NewMetrics(prometheus.NewRegistry()),
		logger:  &mockLogger{},
	}
	f.rec = NewRecorder(Sinks{
		Audit:   f.audit,
		Points:  f.points,
		Events:  f.events,
		Metrics: f.metrics,
		Logger:  f.logger,
	})
	return f
}

func triggerEvent() automation.TriggerEvent {
	return automation.TriggerEvent{
		Platform:    automation.PlatformDevice,
		Kind:        automation.TriggerTurnedOn,
		DeviceID:    "dev-1",
		Domain:      "knx",
		EntityID:    "light.kitchen",
		FromState:   core.StateOff,
		ToState:     core.StateOn,
		Description: "turned_on light.kitchen",
		Automation:  "Kitchen lights",
		Context:     &core.Context{ID: "ctx-1", UserID: "u1"},
		FiredAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecorder_RecordTrigger(t *testing.T) {
	f := newFixture()

	f.rec.RecordTrigger(context.Background(), triggerEvent())

	if got := counterValue(t, f.metrics.TriggersFired.WithLabelValues("knx", "turned_on")); got != 1 {
		t.Errorf("triggers_fired_total = %v, want 1", got)
	}

	if len(f.points.events) != 1 {
		t.Fatalf("points = %d, want 1", len(f.points.events))
	}
	p := f.points.events[0]
	if p.Type != influxdb.EventTrigger || p.Kind != "turned_on" || p.ContextID != "ctx-1" || !p.Success {
		t.Errorf("point = %+v", p)
	}

	if len(f.audit.logs) != 1 {
		t.Fatalf("audit logs = %d, want 1", len(f.audit.logs))
	}
	log := f.audit.logs[0]
	if log.Action != audit.ActionTriggerFired || log.EntityID != "light.kitchen" || log.UserID != "u1" {
		t.Errorf("audit log = %+v", log)
	}
	if log.Details["automation"] != "Kitchen lights" || log.Details["to_state"] != "on" {
		t.Errorf("audit details = %v", log.Details)
	}

	if len(f.events.topics) != 1 || f.events.topics[0] != "graylogic/automation/knx/trigger/turned_on" {
		t.Errorf("published topics = %v", f.events.topics)
	}
}

func TestRecorder_RecordAction(t *testing.T) {
	f := newFixture()
	d := automation.ActionDescriptor{
		Target: automation.Target{Platform: "device", DeviceID: "dev-1", Domain: "knx", EntityID: "light.kitchen"},
		Kind:   automation.ActionTurnOff,
	}

	f.rec.RecordAction(context.Background(), d, core.NewContext("u2", ""), nil)
	f.rec.RecordAction(context.Background(), d, nil, errors.New("bridge offline"))

	if got := counterValue(t, f.metrics.Actions.WithLabelValues("knx", "turn_off", ResultSuccess)); got != 1 {
		t.Errorf("actions_total{success} = %v, want 1", got)
	}
	if got := counterValue(t, f.metrics.Actions.WithLabelValues("knx", "turn_off", ResultError)); got != 1 {
		t.Errorf("actions_total{error} = %v, want 1", got)
	}

	if len(f.audit.logs) != 2 {
		t.Fatalf("audit logs = %d, want 2", len(f.audit.logs))
	}
	if f.audit.logs[0].Action != audit.ActionActionExecuted || f.audit.logs[0].UserID != "u2" {
		t.Errorf("first log = %+v", f.audit.logs[0])
	}
	failed := f.audit.logs[1]
	if failed.Action != audit.ActionActionFailed || failed.Details["error"] != "bridge offline" {
		t.Errorf("failed log = %+v", failed)
	}

	if len(f.points.events) != 2 || f.points.events[1].Success {
		t.Errorf("points = %+v", f.points.events)
	}
	if len(f.events.topics) != 0 {
		t.Errorf("actions should not publish trigger events, got %v", f.events.topics)
	}
}

func TestRecorder_SinkFailuresAreLogged(t *testing.T) {
	f := newFixture()
	f.audit.err = errors.New("disk full")
	f.events.err = errors.New("not connected")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.rec.RecordTrigger(ctx, triggerEvent())

	if len(f.logger.warns) != 2 {
		t.Errorf("warnings = %v, want audit and publish failures", f.logger.warns)
	}
	if f.audit.ctx.Err() != nil {
		t.Error("audit write should not inherit cancellation")
	}
}

func TestRecorder_NoSinks(t *testing.T) {
	rec := NewRecorder(Sinks{})
	rec.RecordTrigger(context.Background(), triggerEvent())
	rec.RecordAction(context.Background(), automation.ActionDescriptor{}, nil, nil)
}

func TestNewMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("registering twice should panic")
		}
	}()
	NewMetrics(reg)
}
