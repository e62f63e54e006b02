package history

import (
	"context"

	"github.com/nerrad567/gray-logic-automation/internal/audit"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/core"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
)

// AuditWriter stores audit rows. *audit.SQLiteRepository satisfies it.
type AuditWriter interface {
	Create(ctx context.Context, log *audit.AuditLog) error
}

// PointWriter queues time-series points. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteAutomationEvent(ev influxdb.AutomationEvent)
}

// EventPublisher publishes JSON events. *mqtt.Client satisfies it.
type EventPublisher interface {
	PublishJSON(topic string, v any, qos byte) error
}

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Sinks configures where a Recorder writes. Nil members are skipped.
type Sinks struct {
	Audit   AuditWriter
	Points  PointWriter
	Events  EventPublisher
	Metrics *Metrics
	Logger  Logger
}

// Recorder fans automation activity out to its sinks.
type Recorder struct {
	sinks Sinks
}

var _ automation.Recorder = (*Recorder)(nil)

// NewRecorder creates a Recorder.
func NewRecorder(sinks Sinks) *Recorder {
	if sinks.Logger == nil {
		sinks.Logger = noopLogger{}
	}
	return &Recorder{sinks: sinks}
}

// RecordTrigger records a fired trigger.
func (r *Recorder) RecordTrigger(ctx context.Context, ev automation.TriggerEvent) {
	contextID, userID := originIDs(ev.Context)

	if r.sinks.Metrics != nil {
		r.sinks.Metrics.TriggersFired.WithLabelValues(ev.Domain, string(ev.Kind)).Inc()
	}

	if r.sinks.Points != nil {
		r.sinks.Points.WriteAutomationEvent(influxdb.AutomationEvent{
			Type:      influxdb.EventTrigger,
			Domain:    ev.Domain,
			Kind:      string(ev.Kind),
			EntityID:  ev.EntityID,
			DeviceID:  ev.DeviceID,
			ContextID: contextID,
			Success:   true,
			At:        ev.FiredAt,
		})
	}

	if r.sinks.Audit != nil {
		details := map[string]any{
			"kind":        string(ev.Kind),
			"domain":      ev.Domain,
			"device_id":   ev.DeviceID,
			"from_state":  ev.FromState,
			"to_state":    ev.ToState,
			"description": ev.Description,
			"context_id":  contextID,
		}
		if ev.Automation != "" {
			details["automation"] = ev.Automation
		}
		r.writeAudit(ctx, &audit.AuditLog{
			Action:     audit.ActionTriggerFired,
			EntityType: audit.EntityTypeDevice,
			EntityID:   ev.EntityID,
			UserID:     userID,
			Source:     audit.SourceAutomation,
			Details:    details,
			CreatedAt:  ev.FiredAt,
		})
	}

	if r.sinks.Events != nil {
		topic := mqtt.Topics{}.TriggerFired(ev.Domain, string(ev.Kind))
		if err := r.sinks.Events.PublishJSON(topic, ev, 0); err != nil {
			r.sinks.Logger.Warn("failed to publish trigger event", "topic", topic, "error", err)
		}
	}
}

// RecordAction records an executed action and its outcome.
func (r *Recorder) RecordAction(ctx context.Context, d automation.ActionDescriptor, origin *core.Context, err error) {
	contextID, userID := originIDs(origin)

	result := ResultSuccess
	action := audit.ActionActionExecuted
	if err != nil {
		result = ResultError
		action = audit.ActionActionFailed
	}

	if r.sinks.Metrics != nil {
		r.sinks.Metrics.Actions.WithLabelValues(d.Domain, string(d.Kind), result).Inc()
	}

	if r.sinks.Points != nil {
		r.sinks.Points.WriteAutomationEvent(influxdb.AutomationEvent{
			Type:      influxdb.EventAction,
			Domain:    d.Domain,
			Kind:      string(d.Kind),
			EntityID:  d.EntityID,
			DeviceID:  d.DeviceID,
			ContextID: contextID,
			Success:   err == nil,
		})
	}

	if r.sinks.Audit != nil {
		details := map[string]any{
			"kind":       string(d.Kind),
			"domain":     d.Domain,
			"device_id":  d.DeviceID,
			"context_id": contextID,
		}
		if err != nil {
			details["error"] = err.Error()
		}
		r.writeAudit(ctx, &audit.AuditLog{
			Action:     action,
			EntityType: audit.EntityTypeDevice,
			EntityID:   d.EntityID,
			UserID:     userID,
			Source:     audit.SourceAutomation,
			Details:    details,
		})
	}
}

// writeAudit ignores cancellation of ctx.
func (r *Recorder) writeAudit(ctx context.Context, log *audit.AuditLog) {
	if err := r.sinks.Audit.Create(context.WithoutCancel(ctx), log); err != nil {
		r.sinks.Logger.Warn("failed to write audit log",
			"action", log.Action,
			"entity_id", log.EntityID,
			"error", err,
		)
	}
}

func originIDs(c *core.Context) (contextID, userID string) {
	if c == nil {
		return "", ""
	}
	return c.ID, c.UserID
}
