package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAutomation is the measurement automation events are written to.
const MeasurementAutomation = "device_automation"

// EventType distinguishes trigger firings from action executions.
type EventType string

const (
	EventTrigger EventType = "trigger"
	EventAction  EventType = "action"
)

// AutomationEvent is one fired trigger or executed action.
type AutomationEvent struct {
	Type      EventType
	Domain    string
	Kind      string
	EntityID  string
	DeviceID  string
	ContextID string
	Success   bool
	At        time.Time
}

// WriteAutomationEvent queues an automation event for writing.
//
// This is non-blocking; the point is batched and written asynchronously.
// Write failures are reported via SetOnError. Events are dropped silently
// after Close.
//
// Parameters:
//   - ev: The fired trigger or executed action; a zero At means now
//
// Example:
//
//	client.WriteAutomationEvent(influxdb.AutomationEvent{
//	    Type:     influxdb.EventAction,
//	    Domain:   "knx",
//	    Kind:     "turn_on",
//	    EntityID: "light.kitchen",
//	    Success:  true,
//	})
func (c *Client) WriteAutomationEvent(ev AutomationEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(AutomationPoint(ev))
}

// AutomationPoint converts ev to a point.
//
// Tags: event, domain, kind, entity_id. Fields: device_id, context_id,
// success and a count of 1 for easy summing.
func AutomationPoint(ev AutomationEvent) *write.Point {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := map[string]any{
		"count":   int64(1),
		"success": ev.Success,
	}
	if ev.DeviceID != "" {
		fields["device_id"] = ev.DeviceID
	}
	if ev.ContextID != "" {
		fields["context_id"] = ev.ContextID
	}

	return write.NewPoint(
		MeasurementAutomation,
		map[string]string{
			"event":     string(ev.Type),
			"domain":    ev.Domain,
			"kind":      ev.Kind,
			"entity_id": ev.EntityID,
		},
		fields,
		at,
	)
}
