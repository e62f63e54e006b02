// Package history records device automation activity.
//
// Recorder implements automation.Recorder and fans each fired trigger and
// executed action out to the configured sinks:
//
//   - audit_logs rows (SQLite)
//   - device_automation points (InfluxDB)
//   - Prometheus counters
//   - a non-retained MQTT event on graylogic/automation/{domain}/trigger/{kind}
//
// Every sink is optional. Sink failures are logged and never reach the
// automation that fired.
package history
