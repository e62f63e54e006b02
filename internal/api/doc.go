// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic automation service.
//
// This package provides:
//   - device automation endpoints (list triggers, conditions and actions;
//     check a condition; execute an action)
//   - entity registry and entity state endpoints
//   - the audit trail
//   - a WebSocket hub streaming state changes and fired device triggers
//   - Prometheus metrics for HTTP traffic
//
// # Security
//
// Every route except /health and /metrics requires a JWT bearer token
// signed with security.jwt.secret. WebSocket clients pass the same token
// as the "token" query parameter. The role claim is checked against
// auth.HasPermission per route.
//
// # Errors
//
// Errors are returned as {"status", "code", "message"} JSON. Descriptor
// schema errors map to 400 validation_error, an unknown integration domain
// to 404 not_found and a failed service call to 502 service_error.
package api
