// Package core holds the host primitives shared by the automation adapter and
// the host-side collaborators it drives: execution contexts, well-known state
// and service names, entity identifiers, detach handles, and the service
// invocation error.
//
// It has no dependencies on other internal packages so that automation,
// state, service and api can all import it without cycles.
package core
