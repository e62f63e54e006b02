// Package state holds the current on/off state of every entity and notifies
// watchers of state transitions.
//
// The Machine is the StateReader and StateWatcher used by device automation
// adapters. State arrives from protocol bridges over MQTT (Ingestor) or, in
// development mode, from the local switch service.
//
//	bridge ──MQTT──▶ Ingestor ──Set──▶ Machine ──▶ transition watchers
//	                                      ▲
//	                     LocalSwitch ─────┘
//
// Watchers run synchronously on the goroutine that called Set, in the order
// they were registered.
package state
