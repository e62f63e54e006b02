// Package automation provides device automations for Gray Logic integrations.
//
// A device automation exposes what an integration's entities can do for a
// given device: triggers (state transitions to react to), conditions (state
// checks) and actions (service calls). The Adapter lists these capabilities
// from the entity registry and turns a validated descriptor into a live
// state watch, a condition predicate, or a service call.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                Dispatcher (dispatcher.go)                 │
//	│  Routes descriptors to the platform for their domain      │
//	│        │                                                  │
//	│        ▼                                                  │
//	│  ┌──────────────────────────────────────────────────┐    │
//	│  │  Adapter (adapter.go), one per integration        │    │
//	│  │  1. List: registry entries → descriptors          │    │
//	│  │  2. Validate: raw map → typed descriptor          │    │
//	│  │  3. Delegate: StateWatcher / StateReader /        │    │
//	│  │     ServiceBus                                    │    │
//	│  └──────────────────────────────────────────────────┘    │
//	└──────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - TriggerKind, ConditionKind, ActionKind: closed vocabularies per category
//   - TriggerDescriptor, ConditionDescriptor, ActionDescriptor: validated records
//   - Validator: schema checks for raw descriptor maps (schema.go)
//   - Adapter: the per-integration capability adapter
//   - Dispatcher: domain → Platform routing
//
// # Collaborators
//
// The Adapter owns no state. It reads from an EntityRegistry and a
// StateReader, attaches through a StateWatcher, and calls a ServiceBus.
// All four are injected at construction.
//
// # Usage
//
//	adapter := automation.NewAdapter("demo", automation.Deps{
//	    Entities: entities,
//	    States:   machine,
//	    Watcher:  machine,
//	    Services: bus,
//	})
//
//	actions, err := adapter.ListActions(ctx, "d1")
//	err = adapter.ExecuteAction(ctx, actions[0].ToMap(), nil, core.NewContext("", ""))
package automation
