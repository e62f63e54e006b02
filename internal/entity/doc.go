// Package entity provides the entity registry for Gray Logic device automations.
//
// The registry records which entities each device exposes and which
// integration domain owns them. Device automation adapters list a device's
// triggers, conditions and actions from it.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                     Entity Registry                       │
//	│                                                           │
//	│  ┌──────────────────┐    ┌──────────────────┐            │
//	│  │     Registry     │    │    Repository    │            │
//	│  │  (registry.go)   │───▶│ (repository.go)  │            │
//	│  │ • cache + order  │    │ • SQLite queries │            │
//	│  │ • thread safety  │    │ • rowid ordering │            │
//	│  └──────────────────┘    └──────────────────┘            │
//	└──────────────────────────────────────────────────────────┘
//
// Entries are returned in registration order. The order is kept by the
// SQLite rowid and is stable across restarts.
//
// # Usage
//
//	repo := entity.NewSQLiteRepository(db)
//	registry := entity.NewRegistry(repo)
//	registry.SetLogger(log)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	err := registry.Register(ctx, &entity.Entry{
//	    EntityID: "light.kitchen",
//	    Domain:   "knx",
//	    DeviceID: "dev-kitchen-dimmer",
//	})
//
//	adapter := automation.NewAdapter("knx", automation.Deps{
//	    Entities: registry.Automation(),
//	    ...
//	})
package entity
