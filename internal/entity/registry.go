package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-automation/internal/automation"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is a thread-safe cache over a Repository.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by Register and Remove. Reads never touch the repository.
type Registry struct {
	repo    Repository
	cache   map[string]Entry
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new entity registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]Entry),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all entries from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]Entry, len(entries))
	for _, e := range entries {
		r.cache[e.EntityID] = e
	}

	r.logger.Info("entity cache refreshed", "count", len(entries))
	return nil
}

// Register validates and persists a new entry.
func (r *Registry) Register(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, e); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[e.EntityID] = *e
	r.cacheMu.Unlock()

	r.logger.Info("entity registered",
		"entity_id", e.EntityID,
		"domain", e.Domain,
		"device_id", e.DeviceID,
	)
	return nil
}

// Remove deletes an entry.
func (r *Registry) Remove(ctx context.Context, entityID string) error {
	if err := r.repo.Delete(ctx, entityID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, entityID)
	r.cacheMu.Unlock()

	r.logger.Info("entity removed", "entity_id", entityID)
	return nil
}

// Get returns an entry by entity ID.
// Returns ErrEntryNotFound if it is not registered.
func (r *Registry) Get(entityID string) (Entry, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	e, ok := r.cache[entityID]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

// List returns every entry in registration order.
func (r *Registry) List() []Entry {
	return r.filter(func(Entry) bool { return true })
}

// EntriesForDevice returns a device's entries in registration order.
// An unknown device yields an empty slice.
func (r *Registry) EntriesForDevice(deviceID string) []Entry {
	return r.filter(func(e Entry) bool { return e.DeviceID == deviceID })
}

// Count returns the number of registered entries.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func (r *Registry) filter(keep func(Entry) bool) []Entry {
	r.cacheMu.RLock()
	out := make([]Entry, 0, len(r.cache))
	for _, e := range r.cache {
		if keep(e) {
			out = append(out, e)
		}
	}
	r.cacheMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Automation returns the registry as seen by device automation adapters.
func (r *Registry) Automation() automation.EntityRegistry {
	return automationView{r}
}

type automationView struct {
	r *Registry
}

func (v automationView) EntriesForDevice(_ context.Context, deviceID string) ([]automation.Entry, error) {
	entries := v.r.EntriesForDevice(deviceID)
	out := make([]automation.Entry, len(entries))
	for i, e := range entries {
		out[i] = automation.Entry{
			EntityID: e.EntityID,
			Domain:   e.Domain,
			DeviceID: e.DeviceID,
		}
	}
	return out, nil
}
