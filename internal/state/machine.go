package state

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// Logger defines the logging interface used by the Machine.
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

// Record is the stored state of one entity.
type Record struct {
	EntityID    string        `json:"entity_id"`
	State       string        `json:"state"`
	LastChanged time.Time     `json:"last_changed"`
	Context     *core.Context `json:"context,omitempty"`
}

type watcher struct {
	id       uint64
	entityID string
	from, to string
	handler  core.TransitionHandler
	meta     core.WatchMetadata
}

// Machine holds entity states and dispatches transitions to watchers.
//
// All public methods are thread-safe.
type Machine struct {
	mu       sync.RWMutex
	states   map[string]Record
	watchers map[string][]*watcher // by entity ID, registration order
	nextID   uint64

	listenerMu sync.RWMutex
	listeners  map[uint64]func(core.Transition)

	logger Logger
	now    func() time.Time
}

// NewMachine creates an empty state machine.
func NewMachine() *Machine {
	return &Machine{
		states:    make(map[string]Record),
		watchers:  make(map[string][]*watcher),
		listeners: make(map[uint64]func(core.Transition)),
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.logger = logger
}

// Set records a new state for an entity and runs every watcher whose
// from/to pair matches the change. Setting the current state again is a no-op.
//
// A nil origin is replaced with a fresh context.
func (m *Machine) Set(ctx context.Context, entityID, newState string, origin *core.Context) error {
	if !core.ValidEntityID(entityID) {
		return fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}
	newState = strings.TrimSpace(newState)
	if newState == "" {
		return fmt.Errorf("%w: state cannot be empty", ErrInvalidState)
	}
	if origin == nil {
		origin = core.NewContext("", "")
	}

	m.mu.Lock()
	old := m.states[entityID]
	if old.State == newState {
		m.mu.Unlock()
		return nil
	}

	at := m.now().UTC()
	m.states[entityID] = Record{
		EntityID:    entityID,
		State:       newState,
		LastChanged: at,
		Context:     origin,
	}

	var matched []*watcher
	for _, w := range m.watchers[entityID] {
		if w.from == old.State && w.to == newState {
			matched = append(matched, w)
		}
	}
	m.mu.Unlock()

	t := core.Transition{
		EntityID: entityID,
		From:     old.State,
		To:       newState,
		Context:  origin,
		At:       at,
	}

	m.logger.Debug("entity state changed",
		"entity_id", entityID,
		"from", old.State,
		"to", newState,
		"watchers", len(matched),
	)

	for _, w := range matched {
		m.dispatch(ctx, w, t)
	}
	m.notifyListeners(t)
	return nil
}

// dispatch runs one watcher, recovering from panics so that one faulty
// handler cannot stop the others.
func (m *Machine) dispatch(ctx context.Context, w *watcher, t core.Transition) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transition handler panic recovered",
				"entity_id", t.EntityID,
				"platform", w.meta.PlatformType,
				"automation", w.meta.Name,
				"panic", r,
			)
		}
	}()
	w.handler(ctx, t)
}

// Current returns the entity's state, or "" if it has none.
func (m *Machine) Current(entityID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[entityID].State
}

// Get returns the entity's full record.
func (m *Machine) Get(entityID string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.states[entityID]
	return r, ok
}

// All returns every record ordered by entity ID.
func (m *Machine) All() []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.states))
	for _, r := range m.states {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// WatchTransition registers h for transitions of entityID from one state to
// another. The returned DetachFunc removes the watch and may be called any
// number of times from any goroutine.
func (m *Machine) WatchTransition(entityID, from, to string, h core.TransitionHandler, meta core.WatchMetadata) core.DetachFunc {
	m.mu.Lock()
	m.nextID++
	w := &watcher{
		id:       m.nextID,
		entityID: entityID,
		from:     from,
		to:       to,
		handler:  h,
		meta:     meta,
	}
	m.watchers[entityID] = append(m.watchers[entityID], w)
	m.mu.Unlock()

	m.logger.Debug("transition watch added",
		"entity_id", entityID,
		"from", from,
		"to", to,
		"platform", meta.PlatformType,
		"automation", meta.Name,
	)

	var once sync.Once
	return func() {
		once.Do(func() { m.removeWatcher(w) })
	}
}

func (m *Machine) removeWatcher(w *watcher) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.watchers[w.entityID]
	for i, cur := range list {
		if cur.id == w.id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(m.watchers, w.entityID)
	} else {
		m.watchers[w.entityID] = list
	}
}

// WatchCount returns the number of active transition watches.
func (m *Machine) WatchCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, list := range m.watchers {
		n += len(list)
	}
	return n
}

// OnChange registers fn for every state change of every entity.
// Used to stream state to WebSocket clients.
func (m *Machine) OnChange(fn func(core.Transition)) core.DetachFunc {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	m.listenerMu.Lock()
	m.listeners[id] = fn
	m.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenerMu.Lock()
			delete(m.listeners, id)
			m.listenerMu.Unlock()
		})
	}
}

func (m *Machine) notifyListeners(t core.Transition) {
	m.listenerMu.RLock()
	fns := make([]func(core.Transition), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenerMu.RUnlock()

	for _, fn := range fns {
		fn(t)
	}
}
