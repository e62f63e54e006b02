package automation

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// Platform is the device automation surface of one integration.
// *Adapter satisfies Platform.
type Platform interface {
	Domain() string
	ListTriggers(ctx context.Context, deviceID string) ([]TriggerDescriptor, error)
	ListConditions(ctx context.Context, deviceID string) ([]ConditionDescriptor, error)
	ListActions(ctx context.Context, deviceID string) ([]ActionDescriptor, error)
	BuildConditionChecker(raw map[string]any, validate bool) (ConditionChecker, error)
	AttachTrigger(ctx context.Context, raw map[string]any, action TriggerAction, info AutomationInfo) (core.DetachFunc, error)
	ExecuteAction(ctx context.Context, raw map[string]any, vars Variables, origin *core.Context) error
}

var _ Platform = (*Adapter)(nil)

// Dispatcher routes device automation descriptors to the platform
// registered for their domain.
//
// All public methods are thread-safe.
type Dispatcher struct {
	mu        sync.RWMutex
	platforms map[string]Platform
	order     []string
	logger    Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		platforms: make(map[string]Platform),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Register adds a platform. Returns ErrPlatformExists if its domain is taken.
func (d *Dispatcher) Register(p Platform) error {
	domain := p.Domain()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.platforms[domain]; ok {
		return fmt.Errorf("%w: %s", ErrPlatformExists, domain)
	}
	d.platforms[domain] = p
	d.order = append(d.order, domain)

	d.logger.Info("device automation platform registered", "domain", domain)
	return nil
}

// Platforms returns the registered domains in registration order.
func (d *Dispatcher) Platforms() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Platform returns the platform registered for domain.
func (d *Dispatcher) Platform(domain string) (Platform, error) {
	d.mu.RLock()
	p, ok := d.platforms[domain]
	d.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPlatformNotFound, domain)
	}
	return p, nil
}

// resolve finds the platform for raw's domain. A missing or non-string
// domain is a *SchemaError against schema.
func (d *Dispatcher) resolve(raw map[string]any, schema SchemaID) (Platform, error) {
	v, ok := raw[KeyDomain]
	if !ok {
		return nil, schemaErr(schema, KeyDomain, "is required")
	}
	domain, ok := v.(string)
	if !ok {
		return nil, schemaErr(schema, KeyDomain, "must be a string")
	}
	return d.Platform(domain)
}

func (d *Dispatcher) snapshot() []Platform {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Platform, 0, len(d.order))
	for _, domain := range d.order {
		out = append(out, d.platforms[domain])
	}
	return out
}

// AttachTrigger attaches a trigger through the platform for raw's domain.
func (d *Dispatcher) AttachTrigger(ctx context.Context, raw map[string]any, action TriggerAction, info AutomationInfo) (core.DetachFunc, error) {
	p, err := d.resolve(raw, SchemaTrigger)
	if err != nil {
		return nil, err
	}
	return p.AttachTrigger(ctx, raw, action, info)
}

// BuildConditionChecker builds a checker through the platform for raw's domain.
func (d *Dispatcher) BuildConditionChecker(raw map[string]any, validate bool) (ConditionChecker, error) {
	p, err := d.resolve(raw, SchemaCondition)
	if err != nil {
		return nil, err
	}
	return p.BuildConditionChecker(raw, validate)
}

// ExecuteAction executes an action through the platform for raw's domain.
func (d *Dispatcher) ExecuteAction(ctx context.Context, raw map[string]any, vars Variables, origin *core.Context) error {
	p, err := d.resolve(raw, SchemaAction)
	if err != nil {
		return err
	}
	return p.ExecuteAction(ctx, raw, vars, origin)
}

// ListTriggers aggregates the device's triggers over all platforms.
func (d *Dispatcher) ListTriggers(ctx context.Context, deviceID string) ([]TriggerDescriptor, error) {
	out := make([]TriggerDescriptor, 0)
	for _, p := range d.snapshot() {
		items, err := p.ListTriggers(ctx, deviceID)
		if err != nil {
			d.logger.Warn("listing device triggers failed", "domain", p.Domain(), "device_id", deviceID, "error", err)
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// ListConditions aggregates the device's conditions over all platforms.
func (d *Dispatcher) ListConditions(ctx context.Context, deviceID string) ([]ConditionDescriptor, error) {
	out := make([]ConditionDescriptor, 0)
	for _, p := range d.snapshot() {
		items, err := p.ListConditions(ctx, deviceID)
		if err != nil {
			d.logger.Warn("listing device conditions failed", "domain", p.Domain(), "device_id", deviceID, "error", err)
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// ListActions aggregates the device's actions over all platforms.
func (d *Dispatcher) ListActions(ctx context.Context, deviceID string) ([]ActionDescriptor, error) {
	out := make([]ActionDescriptor, 0)
	for _, p := range d.snapshot() {
		items, err := p.ListActions(ctx, deviceID)
		if err != nil {
			d.logger.Warn("listing device actions failed", "domain", p.Domain(), "device_id", deviceID, "error", err)
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}
