package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-automation/internal/core"
)

// Call is a single service invocation as seen by a Handler.
type Call struct {
	Domain  string
	Service string
	Data    map[string]any
	Context *core.Context
}

// EntityID returns the entity_id from the call data.
func (c Call) EntityID() (string, error) {
	raw, ok := c.Data[core.AttrEntityID]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidServiceData, core.AttrEntityID)
	}
	id, ok := raw.(string)
	if !ok || !core.ValidEntityID(id) {
		return "", fmt.Errorf("%w: %s %v", ErrInvalidServiceData, core.AttrEntityID, raw)
	}
	return id, nil
}

// Handler executes a service call.
type Handler func(ctx context.Context, call Call) error

// Logger defines the logging interface used by the Bus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type key struct {
	domain  string
	service string
}

// Bus routes service calls to registered handlers.
//
// Thread Safety: all methods are safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[key]Handler
	timeout  time.Duration
	logger   Logger
	wg       sync.WaitGroup
}

// NewBus creates a bus. A positive timeout bounds every handler run.
func NewBus(timeout time.Duration) *Bus {
	return &Bus{
		handlers: make(map[key]Handler),
		timeout:  timeout,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the bus.
func (b *Bus) SetLogger(logger Logger) {
	b.logger = logger
}

// Register adds a handler for domain.service.
func (b *Bus) Register(domain, service string, h Handler) error {
	if domain == "" || service == "" || h == nil {
		return fmt.Errorf("registering %q.%q: domain, service and handler are required", domain, service)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{domain, service}
	if _, exists := b.handlers[k]; exists {
		return fmt.Errorf("%w: %s.%s", ErrServiceExists, domain, service)
	}
	b.handlers[k] = h
	return nil
}

// Services returns every registered "domain.service" name, sorted.
func (b *Bus) Services() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.handlers))
	for k := range b.handlers {
		names = append(names, k.domain+"."+k.service)
	}
	sort.Strings(names)
	return names
}

// Call invokes domain.service with data.
//
// When blocking is true Call returns once the handler finishes and reports
// its error. Otherwise the handler runs in the background, detached from
// ctx cancellation, and Call only reports lookup failures. A nil origin is
// replaced with a fresh context.
func (b *Bus) Call(ctx context.Context, domain, service string, data map[string]any, blocking bool, origin *core.Context) error {
	b.mu.RLock()
	h, ok := b.handlers[key{domain, service}]
	b.mu.RUnlock()

	if !ok {
		return &core.ServiceInvocationError{Domain: domain, Service: service, Err: ErrServiceNotFound}
	}
	if origin == nil {
		origin = core.NewContext("", "")
	}

	call := Call{Domain: domain, Service: service, Data: data, Context: origin}

	if !blocking {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := b.run(context.WithoutCancel(ctx), h, call); err != nil {
				b.logger.Warn("background service call failed",
					"domain", domain,
					"service", service,
					"context_id", origin.ID,
					"error", err,
				)
			}
		}()
		return nil
	}

	return b.run(ctx, h, call)
}

// Wait blocks until background calls have finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) run(ctx context.Context, h Handler, call Call) (err error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &core.ServiceInvocationError{
				Domain:  call.Domain,
				Service: call.Service,
				Err:     fmt.Errorf("handler panic: %v", r),
			}
		}
	}()

	start := time.Now()
	if hErr := h(ctx, call); hErr != nil {
		return &core.ServiceInvocationError{Domain: call.Domain, Service: call.Service, Err: hErr}
	}

	b.logger.Debug("service call completed",
		"domain", call.Domain,
		"service", call.Service,
		"context_id", call.Context.ID,
		"duration", time.Since(start),
	)
	return nil
}
