package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-automation/internal/audit"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/core"
	"github.com/nerrad567/gray-logic-automation/internal/entity"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-automation/internal/state"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Automation *automation.Dispatcher
	Entities   *entity.Registry
	States     *state.Machine
	Audit      audit.Repository // optional; audit endpoints return 500 without it
	Services   ServiceLister    // optional; listed in /status

	// Metrics is the registry HTTP counters are registered on and /metrics
	// serves. A private registry is created when nil.
	Metrics *prometheus.Registry

	Version string
}

// ServiceLister lists registered "domain.service" names. *service.Bus satisfies it.
type ServiceLister interface {
	Services() []string
}

// Server is the HTTP API server for the automation service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	automation *automation.Dispatcher
	entities   *entity.Registry
	states     *state.Machine
	auditRepo  audit.Repository
	services   ServiceLister
	auditCh    chan *audit.AuditLog
	registry   *prometheus.Registry
	metrics    *httpMetrics
	version    string
	startTime  time.Time

	server       *http.Server
	hub          *Hub
	detachStates core.DetachFunc
	cancel       context.CancelFunc // cancels background goroutines on Close()
	auditDone    chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Automation == nil {
		return nil, fmt.Errorf("automation dispatcher is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if deps.States == nil {
		return nil, fmt.Errorf("state machine is required")
	}

	reg := deps.Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := newHTTPMetrics(reg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		automation: deps.Automation,
		entities:   deps.Entities,
		states:     deps.States,
		auditRepo:  deps.Audit,
		services:   deps.Services,
		registry:   reg,
		metrics:    metrics,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger, s.automation)

	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays state machine changes to WebSocket
// clients, and launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if s.auditCh != nil {
		s.auditDone = make(chan struct{})
		go func() {
			defer close(s.auditDone)
			s.drainAuditLog(srvCtx)
		}()
	}

	s.detachStates = s.states.OnChange(s.broadcastStateChange)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It stops the state relay, waits up to 10 seconds for in-flight requests
// to complete, then flushes pending audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.detachStates != nil {
		s.detachStates()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)

	// Cancel background goroutines (hub, audit writer) after the listener
	// has stopped accepting requests.
	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// broadcastStateChange relays a state machine transition to WebSocket
// clients subscribed to the state_changed channel.
func (s *Server) broadcastStateChange(t core.Transition) {
	s.hub.Broadcast(ChannelStateChanged, stateChangedPayload(t))
}
