package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nerrad567/gray-logic-automation/internal/audit"
	"github.com/nerrad567/gray-logic-automation/internal/auth"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/entity"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-automation/internal/service"
	"github.com/nerrad567/gray-logic-automation/internal/state"
	"github.com/nerrad567/gray-logic-automation/migrations"
)

const (
	testSecret = "test-secret-key-at-least-32-characters-long"
	testIssuer = "graylogic-test"
)

// testFixture is a Server wired to real collaborators: a migrated SQLite
// database, the entity registry, the state machine and a service bus whose
// "demo" domain switches entities locally. The "bare" domain has an adapter
// but no services, so its actions fail downstream.
type testFixture struct {
	srv      *Server
	router   http.Handler
	entities *entity.Registry
	states   *state.Machine
	audit    *audit.SQLiteRepository
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testServerDeps(t *testing.T) (Deps, *testFixture) {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	entities := entity.NewRegistry(entity.NewSQLiteRepository(db.DB))
	if err := entities.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	states := state.NewMachine()

	bus := service.NewBus(time.Second)
	if err := service.NewLocalSwitch(states).RegisterOn(bus, "demo"); err != nil {
		t.Fatalf("RegisterOn() error = %v", err)
	}

	dispatcher := automation.NewDispatcher()
	for _, domain := range []string{"demo", "bare"} {
		adapter := automation.NewAdapter(domain, automation.Deps{
			Entities: entities.Automation(),
			States:   states,
			Watcher:  states,
			Services: bus,
		})
		if err := dispatcher.Register(adapter); err != nil {
			t.Fatalf("Register(%s) error = %v", domain, err)
		}
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)

	deps := Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testSecret, Issuer: testIssuer},
		},
		Services:   bus,
		Logger:     testLogger(),
		Automation: dispatcher,
		Entities:   entities,
		States:     states,
		Audit:      auditRepo,
		Version:    "test",
	}
	return deps, &testFixture{entities: entities, states: states, audit: auditRepo}
}

func testServer(t *testing.T) *testFixture {
	t.Helper()

	deps, f := testServerDeps(t)
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.srv = srv
	f.router = srv.buildRouter()
	return f
}

func testToken(t *testing.T, subject string, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken(subject, role, testSecret, testIssuer, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

// do sends a request through the router. An empty role sends no token.
func (f *testFixture) do(t *testing.T, method, path, body string, role auth.Role) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+testToken(t, "user-1", role))
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *testFixture) register(t *testing.T, entityID, domain, deviceID string) {
	t.Helper()
	e := &entity.Entry{EntityID: entityID, Domain: domain, DeviceID: deviceID}
	if err := f.entities.Register(context.Background(), e); err != nil {
		t.Fatalf("Register(%s) error = %v", entityID, err)
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	var e Error
	decodeBody(t, w, &e)
	if e.Code != code || e.Status != status {
		t.Errorf("error = %+v, want code %q", e, code)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	deps, _ := testServerDeps(t)

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"logger", func(d *Deps) { d.Logger = nil }},
		{"automation", func(d *Deps) { d.Automation = nil }},
		{"entities", func(d *Deps) { d.Entities = nil }},
		{"states", func(d *Deps) { d.States = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := deps
			tt.mutate(&d)
			if _, err := New(d); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	f := testServer(t)

	w := f.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decodeBody(t, w, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestRequestID(t *testing.T) {
	f := testServer(t)

	w := f.do(t, http.MethodGet, "/api/v1/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	deps, f := testServerDeps(t)
	deps.Config.CORS.AllowedOrigins = []string{"https://panel.local"}
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.router = srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty", got)
	}
}

func TestNotFound(t *testing.T) {
	f := testServer(t)

	w := f.do(t, http.MethodGet, "/api/v1/nonexistent", "", auth.RoleAdmin)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAuth(t *testing.T) {
	f := testServer(t)

	past := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(past),
			ExpiresAt: jwt.NewNumericDate(past.Add(time.Minute)),
		},
		Role: auth.RoleAdmin,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	wrongSecret, err := auth.GenerateToken("user-1", auth.RoleAdmin, "another-secret-key-at-least-32-characters", testIssuer, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "missing bearer token"},
		{"not bearer", "Basic abc", "missing bearer token"},
		{"garbage", "Bearer not-a-jwt", "invalid token"},
		{"wrong secret", "Bearer " + wrongSecret, "invalid token"},
		{"expired", "Bearer " + expired, "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/states", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)

			expectError(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)
			var e Error
			decodeBody(t, w, &e)
			if e.Message != tt.want {
				t.Errorf("message = %q, want %q", e.Message, tt.want)
			}
		})
	}
}

func TestPermissions(t *testing.T) {
	f := testServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		role   auth.Role
		want   int
	}{
		{"viewer lists states", http.MethodGet, "/api/v1/states", "", auth.RoleViewer, http.StatusOK},
		{"viewer cannot execute", http.MethodPost, "/api/v1/automation/actions/execute", `{"config":{"domain":"demo"}}`, auth.RoleViewer, http.StatusForbidden},
		{"operator cannot write state", http.MethodPut, "/api/v1/states/light.x", `{"state":"on"}`, auth.RoleOperator, http.StatusForbidden},
		{"service writes state", http.MethodPut, "/api/v1/states/light.x", `{"state":"on"}`, auth.RoleService, http.StatusOK},
		{"operator cannot manage entities", http.MethodPost, "/api/v1/entities", `{}`, auth.RoleOperator, http.StatusForbidden},
		{"service cannot read audit", http.MethodGet, "/api/v1/audit", "", auth.RoleService, http.StatusForbidden},
		{"admin reads audit", http.MethodGet, "/api/v1/audit", "", auth.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.body, tt.role)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestStatus(t *testing.T) {
	f := testServer(t)
	f.register(t, "light.x", "demo", "d1")

	w := f.do(t, http.MethodGet, "/api/v1/status", "", auth.RoleViewer)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp StatusResponse
	decodeBody(t, w, &resp)
	if resp.Version != "test" {
		t.Errorf("Version = %q, want test", resp.Version)
	}
	if got := strings.Join(resp.Automation.Integrations, ","); got != "demo,bare" {
		t.Errorf("Integrations = %q, want demo,bare", got)
	}
	if got := strings.Join(resp.Automation.Services, ","); got != "demo.turn_off,demo.turn_on" {
		t.Errorf("Services = %q, want demo.turn_off,demo.turn_on", got)
	}
	if resp.Automation.Entities != 1 {
		t.Errorf("Entities = %d, want 1", resp.Automation.Entities)
	}
	if resp.Runtime.Goroutines == 0 {
		t.Error("Runtime.Goroutines = 0")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := testServer(t)

	f.do(t, http.MethodGet, "/api/v1/health", "", "")
	w := f.do(t, http.MethodGet, "/api/v1/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}

	body := w.Body.String()
	want := `graylogic_http_requests_total{method="GET",route="/api/v1/health",status="200"} 1`
	if !strings.Contains(body, want) {
		t.Errorf("metrics output missing %q\n%s", want, body)
	}
}

func TestServer_StartAndClose(t *testing.T) {
	deps, f := testServerDeps(t)
	port := 19480
	deps.Config.Port = port

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Wait for the listener
	time.Sleep(100 * time.Millisecond)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check status = %d, want 200", resp.StatusCode)
	}

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	// Audit entries queued before Close are flushed by it.
	srv.auditLog(audit.ActionEntityCreated, audit.EntityTypeEntity, "light.x", "user-1", nil)

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	result, err := f.audit.List(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("audit total after Close = %d, want 1", result.Total)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := http.Get("http://" + addr + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_CloseNotStarted(t *testing.T) {
	f := testServer(t)
	if err := f.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
