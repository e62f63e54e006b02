// Gray Logic Automation - device automation service
//
// This is the main entry point for the Gray Logic automation service.
// It exposes the device triggers, conditions and actions of every configured
// integration domain to automation rules, and runs them against the
// entity registry, the live state machine and the MQTT command bus.
//
// Usage:
//
//	graylogic-automation                  run the service
//	graylogic-automation token -sub ID    mint an API token
//	graylogic-automation migrate status   list applied and pending migrations
//	graylogic-automation migrate up|down  apply pending or roll back the latest
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/gray-logic-automation/internal/api"
	"github.com/nerrad567/gray-logic-automation/internal/audit"
	"github.com/nerrad567/gray-logic-automation/internal/auth"
	"github.com/nerrad567/gray-logic-automation/internal/automation"
	"github.com/nerrad567/gray-logic-automation/internal/entity"
	"github.com/nerrad567/gray-logic-automation/internal/history"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-automation/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-automation/internal/service"
	"github.com/nerrad567/gray-logic-automation/internal/state"
	"github.com/nerrad567/gray-logic-automation/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/automation.yaml"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(context.Background(), os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Automation",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	registry, err := loadEntities(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	machine := state.NewMachine()
	machine.SetLogger(log.Component("state"))

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("closing MQTT connection")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
	)

	ingestor := state.NewIngestor(mqttClient, machine, cfg.Automation.StateTopic, mqttClient.QoS())
	ingestor.SetLogger(log.Component("ingest"))
	if startErr := ingestor.Start(); startErr != nil {
		return fmt.Errorf("starting state ingestor: %w", startErr)
	}
	defer func() {
		if stopErr := ingestor.Stop(); stopErr != nil {
			log.Warn("error stopping state ingestor", "error", stopErr)
		}
	}()
	log.Info("state ingestor subscribed", "topic", cfg.Automation.StateTopic)

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	bus := service.NewBus(cfg.GetServiceTimeout())
	bus.SetLogger(log.Component("service"))
	if busErr := registerServices(cfg, bus, machine, mqttClient, log); busErr != nil {
		return busErr
	}

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	sinks := history.Sinks{
		Audit:   auditRepo,
		Events:  mqttClient,
		Metrics: history.NewMetrics(metricsReg),
		Logger:  log.Component("history"),
	}
	if influxClient != nil {
		sinks.Points = influxClient
	}
	recorder := history.NewRecorder(sinks)

	dispatcher, err := buildDispatcher(cfg, registry, machine, bus, recorder, log)
	if err != nil {
		return err
	}

	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log.Component("api"),
		Automation: dispatcher,
		Entities:   registry,
		States:     machine,
		Audit:      auditRepo,
		Services:   bus,
		Metrics:    metricsReg,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, cfg.Automation.StateTopic); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"integrations", dispatcher.Platforms(),
		"entities", registry.Count(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Let in-flight non-blocking service calls finish before the
	// deferred closes tear down MQTT and the database.
	bus.Wait()

	log.Info("Gray Logic Automation stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadEntities builds the entity registry from the database and applies the
// optional seed file.
func loadEntities(ctx context.Context, cfg *config.Config, db *database.DB, log *logging.Logger) (*entity.Registry, error) {
	registry := entity.NewRegistry(entity.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("entity"))

	if err := registry.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading entity registry: %w", err)
	}

	if cfg.Automation.EntitiesFile != "" {
		entries, err := entity.LoadSeedFile(cfg.Automation.EntitiesFile)
		if err != nil {
			return nil, fmt.Errorf("loading entity seed file: %w", err)
		}
		added, err := registry.Seed(ctx, entries)
		if err != nil {
			return nil, fmt.Errorf("seeding entity registry: %w", err)
		}
		log.Info("entity seed applied", "path", cfg.Automation.EntitiesFile, "added", added)
	}

	log.Info("entity registry initialised", "entities", registry.Count())
	return registry, nil
}

// registerServices installs turn_on/turn_off for every integration domain.
// Dev mode switches state locally; otherwise commands go to the bridges.
func registerServices(cfg *config.Config, bus *service.Bus, machine *state.Machine, pub service.Publisher, log *logging.Logger) error {
	type registrar interface {
		RegisterOn(bus *service.Bus, domain string) error
	}

	var handler registrar
	if cfg.Automation.DevMode {
		handler = service.NewLocalSwitch(machine)
		log.Warn("dev mode: switch services set state directly")
	} else {
		// #nosec G115 -- config validation keeps qos in 0..2
		fwd := service.NewMQTTForwarder(pub, byte(cfg.MQTT.QoS))
		fwd.SetLogger(log.Component("forwarder"))
		handler = fwd
	}

	for _, domain := range cfg.Automation.Integrations {
		if err := handler.RegisterOn(bus, domain); err != nil {
			return fmt.Errorf("registering services for %s: %w", domain, err)
		}
	}
	return nil
}

// buildDispatcher creates one device automation adapter per integration.
func buildDispatcher(cfg *config.Config, registry *entity.Registry, machine *state.Machine, bus *service.Bus, recorder automation.Recorder, log *logging.Logger) (*automation.Dispatcher, error) {
	dispatcher := automation.NewDispatcher()
	dispatcher.SetLogger(log.Component("automation"))

	for _, domain := range cfg.Automation.Integrations {
		adapter := automation.NewAdapter(domain, automation.Deps{
			Entities: registry.Automation(),
			States:   machine,
			Watcher:  machine,
			Services: bus,
			Recorder: recorder,
			Logger:   log.Component("automation").With("domain", domain),
		})
		if err := dispatcher.Register(adapter); err != nil {
			return nil, fmt.Errorf("registering automation platform: %w", err)
		}
	}
	return dispatcher, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - stateTopic: Topic the state ingestor must be subscribed to
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, stateTopic string) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if !mqttClient.HasSubscription(stateTopic) {
		return fmt.Errorf("mqtt: state ingest not subscribed to %s", stateTopic)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// runToken mints a signed API token using the configured JWT secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)
	subject := fs.String("sub", "", "token subject (user or service id)")
	role := fs.String("role", string(auth.RoleOperator), "role: viewer, operator, service or admin")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.GenerateToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// runMigrate manages the schema outside a service run.
//
// Parameters:
//   - ctx: Context for cancellation
//   - args: "status", "up" or "down"
//   - out: Destination for the report
//
// Returns:
//   - error: Unknown subcommand, config, database or migration failure
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: migrate status|up|down")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	switch args[0] {
	case "up":
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return err
		}
	case "down":
		if err := db.MigrateDown(ctx, migrations.FS); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate command %q", args[0])
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}
	for _, m := range applied {
		fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
