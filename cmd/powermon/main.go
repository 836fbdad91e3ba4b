// PowerMon Core - Electrical Telemetry Platform
//
// This is the main entry point for the PowerMon Core application.
// PowerMon Core collects voltage, current, and power telemetry from
// ESP32 panel controllers over MQTT, stores it in SQLite (with optional
// InfluxDB archival), coordinates relay switching, and serves a REST
// and WebSocket API for dashboards.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/balixgaruda/powermon-core/migrations"

	"github.com/balixgaruda/powermon-core/internal/api"
	"github.com/balixgaruda/powermon-core/internal/infrastructure/config"
	"github.com/balixgaruda/powermon-core/internal/infrastructure/database"
	"github.com/balixgaruda/powermon-core/internal/infrastructure/influxdb"
	"github.com/balixgaruda/powermon-core/internal/infrastructure/logging"
	"github.com/balixgaruda/powermon-core/internal/infrastructure/mqtt"
	"github.com/balixgaruda/powermon-core/internal/ingest"
	"github.com/balixgaruda/powermon-core/internal/relay"
	"github.com/balixgaruda/powermon-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting PowerMon Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Telemetry storage: SQLite for recent state, in-memory window for
	// the dashboard history endpoint
	store := telemetry.NewSQLiteStore(db.DB)
	history := telemetry.NewHistoryCache(cfg.Devices.HistorySize)
	log.Info("telemetry store initialised",
		"default_device", cfg.Devices.DefaultID,
		"history_size", history.Capacity(),
	)

	// Relay command plumbing
	resolver := relay.NewResolver(cfg.Devices.DefaultID)
	relayLog := relay.NewSQLiteLogRepository(db.DB)

	// Ingest pipeline: device reports from MQTT into storage. Created
	// (and its Stop deferred) before the MQTT client so the deferred
	// shutdown disconnects the client before the pipeline drains.
	pipeline := ingest.New(cfg.Ingest, store, history, relayLog, log.With("component", "ingest"))
	defer func() {
		log.Info("stopping ingest pipeline")
		pipeline.Stop()
	}()

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional long-horizon archive)
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		influxClient = nil
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Relay coordinator: publish command, overwrite stored status,
	// append audit log entry
	coordinator := relay.NewCoordinator(mqttClient, store, relayLog, resolver, log)
	if influxClient != nil {
		coordinator.SetArchiver(influxClient)
		pipeline.SetArchiver(influxClient)
	}

	// API server
	server, err := api.New(api.Deps{
		Config:        cfg.API,
		Logger:        log,
		Store:         store,
		History:       history,
		Coordinator:   coordinator,
		Resolver:      resolver,
		RelayLog:      relayLog,
		Pipeline:      pipeline,
		DefaultDevice: cfg.Devices.DefaultID,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Stored readings fan out to connected dashboards
	pipeline.SetBroadcaster(server.Hub())

	if startErr := pipeline.Start(mqttClient); startErr != nil {
		return fmt.Errorf("starting ingest pipeline: %w", startErr)
	}
	log.Info("ingest pipeline started")

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops accepting requests)
	// 2. InfluxDB (if enabled)
	// 3. MQTT (stops message delivery)
	// 4. Ingest pipeline (drains queued writes)
	// 5. Database

	log.Info("PowerMon Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses POWERMON_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("POWERMON_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when the integration is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
