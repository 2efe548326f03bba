// Smart Inventory Core
//
// This is the main entry point for the inventory backend. It serves the
// access-point and shelf-controller endpoints, drives shelf lights over
// MQTT and records scan and item history in SQLite.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/smart-inventory-core/migrations"

	"github.com/nerrad567/smart-inventory-core/internal/accesspoint"
	"github.com/nerrad567/smart-inventory-core/internal/api"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/config"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/database"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/logging"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/metrics"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
	"github.com/nerrad567/smart-inventory-core/internal/lighting"
	"github.com/nerrad567/smart-inventory-core/internal/recognition"
	"github.com/nerrad567/smart-inventory-core/internal/shelfcontroller"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"

	// listenerSlack is added to the light command timeout to bound each
	// shelf-controller message handler.
	listenerSlack = 15 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// Components are closed by defers in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting smart inventory core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := loadEnvFile(getEnvFilePath()); err != nil {
		return err
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	db, err := database.Open(database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path, "migrations", len(applied))

	store := inventory.NewStore(db)
	registry := inventory.NewRegistry(store.Devices, cfg.Inventory.RegistryCacheTTL)
	registry.SetLogger(log.Component("registry"))
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.CacheSize())

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
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient, err := connectInflux(cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	var collector *metrics.Metrics
	if cfg.Metrics.Enabled {
		collector = metrics.New(cfg.Metrics.Namespace)
	}

	lights := lighting.NewController(mqttClient, lighting.Config{
		CommandTimeout: cfg.Lighting.CommandTimeout,
		QoS:            byte(cfg.MQTT.QoS), // #nosec G115 -- validated to 0..2
	})
	lights.SetLogger(log.Component("lighting"))
	if startErr := lights.Start(); startErr != nil {
		return fmt.Errorf("starting light controller: %w", startErr)
	}
	defer func() {
		log.Info("stopping light controller")
		if stopErr := lights.Stop(); stopErr != nil {
			log.Error("error stopping light controller", "error", stopErr)
		}
	}()

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	accessPoints := accesspoint.NewService(accesspoint.Deps{
		Devices: registry,
		Recognizer: recognition.NewVisionClient(recognition.ClientConfig{
			BaseURL:    cfg.Recognition.BaseURL,
			APIKey:     cfg.Recognition.APIKey,
			Timeout:    cfg.Recognition.Timeout,
			RetryCount: cfg.Recognition.RetryCount,
		}),
		Items:       store.Items,
		Shelves:     store.Shelves,
		ScanHistory: store.ScanHistory,
		Lights:      lights,
		Recorder:    store,
	}, accesspoint.Config{MaxImageDimension: cfg.Recognition.MaxDimension})
	accessPoints.SetLogger(log.Component("accesspoint"))
	accessPoints.SetNotifier(hub)

	shelves := shelfcontroller.NewController(shelfcontroller.Deps{
		Devices:     registry,
		Shelves:     store.Shelves,
		Items:       store.Items,
		ItemHistory: store.ItemHistory,
		Recorder:    store,
		Lights:      lights,
	}, shelfcontroller.Config{MotionRecencyWindow: cfg.ShelfControllers.MotionRecencyWindow})
	shelves.SetLogger(log.Component("shelfcontroller"))
	shelves.SetNotifier(hub)

	if collector != nil {
		accessPoints.AddTelemetry(collector)
		shelves.AddTelemetry(collector)
		registerGauges(collector, cfg.Metrics.Namespace, registry, lights, hub, mqttClient)
	}
	if influxClient != nil {
		accessPoints.AddTelemetry(influxClient)
		shelves.AddTelemetry(influxClient)
	}

	if cfg.ShelfControllers.ListenMQTT {
		listener := shelfcontroller.NewListener(shelves, mqttClient, byte(cfg.MQTT.QoS), cfg.Lighting.CommandTimeout+listenerSlack)
		if startErr := listener.Start(ctx); startErr != nil {
			return fmt.Errorf("starting shelf controller listener: %w", startErr)
		}
		defer func() {
			log.Info("stopping shelf controller listener")
			if stopErr := listener.Stop(); stopErr != nil {
				log.Error("error stopping shelf controller listener", "error", stopErr)
			}
		}()
	}

	healthChecks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		healthChecks["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, healthChecks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	server, err := api.New(api.Deps{
		Config:           cfg.API,
		WS:               cfg.WebSocket,
		Security:         cfg.Security,
		Metrics:          cfg.Metrics,
		Logger:           log.Component("api"),
		AccessPoints:     accessPoints,
		ShelfControllers: shelves,
		Collector:        collector,
		HealthChecks:     healthChecks,
		ExternalHub:      hub,
		Version:          version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns INVENTORY_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("INVENTORY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// getEnvFilePath returns INVENTORY_ENV_FILE if set, otherwise ".env".
func getEnvFilePath() string {
	if path := os.Getenv("INVENTORY_ENV_FILE"); path != "" {
		return path
	}
	return defaultEnvFile
}

// loadEnvFile loads secrets from an optional dotenv file. Variables already
// set in the environment win.
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// connectInflux connects to InfluxDB when enabled. A disabled section
// returns a nil client and no error.
func connectInflux(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// healthCheck verifies every infrastructure connection before serving.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func registerGauges(m *metrics.Metrics, namespace string, registry *inventory.Registry, lights *lighting.Controller, hub *api.Hub, mqttClient *mqtt.Client) {
	m.RegisterGauge(namespace, "registry", "cached_devices", "Devices held in the registry cache", func() float64 {
		return float64(registry.CacheSize())
	})
	m.RegisterGauge(namespace, "lighting", "pending_commands", "Light commands awaiting acknowledgement", func() float64 {
		return float64(lights.PendingCount())
	})
	m.RegisterGauge(namespace, "websocket", "clients", "Connected WebSocket clients", func() float64 {
		return float64(hub.ClientCount())
	})
	m.RegisterGauge(namespace, "mqtt", "connected", "1 when the MQTT client is connected", func() float64 {
		if mqttClient.IsConnected() {
			return 1
		}
		return 0
	})
}
