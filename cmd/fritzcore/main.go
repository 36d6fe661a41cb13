// fritzcore - TR-064 client engine for AVM FRITZ!Box routers
//
// The daemon connects to one router, discovers its capability model,
// watches the call monitor port and journals every phone event into
// SQLite, with optional mirrors to MQTT and InfluxDB.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/hausnet/fritzcore/migrations"

	"github.com/hausnet/fritzcore/internal/cache"
	"github.com/hausnet/fritzcore/internal/fritz"
	"github.com/hausnet/fritzcore/internal/infrastructure/config"
	"github.com/hausnet/fritzcore/internal/infrastructure/database"
	"github.com/hausnet/fritzcore/internal/infrastructure/influxdb"
	"github.com/hausnet/fritzcore/internal/infrastructure/logging"
	"github.com/hausnet/fritzcore/internal/infrastructure/mqtt"
	"github.com/hausnet/fritzcore/internal/journal"
	"github.com/hausnet/fritzcore/internal/monitor"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// metricsInterval is the cadence of the router uptime poll when an
// InfluxDB sink is configured.
const metricsInterval = time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. The deferred Close calls unwind in reverse startup order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting fritzcore",
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

	// Router connection, the reason this process exists. Everything else
	// is optional plumbing around it.
	conn, err := connectRouter(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connecting to router: %w", err)
	}
	log.Info("router connected",
		"model", conn.ModelName(),
		"fritzos", conn.SystemVersion(),
		"services", len(conn.Services()),
	)

	// Journal database
	var db *database.DB
	if cfg.Journal.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Journal.Path,
			WALMode:     cfg.Journal.WALMode,
			BusyTimeout: cfg.Journal.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening journal database: %w", err)
		}
		defer func() {
			log.Info("closing journal database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing journal database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("journal database ready", "path", cfg.Journal.Path)
	}

	// MQTT event mirror (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publishIdentity(mqttClient, conn, log)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB sink (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		go pollRouterMetrics(ctx, conn, influxClient, log)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Call monitor and journal recorder
	if cfg.Monitor.Enabled {
		if db == nil {
			return fmt.Errorf("call monitor requires the journal database, enable journal in %s", configPath)
		}
		mon := monitor.New(monitorHost(cfg.Router.Address), monitor.Options{
			QueueSize:   cfg.Monitor.QueueSize,
			ReadTimeout: cfg.GetMonitorReadTimeout(),
			Logger:      log.Logger,
		})
		events, startErr := mon.Start(ctx)
		if startErr != nil {
			return fmt.Errorf("starting call monitor: %w", startErr)
		}
		defer mon.Stop()
		log.Info("call monitor started", "host", monitorHost(cfg.Router.Address))

		recorder := journal.NewRecorder(db, mqttClient, influxClient, log)
		go recorder.Run(ctx, events)
	} else {
		log.Info("call monitor disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("fritzcore stopped")
	return nil
}

// connectRouter builds the fritz connection from the file configuration.
// An https address switches to the TLS port.
func connectRouter(ctx context.Context, cfg *config.Config, log *logging.Logger) (*fritz.Connection, error) {
	useTLS := strings.HasPrefix(cfg.Router.Address, "https://")
	port := cfg.Router.Port
	if useTLS {
		port = cfg.Router.TLSPort
	}

	var store *cache.Store
	if cfg.Cache.Enabled {
		var err error
		store, err = cache.NewStore(cfg.Cache.Dir, cfg.Cache.Format)
		if err != nil {
			return nil, fmt.Errorf("creating cache store: %w", err)
		}
	}

	return fritz.Connect(ctx, fritz.Config{
		Address:     cfg.Router.Address,
		Username:    cfg.Router.Username,
		Password:    cfg.Router.Password,
		Port:        port,
		UseTLS:      useTLS,
		VerifyTLS:   cfg.Router.VerifyTLS,
		Timeout:     cfg.GetTimeout(),
		Permissive:  cfg.Router.Permissive,
		Cache:       store,
		VerifyCache: cfg.Cache.Verify,
		Logger:      log.Logger,
	})
}

// publishIdentity announces the connected box on the retained identity
// topic so late subscribers see it immediately.
func publishIdentity(mqttClient *mqtt.Client, conn *fritz.Connection, log *logging.Logger) {
	payload, err := json.Marshal(map[string]string{
		"model":   conn.ModelName(),
		"fritzos": conn.SystemVersion(),
	})
	if err != nil {
		return
	}
	if err := mqttClient.PublishRetained(mqttClient.Topics().RouterIdentity(), payload); err != nil {
		log.Warn("publishing router identity", "error", err)
	}
}

// pollRouterMetrics periodically reads the router uptime over TR-064 and
// feeds it to the timeseries sink.
func pollRouterMetrics(ctx context.Context, conn *fritz.Connection, influxClient *influxdb.Client, log *logging.Logger) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := conn.CallAction(ctx, "DeviceInfo1", "GetInfo", nil)
			if err != nil {
				log.Warn("uptime poll failed", "error", err)
				continue
			}
			if uptime, ok := result["NewUpTime"].(int); ok {
				influxClient.WriteRouterMetric(conn.ModelName(), "uptime_seconds", float64(uptime))
			}
		}
	}
}

// monitorHost strips scheme and port from the router address; the call
// monitor always listens on its own port.
func monitorHost(address string) string {
	if idx := strings.Index(address, "//"); idx >= 0 {
		address = address[idx+2:]
	}
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}

// getConfigPath returns the configuration file path.
// Uses FRITZCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FRITZCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the configured infrastructure connections. Every
// client is optional; nil means the feature is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
