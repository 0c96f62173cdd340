// heatpump-sync keeps NIBE heat pumps reachable through myUplink in sync with
// a local attribute model, and exposes them over MQTT and a REST/WebSocket API.
//
// Startup order: configuration, logging, SQLite (history and write log),
// the bbolt settings store, InfluxDB and MQTT (both optional), the myUplink
// client, the heat pump bridge and finally the API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/heatpump-sync/migrations"

	"github.com/nerrad567/heatpump-sync/internal/api"
	"github.com/nerrad567/heatpump-sync/internal/attribute"
	"github.com/nerrad567/heatpump-sync/internal/bridges/heatpump"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/config"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/database"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/influxdb"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/logging"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/mqtt"
	"github.com/nerrad567/heatpump-sync/internal/myuplink"
	"github.com/nerrad567/heatpump-sync/internal/settings"
	"github.com/nerrad567/heatpump-sync/internal/writelog"
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

// options are the command line flags.
type options struct {
	configPath  string
	listDevices bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.listDevices {
		err = listDevices(ctx, opts, os.Stdout)
	} else {
		err = run(ctx, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := flag.NewFlagSet("heatpumpsync", flag.ContinueOnError)
	flags.StringVar(&opts.configPath, "config", "", "path to the YAML configuration file (default $HPSYNC_CONFIG or "+defaultConfigPath+")")
	flags.BoolVar(&opts.listDevices, "list-devices", false, "list the devices visible to the configured myUplink token and exit")
	if err := flags.Parse(args); err != nil {
		return opts, err
	}
	if opts.configPath == "" {
		opts.configPath = getConfigPath()
	}
	return opts, nil
}

// getConfigPath returns the configuration file path.
// Uses HPSYNC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HPSYNC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadEnv reads a .env file from the working directory when present.
func loadEnv(log *logging.Logger) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("failed to load .env file", "error", err)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts options) error {
	log := logging.Default()
	log.Info("starting heatpump-sync",
		"version", version,
		"commit", commit,
		"build_date", date,
	)
	loadEnv(log)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.configPath, "devices", len(cfg.Devices))

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, cfg.Database)
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
	log.Info("database ready", "path", cfg.Database.Path)

	store, err := settings.Open(cfg.SettingsStore.Path)
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing settings store", "error", closeErr)
		}
	}()

	// InfluxDB is optional. The bridge must see a nil interface when disabled.
	var metrics heatpump.MetricsSink
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		metrics = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var mqttClient heatpump.MQTTClient
	var topics mqtt.Topics
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0..2
	if cfg.MQTT.Enabled {
		client, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		client.SetLogger(log)
		client.SetOnConnect(func() { log.Info("MQTT session established") })
		mqttClient = client
		topics = client.Topics()
		qos = client.QoS()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		topics = mqtt.NewTopics(cfg.MQTT.TopicPrefix)
		log.Info("MQTT disabled")
	}

	uplink := myuplink.New(cfg.Uplink, myuplink.StaticToken(cfg.Uplink.Token))
	uplink.SetLogger(log)

	history := attribute.NewSQLiteHistoryRepository(db.DB)
	writes := writelog.NewSQLiteRepository(db.DB)

	bridge, err := heatpump.NewBridge(heatpump.BridgeOptions{
		Devices:  cfg.Devices,
		Sync:     cfg.Sync,
		Remote:   uplink,
		Settings: store,
		MQTT:     mqttClient,
		Topics:   topics,
		QoS:      qos,
		History:  history,
		Metrics:  metrics,
		Writes:   writes,
		Version:  version,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("creating heat pump bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return fmt.Errorf("starting heat pump bridge: %w", err)
	}
	defer func() {
		log.Info("stopping heat pump bridge")
		bridge.Stop()
	}()
	log.Info("heat pump bridge started", "devices", len(bridge.Sessions()))

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Bridge:   bridge,
			Settings: store,
			History:  history,
			Writes:   writes,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
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
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, bridge, MQTT, InfluxDB, settings, database.
	return nil
}

// listDevices prints the devices visible to the configured token as JSON.
func listDevices(ctx context.Context, opts options, out io.Writer) error {
	log := logging.Default()
	loadEnv(log)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client := myuplink.New(cfg.Uplink, myuplink.StaticToken(cfg.Uplink.Token))
	devices, err := client.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}
	if devices == nil {
		devices = []myuplink.SystemDevice{}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(devices)
}
