// Motion Bridge serves motion controllers to a single remote client over a
// small UDP text protocol.
//
// Usage:
//
//	motionbridge [--config path] [--version]
//
// The config path defaults to $MOTIONBRIDGE_CONFIG, then configs/config.yaml.
// A missing default file runs with built-in defaults.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	_ "github.com/nerrad567/motion-bridge/migrations"

	"github.com/nerrad567/motion-bridge/internal/api"
	"github.com/nerrad567/motion-bridge/internal/capture"
	"github.com/nerrad567/motion-bridge/internal/control"
	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/gesture"
	"github.com/nerrad567/motion-bridge/internal/hardware"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/database"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/motion-bridge/internal/notify"
	"github.com/nerrad567/motion-bridge/internal/sampler"
	"github.com/nerrad567/motion-bridge/internal/server"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "MOTIONBRIDGE_CONFIG"

	// samplerReportInterval is how often sampler counters go to InfluxDB.
	samplerReportInterval = 30 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, wires every component and serves until ctx is cancelled
// or the client asks the bridge to exit.
func run(ctx context.Context, args []string) error {
	flagSet := pflag.NewFlagSet("motionbridge", pflag.ContinueOnError)
	configFlag := flagSet.String("config", "", "path to the YAML config file (default: $"+configEnvVar+" or "+defaultConfigPath+")")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Printf("motionbridge %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting Motion Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig(*configFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
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
		schema, verErr := db.SchemaVersion(ctx)
		if verErr != nil {
			return fmt.Errorf("reading schema version: %w", verErr)
		}
		log.Info("database ready", "path", db.Path(), "schema", schema)
	} else {
		log.Info("database disabled")
	}

	// Hardware
	driver, err := hardware.NewDriver(cfg.Hardware)
	if err != nil {
		return fmt.Errorf("creating hardware driver: %w", err)
	}
	hwLog := log.Component("hardware")
	controllers, err := hardware.ConnectAll(ctx, driver, hardware.LEDsFromSlice(cfg.Hardware.ConnectLEDs), hwLog)
	if err != nil {
		return fmt.Errorf("connecting controllers: %w", err)
	}
	releaseHardware := sync.OnceValue(func() error {
		return hardware.Shutdown(controllers, hwLog)
	})
	defer func() {
		if shutdownErr := releaseHardware(); shutdownErr != nil {
			log.Error("hardware cleanup failed", "error", shutdownErr)
		}
	}()
	if len(controllers) == 0 {
		log.Warn("no controllers connected")
	}

	registry := device.NewRegistry(controllers, device.Options{
		BufferCapacity: cfg.Sampler.BufferCapacity,
		Logger:         log.Component("device"),
	})
	log.Info("device registry initialised", "devices", registry.Count())

	// Notifications
	queue := notify.NewQueue(notify.Options{
		Size:   cfg.Notifications.QueueSize,
		Logger: log.Component("notify"),
	})
	history := notify.NewHistory(cfg.Notifications.HistorySize)
	queue.AddConsumer(history)
	queue.AddConsumer(notify.LogConsumer{Logger: log.Component("notify")})

	tester := control.NewTester(registry, control.Options{
		Notifier: queue,
		Logger:   log.Component("control"),
	})

	var events server.EventPublishers

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = startMQTT(cfg.MQTT, queue, tester, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		events = append(events, mqtt.NewEventPublisher(mqttClient, mqttClient.QoS()))
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Capture archive and telemetry
	var captures capture.Repository
	if cfg.Capture.Archive && db != nil {
		enc, encErr := capture.ParseEncoding(cfg.Capture.Compression)
		if encErr != nil {
			return fmt.Errorf("capture archive: %w", encErr)
		}
		captures = capture.NewSQLiteRepository(db.DB, enc)
		log.Info("capture archive enabled", "encoding", enc)
	}
	recorder := newRecorder(captures, influxClient, log)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Sampler
	sched, err := sampler.New(registry, sampler.Options{
		Frequency: cfg.Sampler.FrequencyHz,
		Logger:    log.Component("sampler"),
	})
	if err != nil {
		return fmt.Errorf("creating sampler: %w", err)
	}

	matcher, err := gesture.New(cfg.Gesture, log.Component("gesture"))
	if err != nil {
		return fmt.Errorf("creating gesture matcher: %w", err)
	}

	// API hub is created before the protocol server so it can receive
	// capture events.
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
		queue.AddConsumer(hub)
		events = append(events, hub)
	}

	srv, err := server.New(server.Options{
		Config:   cfg.Server,
		Registry: registry,
		Matcher:  matcher,
		Notifier: queue,
		Recorder: recorder,
		Events:   events,
		Logger:   log.Component("server"),
	})
	if err != nil {
		return fmt.Errorf("creating protocol server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("starting protocol server: %w", err)
	}
	defer srv.Close() //nolint:errcheck // Also closed by Serve on cancel

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		queue.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		sched.Run(runCtx)
	}()
	if influxClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reportSamplerStats(runCtx, sched, influxClient, samplerReportInterval)
		}()
	}

	// API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:        cfg.API,
			WS:            cfg.WebSocket,
			Logger:        log.Component("api"),
			Registry:      registry,
			Protocol:      srv,
			Sampler:       sched,
			Notifications: queue,
			History:       history,
			Tester:        tester,
			Captures:      captures,
			Hub:           hub,
			Version:       version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(runCtx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, serving",
		"udp", srv.Addr().String(),
		"devices", registry.Count(),
	)

	serveErr := srv.Serve(runCtx)
	switch {
	case errors.Is(serveErr, server.ErrClientExit):
		log.Info("client requested exit, shutting down")
		serveErr = nil
	case serveErr != nil:
		log.Error("protocol server failed", "error", serveErr)
	default:
		log.Info("shutdown signal received, cleaning up")
	}

	// Ordered shutdown: surfaces first, then background loops (the queue
	// flushes pending notifications), then the controllers. Infrastructure
	// closes run from the deferred calls afterwards.
	if apiServer != nil {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}
	stop()
	wg.Wait()

	if shutdownErr := releaseHardware(); shutdownErr != nil {
		log.Error("hardware cleanup failed", "error", shutdownErr)
	}

	log.Info("Motion Bridge stopped")
	return serveErr
}

// loadConfig resolves the config path and loads it. An explicit --config
// path must exist; the environment and default paths fall back to defaults
// when missing.
func loadConfig(flagPath string) (*config.Config, string, error) {
	if flagPath != "" {
		cfg, err := config.Load(flagPath)
		return cfg, flagPath, err
	}
	path := getConfigPath()
	cfg, err := config.LoadOrDefault(path)
	return cfg, path, err
}

// getConfigPath returns the configuration file path.
// Uses MOTIONBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// startMQTT connects to the broker, forwards notifications to it and
// subscribes to the manual test command topics.
func startMQTT(cfg config.MQTTConfig, queue *notify.Queue, tester *control.Tester, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttLog := log.Component("mqtt")
	client.SetLogger(mqttLog)

	queue.AddConsumer(mqtt.NewNotificationConsumer(client, client.QoS(), mqttLog))

	topic := mqtt.Topics{}.AllCommands()
	if err := client.Subscribe(topic, client.QoS(), tester.HandleMQTTCommand); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return client, nil
}

// newRecorder returns a recorder over whichever sinks are configured, or
// nil when there are none.
func newRecorder(repo capture.Repository, influxClient *influxdb.Client, log *logging.Logger) server.CaptureRecorder {
	opts := capture.Options{
		Repository: repo,
		Logger:     log.Component("capture"),
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	if opts.Repository == nil && opts.Telemetry == nil {
		return nil
	}
	return capture.NewRecorder(opts)
}

// reportSamplerStats writes sampler counters to InfluxDB every interval
// until ctx is cancelled.
func reportSamplerStats(ctx context.Context, sched *sampler.Scheduler, influxClient *influxdb.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := sched.Stats()
			influxClient.WriteSamplerStats(st.Ticks, st.Samples, st.ReadErrors)
		}
	}
}

// healthCheck verifies the optional infrastructure connections. Nil
// clients are skipped.
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
