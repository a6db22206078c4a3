// Gray Logic Simulator
//
// This is the main entry point of the building-automation simulator. It runs
// simulated lights, sensors and blinds, each an independent agent on the
// MQTT bus (or an in-process broker), plus group controllers that fuse
// sensor readings and drive their lights by rule.
//
// Usage:
//
//	graylogic-sim [-c configs/config.yaml] [--embedded]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/nerrad567/gray-logic-sim/internal/api"
	"github.com/nerrad567/gray-logic-sim/internal/bus"
	"github.com/nerrad567/gray-logic-sim/internal/diagnostic"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sim/internal/registry"
	"github.com/nerrad567/gray-logic-sim/internal/telemetry"
	"github.com/nerrad567/gray-logic-sim/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path, used when it exists.
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds the metrics listener shutdown.
const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	configPath  string
	embedded    bool
	showVersion bool
}

func parseFlags(args []string, out io.Writer) (options, error) {
	var o options
	fs := pflag.NewFlagSet("graylogic-sim", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVarP(&o.configPath, "config", "c", "", "path to the YAML configuration (default: $GRAYLOGIC_SIM_CONFIG or "+defaultConfigPath+")")
	fs.BoolVar(&o.embedded, "embedded", false, "run on an in-process broker instead of dialling MQTT")
	fs.BoolVar(&o.showVersion, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context, args []string, out io.Writer) error { //nolint:gocognit,gocyclo // linear startup sequence
	opts, err := parseFlags(args, out)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parsing flags: %w", err)
	}
	if opts.showVersion {
		fmt.Fprintf(out, "graylogic-sim %s (commit %s, built %s)\n", version, commit, date)
		return nil
	}

	log := logging.Default()
	log.Info("starting Gray Logic Simulator",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath, err := config.ResolvePath(opts.configPath, defaultConfigPath)
	if err != nil {
		return fmt.Errorf("locating config: %w", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.embedded {
		cfg.MQTT.Embedded = true
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"tick_interval", cfg.Simulation.TickInterval,
	)

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
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("diagnostics store ready", "path", db.Path())

	checks := map[string]api.HealthChecker{"database": db}

	connector, closeBus, err := openBus(cfg, log, checks)
	if err != nil {
		return err
	}
	defer closeBus()

	recorder := diagnostic.NewRecorder(diagnostic.NewSQLiteRepository(db.DB), registry.Source, log)
	sw := registry.New(registry.Options{
		Connector:   connector,
		Simulation:  cfg.Simulation,
		Diagnostics: recorder,
		Logger:      log.With("component", "switch"),
	})
	if err := sw.Start(ctx); err != nil {
		return fmt.Errorf("starting switch: %w", err)
	}
	defer func() {
		log.Info("stopping agents and groups")
		if stopErr := sw.Stop(); stopErr != nil {
			log.Error("error stopping switch", "error", stopErr)
		}
	}()

	if cfg.InfluxDB.Enabled {
		stopTelemetry, telErr := startTelemetry(ctx, cfg, connector, log, checks)
		if telErr != nil {
			return telErr
		}
		defer stopTelemetry()
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := sw.Provision(ctx); err != nil {
		return fmt.Errorf("provisioning simulation: %w", err)
	}
	log.Info("simulation provisioned",
		"devices", sw.DeviceCount(),
		"groups", len(cfg.Simulation.Groups),
	)

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log.With("component", "api"),
			Switch:  sw,
			Bus:     connector,
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if cfg.Metrics.Enabled {
		stopMetrics := serveMetrics(cfg, log)
		defer stopMetrics()
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openBus returns the connector every node uses. The embedded broker needs
// no network unless it is asked to listen; otherwise a monitor client
// watches the broker connection.
func openBus(cfg *config.Config, log *logging.Logger, checks map[string]api.HealthChecker) (bus.Connector, func(), error) {
	if cfg.MQTT.Embedded {
		broker, err := bus.NewEmbedded(bus.EmbeddedOptions{
			Listen: cfg.MQTT.EmbeddedListen,
			Logger: log.Logger.With("component", "broker"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("starting embedded broker: %w", err)
		}
		log.Info("using embedded broker", "listen", cfg.MQTT.EmbeddedListen)
		return broker, func() {
			if closeErr := broker.Close(); closeErr != nil {
				log.Error("error closing embedded broker", "error", closeErr)
			}
		}, nil
	}

	monitor, err := mqtt.Connect(cfg.MQTT, cfg.MQTT.Broker.ClientID+"-"+uuid.NewString()[:8])
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	monitor.SetLogger(log)
	monitor.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	monitor.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	checks["mqtt"] = monitor
	log.Info("MQTT connected", "broker", cfg.MQTTAddress())

	closeFn := func() {
		log.Info("disconnecting from MQTT")
		if closeErr := monitor.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}
	return bus.NewMQTTConnector(cfg.MQTT, log), closeFn, nil
}

// startTelemetry connects InfluxDB and records every snapshot into it.
func startTelemetry(ctx context.Context, cfg *config.Config, connector bus.Connector, log *logging.Logger, checks map[string]api.HealthChecker) (func(), error) {
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	influxClient.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	checks["influxdb"] = influxClient
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)

	session, err := connector.Connect("telemetry-" + uuid.NewString()[:8])
	if err != nil {
		influxClient.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("connecting telemetry session: %w", err)
	}
	rec := telemetry.NewRecorder(session, influxClient, log)
	if err := rec.Start(); err != nil {
		session.Close()      //nolint:errcheck // already failing
		influxClient.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("starting telemetry: %w", err)
	}

	return func() {
		if stopErr := rec.Stop(); stopErr != nil {
			log.Error("error stopping telemetry", "error", stopErr)
		}
		log.Info("closing InfluxDB connection", "snapshots_recorded", rec.Recorded())
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}, nil
}

// serveMetrics exposes the Prometheus registry on its own listener.
func serveMetrics(cfg *config.Config, log *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	srv := &http.Server{
		Addr:              cfg.MetricsAddress(),
		Handler:           mux,
		ReadHeaderTimeout: shutdownTimeout,
	}

	go func() {
		log.Info("metrics listener starting", "address", srv.Addr, "path", cfg.Metrics.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics listener error", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("error stopping metrics listener", "error", err)
		}
	}
}

func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
