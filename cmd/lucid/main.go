// LUCID - LCLS User Control and Interface Design
//
// lucid builds the home screen of a beamline: a grid of devices grouped by
// location and function, and a Quick Access Toolbar of shell and display
// buttons read from YAML. The resulting overview document is written as JSON
// for the host GUI and, when MQTT is enabled, published retained so that
// toolbar activations can be requested over the bus.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/lucid-core/internal/activation"
	"github.com/nerrad567/lucid-core/internal/device"
	"github.com/nerrad567/lucid-core/internal/grid"
	"github.com/nerrad567/lucid-core/internal/infrastructure/config"
	"github.com/nerrad567/lucid-core/internal/infrastructure/database"
	"github.com/nerrad567/lucid-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lucid-core/internal/infrastructure/logging"
	"github.com/nerrad567/lucid-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lucid-core/internal/overview"
	"github.com/nerrad567/lucid-core/internal/process"
	"github.com/nerrad567/lucid-core/internal/toolbar"
	"github.com/nerrad567/lucid-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is read when --config is not given. It may be absent.
	defaultConfigPath = "configs/config.yaml"

	description = "LUCID - LCLS User Control and Interface Design"
)

// logLevels are the accepted --log_level values, matched case-insensitively.
var logLevels = []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR", "CRITICAL"}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	beamlines   []string
	toolbar     string
	skipHappi   bool
	rowGroupKey string
	colGroupKey string
	logLevel    string
	dark        bool
	stylesheet  string
	configPath  string
	output      string
	search      string
	rollbackDB  bool
	version     bool
	help        bool
}

// parseArgs parses args into options. Usage goes to stderr.
func parseArgs(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := pflag.NewFlagSet("lucid", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.StringVar(&o.toolbar, "toolbar", "", "Path to the YAML file describing the Quick Access Toolbar")
	fs.BoolVar(&o.skipHappi, "skip_happi", false, "Skip loading entries from the device directory")
	fs.StringVar(&o.rowGroupKey, "row_group_key", "", "Device metadata key grouping grid rows (default location_group)")
	fs.StringVar(&o.colGroupKey, "col_group_key", "", "Device metadata key grouping grid columns (default functional_group)")
	fs.StringVar(&o.logLevel, "log_level", "", "Verbosity: "+strings.Join(logLevels, ", ")+" (default INFO)")
	fs.BoolVar(&o.dark, "dark", false, "Use the dark stylesheet")
	fs.StringVar(&o.stylesheet, "stylesheet", "", "Path to a custom stylesheet forwarded to the GUI")
	fs.StringVar(&o.configPath, "config", "", "Path to config.yaml (default "+defaultConfigPath+" if present)")
	fs.StringVarP(&o.output, "output", "o", "-", "Write the overview to this file; - for stdout")
	fs.StringVar(&o.search, "search", "", "Print the grid cells matching this query instead of the overview")
	fs.BoolVar(&o.rollbackDB, "rollback_db", false, "Roll back the most recent device directory migration and exit")
	fs.BoolVar(&o.version, "version", false, "Show LUCID version information")
	fs.BoolVarP(&o.help, "help", "h", false, "Show this help")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: lucid [flags] beamline [beamline ...]\n\n%s\n\nflags:\n", description)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.help {
		fs.Usage()
		return &o, nil
	}
	if o.version || o.rollbackDB {
		return &o, nil
	}

	o.beamlines = fs.Args()
	if len(o.beamlines) == 0 {
		fs.Usage()
		return nil, errors.New("at least one beamline is required")
	}
	if o.logLevel != "" && !validLogLevel(o.logLevel) {
		return nil, fmt.Errorf("invalid --log_level %q: choose from %s", o.logLevel, strings.Join(logLevels, ", "))
	}
	return &o, nil
}

func validLogLevel(level string) bool {
	for _, l := range logLevels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command-line arguments without the program name
//   - stdout: Destination of the overview when --output is "-"
//   - stderr: Destination of usage text and log records
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if opts.help {
		return nil
	}
	if opts.version {
		fmt.Fprintf(stdout, "LUCID %s\n", version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logOut := stderr
	if strings.EqualFold(cfg.Logging.Output, "stdout") {
		logOut = stdout
	}
	log := logging.NewWithWriter(logOut, cfg.Logging, version)
	log.Debug("starting LUCID",
		"version", version,
		"commit", commit,
		"build_date", date,
		"beamlines", opts.beamlines,
	)

	if opts.rollbackDB {
		return rollbackDatabase(ctx, cfg, log)
	}

	entities, err := loadEntities(ctx, cfg, opts, log)
	if err != nil {
		if errors.Is(err, device.ErrNoEntries) {
			log.Critical("no devices found", "error", err)
		}
		return err
	}

	tb, err := loadToolbar(cfg, log)
	if err != nil {
		log.Critical("failed to build toolbar", "error", err)
		return err
	}

	started := time.Now()
	ov, err := overview.Build(overview.Input{
		Beamlines: opts.beamlines,
		Toolbar:   tb,
		Entities:  entities,
		RowKey:    cfg.Grid.RowGroupKey,
		ColKey:    cfg.Grid.ColGroupKey,
		Theme:     overview.Theme{Dark: cfg.UI.Dark, Stylesheet: cfg.UI.Stylesheet},
	})
	if err != nil {
		return fmt.Errorf("building overview: %w", err)
	}
	elapsed := time.Since(started)

	for _, e := range ov.Grid.Excluded {
		log.Warn("device is missing a group key and was left out of the grid",
			"device", e.Name,
			"row_group_key", ov.Grid.RowKey,
			"col_group_key", ov.Grid.ColKey,
		)
	}
	log.Info("overview built",
		"title", ov.Title,
		"rows", len(ov.Grid.Rows),
		"columns", len(ov.Grid.Columns),
		"devices", ov.Grid.Len(),
		"excluded", len(ov.Grid.Excluded),
	)

	if opts.search != "" {
		matches := ov.Search(opts.search, cfg.Grid.SearchThreshold)
		log.Info("grid searched", "query", opts.search, "matches", len(matches))
		return writeJSON(opts.output, stdout, matches)
	}
	if err := writeOverview(opts.output, stdout, ov); err != nil {
		return err
	}

	influxClient, err := connectInflux(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := influxClient.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()
	influxClient.WriteOverview(overviewStats(ov, elapsed))

	if !cfg.MQTT.Enabled {
		return nil
	}
	return serve(ctx, cfg, ov, influxClient, log)
}

// loadConfig reads the configuration file and applies command-line overrides.
func loadConfig(opts *options) (*config.Config, error) {
	path, optional := opts.configPath, false
	if path == "" {
		path, optional = defaultConfigPath, true
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cfg.Apply(config.Overrides{
		ToolbarPath: opts.toolbar,
		RowGroupKey: opts.rowGroupKey,
		ColGroupKey: opts.colGroupKey,
		LogLevel:    opts.logLevel,
		Stylesheet:  opts.stylesheet,
		Dark:        opts.dark,
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// loadEntities gathers the devices of every requested beamline. The DEMO
// beamline is synthetic; all others come from the device directory.
func loadEntities(ctx context.Context, cfg *config.Config, opts *options, log *logging.Logger) ([]grid.Entity, error) {
	if opts.skipHappi {
		log.Info("skipping device directory")
		return nil, nil
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	repo := device.NewSQLiteRepository(db.DB)
	if cfg.Devices.ImportPath != "" {
		if err := importDevices(ctx, repo, cfg.Devices, log); err != nil {
			return nil, err
		}
	}

	src := device.Router{
		Default: device.NewRepositorySource(repo),
		Routes: map[string]device.Source{
			device.DemoBeamline: device.NewDemoSource(cfg.Devices.DemoSeed),
		},
	}

	if cfg.Devices.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Devices.QueryTimeout)*time.Second)
		defer cancel()
	}
	entities, err := device.Collect(ctx, src, opts.beamlines)
	if err != nil {
		return nil, fmt.Errorf("loading devices: %w", err)
	}
	log.Info("devices loaded", "count", len(entities))
	return entities, nil
}

// rollbackDatabase reverts the latest applied migration of the device
// directory.
func rollbackDatabase(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if err := db.MigrateDown(ctx, migrations.FS); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	log.Info("database migration rolled back", "path", db.Path(), "applied", len(applied), "pending", len(pending))
	return nil
}

func importDevices(ctx context.Context, repo device.Repository, cfg config.DevicesConfig, log *logging.Logger) error {
	f, err := os.Open(cfg.ImportPath) //nolint:gosec // Path is supplied by the operator via config
	if err != nil {
		return fmt.Errorf("opening device import: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	res, err := device.ImportJSON(ctx, repo, f, cfg.PruneImport)
	if err != nil {
		return fmt.Errorf("importing %s: %w", cfg.ImportPath, err)
	}
	log.Info("device directory imported",
		"path", cfg.ImportPath,
		"entries", res.Imported,
		"pruned", res.Pruned,
		"directory_size", res.Total,
	)
	return nil
}

// loadToolbar reads and lays out the toolbar. It returns nil when no
// toolbar file is configured.
func loadToolbar(cfg *config.Config, log *logging.Logger) (*toolbar.Toolbar, error) {
	if cfg.Toolbar.Path == "" {
		return nil, nil
	}

	loader := toolbar.NewLoader()
	loader.Strict = cfg.Toolbar.StrictKinds
	loader.SetLogger(log)

	spec, err := loader.LoadFile(cfg.Toolbar.Path)
	if err != nil {
		return nil, err
	}
	tb, err := toolbar.LayoutSpec(spec)
	if err != nil {
		return nil, err
	}
	log.Info("toolbar loaded", "path", cfg.Toolbar.Path, "tabs", len(tb.Tabs))
	return tb, nil
}

func writeOverview(path string, stdout io.Writer, ov *overview.Overview) error {
	if path == "" || path == "-" {
		return overview.Encode(stdout, ov)
	}

	f, err := os.Create(path) //nolint:gosec // Path is supplied by the operator via --output
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := overview.Encode(f, ov); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

// writeJSON writes v as indented JSON to path, or to stdout for "-".
func writeJSON(path string, stdout io.Writer, v any) error {
	w := stdout
	if path != "" && path != "-" {
		f, err := os.Create(path) //nolint:gosec // Path is supplied by the operator via --output
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close() //nolint:errcheck // Encode error takes precedence
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding search results: %w", err)
	}
	return nil
}

// connectInflux returns nil without error when InfluxDB is disabled. The
// client methods used by run are nil-safe.
func connectInflux(ctx context.Context, cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Debug("InfluxDB disabled")
		return nil, nil
	}
	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, nil
}

func overviewStats(ov *overview.Overview, elapsed time.Duration) influxdb.OverviewStats {
	tabs, buttons := ov.Counts()
	return influxdb.OverviewStats{
		Beamlines: ov.Beamlines,
		Tabs:      tabs,
		Buttons:   buttons,
		Rows:      len(ov.Grid.Rows),
		Columns:   len(ov.Grid.Columns),
		Devices:   ov.Grid.Len(),
		Excluded:  len(ov.Grid.Excluded),
		Duration:  elapsed,
		At:        ov.GeneratedAt,
	}
}

// serve publishes the overview on MQTT and answers activation requests
// until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, ov *overview.Overview, influxClient *influxdb.Client, log *logging.Logger) error {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	client.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	topics := client.Topics()
	for _, line := range ov.Beamlines {
		if err := client.PublishJSON(topics.Overview(line), ov, true); err != nil {
			return fmt.Errorf("publishing overview: %w", err)
		}
	}

	runner := process.NewRunner()
	runner.SetLogger(log)
	activator := activation.New(activation.Config{
		Shell:         cfg.Shell.Binary,
		WorkDir:       cfg.Shell.WorkDir,
		Timeout:       time.Duration(cfg.Shell.Timeout) * time.Second,
		DisplayBinary: cfg.Display.Binary,
		DisplayArgs:   cfg.Display.Args,
	}, runner)
	activator.SetLogger(log)
	defer func() {
		if closeErr := activator.Close(); closeErr != nil {
			log.Error("error stopping displays", "error", closeErr)
		}
	}()

	var recorder activation.Recorder
	if influxClient != nil {
		recorder = influxClient
	}
	svc := activation.NewService(activator, ov, client, topics, recorder)
	if err := client.Subscribe(topics.AllActivate(), byte(cfg.MQTT.QoS), svc.MessageHandler(ctx)); err != nil { //nolint:gosec // QoS validated as 0-2
		return fmt.Errorf("subscribing to activation requests: %w", err)
	}
	if err := client.Subscribe(topics.AllSearch(), byte(cfg.MQTT.QoS), svc.SearchHandler(ov, cfg.Grid.SearchThreshold)); err != nil { //nolint:gosec // QoS validated as 0-2
		return fmt.Errorf("subscribing to search queries: %w", err)
	}

	if err := healthCheck(ctx, client, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("serving activation requests and searches, waiting for shutdown signal",
		"activate_topic", topics.AllActivate(),
		"search_topic", topics.AllSearch(),
	)

	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")
	svc.Drain()
	return nil
}

// healthCheck verifies the long-lived connections.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
