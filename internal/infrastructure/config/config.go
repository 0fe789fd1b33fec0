package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for LUCID Core.
// All configuration is loaded from YAML; secrets can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Devices  DevicesConfig  `yaml:"devices"`
	Grid     GridConfig     `yaml:"grid"`
	Toolbar  ToolbarConfig  `yaml:"toolbar"`
	Display  DisplayConfig  `yaml:"display"`
	Shell    ShellConfig    `yaml:"shell"`
	UI       UIConfig       `yaml:"ui"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig contains SQLite settings for the device directory.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// DevicesConfig controls where device metadata comes from.
type DevicesConfig struct {
	// ImportPath is an optional happi JSON database imported into SQLite at startup.
	ImportPath string `yaml:"import_path"`

	// PruneImport deletes stored devices that the import no longer lists.
	PruneImport bool `yaml:"prune_import"`

	// DemoSeed seeds the synthetic DEMO beamline. 0 picks a time-based seed.
	DemoSeed int64 `yaml:"demo_seed"`

	// QueryTimeout bounds the device search, in seconds.
	QueryTimeout int `yaml:"query_timeout"`
}

// GridConfig selects the metadata keys used to group devices.
type GridConfig struct {
	RowGroupKey string `yaml:"row_group_key"`
	ColGroupKey string `yaml:"col_group_key"`

	// SearchThreshold is the rank, 0 to 100, a cell must exceed to match
	// a grid search.
	SearchThreshold int `yaml:"search_threshold"`
}

// ToolbarConfig contains Quick Access Toolbar settings.
type ToolbarConfig struct {
	// Path is the toolbar YAML document. Empty means no toolbar.
	Path string `yaml:"path"`

	// StrictKinds rejects unrecognised button types instead of making them inert.
	StrictKinds bool `yaml:"strict_kinds"`
}

// DisplayConfig configures the launcher used to open display buttons.
type DisplayConfig struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// DefaultShellTimeout bounds shell button commands, in seconds.
const DefaultShellTimeout = 300

// ShellConfig configures how shell button commands are run.
type ShellConfig struct {
	Binary  string `yaml:"binary"`
	WorkDir string `yaml:"work_dir"`
	// Timeout bounds each command, in seconds. 0 means no limit.
	Timeout int `yaml:"timeout"`
}

// UIConfig contains presentation hints forwarded to the host GUI.
type UIConfig struct {
	Dark       bool   `yaml:"dark"`
	Stylesheet string `yaml:"stylesheet"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Overrides carries command-line values that take precedence over the file.
// Zero values leave the file setting untouched.
type Overrides struct {
	ToolbarPath string
	RowGroupKey string
	ColGroupKey string
	LogLevel    string
	Stylesheet  string
	Dark        bool
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables for secrets (override file values)
//
// When optional is true a missing file is not an error and defaults are used.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // Path is supplied by the operator via --config
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
		// Defaults only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/lucid.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Devices: DevicesConfig{
			QueryTimeout: 10,
		},
		Grid: GridConfig{
			RowGroupKey:     "location_group",
			ColGroupKey:     "functional_group",
			SearchThreshold: 50,
		},
		Display: DisplayConfig{
			Binary: "pydm",
		},
		Shell: ShellConfig{
			Binary:  "/bin/sh",
			Timeout: DefaultShellTimeout,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "lucid-core",
			},
			QoS:         1,
			TopicPrefix: "lucid",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Apply copies non-zero overrides into the configuration.
func (c *Config) Apply(o Overrides) {
	if o.ToolbarPath != "" {
		c.Toolbar.Path = o.ToolbarPath
	}
	if o.RowGroupKey != "" {
		c.Grid.RowGroupKey = o.RowGroupKey
	}
	if o.ColGroupKey != "" {
		c.Grid.ColGroupKey = o.ColGroupKey
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.Stylesheet != "" {
		c.UI.Stylesheet = o.Stylesheet
	}
	if o.Dark {
		c.UI.Dark = true
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Only deployment-specific paths and secrets are read from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUCID_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LUCID_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUCID_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("LUCID_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// ValidLogLevels are the accepted logging.level values.
var ValidLogLevels = []string{"debug", "info", "warn", "warning", "error", "critical"}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	if c.Devices.QueryTimeout < 0 {
		errs = append(errs, "devices.query_timeout must not be negative")
	}

	if strings.TrimSpace(c.Grid.RowGroupKey) == "" {
		errs = append(errs, "grid.row_group_key is required")
	}
	if strings.TrimSpace(c.Grid.ColGroupKey) == "" {
		errs = append(errs, "grid.col_group_key is required")
	}
	if c.Grid.SearchThreshold < 0 || c.Grid.SearchThreshold > 100 {
		errs = append(errs, "grid.search_threshold must be between 0 and 100")
	}

	if c.Display.Binary == "" {
		errs = append(errs, "display.binary is required")
	}
	if c.Shell.Binary == "" {
		errs = append(errs, "shell.binary is required")
	}
	if c.Shell.Timeout < 0 {
		errs = append(errs, "shell.timeout must not be negative")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if !validLogLevel(c.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging.level must be one of %s", strings.Join(ValidLogLevels, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validLogLevel(level string) bool {
	level = strings.ToLower(level)
	for _, l := range ValidLogLevels {
		if l == level {
			return true
		}
	}
	return false
}
