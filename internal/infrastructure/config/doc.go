// Package config handles loading and validating LUCID Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding secrets and paths with LUCID_* environment variables
//   - Applying command-line overrides (toolbar path, group keys, log level, theme)
//   - Validation of required fields
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Apply(config.Overrides{ToolbarPath: "toolbar.yaml"})
package config
