// Package logging provides structured logging for LUCID Core.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same fields and levels.
//
// # Features
//
//   - Text output for operators, JSON output for log shippers
//   - Default fields (service, version) on all log entries
//   - Level filtering: debug, info, warn, error, critical
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error, critical
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout
//
// The --log_level flag overrides logging.level.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("toolbar loaded", "tabs", 3)
//	logger.Critical("no devices found", "beamline", "tmo")
package logging
