// Package influxdb records LUCID telemetry in InfluxDB v2.
//
// Two measurements are written:
//   - lucid_overview: one point per overview build (tab, button, device counts)
//   - lucid_activation: one point per button activation (success, duration)
//
// Telemetry is optional. Connect returns ErrDisabled when influxdb.enabled is
// false, and writes on a nil client are no-ops, so callers need no guards.
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    logger.Warn("telemetry unavailable", "error", err)
//	}
//	defer client.Close()
//	client.WriteActivation(influxdb.ActivationRecord{Beamline: "tmo", Label: "Run", Success: true})
package influxdb
