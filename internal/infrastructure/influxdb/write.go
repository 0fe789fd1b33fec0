package influxdb

import (
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementOverview   = "lucid_overview"
	MeasurementActivation = "lucid_activation"
)

// OverviewStats describes one overview build.
type OverviewStats struct {
	Beamlines []string
	Tabs      int
	Buttons   int
	Rows      int
	Columns   int
	Devices   int
	Excluded  int
	Duration  time.Duration
	At        time.Time
}

// ActivationRecord describes one control activation.
type ActivationRecord struct {
	Beamline string
	Tab      string
	Label    string
	Kind     string
	Success  bool
	Duration time.Duration
	At       time.Time
}

// WriteOverview records an overview build. No-op on a nil or closed client.
func (c *Client) WriteOverview(s OverviewStats) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(OverviewPoint(s))
}

// WriteActivation records an activation. No-op on a nil or closed client.
func (c *Client) WriteActivation(r ActivationRecord) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ActivationPoint(r))
}

// OverviewPoint builds the point written by WriteOverview.
func OverviewPoint(s OverviewStats) *write.Point {
	return write.NewPoint(MeasurementOverview,
		map[string]string{"beamline": strings.Join(s.Beamlines, ",")},
		map[string]any{
			"tabs":        s.Tabs,
			"buttons":     s.Buttons,
			"rows":        s.Rows,
			"columns":     s.Columns,
			"devices":     s.Devices,
			"excluded":    s.Excluded,
			"duration_ms": float64(s.Duration) / float64(time.Millisecond),
		},
		timestamp(s.At))
}

// ActivationPoint builds the point written by WriteActivation.
func ActivationPoint(r ActivationRecord) *write.Point {
	return write.NewPoint(MeasurementActivation,
		map[string]string{
			"beamline": r.Beamline,
			"tab":      r.Tab,
			"label":    r.Label,
			"kind":     r.Kind,
		},
		map[string]any{
			"success":     r.Success,
			"duration_ms": float64(r.Duration) / float64(time.Millisecond),
		},
		timestamp(r.At))
}

func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
