package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/lucid-core/internal/device"
	"github.com/nerrad567/lucid-core/internal/infrastructure/database"
	"github.com/nerrad567/lucid-core/internal/toolbar"
	"github.com/nerrad567/lucid-core/migrations"
)

const testToolbar = `
Experiment:
  config:
    cols: 2
  buttons:
    "Open Terminal":
      type: shell
      commands: ["echo hello"]
    "Beam Status":
      type: display
      filenames: ["beam_status.ui"]
    "Notes": {}
`

// writeConfig writes a config file pointing the database into a temp
// directory and returns its path. devices is appended to the devices section.
func writeConfig(t *testing.T, devices string) string {
	t.Helper()
	t.Setenv("LUCID_DATABASE_PATH", "")
	dir := t.TempDir()
	content := `
database:
  path: "` + filepath.Join(dir, "lucid.db") + `"
  wal_mode: true
  busy_timeout: 5
devices:
  demo_seed: 42
` + devices + `
logging:
  level: error
  format: text
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// runOverview runs the launcher and decodes the overview written to stdout.
func runOverview(t *testing.T, args ...string) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	if err := run(ctx, args, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}
	var ov map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &ov); err != nil {
		t.Fatalf("overview is not JSON: %v\n%s", err, stdout.String())
	}
	return ov
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := stdout.String(); got != "LUCID "+version+"\n" {
		t.Errorf("version output = %q", got)
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-h"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	usage := stderr.String()
	for _, want := range []string{description, "--toolbar", "--skip_happi", "--row_group_key", "--log_level", "--search", "--rollback_db"} {
		if !strings.Contains(usage, want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestRun_RequiresBeamline(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--skip_happi"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "beamline") {
		t.Fatalf("run() error = %v, want missing beamline error", err)
	}
}

func TestRun_InvalidLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--log_level", "LOUD", "DEMO"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "--log_level") {
		t.Fatalf("run() error = %v, want invalid log level error", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", "/nonexistent/path/config.yaml", "DEMO"}, &stdout, &stderr)
	if err == nil {
		t.Fatal("run() should fail with an explicit missing config path")
	}
}

func TestRun_Demo(t *testing.T) {
	cfg := writeConfig(t, "")
	tb := writeFile(t, "toolbar.yaml", testToolbar)

	ov := runOverview(t, "--config", cfg, "--toolbar", tb, "--log_level", "debug", "--dark", "DEMO")

	if ov["title"] != "LUCID - DEMO" {
		t.Errorf("title = %v", ov["title"])
	}
	theme := ov["theme"].(map[string]any)
	if theme["dark"] != true {
		t.Errorf("theme.dark = %v, want true", theme["dark"])
	}

	g := ov["grid"].(map[string]any)
	wantRows := slices.Sorted(slices.Values(device.DemoStands))
	if got := stringList(g["rows"]); !slices.Equal(got, wantRows) {
		t.Errorf("rows = %v, want %v", got, wantRows)
	}
	wantCols := slices.Sorted(slices.Values(device.DemoSystems))
	if got := stringList(g["columns"]); !slices.Equal(got, wantCols) {
		t.Errorf("columns = %v, want %v", got, wantCols)
	}

	tabs := ov["toolbar"].(map[string]any)["tabs"].([]any)
	if len(tabs) != 1 {
		t.Fatalf("tabs = %d, want 1", len(tabs))
	}
	placements := tabs[0].(map[string]any)["placements"].([]any)
	if len(placements) != 3 {
		t.Fatalf("placements = %d, want 3", len(placements))
	}
	third := placements[2].(map[string]any)
	if third["row"] != float64(1) || third["col"] != float64(0) {
		t.Errorf("third button at (%v,%v), want (1,0)", third["row"], third["col"])
	}
}

func TestRun_DemoDeterministicForSeed(t *testing.T) {
	cfg := writeConfig(t, "")

	first := runOverview(t, "--config", cfg, "DEMO")
	second := runOverview(t, "--config", cfg, "DEMO")

	a, _ := json.Marshal(first["grid"])
	b, _ := json.Marshal(second["grid"])
	if !bytes.Equal(a, b) {
		t.Error("DEMO grid differs between runs with the same seed")
	}
}

func TestRun_SkipHappi(t *testing.T) {
	cfg := writeConfig(t, "")

	ov := runOverview(t, "--config", cfg, "--skip_happi", "tmo")

	g := ov["grid"].(map[string]any)
	if rows := stringList(g["rows"]); len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
	if _, ok := ov["toolbar"]; ok {
		t.Error("toolbar should be omitted when no toolbar file is given")
	}
}

func TestRun_ImportedBeamline(t *testing.T) {
	happi := writeFile(t, "happi.json", `{
  "tmo_gate_valve": {"_id": "tmo_gate_valve", "name": "tmo_gate_valve", "beamline": "TMO", "active": true,
                     "location_group": "DG1", "functional_group": "Vacuum"},
  "tmo_retired":    {"beamline": "TMO", "active": false, "location_group": "DG1", "functional_group": "Vacuum"},
  "tmo_motor":      {"beamline": "TMO", "location_group": "DG2", "functional_group": "Motion"},
  "tmo_unplaced":   {"beamline": "TMO", "location_group": "DG2"},
  "rix_motor":      {"beamline": "RIX", "location_group": "DG1", "functional_group": "Motion"}
}`)
	cfg := writeConfig(t, "  import_path: \""+happi+"\"")

	ov := runOverview(t, "--config", cfg, "TMO")

	g := ov["grid"].(map[string]any)
	if got := stringList(g["rows"]); !slices.Equal(got, []string{"DG1", "DG2"}) {
		t.Errorf("rows = %v", got)
	}
	if got := stringList(g["columns"]); !slices.Equal(got, []string{"Motion", "Vacuum"}) {
		t.Errorf("columns = %v", got)
	}
	excluded, _ := g["excluded"].([]any)
	if len(excluded) != 1 || excluded[0].(map[string]any)["name"] != "tmo_unplaced" {
		t.Errorf("excluded = %v, want tmo_unplaced", excluded)
	}
}

func TestRun_Search(t *testing.T) {
	happi := writeFile(t, "happi.json", `{
  "tmo_gate_valve": {"beamline": "TMO", "location_group": "DG1", "functional_group": "Vacuum"},
  "tmo_motor":      {"beamline": "TMO", "location_group": "DG2", "functional_group": "Motion"}
}`)
	cfg := writeConfig(t, "  import_path: \""+happi+"\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var stdout, stderr bytes.Buffer
	if err := run(ctx, []string{"--config", cfg, "--search", "gate_valve", "TMO"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	var matches []map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &matches); err != nil {
		t.Fatalf("search results are not JSON: %v\n%s", err, stdout.String())
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want one", matches)
	}
	cell := matches[0]["cell"].(map[string]any)
	if cell["row"] != "DG1" || cell["column"] != "Vacuum" {
		t.Errorf("matched cell = %v/%v, want DG1/Vacuum", cell["row"], cell["column"])
	}
	if matches[0]["reason"] != "tmo_gate_valve" {
		t.Errorf("reason = %v", matches[0]["reason"])
	}
}

func TestRun_PruneImport(t *testing.T) {
	happi := writeFile(t, "happi.json", `{
  "tmo_motor": {"beamline": "TMO", "location_group": "DG2", "functional_group": "Motion"},
  "tmo_old":   {"beamline": "TMO", "location_group": "DG9", "functional_group": "Vacuum"}
}`)
	cfg := writeConfig(t, "  import_path: \""+happi+"\"\n  prune_import: true")

	g := runOverview(t, "--config", cfg, "TMO")["grid"].(map[string]any)
	if got := stringList(g["rows"]); !slices.Equal(got, []string{"DG2", "DG9"}) {
		t.Fatalf("rows = %v", got)
	}

	if err := os.WriteFile(happi, []byte(`{"tmo_motor": {"beamline": "TMO", "location_group": "DG2", "functional_group": "Motion"}}`), 0600); err != nil {
		t.Fatalf("rewriting import: %v", err)
	}
	g = runOverview(t, "--config", cfg, "TMO")["grid"].(map[string]any)
	if got := stringList(g["rows"]); !slices.Equal(got, []string{"DG2"}) {
		t.Errorf("rows after prune = %v, want [DG2]", got)
	}
}

func TestRun_RollbackDB(t *testing.T) {
	cfg := writeConfig(t, "")
	runOverview(t, "--config", cfg, "DEMO")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--config", cfg, "--rollback_db"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v\nstderr: %s", err, stderr.String())
	}

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(filepath.Dir(cfg), "lucid.db")})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 0/1", len(applied), len(pending))
	}

	// The next run migrates up again.
	runOverview(t, "--config", cfg, "DEMO")
}

func TestRun_CustomGroupKeys(t *testing.T) {
	cfg := writeConfig(t, "")

	ov := runOverview(t, "--config", cfg, "--row_group_key", "functional_group", "--col_group_key", "location_group", "DEMO")

	g := ov["grid"].(map[string]any)
	if g["row_key"] != "functional_group" {
		t.Errorf("row_key = %v", g["row_key"])
	}
	if got := stringList(g["rows"]); !slices.Equal(got, slices.Sorted(slices.Values(device.DemoSystems))) {
		t.Errorf("rows = %v", got)
	}
}

func TestRun_NoEntries(t *testing.T) {
	cfg := writeConfig(t, "")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfg, "nowhere"}, &stdout, &stderr)
	if !errors.Is(err, device.ErrNoEntries) {
		t.Fatalf("run() error = %v, want ErrNoEntries", err)
	}
	if !strings.Contains(stderr.String(), "CRITICAL") {
		t.Errorf("expected a CRITICAL log record, got %q", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Error("no overview should be written on failure")
	}
}

func TestRun_InvalidToolbar(t *testing.T) {
	cfg := writeConfig(t, "")
	tb := writeFile(t, "toolbar.yaml", "Experiment:\n  config:\n    cols: 0\n  buttons: {}\n")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--config", cfg, "--toolbar", tb, "--skip_happi", "DEMO"}, &stdout, &stderr)
	if !errors.Is(err, toolbar.ErrConfig) {
		t.Fatalf("run() error = %v, want toolbar.ErrConfig", err)
	}
}

func TestRun_OutputFile(t *testing.T) {
	cfg := writeConfig(t, "")
	out := filepath.Join(t.TempDir(), "overview.json")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"--config", cfg, "--output", out, "--skip_happi", "DEMO", "RIX"}, &stdout, &stderr); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if stdout.Len() != 0 {
		t.Error("overview should not be written to stdout with --output")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	var ov map[string]any
	if err := json.Unmarshal(data, &ov); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if ov["title"] != "LUCID - DEMO, RIX" {
		t.Errorf("title = %v", ov["title"])
	}
}

func TestParseArgs_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"DEBUG", "info", "warn", "WARN", "Warning", "error", "CRITICAL"} {
		opts, err := parseArgs([]string{"--log_level", level, "DEMO"}, &bytes.Buffer{})
		if err != nil {
			t.Errorf("parseArgs(%q) error = %v", level, err)
			continue
		}
		if opts.logLevel != level {
			t.Errorf("logLevel = %q, want %q", opts.logLevel, level)
		}
	}
}
