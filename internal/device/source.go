package device

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/nerrad567/lucid-core/internal/grid"
)

// Source finds the devices of one beamline.
type Source interface {
	Search(ctx context.Context, beamline string) ([]Entry, error)
}

// RepositorySource serves active entries from a Repository.
type RepositorySource struct {
	repo Repository
}

// NewRepositorySource wraps repo as a Source.
func NewRepositorySource(repo Repository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

// Search returns the active entries of beamline.
func (s *RepositorySource) Search(ctx context.Context, beamline string) ([]Entry, error) {
	return s.repo.Search(ctx, beamline, true)
}

// DemoBeamline is the beamline name served by DemoSource.
const DemoBeamline = "DEMO"

// Demo layout. Stands become location_group values and systems become
// functional_group values.
var (
	DemoStands  = []string{"DIA", "DG1", "TFS", "DG2", "TAB", "DET", "DG3"}
	DemoSystems = []string{"Timing", "Beam Control", "Diagnostics", "Motion", "Vacuum"}
)

const demoMaxPerCell = 12

// DemoSource generates a synthetic beamline: between 1 and 12 devices for
// every stand and system pair. Results depend only on the seed.
type DemoSource struct {
	seed uint64
}

// NewDemoSource returns a demo source. A zero seed picks one from the clock.
func NewDemoSource(seed int64) *DemoSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DemoSource{seed: uint64(seed)} //nolint:gosec // Any bit pattern is a valid seed
}

// Search returns the synthetic devices, labelled with beamline.
func (d *DemoSource) Search(_ context.Context, beamline string) ([]Entry, error) {
	rng := rand.New(rand.NewPCG(d.seed, d.seed^0x9e3779b97f4a7c15)) //nolint:gosec // Demo data only

	var entries []Entry
	for _, stand := range DemoStands {
		for _, system := range DemoSystems {
			count := rng.IntN(demoMaxPerCell) + 1
			systemName := strings.ReplaceAll(strings.ToLower(system), " ", "_")
			for i := range count {
				entries = append(entries, Entry{
					Name:        fmt.Sprintf("%s_%s_%d", strings.ToLower(stand), systemName, i),
					Beamline:    beamline,
					Active:      true,
					DeviceClass: "ophyd.sim.SynAxis",
					Metadata: map[string]any{
						grid.DefaultRowKey: stand,
						grid.DefaultColKey: system,
					},
				})
			}
		}
	}
	return entries, nil
}

// Router sends named beamlines to dedicated sources and every other
// beamline to Default. A nil Default finds nothing.
type Router struct {
	Default Source
	Routes  map[string]Source
}

// Search dispatches to the source registered for beamline.
func (r Router) Search(ctx context.Context, beamline string) ([]Entry, error) {
	if src, ok := r.Routes[beamline]; ok {
		return src.Search(ctx, beamline)
	}
	if r.Default == nil {
		return nil, nil
	}
	return r.Default.Search(ctx, beamline)
}

// Collect searches every beamline in order and converts the results into
// grid entities. It returns ErrNoEntries when no beamline yields an entry.
func Collect(ctx context.Context, src Source, beamlines []string) ([]grid.Entity, error) {
	var entities []grid.Entity
	for _, line := range beamlines {
		entries, err := src.Search(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("searching beamline %q: %w", line, err)
		}
		for _, e := range entries {
			entities = append(entities, e.Entity())
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w for beamline %s", ErrNoEntries, strings.Join(beamlines, ", "))
	}
	return entities, nil
}
