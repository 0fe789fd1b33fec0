package device

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/lucid-core/internal/grid"
)

type staticSource map[string][]Entry

func (s staticSource) Search(_ context.Context, beamline string) ([]Entry, error) {
	return s[beamline], nil
}

type failingSource struct{ err error }

func (f failingSource) Search(context.Context, string) ([]Entry, error) { return nil, f.err }

func TestDemoSource_Shape(t *testing.T) {
	entries, err := NewDemoSource(42).Search(context.Background(), DemoBeamline)
	require.NoError(t, err)

	perCell := map[[2]string]int{}
	for _, e := range entries {
		assert.Equal(t, DemoBeamline, e.Beamline)
		assert.True(t, e.Active)
		stand := e.Metadata[grid.DefaultRowKey].(string)
		system := e.Metadata[grid.DefaultColKey].(string)
		perCell[[2]string{stand, system}]++
	}

	assert.Len(t, perCell, len(DemoStands)*len(DemoSystems))
	for cell, n := range perCell {
		assert.GreaterOrEqual(t, n, 1, "%v", cell)
		assert.LessOrEqual(t, n, demoMaxPerCell, "%v", cell)
	}
	assert.Equal(t, "dia_timing_0", entries[0].Name)
}

func TestDemoSource_Deterministic(t *testing.T) {
	a, err := NewDemoSource(7).Search(context.Background(), DemoBeamline)
	require.NoError(t, err)
	b, err := NewDemoSource(7).Search(context.Background(), DemoBeamline)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDemoSource_SystemNames(t *testing.T) {
	entries, err := NewDemoSource(1).Search(context.Background(), DemoBeamline)
	require.NoError(t, err)

	found := false
	for _, e := range entries {
		if e.Name == "tab_beam_control_0" {
			found = true
		}
	}
	assert.True(t, found, "multi-word systems are lower-cased and underscored")
}

func TestRepositorySource_ActiveOnly(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &Entry{Name: "on", Beamline: "tmo", Active: true}))
	require.NoError(t, repo.Upsert(ctx, &Entry{Name: "off", Beamline: "tmo", Active: false}))

	entries, err := NewRepositorySource(repo).Search(ctx, "tmo")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "on", entries[0].Name)
}

func TestRouter(t *testing.T) {
	r := Router{
		Default: staticSource{"tmo": {{Name: "real"}}},
		Routes:  map[string]Source{DemoBeamline: staticSource{DemoBeamline: {{Name: "fake"}}}},
	}

	got, err := r.Search(context.Background(), DemoBeamline)
	require.NoError(t, err)
	assert.Equal(t, "fake", got[0].Name)

	got, err = r.Search(context.Background(), "tmo")
	require.NoError(t, err)
	assert.Equal(t, "real", got[0].Name)

	got, err = Router{}.Search(context.Background(), "tmo")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollect(t *testing.T) {
	src := staticSource{
		"tmo": {{Name: "a", Metadata: map[string]any{"location_group": "DG1"}}},
		"rix": {{Name: "b"}, {Name: "c"}},
	}

	entities, err := Collect(context.Background(), src, []string{"tmo", "rix", "xpp"})
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, "a", entities[0].Name)
	assert.Equal(t, "DG1", entities[0].Metadata["location_group"])
	assert.Equal(t, "c", entities[2].Name)
}

func TestCollect_NoEntries(t *testing.T) {
	_, err := Collect(context.Background(), staticSource{}, []string{"tmo", "rix"})
	require.ErrorIs(t, err, ErrNoEntries)
	assert.Contains(t, err.Error(), "tmo, rix")
}

func TestCollect_SourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(context.Background(), failingSource{err: boom}, []string{"tmo"})
	assert.ErrorIs(t, err, boom)
}
