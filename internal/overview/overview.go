// Package overview composes the document handed to the host GUI: the laid
// out Quick Access Toolbar, the device grid and the presentation theme.
package overview

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/lucid-core/internal/grid"
	"github.com/nerrad567/lucid-core/internal/toolbar"
)

// ErrNoBeamline is returned by Build when no beamline is given.
var ErrNoBeamline = errors.New("overview: at least one beamline is required")

// Theme carries presentation hints.
type Theme struct {
	Dark       bool   `json:"dark"`
	Stylesheet string `json:"stylesheet,omitempty"`
}

// Overview is the complete home screen description for a set of beamlines.
type Overview struct {
	ID        string           `json:"id"`
	Beamlines []string         `json:"beamlines"`
	Title     string           `json:"title"`
	Theme     Theme            `json:"theme"`
	Toolbar   *toolbar.Toolbar `json:"toolbar,omitempty"`
	Grid      *grid.Grid       `json:"grid"`
	// GeneratedAt is UTC.
	GeneratedAt time.Time `json:"generated_at"`
}

// Input gathers everything Build needs.
type Input struct {
	Beamlines []string
	// Toolbar may be nil when no toolbar file was given.
	Toolbar  *toolbar.Toolbar
	Entities []grid.Entity
	RowKey   string
	ColKey   string
	Theme    Theme
}

// Title returns the window title for beamlines.
func Title(beamlines []string) string {
	return "LUCID - " + strings.Join(beamlines, ", ")
}

// Build groups the entities and assembles the overview. Empty group keys
// fall back to the grid defaults.
func Build(in Input) (*Overview, error) {
	if len(in.Beamlines) == 0 {
		return nil, ErrNoBeamline
	}

	rowKey, colKey := in.RowKey, in.ColKey
	if rowKey == "" {
		rowKey = grid.DefaultRowKey
	}
	if colKey == "" {
		colKey = grid.DefaultColKey
	}

	return &Overview{
		ID:          uuid.NewString(),
		Beamlines:   append([]string(nil), in.Beamlines...),
		Title:       Title(in.Beamlines),
		Theme:       in.Theme,
		Toolbar:     in.Toolbar,
		Grid:        grid.Group(in.Entities, rowKey, colKey),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Find returns the toolbar control labelled label on tab.
func (o *Overview) Find(tab, label string) (toolbar.Control, bool) {
	if o == nil {
		return toolbar.Control{}, false
	}
	return o.Toolbar.Find(tab, label)
}

// Counts returns the number of tabs and buttons in the toolbar.
func (o *Overview) Counts() (tabs, buttons int) {
	if o == nil || o.Toolbar == nil {
		return 0, 0
	}
	for _, t := range o.Toolbar.Tabs {
		buttons += len(t.Placements)
	}
	return len(o.Toolbar.Tabs), buttons
}

// Search finds the grid cells matching text, best first. See grid.ParseQuery
// for the query syntax.
func (o *Overview) Search(text string, threshold int) []grid.Match {
	if o == nil {
		return nil
	}
	return o.Grid.Search(grid.ParseQuery(text), threshold)
}

// Encode writes ov to w as indented JSON.
func Encode(w io.Writer, ov *Overview) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ov); err != nil {
		return fmt.Errorf("encoding overview: %w", err)
	}
	return nil
}
