// Package grid groups devices into the LUCID overview grid.
//
// Each entity carries string metadata. Two metadata keys are chosen as the
// row and column group keys (location_group and functional_group by
// default). The distinct values of each key, sorted in byte order, become the
// row and column headers, and every entity is placed in the cell at the
// intersection of its two values. Every intersection is a cell, including
// empty ones.
//
// Entities missing either key, or holding an empty value for it, are left out
// of the grid and reported in Grid.Excluded. This is not an error.
package grid

import (
	"slices"
	"sort"
)

// Default group keys.
const (
	DefaultRowKey = "location_group"
	DefaultColKey = "functional_group"
)

// Entity is one device as seen by the grid.
type Entity struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Value returns the metadata value for key. Empty values count as missing.
func (e Entity) Value(key string) (string, bool) {
	v, ok := e.Metadata[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Cell is the intersection of one row header and one column header.
type Cell struct {
	Row      string   `json:"row"`
	Column   string   `json:"column"`
	Entities []Entity `json:"entities"`
}

// Grid is the grouped arrangement of entities.
type Grid struct {
	RowKey  string   `json:"row_key"`
	ColKey  string   `json:"col_key"`
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	// Cells is indexed [row][column] in header order.
	Cells    [][]Cell `json:"cells"`
	Excluded []Entity `json:"excluded,omitempty"`
}

// Group arranges entities by rowKey and colKey.
//
// Entities keep their input order within a cell. Group has no side effects
// and never modifies entities.
func Group(entities []Entity, rowKey, colKey string) *Grid {
	g := &Grid{
		RowKey:  rowKey,
		ColKey:  colKey,
		Rows:    []string{},
		Columns: []string{},
		Cells:   [][]Cell{},
	}

	type placed struct {
		row, col string
		entity   Entity
	}
	kept := make([]placed, 0, len(entities))
	rowSet := make(map[string]struct{})
	colSet := make(map[string]struct{})

	for _, e := range entities {
		r, okRow := e.Value(rowKey)
		c, okCol := e.Value(colKey)
		if !okRow || !okCol {
			g.Excluded = append(g.Excluded, e)
			continue
		}
		rowSet[r] = struct{}{}
		colSet[c] = struct{}{}
		kept = append(kept, placed{row: r, col: c, entity: e})
	}

	g.Rows = sortedSet(rowSet)
	g.Columns = sortedSet(colSet)

	rowIndex := indexOf(g.Rows)
	colIndex := indexOf(g.Columns)

	g.Cells = make([][]Cell, len(g.Rows))
	for i, r := range g.Rows {
		g.Cells[i] = make([]Cell, len(g.Columns))
		for j, c := range g.Columns {
			g.Cells[i][j] = Cell{Row: r, Column: c, Entities: []Entity{}}
		}
	}

	for _, p := range kept {
		cell := &g.Cells[rowIndex[p.row]][colIndex[p.col]]
		cell.Entities = append(cell.Entities, p.entity)
	}

	return g
}

// Cell returns the cell at the given header values.
func (g *Grid) Cell(row, col string) (Cell, bool) {
	i, okRow := slices.BinarySearch(g.Rows, row)
	j, okCol := slices.BinarySearch(g.Columns, col)
	if !okRow || !okCol {
		return Cell{}, false
	}
	return g.Cells[i][j], true
}

// Len returns the number of entities placed in the grid.
func (g *Grid) Len() int {
	n := 0
	for _, row := range g.Cells {
		for _, cell := range row {
			n += len(cell.Entities)
		}
	}
	return n
}

// Each calls fn for every cell in row-major header order.
func (g *Grid) Each(fn func(Cell)) {
	for _, row := range g.Cells {
		for _, cell := range row {
			fn(cell)
		}
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func indexOf(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[h] = i
	}
	return idx
}
