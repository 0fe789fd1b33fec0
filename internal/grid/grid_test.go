package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(name, r, c string) Entity {
	md := map[string]string{}
	if r != "" {
		md["r"] = r
	}
	if c != "" {
		md["c"] = c
	}
	return Entity{Name: name, Metadata: md}
}

func TestGroup_SortedHeadersAndCells(t *testing.T) {
	g := Group([]Entity{
		entity("x", "B", "2"),
		entity("y", "A", "1"),
		entity("z", "A", "2"),
	}, "r", "c")

	assert.Equal(t, []string{"A", "B"}, g.Rows)
	assert.Equal(t, []string{"1", "2"}, g.Columns)

	tests := []struct {
		row, col string
		want     int
	}{
		{"A", "1", 1},
		{"A", "2", 1},
		{"B", "1", 0},
		{"B", "2", 1},
	}
	for _, tt := range tests {
		cell, ok := g.Cell(tt.row, tt.col)
		require.True(t, ok, "cell (%s,%s) should exist", tt.row, tt.col)
		assert.Len(t, cell.Entities, tt.want, "cell (%s,%s)", tt.row, tt.col)
		assert.Equal(t, tt.row, cell.Row)
		assert.Equal(t, tt.col, cell.Column)
	}

	assert.Equal(t, 3, g.Len())
	assert.Empty(t, g.Excluded)
}

func TestGroup_ExcludesMissingKeys(t *testing.T) {
	g := Group([]Entity{
		entity("row-only", "A", ""),
		entity("col-only", "", "1"),
	}, "r", "c")

	assert.Empty(t, g.Rows)
	assert.Empty(t, g.Columns)
	assert.Empty(t, g.Cells)
	assert.Len(t, g.Excluded, 2)
}

func TestGroup_EmptyValueIsMissing(t *testing.T) {
	g := Group([]Entity{
		{Name: "blank", Metadata: map[string]string{"r": "", "c": "1"}},
		entity("ok", "A", "1"),
	}, "r", "c")

	assert.Equal(t, []string{"A"}, g.Rows)
	require.Len(t, g.Excluded, 1)
	assert.Equal(t, "blank", g.Excluded[0].Name)
}

func TestGroup_CaseSensitiveOrdering(t *testing.T) {
	g := Group([]Entity{
		entity("1", "b", "x"),
		entity("2", "B", "x"),
		entity("3", "a", "x"),
		entity("4", "A", "x"),
	}, "r", "c")

	assert.Equal(t, []string{"A", "B", "a", "b"}, g.Rows)
}

func TestGroup_PreservesInputOrderWithinCell(t *testing.T) {
	g := Group([]Entity{
		entity("third", "A", "1"),
		entity("first", "A", "1"),
		entity("second", "A", "1"),
	}, "r", "c")

	cell, ok := g.Cell("A", "1")
	require.True(t, ok)
	names := []string{}
	for _, e := range cell.Entities {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"third", "first", "second"}, names)
}

func TestGroup_EmptyInput(t *testing.T) {
	g := Group(nil, DefaultRowKey, DefaultColKey)
	assert.Empty(t, g.Rows)
	assert.Empty(t, g.Columns)
	assert.Zero(t, g.Len())
	assert.Equal(t, DefaultRowKey, g.RowKey)
}

func TestGroup_Idempotent(t *testing.T) {
	in := []Entity{
		entity("x", "DG2", "Vacuum"),
		entity("y", "DG1", "Motion"),
		entity("z", "DG1", "Vacuum"),
		entity("w", "", "Vacuum"),
	}
	assert.Equal(t, Group(in, "r", "c"), Group(in, "r", "c"))
}

func TestGrid_CellUnknownHeader(t *testing.T) {
	g := Group([]Entity{entity("x", "A", "1")}, "r", "c")
	_, ok := g.Cell("Z", "1")
	assert.False(t, ok)
	_, ok = g.Cell("A", "9")
	assert.False(t, ok)
}

func TestGrid_EachVisitsEveryCell(t *testing.T) {
	g := Group([]Entity{
		entity("x", "B", "2"),
		entity("y", "A", "1"),
	}, "r", "c")

	var visited []string
	g.Each(func(c Cell) { visited = append(visited, c.Row+c.Column) })
	assert.Equal(t, []string{"A1", "A2", "B1", "B2"}, visited)
}
