package toolbar

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func inertButtons(n int) []Button {
	buttons := make([]Button, n)
	for i := range buttons {
		buttons[i] = Button{Label: fmt.Sprintf("b%d", i), Kind: KindInert}
	}
	return buttons
}

func positions(layout TabLayout) [][2]int {
	out := make([][2]int, len(layout.Placements))
	for i, p := range layout.Placements {
		out[i] = [2]int{p.Row, p.Col}
	}
	return out
}

func TestArrange_RowMajor(t *testing.T) {
	layout, err := Arrange(Tab{Name: "T", Columns: 3, Buttons: inertButtons(5)})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}}, positions(layout))
	assert.Equal(t, 2, layout.Rows)
	assert.Equal(t, 3, layout.Cols)
}

func TestArrange_ColumnMajor(t *testing.T) {
	layout, err := Arrange(Tab{Name: "T", Columns: 3, Fill: FillColumnMajor, Buttons: inertButtons(5)})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{0, 0}, {1, 0}, {2, 0}, {0, 1}, {1, 1}}, positions(layout))
	assert.Equal(t, 3, layout.Rows)
	assert.Equal(t, 2, layout.Cols)
}

func TestArrange_PositionFormula(t *testing.T) {
	for _, cols := range []int{1, 2, 4, 7} {
		layout, err := Arrange(Tab{Name: "T", Columns: cols, Buttons: inertButtons(20)})
		require.NoError(t, err)
		for i, p := range layout.Placements {
			assert.Equal(t, i/cols, p.Row, "cols=%d i=%d", cols, i)
			assert.Equal(t, i%cols, p.Col, "cols=%d i=%d", cols, i)
			assert.Equal(t, fmt.Sprintf("b%d", i), p.Control.Label)
		}
	}
}

func TestArrange_Empty(t *testing.T) {
	layout, err := Arrange(Tab{Name: "T", Columns: 4})
	require.NoError(t, err)
	assert.Empty(t, layout.Placements)
	assert.Zero(t, layout.Rows)
	assert.Zero(t, layout.Cols)
}

func TestArrange_InvalidColumns(t *testing.T) {
	_, err := Arrange(Tab{Name: "T", Columns: 0, Buttons: inertButtons(1)})
	assert.ErrorIs(t, err, ErrInvalidColumns)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestArrange_InvalidButton(t *testing.T) {
	_, err := Arrange(Tab{Name: "T", Columns: 2, Buttons: []Button{{Label: "x", Kind: KindShell}}})
	assert.ErrorIs(t, err, ErrMissingProperty)
}

func TestLayoutSpec(t *testing.T) {
	spec, err := Parse([]byte(sampleToolbar))
	require.NoError(t, err)

	tb, err := LayoutSpec(spec)
	require.NoError(t, err)
	require.Len(t, tb.Tabs, 3)

	experiment := tb.Tabs[0]
	assert.Equal(t, "Experiment", experiment.Name)
	require.Len(t, experiment.Placements, 3)
	assert.Equal(t, KindDisplay, experiment.Placements[1].Control.Kind)
	assert.Equal(t, 0, experiment.Placements[2].Row)
	assert.Equal(t, 2, experiment.Placements[2].Col)

	c, ok := tb.Find("Experiment", "Beam Status")
	require.True(t, ok)
	assert.Equal(t, "beam_status.ui", c.Display.Targets[0].Filename)

	_, ok = tb.Find("Experiment", "Missing")
	assert.False(t, ok)
}

func TestLayoutSpec_Nil(t *testing.T) {
	_, err := LayoutSpec(nil)
	assert.ErrorIs(t, err, ErrConfig)
}
