package toolbar

import "fmt"

// Placement is a control positioned in its tab grid.
type Placement struct {
	Row     int     `json:"row"`
	Col     int     `json:"col"`
	Control Control `json:"control"`
}

// TabLayout is a tab with every button placed.
type TabLayout struct {
	Name    string `json:"name"`
	Columns int    `json:"columns"`
	Fill    Fill   `json:"fill"`
	// Rows and Cols are the extent of the occupied grid.
	Rows       int         `json:"rows"`
	Cols       int         `json:"cols"`
	Placements []Placement `json:"placements"`
}

// Toolbar is the laid out toolbar handed to the host GUI.
type Toolbar struct {
	Tabs []TabLayout `json:"tabs"`
}

// Find returns the control labelled label on tab tabName.
func (t *Toolbar) Find(tabName, label string) (Control, bool) {
	if t == nil {
		return Control{}, false
	}
	for _, tab := range t.Tabs {
		if tab.Name != tabName {
			continue
		}
		for _, p := range tab.Placements {
			if p.Control.Label == label {
				return p.Control, true
			}
		}
	}
	return Control{}, false
}

// Position returns the cell of the i-th button (0-indexed) in a grid of size
// columns. Row-major fill gives (i div size, i mod size); column-major fill
// transposes it. size must be at least 1.
func Position(i, size int, fill Fill) (row, col int) {
	row, col = i/size, i%size
	if fill == FillColumnMajor {
		row, col = col, row
	}
	return row, col
}

// Arrange places every button of tab. Placement depends only on declaration
// order and the column count, never on button content.
func Arrange(tab Tab) (TabLayout, error) {
	if tab.Columns < 1 {
		return TabLayout{}, configErr(tab.Name, 0, ErrInvalidColumns, "columns must be at least 1, got %d", tab.Columns)
	}

	layout := TabLayout{
		Name:       tab.Name,
		Columns:    tab.Columns,
		Fill:       tab.Fill,
		Placements: make([]Placement, 0, len(tab.Buttons)),
	}

	for i, btn := range tab.Buttons {
		control, err := NewControl(btn)
		if err != nil {
			return TabLayout{}, configErr(tab.Name+"/"+keyButtons+"/"+btn.Label, 0, err, "building %s button", btn.Kind)
		}

		row, col := Position(i, tab.Columns, tab.Fill)
		layout.Placements = append(layout.Placements, Placement{Row: row, Col: col, Control: control})

		layout.Rows = max(layout.Rows, row+1)
		layout.Cols = max(layout.Cols, col+1)
	}
	return layout, nil
}

// LayoutSpec arranges every tab of spec in document order.
func LayoutSpec(spec *Spec) (*Toolbar, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: nil spec", ErrConfig)
	}

	tb := &Toolbar{Tabs: make([]TabLayout, 0, len(spec.Tabs))}
	for _, tab := range spec.Tabs {
		layout, err := Arrange(tab)
		if err != nil {
			return nil, err
		}
		tb.Tabs = append(tb.Tabs, layout)
	}
	return tb, nil
}
