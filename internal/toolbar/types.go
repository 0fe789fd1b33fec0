package toolbar

import "fmt"

// DefaultColumns is the column count used when a tab omits config.cols.
const DefaultColumns = 4

// Kind is the behaviour class of a toolbar button.
type Kind int

const (
	// KindInert is a button without activation behaviour. It is what any
	// missing or unrecognised type falls back to.
	KindInert Kind = iota
	// KindShell runs a list of commands as external processes.
	KindShell
	// KindDisplay opens one or more display files with macro substitution.
	KindDisplay
)

// Declared type values recognised in button definitions.
const (
	typeShell   = "shell"
	typeDisplay = "display"
)

// kindFromType maps the declared type string to a Kind.
// The second result is false when the type is non-empty but unrecognised.
func kindFromType(t string) (Kind, bool) {
	switch t {
	case typeShell:
		return KindShell, true
	case typeDisplay:
		return KindDisplay, true
	case "":
		return KindInert, true
	default:
		return KindInert, false
	}
}

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindShell:
		return "shell"
	case KindDisplay:
		return "display"
	case KindInert:
		return "inert"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Fill is the order in which buttons populate a tab grid.
type Fill int

const (
	// FillRowMajor fills left to right, then top to bottom.
	FillRowMajor Fill = iota
	// FillColumnMajor fills top to bottom, then left to right.
	FillColumnMajor
)

// Config values for Fill.
const (
	directionHorizontal = "horizontal"
	directionVertical   = "vertical"
)

func (f Fill) String() string {
	if f == FillColumnMajor {
		return directionVertical
	}
	return directionHorizontal
}

// MarshalText implements encoding.TextMarshaler.
func (f Fill) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Spec is a parsed toolbar document. Tabs are in document order.
type Spec struct {
	Tabs []Tab
}

// Tab returns the tab with the given name.
func (s *Spec) Tab(name string) (Tab, bool) {
	for _, t := range s.Tabs {
		if t.Name == name {
			return t, true
		}
	}
	return Tab{}, false
}

// Tab is a named group of buttons laid out on a fixed number of columns.
type Tab struct {
	Name    string
	Columns int
	Fill    Fill
	Buttons []Button
}

// Button is one declared toolbar entry.
type Button struct {
	Label string
	Kind  Kind
	// Type is the type string exactly as declared, empty when absent.
	Type string
	// Properties holds every declared key other than type.
	Properties map[string]Value
}
