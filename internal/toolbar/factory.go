package toolbar

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind-specific property names. They are consumed by the factory and not
// forwarded as presentation properties.
const (
	propCommands       = "commands"
	propRedirectOutput = "redirectCommandOutput"
	propFilenames      = "filenames"
	propMacros         = "macros"
)

// Control is the resolved descriptor of a toolbar button, ready for the host
// GUI to render and for the activation package to execute.
type Control struct {
	Label   string         `json:"label"`
	Kind    Kind           `json:"kind"`
	Shell   *ShellAction   `json:"shell,omitempty"`
	Display *DisplayAction `json:"display,omitempty"`
	// Presentation holds properties forwarded untouched to the host GUI
	// (font, colours, tool tips, enabled state and so on).
	Presentation map[string]Value `json:"presentation,omitempty"`
}

// ShellAction runs Commands in order as external processes.
type ShellAction struct {
	Commands       []string `json:"commands"`
	RedirectOutput bool     `json:"redirect_output"`
}

// DisplayAction opens each target through the display launcher.
type DisplayAction struct {
	Targets []DisplayTarget `json:"targets"`
}

// DisplayTarget is one display file with its macros already applied to the
// filename.
type DisplayTarget struct {
	Filename string            `json:"filename"`
	Macros   map[string]string `json:"macros,omitempty"`
}

// NewControl resolves a Button into a Control.
//
// Shell buttons require a non-empty commands list and display buttons a
// non-empty filenames list; the errors match ErrMissingProperty or
// ErrInvalidProperty. Inert buttons never fail.
func NewControl(b Button) (Control, error) {
	props := make(map[string]Value, len(b.Properties))
	for k, v := range b.Properties {
		props[k] = v
	}

	c := Control{Label: b.Label, Kind: b.Kind}

	switch b.Kind {
	case KindShell:
		action, err := shellAction(props)
		if err != nil {
			return Control{}, err
		}
		c.Shell = action
	case KindDisplay:
		action, err := displayAction(props)
		if err != nil {
			return Control{}, err
		}
		c.Display = action
	}

	if len(props) > 0 {
		c.Presentation = props
	}
	return c, nil
}

func shellAction(props map[string]Value) (*ShellAction, error) {
	raw, ok := props[propCommands]
	if !ok || raw.IsNull() {
		return nil, fmt.Errorf("%w: %q", ErrMissingProperty, propCommands)
	}
	commands, err := stringList(propCommands, raw)
	if err != nil {
		return nil, err
	}
	delete(props, propCommands)

	action := &ShellAction{Commands: commands}
	if v, ok := props[propRedirectOutput]; ok {
		if !v.IsNull() {
			redirect, isBool := v.AsBool()
			if !isBool {
				return nil, fmt.Errorf("%w: %q must be a boolean, got %s", ErrInvalidProperty, propRedirectOutput, v)
			}
			action.RedirectOutput = redirect
		}
		delete(props, propRedirectOutput)
	}
	return action, nil
}

func displayAction(props map[string]Value) (*DisplayAction, error) {
	raw, ok := props[propFilenames]
	if !ok || raw.IsNull() {
		return nil, fmt.Errorf("%w: %q", ErrMissingProperty, propFilenames)
	}
	filenames, err := stringList(propFilenames, raw)
	if err != nil {
		return nil, err
	}
	delete(props, propFilenames)

	var macroSets []map[string]string
	if v, ok := props[propMacros]; ok {
		macroSets, err = parseMacros(v)
		if err != nil {
			return nil, err
		}
		delete(props, propMacros)
	}

	if n := len(macroSets); n > 1 && n != len(filenames) {
		return nil, fmt.Errorf("%w: %d macro sets for %d filenames (expected 1 or %d)",
			ErrInvalidProperty, n, len(filenames), len(filenames))
	}

	targets := make([]DisplayTarget, len(filenames))
	for i, name := range filenames {
		var macros map[string]string
		switch len(macroSets) {
		case 0:
		case 1:
			macros = macroSets[0]
		default:
			macros = macroSets[i]
		}
		targets[i] = DisplayTarget{
			Filename: ExpandMacros(name, macros),
			Macros:   macros,
		}
	}
	return &DisplayAction{Targets: targets}, nil
}

// stringList accepts a list of strings or a single string.
func stringList(name string, v Value) ([]string, error) {
	if s, ok := v.AsString(); ok {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: %q must not be empty", ErrMissingProperty, name)
		}
		return []string{s}, nil
	}

	items, ok := v.AsList()
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a list of strings, got %s", ErrInvalidProperty, name, v)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %q must not be empty", ErrMissingProperty, name)
	}

	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.AsString()
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: %q[%d] must be a non-empty string, got %s", ErrInvalidProperty, name, i, item)
		}
		out[i] = s
	}
	return out, nil
}

// parseMacros accepts a mapping, a list of mappings, or a JSON object string.
func parseMacros(v Value) ([]map[string]string, error) {
	switch v.Kind() {
	case ValueNull:
		return nil, nil
	case ValueMap:
		m, _ := v.AsMap()
		return []map[string]string{stringifyMacros(m)}, nil
	case ValueString:
		s, _ := v.AsString()
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %q string must be a JSON object: %w", ErrInvalidProperty, propMacros, err)
		}
		m := make(map[string]Value, len(decoded))
		for k, x := range decoded {
			m[k] = valueFromAny(x)
		}
		return []map[string]string{stringifyMacros(m)}, nil
	case ValueList:
		items, _ := v.AsList()
		sets := make([]map[string]string, len(items))
		for i, item := range items {
			if item.IsNull() {
				sets[i] = map[string]string{}
				continue
			}
			m, ok := item.AsMap()
			if !ok {
				return nil, fmt.Errorf("%w: %q[%d] must be a mapping, got %s", ErrInvalidProperty, propMacros, i, item)
			}
			sets[i] = stringifyMacros(m)
		}
		return sets, nil
	default:
		return nil, fmt.Errorf("%w: %q must be a mapping or a list of mappings, got %s", ErrInvalidProperty, propMacros, v)
	}
}

func stringifyMacros(m map[string]Value) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.Text()
	}
	return out
}

// ExpandMacros substitutes $name and ${name} references in s from macros.
// References without a macro are left as written and "$$" yields "$".
func ExpandMacros(s string, macros map[string]string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] != '$' || i+1 >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}

		next := s[i+1]
		switch {
		case next == '$':
			b.WriteByte('$')
			i += 2
		case next == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteString(s[i:])
				return b.String()
			}
			name := s[i+2 : i+2+end]
			if val, ok := macros[name]; ok && isIdentifier(name) {
				b.WriteString(val)
			} else {
				b.WriteString(s[i : i+3+end])
			}
			i += 3 + end
		case isIdentStart(next):
			j := i + 2
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			name := s[i+1 : j]
			if val, ok := macros[name]; ok {
				b.WriteString(val)
			} else {
				b.WriteString(s[i:j])
			}
			i = j
		default:
			b.WriteByte('$')
			i++
		}
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
