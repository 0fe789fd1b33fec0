package toolbar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recognised keys of a tab definition and its config block.
const (
	keyConfig    = "config"
	keyButtons   = "buttons"
	keyCols      = "cols"
	keyDirection = "direction"
	keyType      = "type"
)

// maxDocumentSize bounds the toolbar document read by Load.
const maxDocumentSize = 4 << 20 // 4MB

// Logger defines the logging interface used by the Loader.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Loader parses toolbar documents into a Spec.
//
// A Loader holds no state between calls; the same document always yields a
// structurally identical Spec.
type Loader struct {
	logger Logger

	// Strict rejects unrecognised button types with ErrUnknownKind instead
	// of falling back to an inert button.
	Strict bool
}

// NewLoader creates a Loader with lenient kind handling.
func NewLoader() *Loader {
	return &Loader{logger: noopLogger{}}
}

// SetLogger sets the logger for the loader.
func (l *Loader) SetLogger(logger Logger) {
	l.logger = logger
}

// Parse parses a toolbar document with a default Loader.
func Parse(data []byte) (*Spec, error) {
	return NewLoader().Parse(data)
}

// LoadFile reads and parses the toolbar document at path.
func (l *Loader) LoadFile(path string) (*Spec, error) {
	f, err := os.Open(path) //nolint:gosec // Path is supplied by the operator via --toolbar
	if err != nil {
		return nil, fmt.Errorf("opening toolbar file: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	spec, err := l.Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return spec, nil
}

// Load reads a toolbar document from r and parses it.
func (l *Loader) Load(r io.Reader) (*Spec, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading toolbar document: %w", err)
	}
	if len(data) > maxDocumentSize {
		return nil, configErr("", 0, nil, "document exceeds %d bytes", maxDocumentSize)
	}
	return l.Parse(data)
}

// Parse parses a toolbar document.
//
// Every button is resolved through NewControl before Parse returns, so a
// Spec returned without error lays out without error.
func (l *Loader) Parse(data []byte) (*Spec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, configErr("", 0, nil, "document is empty")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, configErr("", 0, err, "parsing YAML")
	}
	if len(doc.Content) == 0 {
		return nil, configErr("", 0, nil, "document is empty")
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, configErr("", root.Line, nil,
			"top level must be a mapping of tab name to tab definition, got %s", nodeKind(root))
	}

	tabs, err := mappingPairs(root)
	if err != nil {
		return nil, configErr("", root.Line, err, "expanding merge keys")
	}

	spec := &Spec{Tabs: make([]Tab, 0, len(tabs))}
	seen := make(map[string]int, len(tabs))

	for _, p := range tabs {
		keyNode := p.key
		name, err := nameFromKey(keyNode)
		if err != nil {
			return nil, configErr("", keyNode.Line, err, "invalid tab name")
		}
		if first, dup := seen[name]; dup {
			return nil, configErr(name, keyNode.Line, ErrDuplicateName,
				"tab already declared on line %d", first)
		}
		seen[name] = keyNode.Line

		tab, err := l.parseTab(name, p.val)
		if err != nil {
			return nil, err
		}
		spec.Tabs = append(spec.Tabs, tab)
	}

	l.logger.Debug("toolbar parsed", "tabs", len(spec.Tabs))
	return spec, nil
}

func (l *Loader) parseTab(name string, n *yaml.Node) (Tab, error) {
	tab := Tab{Name: name, Columns: DefaultColumns, Fill: FillRowMajor}

	if n.Kind != yaml.MappingNode {
		return Tab{}, configErr(name, n.Line, nil,
			"tab definition must be a mapping with %q and %q, got %s", keyConfig, keyButtons, nodeKind(n))
	}

	pairs, err := mappingPairs(n)
	if err != nil {
		return Tab{}, configErr(name, n.Line, err, "expanding merge keys")
	}

	var buttonsNode *yaml.Node
	for _, p := range pairs {
		key, val := p.key, p.val
		switch key.Value {
		case keyConfig:
			if err := parseTabConfig(&tab, val); err != nil {
				return Tab{}, err
			}
		case keyButtons:
			if buttonsNode != nil {
				return Tab{}, configErr(name, key.Line, ErrDuplicateName, "%q declared twice", keyButtons)
			}
			buttonsNode = val
		default:
			return Tab{}, configErr(name, key.Line, nil,
				"unrecognised key %q (expected %q or %q)", key.Value, keyConfig, keyButtons)
		}
	}

	if buttonsNode == nil {
		return Tab{}, configErr(name, n.Line, nil, "missing %q mapping", keyButtons)
	}

	buttons, err := l.parseButtons(name, buttonsNode)
	if err != nil {
		return Tab{}, err
	}
	tab.Buttons = buttons
	return tab, nil
}

func parseTabConfig(tab *Tab, n *yaml.Node) error {
	path := tab.Name + "/" + keyConfig
	if isNull(n) {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return configErr(path, n.Line, nil, "config must be a mapping, got %s", nodeKind(n))
	}

	pairs, err := mappingPairs(n)
	if err != nil {
		return configErr(path, n.Line, err, "expanding merge keys")
	}
	for _, p := range pairs {
		key, val := p.key, p.val
		switch key.Value {
		case keyCols:
			cols, err := positiveInt(val)
			if err != nil {
				return configErr(path+"/"+keyCols, val.Line, ErrInvalidColumns, "%v", err)
			}
			tab.Columns = cols
		case keyDirection:
			switch val.Value {
			case directionHorizontal:
				tab.Fill = FillRowMajor
			case directionVertical:
				tab.Fill = FillColumnMajor
			default:
				return configErr(path+"/"+keyDirection, val.Line, nil,
					"direction must be %q or %q, got %q", directionHorizontal, directionVertical, val.Value)
			}
		default:
			return configErr(path, key.Line, nil,
				"unrecognised key %q (expected %q or %q)", key.Value, keyCols, keyDirection)
		}
	}
	return nil
}

func (l *Loader) parseButtons(tabName string, n *yaml.Node) ([]Button, error) {
	path := tabName + "/" + keyButtons
	if isNull(n) {
		return []Button{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, configErr(path, n.Line, nil, "buttons must be a mapping of label to properties, got %s", nodeKind(n))
	}

	pairs, err := mappingPairs(n)
	if err != nil {
		return nil, configErr(path, n.Line, err, "expanding merge keys")
	}

	buttons := make([]Button, 0, len(pairs))
	seen := make(map[string]int, len(pairs))

	for _, p := range pairs {
		keyNode := p.key
		label, err := nameFromKey(keyNode)
		if err != nil {
			return nil, configErr(path, keyNode.Line, err, "invalid button label")
		}
		btnPath := path + "/" + label
		if first, dup := seen[label]; dup {
			return nil, configErr(btnPath, keyNode.Line, ErrDuplicateName,
				"button already declared on line %d", first)
		}
		seen[label] = keyNode.Line

		btn, err := l.parseButton(btnPath, label, p.val)
		if err != nil {
			return nil, err
		}
		buttons = append(buttons, btn)
	}
	return buttons, nil
}

func (l *Loader) parseButton(path, label string, n *yaml.Node) (Button, error) {
	btn := Button{Label: label, Properties: map[string]Value{}}

	if !isNull(n) {
		if n.Kind != yaml.MappingNode {
			return Button{}, configErr(path, n.Line, nil, "button must be a mapping of properties, got %s", nodeKind(n))
		}
		pairs, err := mappingPairs(n)
		if err != nil {
			return Button{}, configErr(path, n.Line, err, "expanding merge keys")
		}
		typeLine := 0
		for _, p := range pairs {
			key, val := p.key, p.val
			if key.Kind != yaml.ScalarNode {
				return Button{}, configErr(path, key.Line, nil, "property names must be scalars")
			}
			if key.Value == keyType {
				if typeLine != 0 {
					return Button{}, configErr(path+"/"+keyType, key.Line, ErrDuplicateName,
						"type already declared on line %d", typeLine)
				}
				typeLine = key.Line
				if val.Kind != yaml.ScalarNode {
					return Button{}, configErr(path+"/"+keyType, val.Line, ErrInvalidProperty, "type must be a string")
				}
				if !isNull(val) {
					btn.Type = val.Value
				}
				continue
			}
			if _, dup := btn.Properties[key.Value]; dup {
				return Button{}, configErr(path+"/"+key.Value, key.Line, ErrDuplicateName, "property declared twice")
			}
			v, err := decodeValue(val)
			if err != nil {
				return Button{}, configErr(path+"/"+key.Value, val.Line, err, "decoding property")
			}
			btn.Properties[key.Value] = v
		}
	}

	kind, known := kindFromType(btn.Type)
	if !known {
		if l.Strict {
			return Button{}, configErr(path+"/"+keyType, n.Line, ErrUnknownKind, "%q", btn.Type)
		}
		l.logger.Warn("unrecognised button type, button will be inert",
			"button", path,
			"type", btn.Type,
		)
	}
	btn.Kind = kind

	if _, err := NewControl(btn); err != nil {
		return Button{}, configErr(path, n.Line, err, "building %s button", kind)
	}
	return btn, nil
}

// nameFromKey validates a tab name or button label.
func nameFromKey(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a scalar, got %s", nodeKind(n))
	}
	if isNull(n) || strings.TrimSpace(n.Value) == "" {
		return "", errors.New("name must not be empty")
	}
	return n.Value, nil
}

// positiveInt decodes n as an integer >= 1.
func positiveInt(n *yaml.Node) (int, error) {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!int" {
		return 0, fmt.Errorf("expected a positive integer, got %q", n.Value)
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, fmt.Errorf("expected a positive integer, got %d", v)
	}
	return v, nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		if isNull(n) {
			return "null"
		}
		return "scalar " + n.ShortTag()
	default:
		return "unknown node"
	}
}
