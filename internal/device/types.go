package device

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/lucid-core/internal/grid"
)

// maxNameLength bounds Entry.Name.
const maxNameLength = 256

// Standard fields mirrored into grid metadata so they can be used as group keys.
const (
	FieldName        = "name"
	FieldBeamline    = "beamline"
	FieldDeviceClass = "device_class"
)

// Entry is one catalogued device.
type Entry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Beamline    string         `json:"beamline"`
	Active      bool           `json:"active"`
	DeviceClass string         `json:"device_class,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Validate checks the fields the directory relies on.
func (e *Entry) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	if len(e.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidEntry, maxNameLength)
	}
	if name != e.Name {
		return fmt.Errorf("%w: name %q has surrounding whitespace", ErrInvalidEntry, e.Name)
	}
	return nil
}

// Entity converts the entry for grid grouping. String, number and boolean
// metadata values are carried over as text; zero values (0, false, "") and
// nested values are left out. name, beamline and device_class are always
// present when set.
func (e Entry) Entity() grid.Entity {
	md := make(map[string]string, len(e.Metadata)+3)
	for k, v := range e.Metadata {
		if s, ok := scalarText(v); ok {
			md[k] = s
		}
	}
	md[FieldName] = e.Name
	if e.Beamline != "" {
		md[FieldBeamline] = e.Beamline
	}
	if e.DeviceClass != "" {
		md[FieldDeviceClass] = e.DeviceClass
	}
	return grid.Entity{Name: e.Name, Metadata: md}
}

// scalarText renders a metadata scalar as a group label. It reports false
// for zero values and for lists and objects.
func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case bool:
		return strconv.FormatBool(x), x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), x != 0
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), x != 0
	case int:
		return strconv.Itoa(x), x != 0
	case int64:
		return strconv.FormatInt(x, 10), x != 0
	case json.Number:
		f, err := x.Float64()
		return x.String(), err == nil && f != 0
	default:
		return "", false
	}
}
