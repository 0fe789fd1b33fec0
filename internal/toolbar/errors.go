package toolbar

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the toolbar package.
//
// Every load failure is reported as a *ConfigError, which matches ErrConfig
// and, where applicable, one of the more specific sentinels below:
//
//	if errors.Is(err, toolbar.ErrMissingProperty) {
//	    // a shell button without commands, a display button without filenames
//	}
var (
	// ErrConfig is the root of every toolbar document error.
	ErrConfig = errors.New("toolbar: invalid configuration")

	// ErrDuplicateName is returned when a tab or button name is declared twice.
	ErrDuplicateName = errors.New("toolbar: duplicate name")

	// ErrInvalidColumns is returned when cols is not a positive integer.
	ErrInvalidColumns = errors.New("toolbar: invalid column count")

	// ErrMissingProperty is returned when a kind-specific required property is absent.
	ErrMissingProperty = errors.New("toolbar: missing required property")

	// ErrInvalidProperty is returned when a kind-specific property has the wrong shape.
	ErrInvalidProperty = errors.New("toolbar: invalid property")

	// ErrUnknownKind is returned in strict mode for an unrecognised button type.
	ErrUnknownKind = errors.New("toolbar: unknown button type")
)

// ConfigError describes a malformed toolbar document.
type ConfigError struct {
	// Path locates the offending element, e.g. "Experiment/buttons/Open Terminal".
	Path string
	// Line is the 1-based line in the document, or 0 when unknown.
	Line int
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("toolbar config")
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes ErrConfig together with the underlying cause.
func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

func configErr(path string, line int, cause error, format string, args ...any) *ConfigError {
	return &ConfigError{
		Path: path,
		Line: line,
		Msg:  fmt.Sprintf(format, args...),
		Err:  cause,
	}
}
