package dynform

import (
	"errors"
	"fmt"
	"strings"
)

// Config error codes.
const (
	CodeParseError            = "parse_error"
	CodeDuplicateKey          = "duplicate_key"
	CodeMissingName           = "missing_name"
	CodeInvalidName           = "invalid_name"
	CodeDuplicateName         = "duplicate_name"
	CodeConflictingShape      = "conflicting_shape"
	CodeEmptyTemplate         = "empty_template"
	CodeUnknownValidator      = "unknown_validator"
	CodeInvalidValidator      = "invalid_validator"
	CodeUnsupportedValidators = "unsupported_validators"
	CodeInvalidCondition      = "invalid_condition"
	CodeUnknownAction         = "unknown_action"
	CodeInvalidOptions        = "invalid_options"
	CodeUnknownOptionSource   = "unknown_option_source"
)

// ConfigError is a single structural problem found in a form configuration.
type ConfigError struct {
	Path    string // JSON Pointer into the config document (for example: /0/children/1).
	Control string // Dotted control path; array templates use "*".
	Code    string // One of the codes listed above.
	Reason  string
}

func (e ConfigError) String() string {
	if e.Control != "" {
		return fmt.Sprintf("%s at %s (%s): %s", e.Code, e.Path, e.Control, e.Reason)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Reason)
}

// ConfigErrors is a collection of config problems that implements error.
type ConfigErrors []ConfigError

// Error summarizes the first few entries.
func (ce ConfigErrors) Error() string {
	if len(ce) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := min(len(ce), maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", ce[i].Code, ce[i].Path)
	}
	if len(ce) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(ce))
	}
	return b.String()
}

// Has reports whether an entry with code exists.
func (ce ConfigErrors) Has(code string) bool {
	for _, e := range ce {
		if e.Code == code {
			return true
		}
	}
	return false
}

// AsConfigErrors extracts ConfigErrors from an error using errors.As.
func AsConfigErrors(err error) (ConfigErrors, bool) {
	if err == nil {
		return nil, false
	}
	var ce ConfigErrors
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ConstructionError reports a config node that matches no known shape while
// building the form tree. It signals a mismatch between config validation and
// the builder and is not recoverable for the session.
type ConstructionError struct {
	Path   string
	Reason string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("dynform: cannot build %q: %s", e.Path, e.Reason)
}

var (
	// ErrClosed is returned by mutations on a closed Form.
	ErrClosed = errors.New("dynform: form closed")
	// ErrNotFound is returned when a control path does not resolve.
	ErrNotFound = errors.New("dynform: control not found")
	// ErrNotArray is returned by array operations on other node kinds.
	ErrNotArray = errors.New("dynform: not an array")
	// ErrReadonly is returned when a user edit targets a readonly control.
	ErrReadonly = errors.New("dynform: control is readonly")
	// ErrUnknownOptionSource is returned when no OptionLookup is registered
	// for an option source.
	ErrUnknownOptionSource = errors.New("dynform: unknown option source")
)
