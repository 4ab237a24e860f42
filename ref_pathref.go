package dynform

import (
	"strconv"
	"strings"
)

// configRef tracks where the validator is inside the config document, both
// as a JSON Pointer and as a dotted control path.
type configRef struct {
	parts   []string
	control []string
}

func (r configRef) field(name string) configRef {
	// escape '~' -> '~0', '/' -> '~1' per RFC6901
	esc := strings.ReplaceAll(strings.ReplaceAll(name, "~", "~0"), "/", "~1")
	return configRef{parts: appendCopy(r.parts, esc), control: r.control}
}

func (r configRef) index(i int) configRef {
	return configRef{parts: appendCopy(r.parts, strconv.Itoa(i)), control: r.control}
}

func (r configRef) named(name string) configRef {
	return configRef{parts: r.parts, control: appendCopy(r.control, name)}
}

func (r configRef) pointer() string {
	if len(r.parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(r.parts, "/")
}

func (r configRef) controlPath() string { return strings.Join(r.control, ".") }

func (r configRef) errorf(code, reason string) ConfigError {
	return ConfigError{Path: r.pointer(), Control: r.controlPath(), Code: code, Reason: reason}
}

func appendCopy(s []string, v string) []string {
	out := make([]string, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

// splitPath splits a dotted control path. Empty segments are dropped.
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	raw := strings.Split(path, ".")
	out := raw[:0]
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
