package dynform

import (
	"strconv"
	"strings"
)

// ControlType is the behaviour attached to a FieldConfig.Type tag. It is
// resolved once per node when the tree is built.
type ControlType struct {
	Name string
	// Normalize converts values written into the control. nil keeps values
	// unchanged.
	Normalize func(v any) any
}

func (t ControlType) normalize(v any) any {
	if t.Normalize == nil {
		return v
	}
	return t.Normalize(v)
}

// Built-in control type tags.
const (
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypePassword = "password"
	TypeNumber   = "number"
	TypeRange    = "range"
	TypeCheckbox = "checkbox"
	TypeSwitch   = "switch"
	TypeSelect   = "select"
	TypeRadio    = "radio"
	TypeDate     = "date"
)

var builtinTypes = map[string]ControlType{
	TypeText:     {Name: TypeText},
	TypeTextarea: {Name: TypeTextarea},
	TypePassword: {Name: TypePassword},
	TypeNumber:   {Name: TypeNumber, Normalize: normalizeNumber},
	TypeRange:    {Name: TypeRange, Normalize: normalizeNumber},
	TypeCheckbox: {Name: TypeCheckbox, Normalize: normalizeBool},
	TypeSwitch:   {Name: TypeSwitch, Normalize: normalizeBool},
	TypeSelect:   {Name: TypeSelect},
	TypeRadio:    {Name: TypeRadio},
	TypeDate:     {Name: TypeDate},
}

// resolveType looks up tag in the custom registry first, then the built-ins.
// Unknown and empty tags fall back to text.
func resolveType(tag string, custom map[string]ControlType) ControlType {
	if t, ok := custom[tag]; ok {
		return t
	}
	if t, ok := builtinTypes[tag]; ok {
		return t
	}
	return builtinTypes[TypeText]
}

// normalizeNumber parses numeric strings; "" becomes nil and anything else
// that is not a number is left alone so validators can report it.
func normalizeNumber(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return v
}

// normalizeBool maps "true"/"false" strings to booleans. Multi-option
// checkboxes hold lists and are left alone.
func normalizeBool(v any) any {
	if s, ok := v.(string); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return v
}
