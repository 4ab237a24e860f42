package jsonschema

import (
	"strconv"
	"strings"

	"github.com/reoring/dynform"
	"github.com/reoring/dynform/condition"
)

// FromConfig projects a form config onto a JSON Schema describing the value
// the form produces. Groups become objects, arrays become arrays of objects
// and controls get a type from their control type tag. Built-in validators
// map onto the matching keywords; custom validators and conditions are not
// representable and are skipped. Controls whose required state depends on a
// condition are not listed as required.
func FromConfig(configs []dynform.FieldConfig) *Schema {
	s := object(configs)
	s.Schema = Draft
	return s
}

func object(configs []dynform.FieldConfig) *Schema {
	s := &Schema{Type: "object", Properties: make(map[string]*Schema, len(configs)), AdditionalProperties: false}
	for _, c := range configs {
		if c.FormControlName == "" {
			continue
		}
		s.Properties[c.FormControlName] = field(c)
		if isRequired(c) {
			s.Required = append(s.Required, c.FormControlName)
		}
	}
	return s
}

func field(c dynform.FieldConfig) *Schema {
	var s *Schema
	switch c.Kind() {
	case dynform.KindGroup:
		s = object(c.Children)
	case dynform.KindArray:
		s = &Schema{Type: "array", Items: object(c.FormArray.Template)}
	default:
		s = control(c)
	}
	s.Title = c.Label
	s.ReadOnly = c.Readonly
	if c.Value != nil {
		s.Default = c.Value
	}
	for _, v := range c.Validators {
		applyValidator(s, v)
	}
	return s
}

func control(c dynform.FieldConfig) *Schema {
	s := &Schema{}
	switch c.Type {
	case dynform.TypeNumber, dynform.TypeRange:
		s.Type = "number"
	case dynform.TypeCheckbox, dynform.TypeSwitch:
		s.Type = "boolean"
		if _, multi := c.Value.([]any); multi {
			s.Type = "array"
		}
	case dynform.TypeDate:
		s.Type = "string"
		s.Format = "date"
	case dynform.TypeSelect, dynform.TypeRadio:
		// option values decide the type
	default:
		s.Type = "string"
	}
	if o := c.Options; o != nil && o.Source == nil && len(o.Data) > 0 {
		for _, it := range o.Data {
			s.Enum = append(s.Enum, it.Value)
		}
	}
	return s
}

func isRequired(c dynform.FieldConfig) bool {
	for _, v := range c.Validators {
		if v.Name == dynform.ValidatorRequired || v.Name == dynform.ValidatorRequiredTrue {
			return true
		}
	}
	return false
}

func applyValidator(s *Schema, v dynform.ValidatorSpec) {
	switch v.Name {
	case dynform.ValidatorRequiredTrue:
		s.Enum = []any{true}
	case dynform.ValidatorEmail:
		s.Format = "email"
	case dynform.ValidatorPattern:
		p, _ := v.Value.(string)
		if p == "" {
			return
		}
		if strings.ContainsRune(v.Flags, 'i') {
			p = "(?i)" + p
		}
		s.Pattern = p
	case dynform.ValidatorMin:
		if f, ok := number(v.Value); ok {
			s.Minimum = &f
		}
	case dynform.ValidatorMax:
		if f, ok := number(v.Value); ok {
			s.Maximum = &f
		}
	case dynform.ValidatorMinLength, dynform.ValidatorMaxLength:
		f, ok := number(v.Value)
		if !ok || f < 0 {
			return
		}
		n := int(f)
		isMin := v.Name == dynform.ValidatorMinLength
		switch {
		case s.Type == "array" && isMin:
			s.MinItems = &n
		case s.Type == "array":
			s.MaxItems = &n
		case isMin:
			s.MinLength = &n
		default:
			s.MaxLength = &n
		}
	}
}

func number(v any) (float64, bool) {
	if f, ok := condition.ToFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}
