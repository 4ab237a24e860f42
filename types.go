package dynform

import "github.com/reoring/dynform/condition"

// Kind is the shape of a form node.
type Kind int

const (
	KindControl Kind = iota // Leaf holding a single value.
	KindGroup               // Named children.
	KindArray               // Repetitions of a template group.
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindArray:
		return "array"
	default:
		return "control"
	}
}

// FieldConfig describes one form field, group, or repeating array.
type FieldConfig struct {
	FormControlName string           `json:"formControlName"`
	Type            string           `json:"type,omitempty"`
	Label           string           `json:"label,omitempty"`
	Value           any              `json:"value,omitempty"`
	Readonly        bool             `json:"readonly,omitempty"`
	Validators      []ValidatorSpec  `json:"validators,omitempty"`
	Conditions      condition.Set    `json:"conditions,omitempty"`
	Children        []FieldConfig    `json:"children,omitempty"`
	FormArray       *FormArrayConfig `json:"formArray,omitempty"`
	Options         *OptionsConfig   `json:"options,omitempty"`
	Props           map[string]any   `json:"props,omitempty"`
}

// Kind derives the node shape from the populated fields.
func (c FieldConfig) Kind() Kind {
	switch {
	case c.Children != nil:
		return KindGroup
	case c.FormArray != nil:
		return KindArray
	default:
		return KindControl
	}
}

// FormArrayConfig describes a repeating group.
type FormArrayConfig struct {
	Template []FieldConfig `json:"template"`
	// Length is the number of repetitions built when no initial list value is
	// supplied.
	Length int `json:"length,omitempty"`
}

// ValidatorSpec selects a built-in or custom validator. Message may contain
// {{value}} placeholders replaced by the control value at error time.
type ValidatorSpec struct {
	Name    string `json:"name"`
	Value   any    `json:"value,omitempty"`
	Flags   string `json:"flags,omitempty"`
	Message string `json:"message,omitempty"`
}

// OptionItem is one selectable option.
type OptionItem struct {
	Label string         `json:"label"`
	Value any            `json:"value,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Append positions for fetched options relative to static data.
const (
	AppendAfter  = "after"
	AppendBefore = "before"
)

// OptionsConfig lists the options of a select-like control.
type OptionsConfig struct {
	Data              []OptionItem  `json:"data,omitempty"`
	Source            *OptionSource `json:"source,omitempty"`
	SrcAppendPosition string        `json:"srcAppendPosition,omitempty"`
	AutoSelectFirst   bool          `json:"autoSelectFirst,omitempty"`
}

// OptionSource describes an externally resolved option list.
type OptionSource struct {
	// Src is the key of the OptionLookup supplied via WithOptionSources.
	Src     string         `json:"src"`
	Filter  *OptionFilter  `json:"filter,omitempty"`
	Trigger *OptionTrigger `json:"trigger,omitempty"`
}

// OptionFilter keeps options whose Key equals the value at control path By.
// An empty Key compares OptionItem.Value; any other key reads OptionItem.Extra.
type OptionFilter struct {
	By  string `json:"by"`
	Key string `json:"key,omitempty"`
}

// OptionTrigger re-fetches the options whenever the value at By changes.
type OptionTrigger struct {
	By string `json:"by"`
}
