package dynform

// EventType names a form session event.
type EventType string

const (
	EventFormReady      EventType = "form_ready"
	EventValueChanged   EventType = "value_changed"
	EventStatusChanged  EventType = "status_changed"
	EventValidation     EventType = "validation"
	EventOptionsLoading EventType = "options_loading"
	EventOptionsLoaded  EventType = "options_loaded"
)

// Event is delivered to subscribers after the mutation that produced it has
// settled and the writer lock has been released.
type Event struct {
	Type EventType `json:"type"`
	// Path is the dotted path of the node concerned, empty for form-wide
	// events.
	Path    string         `json:"path,omitempty"`
	Value   any            `json:"value,omitempty"`
	Errors  map[string]any `json:"errors,omitempty"`
	State   *NodeState     `json:"state,omitempty"`
	Options []OptionItem   `json:"options,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// NodeState is a point-in-time copy of one node.
type NodeState struct {
	Path     string           `json:"path"`
	Name     string           `json:"name"`
	Kind     string           `json:"kind"`
	Type     string           `json:"type,omitempty"`
	Label    string           `json:"label,omitempty"`
	Value    any              `json:"value"`
	Disabled bool             `json:"disabled"`
	Hidden   bool             `json:"hidden"`
	Required bool             `json:"required"`
	Readonly bool             `json:"readonly"`
	Dirty    bool             `json:"dirty"`
	Touched  bool             `json:"touched"`
	Valid    bool             `json:"valid"`
	Loading  bool             `json:"loading,omitempty"`
	Errors   ValidationErrors `json:"errors,omitempty"`
	Messages []string         `json:"messages,omitempty"`
	Options  []OptionItem     `json:"options,omitempty"`
	Props    map[string]any   `json:"props,omitempty"`
}

func stateOf(n *Node, opts []Option) NodeState {
	st := NodeState{
		Path:     n.Path(),
		Name:     n.name,
		Kind:     n.kind.String(),
		Label:    n.cfg.Label,
		Value:    DeepClone(n.Value()),
		Disabled: n.Disabled(),
		Hidden:   n.hidden,
		Required: n.Required(),
		Readonly: n.readonly,
		Dirty:    n.dirty,
		Touched:  n.touched,
		Valid:    n.Valid(),
		Loading:  n.loading,
		Props:    n.cfg.Props,
	}
	if n.kind == KindControl {
		st.Type = n.ctype.Name
		st.Options = append([]OptionItem(nil), n.options...)
	}
	if len(n.errors) > 0 {
		st.Errors = ValidationErrors(DeepClone(n.errors).(map[string]any))
		st.Messages = ErrorMessages(n.errors, n.Value(), n.specs, opts...)
	}
	return st
}

// status is the part of a node's state whose change emits status_changed.
type status struct {
	disabled, hidden, required bool
	dirty, touched, valid      bool
	loading                    bool
}

func statusOf(n *Node) status {
	return status{
		disabled: n.Disabled(),
		hidden:   n.hidden,
		required: n.Required(),
		dirty:    n.dirty,
		touched:  n.touched,
		valid:    n.Valid(),
		loading:  n.loading,
	}
}
