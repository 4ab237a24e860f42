// Package condition compiles declarative condition trees and evaluates them
// against live form values.
//
// A condition is either a leaf comparing the value at a control path with a
// constant, or a group folding its children with AND/OR. Several top-level
// conditions for the same aspect are OR-combined.
package condition

// Op is a comparison operator used by a leaf condition.
type Op string

const (
	Eq Op = "==="
	Ne Op = "!=="
	Lt Op = "<"
	Le Op = "<="
	Gt Op = ">"
	Ge Op = ">="
)

// Valid reports whether o is one of the known operators.
func (o Op) Valid() bool {
	switch o {
	case Eq, Ne, Lt, Le, Gt, Ge:
		return true
	default:
		return false
	}
}

// BoolOp combines the results of a group.
type BoolOp string

const (
	And BoolOp = "AND"
	Or  BoolOp = "OR"
)

// Valid reports whether b is a known boolean operator. The empty operator is
// accepted and behaves like And.
func (b BoolOp) Valid() bool { return b == "" || b == And || b == Or }

func (b BoolOp) identity() bool { return b != Or }

func (b BoolOp) combine(acc, v bool) bool {
	if b == Or {
		return acc || v
	}
	return acc && v
}

// Spec is one node of a condition tree. A Spec with Control set is a leaf; a
// Spec with Group set is a group whose own leaf (when present) seeds the fold.
type Spec struct {
	// Name is the aspect this condition targets in the list syntax
	// (required, disabled, hidden or an action name).
	Name                 string `json:"name,omitempty"`
	Control              string `json:"control,omitempty"`
	Operator             Op     `json:"operator,omitempty"`
	ControlValue         any    `json:"controlValue,omitempty"`
	Group                []Spec `json:"group,omitempty"`
	GroupBooleanOperator BoolOp `json:"groupBooleanOperator,omitempty"`

	// Err is set on an entry whose expression could not be decoded. Such
	// entries are never evaluated.
	Err error `json:"-"`
}

// IsLeaf reports whether s carries its own comparison.
func (s Spec) IsLeaf() bool { return s.Control != "" }

// IsGroup reports whether s has nested conditions.
func (s Spec) IsGroup() bool { return len(s.Group) > 0 }

// Getter reads the current value at a control path. ok is false when no
// control exists at path.
type Getter func(path string) (value any, ok bool)

// Predicate is a compiled list of conditions for one aspect.
type Predicate struct {
	specs []Spec
}

// Compile prepares specs for evaluation. Entries carrying Err are dropped.
// It returns nil when nothing remains, which Eval treats as "no condition
// configured".
func Compile(specs []Spec) *Predicate {
	specs = valid(specs)
	if len(specs) == 0 {
		return nil
	}
	return &Predicate{specs: specs}
}

// valid returns a copy of specs without the entries that failed to decode.
func valid(specs []Spec) []Spec {
	var out []Spec
	for _, sp := range specs {
		if sp.Err == nil {
			out = append(out, sp)
		}
	}
	return out
}

// Eval evaluates the predicate against the values exposed by get. ok is false
// for a nil predicate; callers must then leave the target state untouched.
func (p *Predicate) Eval(get Getter) (result bool, ok bool) {
	if p == nil || len(p.specs) == 0 {
		return false, false
	}
	// a lone leaf answers directly
	if len(p.specs) == 1 && !p.specs[0].IsGroup() {
		return evalLeaf(get, p.specs[0]), true
	}
	for _, s := range p.specs {
		var r bool
		if s.IsGroup() {
			r = evalGroup(get, s)
		} else {
			r = evalLeaf(get, s)
		}
		result = result || r
	}
	return result, true
}

// Paths returns every control path read by the predicate, in first-seen order.
func (p *Predicate) Paths() []string {
	if p == nil {
		return nil
	}
	seen := map[string]struct{}{}
	var out []string
	var walk func(s Spec)
	walk = func(s Spec) {
		if s.IsLeaf() {
			if _, dup := seen[s.Control]; !dup {
				seen[s.Control] = struct{}{}
				out = append(out, s.Control)
			}
		}
		for _, c := range s.Group {
			walk(c)
		}
	}
	for _, s := range p.specs {
		walk(s)
	}
	return out
}

// Specs returns a copy of the compiled specs.
func (p *Predicate) Specs() []Spec {
	if p == nil {
		return nil
	}
	out := make([]Spec, len(p.specs))
	copy(out, p.specs)
	return out
}

func evalGroup(get Getter, s Spec) bool {
	acc := s.GroupBooleanOperator.identity()
	if s.IsLeaf() {
		acc = evalLeaf(get, s)
	}
	for _, c := range s.Group {
		var r bool
		if c.IsGroup() {
			r = evalGroup(get, c)
		} else {
			r = evalLeaf(get, c)
		}
		acc = s.GroupBooleanOperator.combine(acc, r)
	}
	return acc
}

func evalLeaf(get Getter, s Spec) bool {
	if !s.IsLeaf() || get == nil {
		return false
	}
	cur, _ := get(s.Control)
	return Compare(cur, s.Operator, s.ControlValue)
}
