package condition

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
)

// Aspect names evaluated for every node. Any other key in a Set names an
// action function supplied by the embedding application.
const (
	Required = "required"
	Disabled = "disabled"
	Hidden   = "hidden"
)

// IsAspect reports whether name is one of the built-in aspects.
func IsAspect(name string) bool {
	return name == Required || name == Disabled || name == Hidden
}

const (
	tokenAnd = "&&"
	tokenOr  = "||"
)

// ErrSyntax is wrapped by every error produced while decoding conditions.
var ErrSyntax = errors.New("condition: syntax error")

// Set holds the conditions of one node keyed by aspect or action name.
//
// It decodes from two JSON shapes. The list shape is an array of Spec values
// whose Name selects the aspect:
//
//	[{"name":"disabled","control":"x","operator":"===","controlValue":1}]
//
// The object shape maps aspect names to expressions, where a tuple is a leaf
// and "&&" / "||" build groups:
//
//	{"disabled": {"&&": [["x", "===", 1], {"||": [["y", ">", 2]]}]}}
//
// Set always encodes back to the object shape.
type Set map[string][]Spec

// Names returns the keys of s in sorted order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UnmarshalJSON accepts the list and the object syntax. It only fails on
// malformed JSON: an entry that is valid JSON but not a condition is kept as
// a Spec carrying Err, so one bad expression does not discard the rest of
// the document. Use Set.Err to collect those.
func (s *Set) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	out := Set{}
	switch b[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		for _, item := range list {
			sp := decodeEntry(item)
			// unnamed entries are kept under "" so config validation can flag them
			out[sp.Name] = append(out[sp.Name], sp)
		}
	case '{':
		var raw map[string]any
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		for name, expr := range raw {
			sp, err := FromExpr(expr)
			if err != nil {
				sp = Spec{Err: fmt.Errorf("condition %q: %w", name, err)}
			}
			sp.Name = name
			out[name] = []Spec{sp}
		}
	default:
		out[""] = []Spec{{Err: fmt.Errorf("%w: conditions must be a list or an object", ErrSyntax)}}
	}
	*s = out
	return nil
}

// decodeEntry decodes one item of the list syntax. On failure the name is
// still recovered when possible.
func decodeEntry(item json.RawMessage) Spec {
	var sp Spec
	err := json.Unmarshal(item, &sp)
	if err == nil {
		return sp
	}
	var head struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(item, &head)
	return Spec{Name: head.Name, Err: fmt.Errorf("%w: %v", ErrSyntax, err)}
}

// Err joins the syntax errors of every entry that failed to decode.
func (s Set) Err() error {
	var errs []error
	for _, name := range s.Names() {
		for _, sp := range s[name] {
			if sp.Err != nil {
				errs = append(errs, sp.Err)
			}
		}
	}
	return errors.Join(errs...)
}

// MarshalJSON encodes s in the object syntax.
func (s Set) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	out := make(map[string]any, len(s))
	for name, specs := range s {
		specs = valid(specs)
		switch len(specs) {
		case 0:
			continue
		case 1:
			out[name] = ToExpr(specs[0])
		default:
			items := make([]any, 0, len(specs))
			for _, sp := range specs {
				items = append(items, ToExpr(sp))
			}
			out[name] = map[string]any{tokenOr: items}
		}
	}
	return json.Marshal(out)
}

// FromExpr converts one expression of the object syntax into a Spec. It also
// accepts a Spec-shaped object ({"control": ...}).
func FromExpr(v any) (Spec, error) {
	switch t := v.(type) {
	case []any:
		return fromTuple(t)
	case map[string]any:
		if len(t) == 1 {
			for k, items := range t {
				var op BoolOp
				switch k {
				case tokenAnd:
					op = And
				case tokenOr:
					op = Or
				}
				if op != "" {
					return fromGroup(op, items)
				}
			}
		}
		if _, ok := t["control"]; ok {
			return fromObject(t)
		}
		if _, ok := t["group"]; ok {
			return fromObject(t)
		}
		return Spec{}, fmt.Errorf("%w: expected %q, %q or a leaf tuple", ErrSyntax, tokenAnd, tokenOr)
	default:
		return Spec{}, fmt.Errorf("%w: unexpected %T", ErrSyntax, v)
	}
}

// ToExpr renders sp in the object syntax. A group's own leaf becomes the first
// item of the group, which keeps the evaluation result unchanged.
func ToExpr(sp Spec) any {
	if !sp.IsGroup() {
		return []any{sp.Control, string(sp.Operator), sp.ControlValue}
	}
	items := make([]any, 0, len(sp.Group)+1)
	if sp.IsLeaf() {
		items = append(items, []any{sp.Control, string(sp.Operator), sp.ControlValue})
	}
	for _, c := range sp.Group {
		items = append(items, ToExpr(c))
	}
	key := tokenAnd
	if sp.GroupBooleanOperator == Or {
		key = tokenOr
	}
	return map[string]any{key: items}
}

func fromTuple(t []any) (Spec, error) {
	if len(t) != 3 {
		return Spec{}, fmt.Errorf("%w: leaf must be [control, operator, value], got %d items", ErrSyntax, len(t))
	}
	path, ok := t[0].(string)
	if !ok {
		return Spec{}, fmt.Errorf("%w: control path must be a string", ErrSyntax)
	}
	op, ok := t[1].(string)
	if !ok {
		return Spec{}, fmt.Errorf("%w: operator must be a string", ErrSyntax)
	}
	return Spec{Control: path, Operator: Op(op), ControlValue: t[2]}, nil
}

func fromGroup(op BoolOp, items any) (Spec, error) {
	list, ok := items.([]any)
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s expects a list", ErrSyntax, op)
	}
	sp := Spec{GroupBooleanOperator: op, Group: make([]Spec, 0, len(list))}
	for _, it := range list {
		c, err := FromExpr(it)
		if err != nil {
			return Spec{}, err
		}
		sp.Group = append(sp.Group, c)
	}
	return sp, nil
}

func fromObject(m map[string]any) (Spec, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	var sp Spec
	if err := json.Unmarshal(b, &sp); err != nil {
		return Spec{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return sp, nil
}
