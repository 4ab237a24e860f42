package dynform

import (
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/reoring/dynform/condition"
)

// Node is one element of the live form tree built from a FieldConfig.
//
// A Node is not safe for concurrent use. Trees owned by a Form are only
// mutated under the Form's writer lock; read them through Form methods.
type Node struct {
	name   string
	kind   Kind
	cfg    FieldConfig
	ctype  ControlType
	parent *Node

	// group children in config order and their index; array items.
	children []*Node
	byName   map[string]*Node

	value      any
	specs      []ValidatorSpec
	validators []ValidatorFunc
	errors     ValidationErrors

	// condition state
	conds        map[string]*condition.Predicate
	condRequired bool
	disabled     bool
	hidden       bool
	actions      map[string]bool

	readonly bool
	dirty    bool
	touched  bool

	// option state
	static    []OptionItem
	fetched   []OptionItem
	options   []OptionItem
	loading   bool
	loaded    bool
	trigger   any
	triggered bool

	// last status reported to subscribers
	emitted status
}

// Name returns the control identifier. Array items are named by index.
func (n *Node) Name() string { return n.name }

// Kind returns the node shape.
func (n *Node) Kind() Kind { return n.kind }

// Config returns the FieldConfig the node was built from.
func (n *Node) Config() FieldConfig { return n.cfg }

// Type returns the resolved control type.
func (n *Node) Type() ControlType { return n.ctype }

// Parent returns the enclosing node, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns group children in config order or array items in index
// order.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Len returns the number of children or items.
func (n *Node) Len() int { return len(n.children) }

// Path returns the dotted path from the root. The root path is "".
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}
	return joinPath(n.parent.Path(), n.name)
}

// Child returns the direct child named name (or the item at that index for
// arrays).
func (n *Node) Child(name string) *Node {
	switch n.kind {
	case KindGroup:
		return n.byName[name]
	case KindArray:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= len(n.children) {
			return nil
		}
		return n.children[i]
	default:
		return nil
	}
}

// Lookup resolves a dotted path relative to n. Array items are addressed by
// index, for example "addresses.0.street".
func (n *Node) Lookup(path string) *Node {
	cur := n
	for _, seg := range splitPath(path) {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Disabled reports whether the node or any ancestor is disabled.
func (n *Node) Disabled() bool {
	for c := n; c != nil; c = c.parent {
		if c.disabled {
			return true
		}
	}
	return n.allChildrenDisabled()
}

// Hidden reports whether a hidden condition currently holds for the node.
func (n *Node) Hidden() bool { return n.hidden }

// Required reports whether the node carries a required validator, either
// configured or added by a required condition.
func (n *Node) Required() bool {
	if n.condRequired {
		return true
	}
	for _, s := range n.specs {
		if s.Name == ValidatorRequired || s.Name == ValidatorRequiredTrue {
			return true
		}
	}
	return false
}

// Readonly reports whether user edits are rejected.
func (n *Node) Readonly() bool { return n.readonly }

// Dirty reports whether a user edit reached the node.
func (n *Node) Dirty() bool { return n.dirty }

// Touched reports whether the node was marked touched.
func (n *Node) Touched() bool { return n.touched }

// Errors returns the node's own validation errors. Groups have none.
func (n *Node) Errors() ValidationErrors { return n.errors }

// Validators returns the validator specs attached to the node.
func (n *Node) Validators() []ValidatorSpec { return n.specs }

// Options returns the current option list of a select-like control.
func (n *Node) Options() []OptionItem { return n.options }

// Loading reports whether an option request is in flight.
func (n *Node) Loading() bool { return n.loading }

// Valid reports whether neither the node nor any enabled descendant has
// errors.
func (n *Node) Valid() bool {
	if n.Disabled() {
		return true
	}
	if len(n.errors) > 0 {
		return false
	}
	for _, c := range n.children {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// Value returns the node value. Groups and arrays leave out disabled
// children unless every child is disabled.
func (n *Node) Value() any {
	switch n.kind {
	case KindGroup:
		all := n.allChildrenDisabled()
		out := make(map[string]any, len(n.children))
		for _, c := range n.children {
			if all || !c.Disabled() {
				out[c.name] = c.Value()
			}
		}
		return out
	case KindArray:
		all := n.allChildrenDisabled()
		out := make([]any, 0, len(n.children))
		for _, c := range n.children {
			if all || !c.Disabled() {
				out = append(out, c.Value())
			}
		}
		return out
	default:
		return n.value
	}
}

// RawValue returns the node value including disabled children.
func (n *Node) RawValue() any {
	switch n.kind {
	case KindGroup:
		out := make(map[string]any, len(n.children))
		for _, c := range n.children {
			out[c.name] = c.RawValue()
		}
		return out
	case KindArray:
		out := make([]any, 0, len(n.children))
		for _, c := range n.children {
			out = append(out, c.RawValue())
		}
		return out
	default:
		return n.value
	}
}

// allChildrenDisabled is true for a composite whose children are all
// disabled. Empty composites do not count.
func (n *Node) allChildrenDisabled() bool {
	if n.kind == KindControl || len(n.children) == 0 {
		return false
	}
	for _, c := range n.children {
		if !c.selfOrAncestorDisabled() && !c.allChildrenDisabled() {
			return false
		}
	}
	return true
}

func (n *Node) selfOrAncestorDisabled() bool {
	for c := n; c != nil; c = c.parent {
		if c.disabled {
			return true
		}
	}
	return false
}

// patch writes v into the subtree. Unknown group keys are ignored; arrays
// grow to fit longer lists and never shrink. Patching never marks dirty.
// User edits skip readonly controls.
func (n *Node) patch(v any, b *builder) error {
	switch n.kind {
	case KindGroup:
		m, ok := asMap(v)
		if !ok {
			return nil
		}
		for _, c := range n.children {
			if cv, ok := m[c.name]; ok {
				if err := c.patch(cv, b); err != nil {
					return err
				}
			}
		}
	case KindArray:
		list, ok := asList(v)
		if !ok {
			return nil
		}
		for i, item := range list {
			if i >= len(n.children) {
				if _, err := n.appendItem(item, b); err != nil {
					return err
				}
				continue
			}
			if err := n.children[i].patch(item, b); err != nil {
				return err
			}
		}
	default:
		if b.user && n.readonly {
			return nil
		}
		n.value = n.ctype.normalize(v)
	}
	return nil
}

// appendItem builds a new repetition of the array template and patches v
// into it.
func (n *Node) appendItem(v any, b *builder) (*Node, error) {
	item, err := b.item(n, len(n.children))
	if err != nil {
		return nil, err
	}
	n.children = append(n.children, item)
	if v != nil {
		if err := item.patch(v, b); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// removeItem drops the array item at i and renames the following items.
func (n *Node) removeItem(i int) bool {
	if n.kind != KindArray || i < 0 || i >= len(n.children) {
		return false
	}
	// detached items must not resolve to the live root
	n.children[i].parent = nil
	n.children = slices.Delete(n.children, i, i+1)
	for j := i; j < len(n.children); j++ {
		n.children[j].name = strconv.Itoa(j)
	}
	return true
}

// validate recomputes the errors of the subtree. Disabled nodes have none.
func (n *Node) validate() {
	for _, c := range n.children {
		c.validate()
	}
	n.errors = nil
	if n.kind == KindGroup || n.Disabled() {
		return
	}
	v := n.Value()
	var out ValidationErrors
	merge := func(e ValidationErrors) {
		if len(e) == 0 {
			return
		}
		if out == nil {
			out = ValidationErrors{}
		}
		maps.Copy(out, e)
	}
	for _, fn := range n.validators {
		merge(fn(v))
	}
	if n.condRequired {
		merge(Required(v))
	}
	n.errors = out
}

// walk visits n and every descendant depth-first in tree order.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}

// enclosingItems lists the array items containing n, innermost first.
func (n *Node) enclosingItems() []*Node {
	var out []*Node
	for c := n; c != nil && c.parent != nil; c = c.parent {
		if c.parent.kind == KindArray {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// getter resolves condition and option paths for n: relative to each
// enclosing array item first, then from the root.
func (n *Node) getter() condition.Getter {
	scopes := append(n.enclosingItems(), n.root())
	return func(path string) (any, bool) {
		for _, s := range scopes {
			if t := s.Lookup(path); t != nil {
				return t.Value(), true
			}
		}
		return nil, false
	}
}

func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func asList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
