package dynform

import (
	"slices"

	"github.com/reoring/dynform/condition"
)

// actionCall is a named condition that turned true during a settle pass.
type actionCall struct {
	name string
	node *Node
}

// applyConditions evaluates the conditions of n against the live tree and
// applies the results. Aspects without a configured condition leave the
// node untouched. It reports whether the required, disabled or hidden state
// changed and which actions turned true.
func applyConditions(n *Node) (changed bool, fired []string) {
	if len(n.conds) == 0 {
		return false, nil
	}
	get := n.getter()
	before := [3]bool{n.condRequired, n.disabled, n.hidden}

	if r, ok := n.conds[condition.Required].Eval(get); ok {
		n.condRequired = r
	}
	disabled, disabledOK := n.conds[condition.Disabled].Eval(get)
	if disabledOK {
		n.disabled = disabled
	}
	if h, ok := n.conds[condition.Hidden].Eval(get); ok {
		n.hidden = h
		switch {
		case h:
			// hidden values are never submitted
			n.disabled = true
		case !(disabledOK && disabled):
			n.disabled = false
		}
	}

	names := make([]string, 0, len(n.conds))
	for name := range n.conds {
		if !condition.IsAspect(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		r, _ := n.conds[name].Eval(get)
		if r && !n.actions[name] {
			fired = append(fired, name)
		}
		if n.actions == nil {
			n.actions = map[string]bool{}
		}
		n.actions[name] = r
	}
	return before != [3]bool{n.condRequired, n.disabled, n.hidden}, fired
}

// conditionTargets lists the nodes of the tree that carry conditions, in
// tree order.
func conditionTargets(root *Node) []*Node {
	var out []*Node
	root.walk(func(n *Node) {
		if len(n.conds) > 0 {
			out = append(out, n)
		}
	})
	return out
}

// Dependencies maps every control path read by a condition in the tree to
// the paths of the nodes whose conditions read it. Paths are reported as
// written in the config; array item conditions use item-relative paths.
func Dependencies(root *Node) map[string][]string {
	out := map[string][]string{}
	for _, n := range conditionTargets(root) {
		target := n.Path()
		for _, name := range sortedKeys(n.conds) {
			for _, p := range n.conds[name].Paths() {
				if !slices.Contains(out[p], target) {
					out[p] = append(out[p], target)
				}
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
