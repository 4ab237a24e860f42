package dynform

import (
	"reflect"
	"strconv"
)

// CollectErrors folds the validation errors of the subtree rooted at n into
// one nested object mirroring the config shape. Controls contribute their
// raw error map, groups key child errors by name, and arrays merge their own
// errors with child errors keyed by item index ("0", "1", ...). The result
// shares nothing with the live tree and is nil when no error remains.
func CollectErrors(n *Node) map[string]any {
	if n == nil {
		return nil
	}
	out, _ := ClearEmpties(DeepClone(collect(n))).(map[string]any)
	return out
}

func collect(n *Node) any {
	switch n.kind {
	case KindGroup:
		out := make(map[string]any, len(n.children))
		for _, c := range n.children {
			if e := collect(c); e != nil {
				out[c.name] = e
			}
		}
		return out
	case KindArray:
		out := make(map[string]any, len(n.errors)+len(n.children))
		for k, v := range n.errors {
			out[k] = v
		}
		for i, c := range n.children {
			if e := collect(c); e != nil {
				out[strconv.Itoa(i)] = e
			}
		}
		return out
	default:
		if n.errors == nil {
			return nil
		}
		return map[string]any(n.errors)
	}
}

// ClearEmpties removes, recursively, map entries whose value is nil, an
// empty map or an empty list. It returns nil when nothing remains. Applying
// it twice yields the same result as applying it once.
func ClearEmpties(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case ValidationErrors:
		return ClearEmpties(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if c := ClearEmpties(e); !isEmptyBranch(c) {
				out[k] = c
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		if len(t) == 0 {
			return nil
		}
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ClearEmpties(e)
		}
		return out
	default:
		if isEmptyBranch(v) {
			return nil
		}
		return v
	}
}

func isEmptyBranch(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// DeepClone copies maps and slices recursively. Maps with string keys become
// map[string]any and slices become []any; other values are returned as is.
func DeepClone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case ValidationErrors:
		return DeepClone(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = DeepClone(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DeepClone(e)
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if m, ok := asMap(v); ok {
			return DeepClone(m)
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return append([]byte(nil), rv.Bytes()...)
		}
		l, _ := asList(v)
		return DeepClone(l)
	}
	return v
}
