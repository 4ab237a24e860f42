package dynform

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/reoring/dynform/i18n"
)

// SelfKey holds the messages of an array's own validators in the tree built
// by CollectMessages.
const SelfKey = "$self"

// valueKeys names the payload field that carries the configured argument of
// value-bearing validators.
var valueKeys = map[string]string{
	ValidatorPattern:   "requiredPattern",
	ValidatorMin:       "min",
	ValidatorMax:       "max",
	ValidatorMinLength: "requiredLength",
	ValidatorMaxLength: "requiredLength",
}

// ErrorMessages turns raw validation errors into user-facing messages, one
// per error key in sorted key order.
//
// Each key is matched against specs by case-insensitive name; requiredTrue
// answers to the "required" key. Value-bearing validators (pattern, min,
// max, minLength, maxLength) additionally need the argument embedded in the
// error to match the configured Value. A matching ValidatorSpec with a message
// yields that message with every {{value}} replaced by the control value
// (nil becomes ""). Otherwise the message comes from the translator set with
// WithTranslator, or is the raw payload (strings as is, anything else as
// JSON).
func ErrorMessages(errs ValidationErrors, value any, specs []ValidatorSpec, opts ...Option) []string {
	if len(errs) == 0 {
		return nil
	}
	s := newSettings(opts)
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		payload := errs[key]
		if spec, ok := matchSpec(key, payload, specs); ok && spec.Message != "" {
			out = append(out, strings.ReplaceAll(spec.Message, "{{value}}", valueText(value)))
			continue
		}
		out = append(out, fallbackMessage(key, payload, s.translator))
	}
	return out
}

// matchSpec finds the ValidatorSpec behind an error key. Patterns match on
// the compiled source first; a spec whose source is merely contained in the
// reported pattern is used only when no spec matches exactly.
func matchSpec(key string, payload any, specs []ValidatorSpec) (ValidatorSpec, bool) {
	var (
		loose    ValidatorSpec
		hasLoose bool
	)
	for _, spec := range specs {
		name := strings.ToLower(spec.Name)
		if spec.Name == ValidatorRequiredTrue {
			name = ValidatorRequired
		}
		if name != key {
			continue
		}
		target, valued := valueKeys[spec.Name]
		if spec.Value == nil || !valued {
			return spec, true
		}
		m, _ := asMap(payload)
		got, ok := m[target]
		if !ok {
			continue
		}
		if spec.Name == ValidatorPattern {
			src := stringOf(got)
			if re, err := compilePattern(spec); err == nil && re.String() == src {
				return spec, true
			}
			if !hasLoose && strings.Contains(src, stringOf(spec.Value)) {
				loose, hasLoose = spec, true
			}
			continue
		}
		a, okA := toNumber(got)
		b, okB := toNumber(spec.Value)
		if okA && okB && a == b {
			return spec, true
		}
	}
	return loose, hasLoose
}

func fallbackMessage(key string, payload any, tr i18n.Translator) string {
	if tr != nil {
		return tr.Message(key, payloadFields(payload))
	}
	if s, ok := payload.(string); ok {
		return s
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(b)
}

func payloadFields(payload any) map[string]string {
	m, ok := asMap(payload)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = valueText(v)
	}
	return out
}

// valueText renders a value for message templates.
func valueText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool, int, int64, json.Number:
		return fmt.Sprint(t)
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprint(v)
}

// CollectMessages mirrors CollectErrors but maps every control's errors to
// a []string of messages with ErrorMessages. Array messages of the array itself live under
// SelfKey. It returns nil when the subtree has no errors.
func CollectMessages(n *Node, opts ...Option) map[string]any {
	if n == nil {
		return nil
	}
	out, _ := ClearEmpties(collectMessages(n, opts)).(map[string]any)
	return out
}

func collectMessages(n *Node, opts []Option) any {
	switch n.kind {
	case KindGroup:
		out := make(map[string]any, len(n.children))
		for _, c := range n.children {
			if m := collectMessages(c, opts); m != nil {
				out[c.name] = m
			}
		}
		return out
	case KindArray:
		out := make(map[string]any, len(n.children)+1)
		if msgs := ErrorMessages(n.errors, n.Value(), n.specs, opts...); len(msgs) > 0 {
			out[SelfKey] = msgs
		}
		for i, c := range n.children {
			if m := collectMessages(c, opts); m != nil {
				out[strconv.Itoa(i)] = m
			}
		}
		return out
	default:
		msgs := ErrorMessages(n.errors, n.Value(), n.specs, opts...)
		if len(msgs) == 0 {
			return nil
		}
		return msgs
	}
}
