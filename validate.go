package dynform

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/reoring/dynform/condition"
)

// ConfigResult is the outcome of ValidateConfig: the cleaned config tree and
// every problem found along the way.
type ConfigResult struct {
	Configs []FieldConfig
	Errors  ConfigErrors
}

// OK reports whether no problem was found.
func (r ConfigResult) OK() bool { return len(r.Errors) == 0 }

// Err returns Errors as an error, or nil when there are none.
func (r ConfigResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors
}

// ValidateConfig checks a form configuration for structural problems.
//
// input is a []FieldConfig or raw config text (string, []byte or
// json.RawMessage) decoded with the active ConfigDriver. A parse failure is
// reported as a single parse_error and an empty config list. Otherwise nodes
// that cannot be built (missing, invalid or duplicated identifiers, empty
// array templates) are dropped, a conflicting formArray is removed, and
// every other node is kept so callers can render the form next to the
// diagnostics. ValidateConfig never panics on malformed input.
func ValidateConfig(input any, opts ...Option) ConfigResult {
	s := newSettings(opts)

	var (
		cfgs []FieldConfig
		errs ConfigErrors
		data []byte
		raw  = true
	)
	switch v := input.(type) {
	case nil:
		return ConfigResult{}
	case []FieldConfig:
		cfgs, raw = v, false
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		return ConfigResult{Errors: ConfigErrors{{Path: "/", Code: CodeParseError, Reason: fmt.Sprintf("unsupported config input %T", input)}}}
	}
	if raw {
		d := getConfigDriver()
		decoded, err := d.Decode(data)
		if err != nil {
			return ConfigResult{Errors: ConfigErrors{{Path: "/", Code: CodeParseError, Reason: err.Error()}}}
		}
		if d.Format() == FormatJSON {
			errs = detectDuplicateKeys(data)
		}
		cfgs = decoded
	}

	v := &configValidator{s: s}
	out := v.list(cfgs, configRef{})
	return ConfigResult{Configs: out, Errors: append(errs, v.errs...)}
}

type configValidator struct {
	s    *settings
	errs ConfigErrors
}

func (v *configValidator) add(e ConfigError) { v.errs = append(v.errs, e) }

// list validates siblings; ref points at the list itself.
func (v *configValidator) list(in []FieldConfig, ref configRef) []FieldConfig {
	if in == nil {
		return nil
	}
	out := make([]FieldConfig, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, c := range in {
		r := ref.index(i)
		switch name := c.FormControlName; {
		case name == "":
			v.add(r.errorf(CodeMissingName, "formControlName is empty"))
			continue
		case strings.Contains(name, "."):
			v.add(r.named(name).errorf(CodeInvalidName, "formControlName must not contain '.'"))
			continue
		}
		if _, dup := seen[c.FormControlName]; dup {
			v.add(r.named(c.FormControlName).errorf(CodeDuplicateName, fmt.Sprintf("formControlName %q is already used by a sibling", c.FormControlName)))
			continue
		}
		seen[c.FormControlName] = struct{}{}
		if n, ok := v.node(c, r.named(c.FormControlName)); ok {
			out = append(out, n)
		}
	}
	return out
}

func (v *configValidator) node(c FieldConfig, r configRef) (FieldConfig, bool) {
	if c.Children != nil && c.FormArray != nil {
		v.add(r.field("formArray").errorf(CodeConflictingShape, "children and formArray are both set; formArray is ignored"))
		c.FormArray = nil
	}
	if c.FormArray != nil && len(c.FormArray.Template) == 0 {
		v.add(r.field("formArray").field("template").errorf(CodeEmptyTemplate, "formArray template has no fields"))
		return FieldConfig{}, false
	}

	v.validators(c, r)
	v.conditions(c.Conditions, r.field("conditions"))
	v.options(c, r.field("options"))

	switch c.Kind() {
	case KindGroup:
		c.Children = v.list(c.Children, r.field("children"))
	case KindArray:
		fa := *c.FormArray
		if fa.Length < 0 {
			v.add(r.field("formArray").field("length").errorf(CodeConflictingShape, "length must not be negative"))
			fa.Length = 0
		}
		tr := r.field("formArray").field("template")
		fa.Template = v.list(fa.Template, configRef{parts: tr.parts, control: appendCopy(r.control, "*")})
		if len(fa.Template) == 0 {
			// every template field was dropped
			v.add(tr.errorf(CodeEmptyTemplate, "formArray template has no valid fields"))
			return FieldConfig{}, false
		}
		c.FormArray = &fa
	}
	return c, true
}

func (v *configValidator) validators(c FieldConfig, r configRef) {
	if len(c.Validators) == 0 {
		return
	}
	if c.Kind() == KindGroup {
		v.add(r.field("validators").errorf(CodeUnsupportedValidators, "validators on a group are ignored"))
		return
	}
	for j, spec := range c.Validators {
		vr := r.field("validators").index(j)
		if !IsBuiltinValidator(spec.Name) {
			if _, ok := v.s.validators[spec.Name]; !ok {
				v.add(vr.errorf(CodeUnknownValidator, fmt.Sprintf("validator %q is neither built in nor registered", spec.Name)))
				continue
			}
		}
		if _, err := compileValidator(spec, v.s.validators); err != nil {
			v.add(vr.errorf(CodeInvalidValidator, err.Error()))
		}
	}
}

func (v *configValidator) conditions(set condition.Set, r configRef) {
	for _, name := range set.Names() {
		cr := r.field(name)
		if name == "" {
			if err := (condition.Set{"": set[name]}).Err(); err != nil {
				v.add(r.errorf(CodeInvalidCondition, err.Error()))
				continue
			}
			v.add(cr.errorf(CodeInvalidCondition, "condition has no name"))
			continue
		}
		if !condition.IsAspect(name) && v.s.actions != nil {
			if _, ok := v.s.actions[name]; !ok {
				v.add(cr.errorf(CodeUnknownAction, fmt.Sprintf("no action registered for condition %q", name)))
			}
		}
		for k, sp := range set[name] {
			if sp.Err != nil {
				v.add(cr.errorf(CodeInvalidCondition, sp.Err.Error()))
				continue
			}
			v.spec(sp, cr.index(k))
		}
	}
}

func (v *configValidator) spec(sp condition.Spec, r configRef) {
	if !sp.IsLeaf() && !sp.IsGroup() {
		v.add(r.errorf(CodeInvalidCondition, "condition has neither control nor group"))
		return
	}
	if sp.IsLeaf() && !sp.Operator.Valid() {
		v.add(r.field("operator").errorf(CodeInvalidCondition, fmt.Sprintf("unknown operator %q", sp.Operator)))
	}
	if !sp.GroupBooleanOperator.Valid() {
		v.add(r.field("groupBooleanOperator").errorf(CodeInvalidCondition, fmt.Sprintf("unknown boolean operator %q", sp.GroupBooleanOperator)))
	}
	for k, child := range sp.Group {
		v.spec(child, r.field("group").index(k))
	}
}

func (v *configValidator) options(c FieldConfig, r configRef) {
	o := c.Options
	if o == nil {
		return
	}
	if c.Kind() != KindControl {
		v.add(r.errorf(CodeInvalidOptions, "options are only supported on controls"))
		return
	}
	switch o.SrcAppendPosition {
	case "", AppendAfter, AppendBefore:
	default:
		v.add(r.field("srcAppendPosition").errorf(CodeInvalidOptions, fmt.Sprintf("unknown append position %q", o.SrcAppendPosition)))
	}
	src := o.Source
	if src == nil {
		return
	}
	sr := r.field("source")
	if src.Src == "" {
		v.add(sr.field("src").errorf(CodeInvalidOptions, "source src is empty"))
	} else if v.s.sources != nil {
		if _, ok := v.s.sources[src.Src]; !ok {
			v.add(sr.field("src").errorf(CodeUnknownOptionSource, fmt.Sprintf("no option source registered for %q", src.Src)))
		}
	}
	if src.Filter != nil && src.Filter.By == "" {
		v.add(sr.field("filter").field("by").errorf(CodeInvalidOptions, "filter needs a control path"))
	}
	if src.Trigger != nil && src.Trigger.By == "" {
		v.add(sr.field("trigger").field("by").errorf(CodeInvalidOptions, "trigger needs a control path"))
	}
}
