package dynform

import "context"

// ValueAccessor is the host-facing contract of a form used as a single
// value inside a larger form: the host writes values in, is told about
// changes and touches, can disable the whole form and asks it to validate.
type ValueAccessor interface {
	// WriteValue patches v into the form without echoing it back through
	// the onChange callback.
	WriteValue(v any) error
	RegisterOnChange(fn func(value any))
	RegisterOnTouched(fn func())
	SetDisabledState(disabled bool) error
	// Validate returns the nested error object, nil when the form is valid.
	Validate() map[string]any
}

var _ ValueAccessor = (*Form)(nil)

// WriteValue implements ValueAccessor.
func (f *Form) WriteValue(v any) error {
	return f.mutate(context.Background(), false, func(*settleResult) error {
		return f.root.patch(v, &builder{s: f.s})
	})
}

// RegisterOnChange implements ValueAccessor. fn receives the form value
// after every change that did not come from WriteValue.
func (f *Form) RegisterOnChange(fn func(value any)) {
	f.subMu.Lock()
	f.onChange = fn
	f.subMu.Unlock()
}

// RegisterOnTouched implements ValueAccessor. fn runs once per session, on
// the first MarkTouched.
func (f *Form) RegisterOnTouched(fn func()) {
	f.subMu.Lock()
	f.onTouched = fn
	f.subMu.Unlock()
}

// SetDisabledState implements ValueAccessor. Disabling the form disables
// every node; enabling it restores the state conditions gave them.
func (f *Form) SetDisabledState(disabled bool) error {
	return f.mutate(context.Background(), true, func(*settleResult) error {
		f.root.disabled = disabled
		return nil
	})
}

// Validate implements ValueAccessor.
func (f *Form) Validate() map[string]any { return f.Errors() }
