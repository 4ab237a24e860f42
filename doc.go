// Package dynform is a headless dynamic-form engine.
//
// dynform provides:
//
// - Config validation of JSON/YAML form descriptions with structured errors (JSON Pointer, code, reason)
// - A live form tree (controls, groups, repeating arrays) with built-in and custom validators
// - A condition engine toggling required/disabled/hidden state and firing named actions
// - Nested error objects and user-facing messages with {{value}} templates
// - Form sessions with a value accessor, change events and cancelable option loading
//
// Design policy:
// - Keep only public APIs in the root package; put detailed implementations under internal/.
// - Place condition evaluation under condition/, config drivers under source/, and the CLI under cmd/dynform.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	res := dynform.ValidateConfig(data)
//	f, err := dynform.New(ctx, data, dynform.WithValidators(custom))
//	err = f.SetValue(ctx, "address.zip", "1000001")
//	errs := f.Errors()
//	msgs := f.Messages()
package dynform
