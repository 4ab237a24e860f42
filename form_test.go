package dynform_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/dynform"
	"github.com/reoring/dynform/condition"
)

func ctx(t *testing.T) context.Context {
	t.Helper()
	return t.Context()
}

func newForm(t *testing.T, input any, opts ...dynform.Option) *dynform.Form {
	t.Helper()
	f, err := dynform.New(t.Context(), input, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func state(t *testing.T, f *dynform.Form, path string) dynform.NodeState {
	t.Helper()
	st, err := f.Get(path)
	require.NoError(t, err)
	return st
}

// recorder collects events; safe for use from option goroutines.
type recorder struct {
	mu     sync.Mutex
	events []dynform.Event
}

func (r *recorder) add(ev dynform.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []dynform.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dynform.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) of(typ dynform.EventType) []dynform.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dynform.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func TestForm_DisabledToggleEndToEnd(t *testing.T) {
	raw := `[{"formControlName":"x","value":1},{"formControlName":"y","conditions":{"disabled":{"&&":[["x","===",1]]}}}]`
	f := newForm(t, raw)

	assert.True(t, state(t, f, "y").Disabled)
	assert.Equal(t, map[string]any{"x": 1.0}, f.Value())
	assert.Equal(t, map[string]any{"x": 1.0, "y": nil}, f.RawValue())

	require.NoError(t, f.Patch(ctx(t), map[string]any{"x": 2}))
	assert.False(t, state(t, f, "y").Disabled)
	assert.Equal(t, map[string]any{"x": 2, "y": nil}, f.Value())

	require.NoError(t, f.Patch(ctx(t), map[string]any{"x": 1}))
	assert.True(t, state(t, f, "y").Disabled)
}

func TestForm_HiddenForcesDisabled(t *testing.T) {
	cfg := []dynform.FieldConfig{
		{FormControlName: "mode", Value: "a"},
		{FormControlName: "secret", Validators: []dynform.ValidatorSpec{{Name: "required"}}, Conditions: condition.Set{
			condition.Disabled: {{Control: "mode", Operator: condition.Eq, ControlValue: "locked"}},
			condition.Hidden:   {{Control: "mode", Operator: condition.Eq, ControlValue: "a"}},
		}},
	}
	f := newForm(t, cfg)

	st := state(t, f, "secret")
	assert.True(t, st.Hidden)
	assert.True(t, st.Disabled, "hidden wins over a false disabled condition")
	assert.Nil(t, f.Errors(), "hidden controls are not validated")

	require.NoError(t, f.SetValue(ctx(t), "mode", "b"))
	st = state(t, f, "secret")
	assert.False(t, st.Hidden)
	assert.False(t, st.Disabled)
	assert.Equal(t, map[string]any{"secret": map[string]any{"required": true}}, f.Errors())

	require.NoError(t, f.SetValue(ctx(t), "mode", "locked"))
	st = state(t, f, "secret")
	assert.False(t, st.Hidden)
	assert.True(t, st.Disabled, "un-hiding keeps a true disabled condition")
}

func TestForm_UndefinedConditionLeavesStateAlone(t *testing.T) {
	cfg := []dynform.FieldConfig{
		{FormControlName: "a"},
		{FormControlName: "b", Conditions: condition.Set{
			condition.Required: {{Control: "a", Operator: condition.Eq, ControlValue: true}},
		}},
	}
	f := newForm(t, cfg)
	require.NoError(t, f.SetDisabledState(true))
	require.NoError(t, f.Patch(ctx(t), map[string]any{"a": true}))
	assert.True(t, state(t, f, "b").Disabled, "no disabled condition, so the form-level state stays")
	require.NoError(t, f.SetDisabledState(false))
	assert.False(t, state(t, f, "b").Disabled)
}

func TestForm_RequiredCondition(t *testing.T) {
	cfg := []dynform.FieldConfig{
		{FormControlName: "hasPet", Type: "checkbox", Value: false},
		{FormControlName: "petName", Conditions: condition.Set{
			condition.Required: {{Control: "hasPet", Operator: condition.Eq, ControlValue: true}},
		}},
	}
	f := newForm(t, cfg)
	assert.False(t, state(t, f, "petName").Required)
	assert.True(t, f.Valid())

	require.NoError(t, f.SetValue(ctx(t), "hasPet", "true"))
	assert.True(t, state(t, f, "petName").Required)
	assert.Equal(t, map[string]any{"petName": map[string]any{"required": true}}, f.Errors())

	require.NoError(t, f.SetValue(ctx(t), "petName", "Tama"))
	assert.True(t, f.Valid())
}

func TestForm_ActionsFireOnTransition(t *testing.T) {
	var calls []string
	actions := map[string]dynform.ActionFunc{
		"greet": func(_ context.Context, st dynform.NodeState) { calls = append(calls, st.Path) },
	}
	cfg := []dynform.FieldConfig{
		{FormControlName: "n", Value: 0},
		{FormControlName: "msg", Conditions: condition.Set{
			"greet": {{Control: "n", Operator: condition.Gt, ControlValue: 1}},
		}},
	}
	f := newForm(t, cfg, dynform.WithActions(actions))
	assert.Empty(t, calls)

	require.NoError(t, f.Patch(ctx(t), map[string]any{"n": 2}))
	require.NoError(t, f.Patch(ctx(t), map[string]any{"n": 3}))
	assert.Equal(t, []string{"msg"}, calls, "fires once per false to true transition")

	require.NoError(t, f.Patch(ctx(t), map[string]any{"n": 0}))
	require.NoError(t, f.Patch(ctx(t), map[string]any{"n": 5}))
	assert.Equal(t, []string{"msg", "msg"}, calls)
	assert.Empty(t, f.ConfigErrors())
}

func TestForm_ActionMayCallBack(t *testing.T) {
	var f *dynform.Form
	actions := map[string]dynform.ActionFunc{
		"fill": func(ctx context.Context, _ dynform.NodeState) {
			_ = f.Patch(ctx, map[string]any{"copy": "filled"})
		},
	}
	cfg := []dynform.FieldConfig{
		{FormControlName: "src"},
		{FormControlName: "copy", Conditions: condition.Set{"fill": {{Control: "src", Operator: condition.Eq, ControlValue: "go"}}}},
	}
	f = newForm(t, cfg, dynform.WithActions(actions))
	require.NoError(t, f.SetValue(ctx(t), "src", "go"))
	assert.Equal(t, "filled", f.Value()["copy"])
}

func TestForm_GroupFoldAndNesting(t *testing.T) {
	raw := `[
	  {"formControlName":"a","value":1},
	  {"formControlName":"b","value":2},
	  {"formControlName":"c","value":3},
	  {"formControlName":"t","conditions":{"hidden":{"&&":[["a","===",1],{"||":[["b","===",9],["c","===",3]]}]}}}
	]`
	f := newForm(t, raw)
	assert.True(t, state(t, f, "t").Hidden)
	require.NoError(t, f.Patch(ctx(t), map[string]any{"c": 4}))
	assert.False(t, state(t, f, "t").Hidden)
	require.NoError(t, f.Patch(ctx(t), map[string]any{"b": 9}))
	assert.True(t, state(t, f, "t").Hidden)
}

func TestForm_ArrayItemConditionsAreScoped(t *testing.T) {
	cfg := []dynform.FieldConfig{
		{FormControlName: "global", Value: "on"},
		{FormControlName: "rows", Value: []any{map[string]any{"kind": "a"}, map[string]any{"kind": "b"}},
			FormArray: &dynform.FormArrayConfig{Template: []dynform.FieldConfig{
				{FormControlName: "kind"},
				{FormControlName: "extra", Conditions: condition.Set{
					condition.Disabled: {{Control: "kind", Operator: condition.Ne, ControlValue: "b"}},
				}},
				{FormControlName: "flag", Conditions: condition.Set{
					condition.Hidden: {{Control: "global", Operator: condition.Eq, ControlValue: "off"}},
				}},
			}}},
	}
	f := newForm(t, cfg)
	assert.True(t, state(t, f, "rows.0.extra").Disabled)
	assert.False(t, state(t, f, "rows.1.extra").Disabled)

	require.NoError(t, f.Append(ctx(t), "rows", map[string]any{"kind": "b"}))
	assert.False(t, state(t, f, "rows.2.extra").Disabled, "appended items are wired")

	require.NoError(t, f.SetValue(ctx(t), "global", "off"))
	for _, p := range []string{"rows.0.flag", "rows.1.flag", "rows.2.flag"} {
		assert.True(t, state(t, f, p).Hidden, p)
	}

	require.NoError(t, f.RemoveAt(ctx(t), "rows", 0))
	assert.Equal(t, "rows.0.extra", state(t, f, "rows.0.extra").Path)
	assert.False(t, state(t, f, "rows.0.extra").Disabled, "former item 1 moved to index 0")
	_, err := f.Get("rows.2")
	assert.ErrorIs(t, err, dynform.ErrNotFound)
}

func TestForm_ArrayOperationsErrors(t *testing.T) {
	f := newForm(t, cleanConfig())
	assert.ErrorIs(t, f.Append(ctx(t), "name", nil), dynform.ErrNotArray)
	assert.ErrorIs(t, f.Append(ctx(t), "ghost", nil), dynform.ErrNotFound)
	assert.ErrorIs(t, f.RemoveAt(ctx(t), "phones", 5), dynform.ErrNotFound)
	assert.ErrorIs(t, f.RemoveAt(ctx(t), "address", 0), dynform.ErrNotArray)
	assert.ErrorIs(t, f.SetValue(ctx(t), "ghost", 1), dynform.ErrNotFound)
}

func TestForm_PatchGrowsArraysAndIgnoresUnknownKeys(t *testing.T) {
	f := newForm(t, cleanConfig())
	require.NoError(t, f.Patch(ctx(t), map[string]any{
		"phones":  []any{map[string]any{"number": "1"}, map[string]any{"number": "2"}},
		"unknown": true,
	}))
	assert.Equal(t, []any{map[string]any{"number": "1"}, map[string]any{"number": "2"}}, f.Value()["phones"])
	require.NoError(t, f.Patch(ctx(t), map[string]any{"phones": []any{map[string]any{"number": "9"}}}))
	assert.Len(t, f.Value()["phones"], 2, "patch never shrinks arrays")
	assert.NotContains(t, f.Value(), "unknown")
}

func TestForm_DirtyTouchedReadonly(t *testing.T) {
	cfg := []dynform.FieldConfig{
		{FormControlName: "id", Value: "A-1", Readonly: true},
		{FormControlName: "address", Children: []dynform.FieldConfig{{FormControlName: "city"}}},
	}
	f := newForm(t, cfg)

	require.NoError(t, f.Patch(ctx(t), map[string]any{"address": map[string]any{"city": "Osaka"}}))
	assert.False(t, state(t, f, "address.city").Dirty, "patches keep the form pristine")

	require.NoError(t, f.SetValue(ctx(t), "address.city", "Kyoto"))
	assert.True(t, state(t, f, "address.city").Dirty)
	assert.True(t, state(t, f, "address").Dirty)

	assert.ErrorIs(t, f.SetValue(ctx(t), "id", "B-2"), dynform.ErrReadonly)
	require.NoError(t, f.Patch(ctx(t), map[string]any{"id": "B-2"}))
	assert.Equal(t, "B-2", f.Value()["id"])

	touched := 0
	f.RegisterOnTouched(func() { touched++ })
	require.NoError(t, f.MarkTouched(ctx(t), "address.city"))
	require.NoError(t, f.MarkTouched(ctx(t), "id"))
	assert.Equal(t, 1, touched, "onTouched fires once per session")
	assert.True(t, state(t, f, "address").Touched)
}

func TestForm_UserEditsSkipReadonlyDescendants(t *testing.T) {
	cfg := []dynform.FieldConfig{{
		FormControlName: "account",
		Children: []dynform.FieldConfig{
			{FormControlName: "id", Value: "A-1", Readonly: true},
			{FormControlName: "name"},
		},
	}}
	f := newForm(t, cfg)

	require.NoError(t, f.SetValue(ctx(t), "account", map[string]any{"id": "B-2", "name": "Bob"}))
	assert.Equal(t, map[string]any{"id": "A-1", "name": "Bob"}, f.Value()["account"])
	assert.True(t, state(t, f, "account").Dirty)

	require.NoError(t, f.Patch(ctx(t), map[string]any{"account": map[string]any{"id": "B-2"}}))
	assert.Equal(t, "B-2", state(t, f, "account.id").Value, "programmatic patches still apply")
}

func TestForm_EventsAndValueAccessor(t *testing.T) {
	rec := &recorder{}
	f := newForm(t, `[{"formControlName":"a","validators":[{"name":"required"}]}]`, dynform.WithEventListener(rec.add))
	assert.Equal(t, []dynform.EventType{dynform.EventFormReady}, rec.types())
	ready := rec.of(dynform.EventFormReady)[0]
	assert.Equal(t, map[string]any{"a": map[string]any{"required": true}}, ready.Errors)

	var changes []any
	f.RegisterOnChange(func(v any) { changes = append(changes, v) })

	rec.reset()
	require.NoError(t, f.SetValue(ctx(t), "a", "x"))
	assert.Equal(t, []dynform.EventType{dynform.EventStatusChanged, dynform.EventValueChanged, dynform.EventValidation}, rec.types())
	assert.Nil(t, rec.of(dynform.EventValidation)[0].Errors)
	assert.Equal(t, []any{map[string]any{"a": "x"}}, changes)

	rec.reset()
	require.NoError(t, f.WriteValue(map[string]any{"a": "y"}))
	assert.Len(t, changes, 1, "WriteValue does not echo through onChange")
	assert.Equal(t, []dynform.EventType{dynform.EventValueChanged}, rec.types())

	rec.reset()
	require.NoError(t, f.Patch(ctx(t), map[string]any{"a": "y"}))
	assert.Empty(t, rec.types(), "no change, no events")

	require.NoError(t, f.WriteValue(map[string]any{"a": ""}))
	assert.Equal(t, map[string]any{"a": map[string]any{"required": true}}, f.Validate())

	require.NoError(t, f.SetDisabledState(true))
	assert.Nil(t, f.Validate())
	assert.True(t, state(t, f, "a").Disabled)
}

func TestForm_SubscribeCancel(t *testing.T) {
	f := newForm(t, cleanConfig())
	n := 0
	cancel := f.Subscribe(func(dynform.Event) { n++ })
	require.NoError(t, f.SetValue(ctx(t), "name", "a"))
	seen := n
	assert.Positive(t, seen)
	cancel()
	require.NoError(t, f.SetValue(ctx(t), "name", "b"))
	assert.Equal(t, seen, n)
}

func TestForm_ResetAndClose(t *testing.T) {
	f := newForm(t, cleanConfig())
	id := f.ID()
	require.NoError(t, f.Reset(ctx(t), `[{"formControlName":"only","value":"v"}]`))
	assert.Equal(t, map[string]any{"only": "v"}, f.Value())
	assert.Equal(t, id, f.ID())
	require.Len(t, f.Configs(), 1)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.SetValue(ctx(t), "only", "w"), dynform.ErrClosed)
	assert.ErrorIs(t, f.Reset(ctx(t), cleanConfig()), dynform.ErrClosed)
}

func TestNew_ConfigErrorsAreNotFatal(t *testing.T) {
	f := newForm(t, `[{"formControlName":"a","validators":[{"name":"bogus"}]},{"formControlName":""}]`)
	ce := f.ConfigErrors()
	require.Len(t, ce, 2)
	assert.True(t, ce.Has(dynform.CodeUnknownValidator))
	assert.True(t, f.Valid(), "unknown validators compile to no-ops")

	f2 := newForm(t, `not json`)
	assert.True(t, f2.ConfigErrors().Has(dynform.CodeParseError))
	assert.Empty(t, f2.Value())
}

func TestForm_SnapshotAndDependencies(t *testing.T) {
	f := newForm(t, `[{"formControlName":"x","value":1},{"formControlName":"y","conditions":{"disabled":["x","===",1]}}]`)
	snap := f.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "x", snap[0].Path)
	assert.True(t, snap[1].Disabled)
	assert.Equal(t, map[string][]string{"x": {"y"}}, f.Dependencies())
}

func TestForm_MessagesUseTemplates(t *testing.T) {
	f := newForm(t, `[{"formControlName":"n","value":"","validators":[{"name":"required","message":"Field {{value}} is required"}]}]`)
	assert.Equal(t, map[string]any{"n": []string{"Field  is required"}}, f.Messages())
	st := state(t, f, "n")
	assert.Equal(t, []string{"Field  is required"}, st.Messages)
}

func TestForm_ConcurrentWriters(t *testing.T) {
	f := newForm(t, `[{"formControlName":"n","type":"number"},{"formControlName":"big","conditions":{"hidden":["n","<",50]}}]`)
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.SetValue(context.Background(), "n", i)
			_ = f.Value()
		}()
	}
	wg.Wait()
	n, _ := f.Value()["n"].(int)
	big := state(t, f, "big")
	assert.Equal(t, n < 50, big.Hidden, "derived state matches the last write")
}

func TestForm_CustomControlTypeNormalizesWrites(t *testing.T) {
	upper := dynform.ControlType{Name: "upper", Normalize: func(v any) any {
		if s, ok := v.(string); ok {
			return strings.ToUpper(s)
		}
		return v
	}}
	f := newForm(t, `[{"formControlName":"code","type":"upper","value":"ab"}]`, dynform.WithControlType(upper))
	assert.Equal(t, "AB", f.Value()["code"])
	require.NoError(t, f.SetValue(ctx(t), "code", "xy"))
	assert.Equal(t, "XY", f.Value()["code"])
	assert.Equal(t, "upper", state(t, f, "code").Type)
}
