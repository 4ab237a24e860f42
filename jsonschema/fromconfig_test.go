package jsonschema_test

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/dynform"
	"github.com/reoring/dynform/jsonschema"
)

func ptr[T any](v T) *T { return &v }

func TestFromConfig(t *testing.T) {
	cfgs := []dynform.FieldConfig{
		{FormControlName: "email", Label: "E-mail", Validators: []dynform.ValidatorSpec{{Name: "required"}, {Name: "email"}}},
		{FormControlName: "age", Type: "number", Value: 20, Validators: []dynform.ValidatorSpec{{Name: "min", Value: 18}, {Name: "max", Value: "99"}}},
		{FormControlName: "plan", Type: "select", Options: &dynform.OptionsConfig{Data: []dynform.OptionItem{{Label: "Free", Value: "free"}, {Label: "Pro", Value: "pro"}}}},
		{FormControlName: "address", Children: []dynform.FieldConfig{
			{FormControlName: "zip", Validators: []dynform.ValidatorSpec{{Name: "pattern", Value: "^[0-9]{7}$"}, {Name: "maxLength", Value: 7}}},
		}},
		{FormControlName: "tags", FormArray: &dynform.FormArrayConfig{Template: []dynform.FieldConfig{{FormControlName: "name", Readonly: true}}},
			Validators: []dynform.ValidatorSpec{{Name: "minLength", Value: 1}}},
		{FormControlName: "tos", Type: "checkbox", Validators: []dynform.ValidatorSpec{{Name: "requiredTrue"}}},
	}
	got := jsonschema.FromConfig(cfgs)

	want := &jsonschema.Schema{
		Schema:               jsonschema.Draft,
		Type:                 "object",
		AdditionalProperties: false,
		Required:             []string{"email", "tos"},
		Properties: map[string]*jsonschema.Schema{
			"email": {Type: "string", Title: "E-mail", Format: "email"},
			"age":   {Type: "number", Default: 20, Minimum: ptr(18.0), Maximum: ptr(99.0)},
			"plan":  {Enum: []any{"free", "pro"}},
			"address": {Type: "object", AdditionalProperties: false, Properties: map[string]*jsonschema.Schema{
				"zip": {Type: "string", Pattern: "^[0-9]{7}$", MaxLength: ptr(7)},
			}},
			"tags": {Type: "array", MinItems: ptr(1), Items: &jsonschema.Schema{
				Type: "object", AdditionalProperties: false, Properties: map[string]*jsonschema.Schema{
					"name": {Type: "string", ReadOnly: true},
				},
			}},
			"tos": {Type: "boolean", Enum: []any{true}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestFromConfig_Marshal(t *testing.T) {
	s := jsonschema.FromConfig([]dynform.FieldConfig{{FormControlName: "a", Type: "date"}})
	b, err := json.Marshal(s)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, jsonschema.Draft, m["$schema"])
	assert.Equal(t, map[string]any{"type": "string", "format": "date"}, m["properties"].(map[string]any)["a"])
	assert.NotContains(t, m, "required")
}
