package dynform_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/dynform"
)

func staticLookup(items ...dynform.OptionItem) dynform.OptionLookup {
	return func(context.Context, dynform.OptionRequest) ([]dynform.OptionItem, error) {
		return items, nil
	}
}

func labels(items []dynform.OptionItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func TestLoadOptions_MergesStaticAndFetched(t *testing.T) {
	for _, tc := range []struct {
		pos  string
		want []string
	}{
		{pos: "", want: []string{"Other", "Japan", "USA"}},
		{pos: dynform.AppendAfter, want: []string{"Other", "Japan", "USA"}},
		{pos: dynform.AppendBefore, want: []string{"Japan", "USA", "Other"}},
	} {
		t.Run("pos="+tc.pos, func(t *testing.T) {
			rec := &recorder{}
			cfg := []dynform.FieldConfig{{
				FormControlName: "country",
				Type:            dynform.TypeSelect,
				Options: &dynform.OptionsConfig{
					Data:              []dynform.OptionItem{{Label: "Other", Value: "xx"}},
					Source:            &dynform.OptionSource{Src: "countries"},
					SrcAppendPosition: tc.pos,
				},
			}}
			f := newForm(t, cfg,
				dynform.WithEventListener(rec.add),
				dynform.WithOptionSources(map[string]dynform.OptionLookup{
					"countries": staticLookup(dynform.OptionItem{Label: "Japan", Value: "jp"}, dynform.OptionItem{Label: "USA", Value: "us"}),
				}))
			assert.Equal(t, []string{"Other"}, labels(state(t, f, "country").Options))

			require.NoError(t, f.LoadOptions(ctx(t)))
			st := state(t, f, "country")
			assert.Equal(t, tc.want, labels(st.Options))
			assert.False(t, st.Loading)

			loading := rec.of(dynform.EventOptionsLoading)
			loaded := rec.of(dynform.EventOptionsLoaded)
			require.Len(t, loading, 1)
			require.Len(t, loaded, 1)
			assert.Equal(t, "country", loaded[0].Path)
			assert.Equal(t, tc.want, labels(loaded[0].Options))
			assert.Empty(t, loaded[0].Error)
		})
	}
}

func TestLoadOptions_FilterClearsUnavailableValue(t *testing.T) {
	cfg := []dynform.FieldConfig{
		{FormControlName: "country", Value: "jp"},
		{FormControlName: "city", Value: "tokyo", Options: &dynform.OptionsConfig{
			Source: &dynform.OptionSource{Src: "cities", Filter: &dynform.OptionFilter{By: "country", Key: "country"}},
		}},
	}
	f := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{
		"cities": staticLookup(
			dynform.OptionItem{Label: "Tokyo", Value: "tokyo", Extra: map[string]any{"country": "jp"}},
			dynform.OptionItem{Label: "Osaka", Value: "osaka", Extra: map[string]any{"country": "jp"}},
			dynform.OptionItem{Label: "New York", Value: "nyc", Extra: map[string]any{"country": "us"}},
		),
	}))
	assert.Equal(t, "tokyo", f.Value()["city"], "values are kept until the source answers")

	require.NoError(t, f.LoadOptions(ctx(t)))
	assert.Equal(t, []string{"Tokyo", "Osaka"}, labels(state(t, f, "city").Options))
	assert.Equal(t, "tokyo", f.Value()["city"])

	require.NoError(t, f.SetValue(ctx(t), "country", "us"))
	assert.Equal(t, []string{"New York"}, labels(state(t, f, "city").Options))
	assert.Nil(t, f.Value()["city"])
}

func TestOptions_AutoSelectFirst(t *testing.T) {
	cfg := []dynform.FieldConfig{
		{FormControlName: "size", Options: &dynform.OptionsConfig{
			Data:            []dynform.OptionItem{{Label: "S", Value: "s"}, {Label: "M", Value: "m"}},
			AutoSelectFirst: true,
		}},
		{FormControlName: "plan", Options: &dynform.OptionsConfig{
			Source:          &dynform.OptionSource{Src: "plans"},
			AutoSelectFirst: true,
		}},
	}
	f := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{
		"plans": staticLookup(dynform.OptionItem{Label: "Free", Value: "free"}),
	}))
	assert.Equal(t, "s", f.Value()["size"])
	assert.Nil(t, f.Value()["plan"])

	require.NoError(t, f.LoadOptions(ctx(t)))
	assert.Equal(t, "free", f.Value()["plan"])
}

func TestLoadOptions_UnknownSource(t *testing.T) {
	rec := &recorder{}
	cfg := []dynform.FieldConfig{{FormControlName: "x", Options: &dynform.OptionsConfig{Source: &dynform.OptionSource{Src: "nowhere"}}}}
	f := newForm(t, cfg, dynform.WithEventListener(rec.add))
	assert.Empty(t, f.ConfigErrors(), "sources are only checked when a registry is supplied")

	err := f.LoadOptions(ctx(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, dynform.ErrUnknownOptionSource)
	loaded := rec.of(dynform.EventOptionsLoaded)
	require.Len(t, loaded, 1)
	assert.NotEmpty(t, loaded[0].Error)
	assert.False(t, state(t, f, "x").Loading)

	f2 := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{}))
	assert.True(t, f2.ConfigErrors().Has(dynform.CodeUnknownOptionSource))
}

func TestLoadOptions_LookupErrorKeepsOthers(t *testing.T) {
	boom := errors.New("boom")
	cfg := []dynform.FieldConfig{
		{FormControlName: "a", Options: &dynform.OptionsConfig{Source: &dynform.OptionSource{Src: "bad"}}},
		{FormControlName: "b", Options: &dynform.OptionsConfig{Source: &dynform.OptionSource{Src: "good"}}},
	}
	f := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{
		"bad": func(context.Context, dynform.OptionRequest) ([]dynform.OptionItem, error) { return nil, boom },
		"good": staticLookup(dynform.OptionItem{Label: "ok", Value: 1}),
	}))
	err := f.LoadOptions(ctx(t))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"ok"}, labels(state(t, f, "b").Options))
	assert.Empty(t, state(t, f, "a").Options)
}

func TestOptions_TriggerRefetches(t *testing.T) {
	var calls atomic.Int32
	byCountry := map[any][]dynform.OptionItem{
		"jp": {{Label: "Tokyo", Value: "tokyo"}},
		"us": {{Label: "New York", Value: "nyc"}, {Label: "Boston", Value: "bos"}},
	}
	cfg := []dynform.FieldConfig{
		{FormControlName: "country", Value: "jp"},
		{FormControlName: "city", Options: &dynform.OptionsConfig{
			Source: &dynform.OptionSource{Src: "cities", Trigger: &dynform.OptionTrigger{By: "country"}},
		}},
	}
	f := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{
		"cities": func(_ context.Context, req dynform.OptionRequest) ([]dynform.OptionItem, error) {
			calls.Add(1)
			assert.Equal(t, "city", req.Control)
			return byCountry[req.Trigger], nil
		},
	}))
	require.NoError(t, f.LoadOptions(ctx(t)))
	assert.Equal(t, []string{"Tokyo"}, labels(state(t, f, "city").Options))

	require.NoError(t, f.SetValue(ctx(t), "country", "us"))
	f.Wait()
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"New York", "Boston"}, labels(state(t, f, "city").Options))

	require.NoError(t, f.SetValue(ctx(t), "city", "bos"))
	f.Wait()
	assert.Equal(t, int32(2), calls.Load(), "only trigger changes refetch")
}

// blockingLookup signals when it starts and returns the error its context
// ends with.
func blockingLookup(started chan<- struct{}, got chan<- error) dynform.OptionLookup {
	return func(ctx context.Context, _ dynform.OptionRequest) ([]dynform.OptionItem, error) {
		started <- struct{}{}
		<-ctx.Done()
		got <- ctx.Err()
		return nil, ctx.Err()
	}
}

func TestLoadOptions_ResetCancelsInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	got := make(chan error, 1)
	cfg := []dynform.FieldConfig{{FormControlName: "x", Options: &dynform.OptionsConfig{Source: &dynform.OptionSource{Src: "slow"}}}}
	f := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{"slow": blockingLookup(started, got)}))

	done := make(chan error, 1)
	go func() { done <- f.LoadOptions(context.Background()) }()
	<-started
	assert.True(t, state(t, f, "x").Loading)

	require.NoError(t, f.Reset(ctx(t), cfg))
	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("lookup was not cancelled")
	}
	assert.NoError(t, <-done, "results for a replaced tree are dropped")
	assert.False(t, state(t, f, "x").Loading)
}

func TestLoadOptions_CloseCancelsInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	got := make(chan error, 1)
	cfg := []dynform.FieldConfig{{FormControlName: "x", Options: &dynform.OptionsConfig{Source: &dynform.OptionSource{Src: "slow"}}}}
	f, err := dynform.New(ctx(t), cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{"slow": blockingLookup(started, got)}))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.LoadOptions(context.Background()) }()
	<-started
	require.NoError(t, f.Close())
	assert.ErrorIs(t, <-got, context.Canceled)
	assert.ErrorIs(t, <-done, dynform.ErrClosed)
	assert.ErrorIs(t, f.LoadOptions(ctx(t)), dynform.ErrClosed)
}

func TestLoadOptions_CallerContext(t *testing.T) {
	started := make(chan struct{}, 1)
	got := make(chan error, 1)
	cfg := []dynform.FieldConfig{{FormControlName: "x", Options: &dynform.OptionsConfig{Source: &dynform.OptionSource{Src: "slow"}}}}
	f := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{"slow": blockingLookup(started, got)}))

	c, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.LoadOptions(c) }()
	<-started
	cancel()
	assert.ErrorIs(t, <-got, context.Canceled)
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, state(t, f, "x").Loading)
}

func TestLoadOptions_RemovedItemIsStale(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	gated := func(ctx context.Context, _ dynform.OptionRequest) ([]dynform.OptionItem, error) {
		started <- struct{}{}
		<-release
		return []dynform.OptionItem{{Label: "A", Value: "a"}}, nil
	}
	cfg := []dynform.FieldConfig{{
		FormControlName: "rows",
		FormArray: &dynform.FormArrayConfig{Length: 1, Template: []dynform.FieldConfig{
			{FormControlName: "kind", Options: &dynform.OptionsConfig{Source: &dynform.OptionSource{Src: "kinds"}}},
		}},
	}}
	f := newForm(t, cfg, dynform.WithOptionSources(map[string]dynform.OptionLookup{"kinds": gated}))
	var rec recorder
	f.Subscribe(rec.add)

	done := make(chan error, 1)
	go func() { done <- f.LoadOptions(context.Background()) }()
	<-started
	require.NoError(t, f.RemoveAt(ctx(t), "rows", 0))
	close(release)

	assert.NoError(t, <-done)
	assert.Empty(t, rec.of(dynform.EventOptionsLoaded), "results for a removed item are dropped")
	assert.Equal(t, map[string]any{"rows": []any{}}, f.RawValue())
}
