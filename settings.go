package dynform

import (
	"context"
	"log/slog"

	"github.com/reoring/dynform/i18n"
)

// ActionFunc runs when a named condition of a node turns true. It receives a
// snapshot of the node after the settle pass and runs outside the writer
// lock, so it may call back into the Form.
type ActionFunc func(ctx context.Context, node NodeState)

// OptionRequest is passed to an OptionLookup.
type OptionRequest struct {
	Src     string
	Control string // Dotted path of the control asking for options.
	// Trigger is the current value of the trigger control, when configured.
	Trigger any
}

// OptionLookup resolves an option list for a source key. Lookups must honour
// ctx cancellation; the session cancels every in-flight lookup on Reset and
// Close.
type OptionLookup func(ctx context.Context, req OptionRequest) ([]OptionItem, error)

// settings collects everything configurable through Option.
type settings struct {
	validators map[string]ValidatorFunc
	actions    map[string]ActionFunc
	sources    map[string]OptionLookup
	types      map[string]ControlType
	logger     *slog.Logger
	translator i18n.Translator
	listeners  []func(Event)
}

// Option configures ValidateConfig, Build and New.
type Option func(*settings)

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// WithValidators registers custom validators looked up by ValidatorSpec.Name
// when the name is not a built-in.
func WithValidators(v map[string]ValidatorFunc) Option {
	return func(s *settings) {
		if s.validators == nil {
			s.validators = map[string]ValidatorFunc{}
		}
		for k, fn := range v {
			s.validators[k] = fn
		}
	}
}

// WithActions registers functions for named conditions. Once supplied,
// conditions naming an unregistered action are reported as config errors.
func WithActions(a map[string]ActionFunc) Option {
	return func(s *settings) {
		if s.actions == nil {
			s.actions = map[string]ActionFunc{}
		}
		for k, fn := range a {
			s.actions[k] = fn
		}
	}
}

// WithOptionSources registers option lookups keyed by OptionSource.Src. Once
// supplied, unknown sources are reported as config errors.
func WithOptionSources(src map[string]OptionLookup) Option {
	return func(s *settings) {
		if s.sources == nil {
			s.sources = map[string]OptionLookup{}
		}
		for k, fn := range src {
			s.sources[k] = fn
		}
	}
}

// WithControlType registers or overrides a control type.
func WithControlType(t ControlType) Option {
	return func(s *settings) {
		if s.types == nil {
			s.types = map[string]ControlType{}
		}
		s.types[t.Name] = t
	}
}

// WithLogger sets the logger. Without it the logger is taken from the context
// passed to New, falling back to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithTranslator makes Messages fall back to tr instead of the raw payload
// when a validator has no custom message.
func WithTranslator(tr i18n.Translator) Option {
	return func(s *settings) { s.translator = tr }
}

// WithEventListener subscribes fn before the form is built, so it also sees
// form_ready.
func WithEventListener(fn func(Event)) Option {
	return func(s *settings) {
		if fn != nil {
			s.listeners = append(s.listeners, fn)
		}
	}
}
