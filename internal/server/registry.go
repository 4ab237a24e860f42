package server

import (
	"slices"
	"sync"

	"github.com/reoring/dynform"
)

// Registry holds the named form configs a server exposes.
type Registry struct {
	mu    sync.RWMutex
	forms map[string][]dynform.FieldConfig
	opts  []dynform.Option
}

// NewRegistry returns an empty registry; opts are used when configs are
// validated and when forms are built from them.
func NewRegistry(opts ...dynform.Option) *Registry {
	return &Registry{forms: map[string][]dynform.FieldConfig{}, opts: opts}
}

// Add validates input and stores the cleaned config under name. Config
// errors are returned but the cleaned config is stored anyway, the same
// way a form session renders next to its diagnostics.
func (r *Registry) Add(name string, input any) dynform.ConfigErrors {
	res := dynform.ValidateConfig(input, r.opts...)
	r.mu.Lock()
	r.forms[name] = res.Configs
	r.mu.Unlock()
	return res.Errors
}

// Get returns the config stored under name.
func (r *Registry) Get(name string) ([]dynform.FieldConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.forms[name]
	return c, ok
}

// Names lists the registered forms in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.forms))
	for k := range r.forms {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Options returns the form options shared by every session.
func (r *Registry) Options() []dynform.Option { return r.opts }

// sessions tracks live forms by session ID.
type sessions struct {
	mu    sync.RWMutex
	forms map[string]*dynform.Form
}

func (s *sessions) add(f *dynform.Form) {
	s.mu.Lock()
	if s.forms == nil {
		s.forms = map[string]*dynform.Form{}
	}
	s.forms[f.ID()] = f
	s.mu.Unlock()
}

func (s *sessions) remove(id string) {
	s.mu.Lock()
	delete(s.forms, id)
	s.mu.Unlock()
}

func (s *sessions) get(id string) (*dynform.Form, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forms[id]
	return f, ok
}

func (s *sessions) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forms)
}
