package dynform

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/reoring/dynform/internal/ctxlog"
)

// maxSettleRounds bounds how often one settle pass re-applies conditions
// when applying them changed values other conditions read.
const maxSettleRounds = 8

// Form is a live form session: the node tree built from a config, the
// condition engine keeping derived state in sync with values, and the
// events describing every change.
//
// All mutations go through a single writer path. A call applies its writes,
// then runs exactly one settle pass (conditions, option filters,
// validation) before subscribers, the registered onChange callback and
// condition actions are invoked outside the lock. Reads are safe from any
// goroutine.
type Form struct {
	id   string
	s    *settings
	opts []Option
	log  *slog.Logger

	mu         sync.RWMutex
	root       *Node
	cfgs       []FieldConfig
	cfgErrs    ConfigErrors
	closed     bool
	gen        uint64
	sess       context.Context
	cancel     context.CancelFunc
	lastValue  any
	lastErrors map[string]any
	wg         sync.WaitGroup

	subMu     sync.Mutex
	subs      []subscriber
	nextSub   int
	onChange  func(value any)
	onTouched func()
	touched   bool
}

type subscriber struct {
	id int
	fn func(Event)
}

// settleResult carries what a mutation produced to the dispatch step.
type settleResult struct {
	events       []Event
	value        any
	valueChanged bool
	actions      []actionCall
	fetch        []*Node
	gen          uint64
	sess         context.Context
}

// New validates input (see ValidateConfig), builds the form tree and runs
// the first condition pass. Config errors do not prevent the form from
// being built; they are available from ConfigErrors. A *ConstructionError
// is returned when the validated config still cannot be built.
func New(ctx context.Context, input any, opts ...Option) (*Form, error) {
	s := newSettings(opts)
	id := uuid.NewString()
	log := s.logger
	if log == nil {
		log = ctxlog.FromContext(ctx)
	}
	f := &Form{id: id, s: s, opts: opts, log: log.With("form", id)}
	for _, fn := range s.listeners {
		f.Subscribe(fn)
	}

	f.mu.Lock()
	out, err := f.load(ctx, input)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f.flush(ctx, out, true)
	return f, nil
}

// load replaces the tree. Callers hold the writer lock.
func (f *Form) load(ctx context.Context, input any) (*settleResult, error) {
	res := ValidateConfig(input, f.opts...)
	for _, e := range res.Errors {
		f.log.WarnContext(ctx, "config error", "code", e.Code, "path", e.Path, "control", e.Control, "reason", e.Reason)
	}
	root, err := (&builder{s: f.s}).root(res.Configs)
	if err != nil {
		f.log.ErrorContext(ctx, "build failed", "error", err)
		return nil, err
	}

	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	f.sess, f.cancel = context.WithCancel(context.WithoutCancel(ctx))
	f.root = root
	f.cfgs = res.Configs
	f.cfgErrs = res.Errors

	out := &settleResult{}
	f.settle(ctx, out)
	// a fresh tree reports its state through form_ready only
	out.events = out.events[:0]
	out.events = append(out.events, Event{Type: EventFormReady, Value: DeepClone(out.value), Errors: cloneMap(f.lastErrors)})
	f.log.DebugContext(ctx, "form built", "fields", len(res.Configs), "config_errors", len(res.Errors))
	return out, nil
}

// mutate is the single writer path. fn runs under the lock; on success one
// settle pass follows and its results are dispatched after unlocking. echo
// controls whether the onChange callback sees the resulting value change.
func (f *Form) mutate(ctx context.Context, echo bool, fn func(out *settleResult) error) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	out := &settleResult{}
	if err := fn(out); err != nil {
		f.mu.Unlock()
		return err
	}
	f.settle(ctx, out)
	if len(out.fetch) > 0 {
		f.wg.Add(1)
	}
	f.mu.Unlock()
	f.flush(ctx, out, echo)
	return nil
}

// settle brings derived state in line with the current values: conditions
// are re-applied to every condition-bearing node, option lists are
// refreshed, then the whole tree is revalidated and the differences to the
// last reported state become events.
func (f *Form) settle(ctx context.Context, out *settleResult) {
	for round := 0; round < maxSettleRounds; round++ {
		changed := false
		for _, n := range conditionTargets(f.root) {
			c, fired := applyConditions(n)
			changed = changed || c
			for _, name := range fired {
				out.actions = append(out.actions, actionCall{name: name, node: n})
			}
		}
		f.root.walk(func(n *Node) {
			if refreshOptions(n) {
				changed = true
			}
		})
		if !changed {
			break
		}
		if round == maxSettleRounds-1 {
			f.log.WarnContext(ctx, "conditions did not settle", "rounds", maxSettleRounds)
		}
	}
	f.root.validate()

	f.root.walk(func(n *Node) {
		if n == f.root {
			return
		}
		if st := statusOf(n); st != n.emitted {
			n.emitted = st
			s := stateOf(n, f.opts)
			out.events = append(out.events, Event{Type: EventStatusChanged, Path: s.Path, State: &s})
		}
		if src := triggerSource(n); src != nil {
			cur, _ := n.getter()(src.Trigger.By)
			switch {
			case !n.triggered:
				n.trigger, n.triggered = cur, true
			case !reflect.DeepEqual(cur, n.trigger):
				n.trigger = cur
				out.fetch = append(out.fetch, n)
			}
		}
	})

	out.value = f.root.Value()
	if !reflect.DeepEqual(out.value, f.lastValue) {
		out.valueChanged = true
		f.lastValue = out.value
		out.events = append(out.events, Event{Type: EventValueChanged, Value: DeepClone(out.value)})
	}
	errs := CollectErrors(f.root)
	if !reflect.DeepEqual(errs, f.lastErrors) {
		f.lastErrors = errs
		out.events = append(out.events, Event{Type: EventValidation, Errors: cloneMap(errs)})
	}
	out.gen, out.sess = f.gen, f.sess
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return DeepClone(m).(map[string]any)
}

func triggerSource(n *Node) *OptionSource {
	if n.kind != KindControl || n.cfg.Options == nil {
		return nil
	}
	if src := n.cfg.Options.Source; src != nil && src.Trigger != nil {
		return src
	}
	return nil
}

// flush delivers the results of a settle pass. It runs without the writer
// lock so every callback may call back into the Form.
func (f *Form) flush(ctx context.Context, out *settleResult, echo bool) {
	f.subMu.Lock()
	subs := append([]subscriber(nil), f.subs...)
	onChange := f.onChange
	f.subMu.Unlock()

	for _, ev := range out.events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
	if echo && out.valueChanged && onChange != nil {
		onChange(DeepClone(out.value))
	}
	for _, a := range out.actions {
		fn := f.s.actions[a.name]
		if fn == nil {
			f.log.DebugContext(ctx, "no action registered", "action", a.name, "control", a.node.Path())
			continue
		}
		f.mu.RLock()
		st := stateOf(a.node, f.opts)
		f.mu.RUnlock()
		fn(ctx, st)
	}
	if len(out.fetch) > 0 {
		go func() {
			defer f.wg.Done()
			if err := f.fetchOptions(out.sess, out.sess, out.gen, out.fetch); err != nil {
				f.log.DebugContext(ctx, "triggered option reload failed", "error", err)
			}
		}()
	}
}

// ID returns the session identifier.
func (f *Form) ID() string { return f.id }

// Subscribe registers fn for every subsequent event. The returned function
// removes the subscription.
func (f *Form) Subscribe(fn func(Event)) (cancel func()) {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	f.nextSub++
	id := f.nextSub
	f.subs = append(f.subs, subscriber{id: id, fn: fn})
	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		for i, s := range f.subs {
			if s.id == id {
				f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
				return
			}
		}
	}
}

func (f *Form) lookup(path string) (*Node, error) {
	n := f.root.Lookup(path)
	if n == nil || path == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	return n, nil
}

// SetValue writes a user edit to the control at path and marks it and its
// ancestors dirty. Readonly controls reject user edits: a readonly target
// fails with ErrReadonly and readonly descendants keep their value.
func (f *Form) SetValue(ctx context.Context, path string, v any) error {
	return f.mutate(ctx, true, func(*settleResult) error {
		n, err := f.lookup(path)
		if err != nil {
			return err
		}
		if n.readonly {
			return fmt.Errorf("%w: %q", ErrReadonly, path)
		}
		if err := n.patch(v, &builder{s: f.s, user: true}); err != nil {
			return err
		}
		for c := n; c != nil; c = c.parent {
			c.dirty = true
		}
		return nil
	})
}

// Patch writes v recursively from the root: maps address group children by
// name, lists address array items by index. Unknown keys are ignored and
// arrays grow to fit. Patching does not mark anything dirty.
func (f *Form) Patch(ctx context.Context, v any) error {
	return f.mutate(ctx, true, func(*settleResult) error {
		return f.root.patch(v, &builder{s: f.s})
	})
}

// Reset discards the tree and builds a new one from input. In-flight option
// requests of the old tree are cancelled.
func (f *Form) Reset(ctx context.Context, input any) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	out, err := f.load(ctx, input)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.flush(ctx, out, true)
	return nil
}

// Append adds an item built from the array template at path and patches v
// into it.
func (f *Form) Append(ctx context.Context, path string, v any) error {
	return f.mutate(ctx, true, func(*settleResult) error {
		n, err := f.lookup(path)
		if err != nil {
			return err
		}
		if n.kind != KindArray {
			return fmt.Errorf("%w: %q", ErrNotArray, path)
		}
		_, err = n.appendItem(v, &builder{s: f.s})
		return err
	})
}

// RemoveAt removes item i of the array at path.
func (f *Form) RemoveAt(ctx context.Context, path string, i int) error {
	return f.mutate(ctx, true, func(*settleResult) error {
		n, err := f.lookup(path)
		if err != nil {
			return err
		}
		if n.kind != KindArray {
			return fmt.Errorf("%w: %q", ErrNotArray, path)
		}
		if !n.removeItem(i) {
			return fmt.Errorf("%w: %s.%d", ErrNotFound, path, i)
		}
		return nil
	})
}

// MarkTouched marks the node at path and its ancestors touched. The
// callback registered with RegisterOnTouched runs on the first call of the
// session.
func (f *Form) MarkTouched(ctx context.Context, path string) error {
	err := f.mutate(ctx, true, func(*settleResult) error {
		n, err := f.lookup(path)
		if err != nil {
			return err
		}
		for c := n; c != nil; c = c.parent {
			c.touched = true
		}
		return nil
	})
	if err != nil {
		return err
	}
	f.fireTouched()
	return nil
}

func (f *Form) fireTouched() {
	f.subMu.Lock()
	fn := f.onTouched
	first := !f.touched
	f.touched = true
	f.subMu.Unlock()
	if first && fn != nil {
		fn()
	}
}

// Close cancels every in-flight option request and waits for triggered
// reloads to finish. Later mutations return ErrClosed.
func (f *Form) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.cancel()
	f.mu.Unlock()
	f.wg.Wait()

	f.subMu.Lock()
	f.subs = nil
	f.subMu.Unlock()
	f.log.Debug("form closed")
	return nil
}

// Wait blocks until option reloads started by triggers have finished. It
// must not be called concurrently with mutations.
func (f *Form) Wait() { f.wg.Wait() }

// Value returns the form value without disabled controls.
func (f *Form) Value() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, _ := DeepClone(f.root.Value()).(map[string]any)
	return m
}

// RawValue returns the form value including disabled controls.
func (f *Form) RawValue() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, _ := DeepClone(f.root.RawValue()).(map[string]any)
	return m
}

// Get returns the state of the node at path.
func (f *Form) Get(path string) (NodeState, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, err := f.lookup(path)
	if err != nil {
		return NodeState{}, err
	}
	return stateOf(n, f.opts), nil
}

// Snapshot returns the state of every node in tree order.
func (f *Form) Snapshot() []NodeState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []NodeState
	f.root.walk(func(n *Node) {
		if n != f.root {
			out = append(out, stateOf(n, f.opts))
		}
	})
	return out
}

// Errors returns the nested error object of the form, nil when valid.
func (f *Form) Errors() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return CollectErrors(f.root)
}

// Messages returns the error object with messages in place of raw errors.
func (f *Form) Messages() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return CollectMessages(f.root, f.opts...)
}

// Valid reports whether no enabled control has errors.
func (f *Form) Valid() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.root.Valid()
}

// ConfigErrors returns the problems found when the current config was
// validated.
func (f *Form) ConfigErrors() ConfigErrors {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append(ConfigErrors(nil), f.cfgErrs...)
}

// Configs returns the validated config the current tree was built from.
func (f *Form) Configs() []FieldConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfgs
}

// Dependencies reports which condition targets read which control paths.
func (f *Form) Dependencies() map[string][]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Dependencies(f.root)
}
