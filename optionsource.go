package dynform

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/reoring/dynform/condition"
)

// optionFetchLimit bounds concurrent option lookups per LoadOptions call.
const optionFetchLimit = 8

// errStale marks a fetch whose form tree was replaced while it ran.
var errStale = errors.New("dynform: stale option request")

// LoadOptions resolves the option source of every control that has one,
// one request per control, concurrently. Requests run under ctx and the
// session context, so Reset and Close cancel them. The first lookup error
// is returned after every request has finished; results of the other
// requests are still applied.
func (f *Form) LoadOptions(ctx context.Context) error {
	f.mu.RLock()
	if f.closed {
		f.mu.RUnlock()
		return ErrClosed
	}
	var nodes []*Node
	f.root.walk(func(n *Node) {
		if n.kind == KindControl && n.cfg.Options != nil && n.cfg.Options.Source != nil {
			nodes = append(nodes, n)
		}
	})
	gen, sess := f.gen, f.sess
	f.mu.RUnlock()
	return f.fetchOptions(ctx, sess, gen, nodes)
}

func (f *Form) fetchOptions(ctx, sess context.Context, gen uint64, nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sess, cancel)
	defer stop()

	var g errgroup.Group
	g.SetLimit(optionFetchLimit)
	for _, n := range nodes {
		g.Go(func() error {
			err := f.fetchOne(ctx, gen, n)
			if errors.Is(err, errStale) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (f *Form) fetchOne(ctx context.Context, gen uint64, n *Node) error {
	var (
		req    OptionRequest
		lookup OptionLookup
	)
	err := f.mutate(ctx, true, func(out *settleResult) error {
		if f.gen != gen || n.root() != f.root {
			return errStale
		}
		src := n.cfg.Options.Source
		req = OptionRequest{Src: src.Src, Control: n.Path()}
		if src.Trigger != nil {
			req.Trigger, _ = n.getter()(src.Trigger.By)
		}
		lookup = f.s.sources[src.Src]
		n.loading = true
		out.events = append(out.events, Event{Type: EventOptionsLoading, Path: req.Control})
		return nil
	})
	if err != nil {
		return err
	}

	var items []OptionItem
	if lookup == nil {
		err = fmt.Errorf("%w: %q", ErrUnknownOptionSource, req.Src)
	} else {
		items, err = lookup(ctx, req)
	}

	applyErr := f.mutate(ctx, true, func(out *settleResult) error {
		if f.gen != gen || n.root() != f.root {
			return errStale
		}
		n.loading = false
		ev := Event{Type: EventOptionsLoaded, Path: req.Control}
		if err != nil {
			f.log.ErrorContext(ctx, "option lookup failed", "control", req.Control, "src", req.Src, "error", err)
			ev.Error = err.Error()
		} else {
			n.fetched = items
			n.loaded = true
			refreshOptions(n)
			ev.Options = append([]OptionItem(nil), n.options...)
		}
		out.events = append(out.events, ev)
		return nil
	})
	if applyErr != nil {
		return applyErr
	}
	if err != nil {
		return fmt.Errorf("options for %s: %w", req.Control, err)
	}
	return nil
}

// refreshOptions recomputes the option list of n from static data, fetched
// items and the filter, then fixes up the value: a value missing from a
// filtered list is cleared and autoSelectFirst fills an empty value. Values
// are left alone while a source has not answered yet. It reports whether the
// value changed.
func refreshOptions(n *Node) bool {
	o := n.cfg.Options
	if n.kind != KindControl || o == nil {
		return false
	}
	list := mergeOptions(n.static, n.fetched, o.SrcAppendPosition)
	var filter *OptionFilter
	if o.Source != nil {
		filter = o.Source.Filter
	}
	if filter != nil {
		by, _ := n.getter()(filter.By)
		list = filterOptions(list, filter.Key, by)
	}
	n.options = list

	if o.Source != nil && !n.loaded {
		return false
	}
	changed := false
	if filter != nil && !isEmptyValue(n.value) {
		if kept, ok := keepAvailable(n.value, list); !ok {
			n.value = kept
			changed = true
		}
	}
	if o.AutoSelectFirst && isEmptyValue(n.value) && len(list) > 0 && list[0].Value != nil {
		n.value = list[0].Value
		changed = true
	}
	return changed
}

// mergeOptions concatenates static data and fetched items; fetched items go
// first when pos is AppendBefore.
func mergeOptions(static, fetched []OptionItem, pos string) []OptionItem {
	if len(static)+len(fetched) == 0 {
		return nil
	}
	out := make([]OptionItem, 0, len(static)+len(fetched))
	if pos == AppendBefore {
		return append(append(out, fetched...), static...)
	}
	return append(append(out, static...), fetched...)
}

func filterOptions(list []OptionItem, key string, want any) []OptionItem {
	var out []OptionItem
	for _, it := range list {
		if condition.Compare(optionField(it, key), condition.Eq, want) {
			out = append(out, it)
		}
	}
	return out
}

func optionField(it OptionItem, key string) any {
	switch key {
	case "", "value":
		return it.Value
	case "label":
		return it.Label
	default:
		return it.Extra[key]
	}
}

// keepAvailable drops values not present in list. Multi-select values keep
// their available entries. ok is true when nothing was dropped.
func keepAvailable(v any, list []OptionItem) (any, bool) {
	has := func(x any) bool {
		for _, it := range list {
			if condition.Compare(it.Value, condition.Eq, x) {
				return true
			}
		}
		return false
	}
	if l, ok := asList(v); ok {
		kept := make([]any, 0, len(l))
		for _, x := range l {
			if has(x) {
				kept = append(kept, x)
			}
		}
		if len(kept) == len(l) {
			return v, true
		}
		return kept, false
	}
	if has(v) {
		return v, true
	}
	return nil, false
}
