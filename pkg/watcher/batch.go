package watcher

import (
	"context"
	"slices"

	"gitlab.com/tinyland/lab/flowdeck/pkg/pane"
)

// TierReport is the outcome of one priority tier.
type TierReport struct {
	Priority Priority
	Panes    []string
	Result   pane.BatchResult
}

// Report describes one processed debounce window.
type Report struct {
	Changes []ChangeEvent
	Tiers   []TierReport
}

// Process drains pending changes and applies them tier by tier. Within a
// tier, each target pane is updated once; All expands to the panes
// registered at this moment. A pane targeted by several tiers is updated
// only in the highest. Panes no longer registered are skipped.
func (w *Watcher) Process(ctx context.Context) Report {
	w.mu.Lock()
	changes := make([]ChangeEvent, 0, len(w.order))
	for _, p := range w.order {
		changes = append(changes, w.pending[p])
	}
	w.pending = make(map[string]ChangeEvent)
	w.order = nil
	w.mu.Unlock()

	rep := Report{Changes: changes}
	if len(changes) == 0 || w.sink == nil {
		return rep
	}
	start := w.now()

	registered := w.sink.IDs()
	live := make(map[string]bool, len(registered))
	for _, id := range registered {
		live[id] = true
	}

	done := make(map[string]bool)
	for _, pri := range Priorities {
		byPane := make(map[string][]ChangeEvent)
		var order []string
		for _, ch := range changes {
			if ch.Priority != pri {
				continue
			}
			for _, id := range expand(ch.Targets, registered) {
				if !live[id] || done[id] {
					continue
				}
				if _, ok := byPane[id]; !ok {
					order = append(order, id)
				}
				byPane[id] = append(byPane[id], ch)
			}
		}
		if len(order) == 0 {
			continue
		}
		updates := make([]pane.Update, 0, len(order))
		for _, id := range order {
			done[id] = true
			updates = append(updates, w.update(id, byPane[id]))
		}
		res := w.sink.ApplyBatch(ctx, updates)
		rep.Tiers = append(rep.Tiers, TierReport{Priority: pri, Panes: order, Result: res})
		w.logger.Debug("change tier applied",
			"priority", pri.String(), "panes", order, "failed", len(res.Failed))
	}

	w.monitor.Observe("watch.batch", w.now().Sub(start))
	w.mu.Lock()
	hooks := slices.Clone(w.onBatch)
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(rep)
	}
	return rep
}

func (w *Watcher) update(id string, changes []ChangeEvent) pane.Update {
	if w.loader == nil {
		return pane.Update{ID: id, Refresh: true, Options: pane.UpdateOptions{Background: true}}
	}
	load := w.loader
	return pane.Update{
		ID: id,
		Load: func(ctx context.Context) (any, error) {
			return load(ctx, id, changes)
		},
		Options: pane.UpdateOptions{Background: true},
	}
}

// expand replaces All with every registered pane.
func expand(targets, registered []string) []string {
	for _, t := range targets {
		if t == All {
			out := append([]string(nil), registered...)
			for _, t := range targets {
				if t != All {
					out = append(out, t)
				}
			}
			return out
		}
	}
	return targets
}
