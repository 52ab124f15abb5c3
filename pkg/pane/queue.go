package pane

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"gitlab.com/tinyland/lab/flowdeck/pkg/events"
)

// QueueUpdate queues data for a pane and restarts the shared debounce
// window.
func (m *Manager) QueueUpdate(id string, data any, opts UpdateOptions) {
	m.Queue(Update{ID: id, Data: data, Options: opts})
}

// Queue adds u to the debounce queue and restarts the window.
func (m *Manager) Queue(u Update) {
	m.qmu.Lock()
	m.queue = append(m.queue, u)
	m.qmu.Unlock()
	m.timer.Trigger()
}

// Pending returns the number of queued entries, before coalescing.
func (m *Manager) Pending() int {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	return len(m.queue)
}

// Flush processes the queue now instead of waiting for the window. It
// reports whether anything was pending.
func (m *Manager) Flush() bool { return m.timer.Flush() }

// ProcessUpdateQueue drains the queue. Entries for one pane collapse to the
// last one queued; entries for panes that are no longer registered or no
// longer laid out are dropped. The rest are applied with ApplyBatch.
func (m *Manager) ProcessUpdateQueue(ctx context.Context) BatchResult {
	m.qmu.Lock()
	queued := m.queue
	m.queue = nil
	m.qmu.Unlock()

	updates := Coalesce(queued)
	kept := updates[:0]
	var dropped []string
	for _, u := range updates {
		if !m.Has(u.ID) || (m.membership != nil && !m.membership(u.ID)) {
			dropped = append(dropped, u.ID)
			continue
		}
		kept = append(kept, u)
	}
	if len(dropped) > 0 {
		m.logger.Debug("dropped queued updates", "panes", dropped)
	}
	res := m.ApplyBatch(ctx, kept)
	res.Skipped = append(res.Skipped, dropped...)
	return res
}

// Coalesce keeps the last update per pane, ordered by each pane's first
// appearance.
func Coalesce(updates []Update) []Update {
	index := make(map[string]int, len(updates))
	out := make([]Update, 0, len(updates))
	for _, u := range updates {
		if i, ok := index[u.ID]; ok {
			out[i] = u
			continue
		}
		index[u.ID] = len(out)
		out = append(out, u)
	}
	return out
}

// ApplyBatch applies updates in sequential batches of at most
// MaxConcurrent, running each batch concurrently. Per-pane failures are
// collected in the result and never stop the other updates. Unknown panes
// are skipped.
func (m *Manager) ApplyBatch(ctx context.Context, updates []Update) BatchResult {
	start := m.now()
	res := BatchResult{Failed: make(map[string]error)}
	var mu sync.Mutex

	size := m.cfg.MaxConcurrent
	for lo := 0; lo < len(updates); lo += size {
		if ctx.Err() != nil {
			for _, u := range updates[lo:] {
				res.Skipped = append(res.Skipped, u.ID)
			}
			break
		}
		hi := min(lo+size, len(updates))
		var g errgroup.Group
		g.SetLimit(size)
		for _, u := range updates[lo:hi] {
			u := u
			g.Go(func() error {
				err := m.apply(ctx, u)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					res.Applied = append(res.Applied, u.ID)
				case !m.Has(u.ID):
					res.Skipped = append(res.Skipped, u.ID)
				default:
					res.Failed[u.ID] = err
				}
				return nil
			})
		}
		_ = g.Wait()
		res.Batches++
	}
	res.Duration = m.now().Sub(start)

	if len(updates) > 0 {
		m.logger.Debug("pane batch complete",
			"applied", len(res.Applied), "failed", len(res.Failed), "skipped", len(res.Skipped), "batches", res.Batches)
		m.bus.Emit(events.New(events.BatchCompleted, "").
			WithAttr("applied", len(res.Applied)).
			WithAttr("failed", len(res.Failed)).
			WithAttr("batches", res.Batches))
	}
	return res
}

func (m *Manager) apply(ctx context.Context, u Update) error {
	switch {
	case u.Load != nil:
		return m.refresh(ctx, u.ID, u.Load, u.Options)
	case u.Refresh:
		return m.refresh(ctx, u.ID, nil, u.Options)
	default:
		return m.UpdatePane(ctx, u.ID, u.Data, u.Options)
	}
}

// RefreshAll refreshes every refreshable pane that has a provider.
func (m *Manager) RefreshAll(ctx context.Context) BatchResult {
	m.mu.RLock()
	var updates []Update
	for id, e := range m.panes {
		if e.cfg.Refreshable && e.provider != nil {
			updates = append(updates, Update{ID: id, Refresh: true})
		}
	}
	m.mu.RUnlock()
	sort.Slice(updates, func(i, j int) bool { return updates[i].ID < updates[j].ID })
	return m.ApplyBatch(ctx, updates)
}

// Prune discards queued updates for panes not in keep and unregisters
// them. It returns the removed pane ids.
func (m *Manager) Prune(keep []string) []string {
	want := make(map[string]bool, len(keep))
	for _, id := range keep {
		want[id] = true
	}
	m.dropQueued(func(id string) bool { return !want[id] })

	var removed []string
	for _, id := range m.IDs() {
		if !want[id] && m.Unregister(id) {
			removed = append(removed, id)
		}
	}
	return removed
}

func (m *Manager) dropQueued(drop func(id string) bool) {
	m.qmu.Lock()
	defer m.qmu.Unlock()
	kept := m.queue[:0]
	for _, u := range m.queue {
		if !drop(u.ID) {
			kept = append(kept, u)
		}
	}
	clear(m.queue[len(kept):])
	m.queue = kept
}
