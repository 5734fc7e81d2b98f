package batch

import (
	"log/slog"
	"sync"
	"time"
)

// FlushFunc receives a drained group. It runs on the timer's goroutine,
// outside any store lock, and may take as long as its downstream calls
// need without blocking submissions.
type FlushFunc func(key string, msgs []Message)

// Debouncer coalesces rapid messages per batch key and hands each settled
// group to the flush callback exactly once. Safe for concurrent use;
// Submit never blocks on downstream work.
type Debouncer struct {
	store           *Store
	defaultInterval time.Duration
	flush           FlushFunc

	// gate serializes shutdown against firing timers: fire holds the read
	// side for the duration of a flush, Stop takes the write side to flip
	// closed, which both fences new flushes and waits out in-flight ones.
	gate   sync.RWMutex
	closed bool
}

// NewDebouncer creates a debouncer. defaultInterval applies to messages
// that do not request their own delay.
func NewDebouncer(defaultInterval time.Duration, flush FlushFunc) *Debouncer {
	if defaultInterval <= 0 {
		defaultInterval = 15 * time.Second
	}
	return &Debouncer{
		store:           NewStore(),
		defaultInterval: defaultInterval,
		flush:           flush,
	}
}

// Submit absorbs a batch of validated messages. Messages are grouped by
// batch key; for each key the group is created or extended and its timer
// re-armed with the interval requested by the most recently arrived
// message — true debounce semantics: every arrival resets the silence
// window. Returns the number of distinct groups touched.
//
// An empty slice is a no-op. Submissions after Stop are dropped with a
// warning: shutdown has closed the flush pipeline.
func (d *Debouncer) Submit(msgs []Message) int {
	if len(msgs) == 0 {
		return 0
	}

	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closed {
		slog.Warn("debouncer closed, dropping submission", "messages", len(msgs))
		return 0
	}

	// Group per key preserving arrival order within the request.
	order := make([]string, 0, len(msgs))
	byKey := make(map[string][]Message, len(msgs))
	for _, m := range msgs {
		k := m.Key()
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], m)
	}

	for _, key := range order {
		group := byKey[key]
		// The last message of this submission is the most recent arrival
		// for the key; its interval governs the next flush.
		interval := group[len(group)-1].Interval(d.defaultInterval)

		key := key
		d.store.Upsert(key, func(g *Group) {
			g.Messages = append(g.Messages, group...)
			g.Arm(interval, func() { d.fire(key) })
		})

		slog.Debug("batch armed", "key", key, "added", len(group), "interval", interval)
	}
	return len(order)
}

// fire runs when a group's timer expires. The TakeAndRemove result is
// authoritative: timer cancellation is best-effort, so a stale callback
// that loses the race to a re-arm's Stop or a concurrent drain finds the
// key gone and no-ops — never a duplicate dispatch.
func (d *Debouncer) fire(key string) {
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closed {
		// Stop owns all remaining groups now.
		return
	}

	msgs, ok := d.store.TakeAndRemove(key)
	if !ok {
		return
	}
	d.flush(key, msgs)
}

// Pending returns the number of groups awaiting flush.
func (d *Debouncer) Pending() int {
	return d.store.Len()
}

// Stop closes the debouncer. With drain, every pending group is flushed
// synchronously (in no particular key order); without, pending groups are
// discarded and the loss is logged per key so it is observable. In-flight
// flushes complete before Stop returns, and no timer dispatches afterwards.
func (d *Debouncer) Stop(drain bool) {
	d.gate.Lock()
	if d.closed {
		d.gate.Unlock()
		return
	}
	d.closed = true
	d.gate.Unlock()

	for _, key := range d.store.Keys() {
		msgs, ok := d.store.TakeAndRemove(key)
		if !ok {
			continue
		}
		if drain {
			slog.Info("shutdown drain: flushing pending batch", "key", key, "messages", len(msgs))
			d.flush(key, msgs)
		} else {
			slog.Warn("shutdown: discarding pending batch", "key", key, "messages", len(msgs))
		}
	}
}
