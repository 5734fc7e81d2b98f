package batch

import (
	"sync"
	"time"
)

// Group is the mutable aggregate accumulating messages for one batch key.
// Messages are append-only in arrival order. The timer handle belongs to
// the group: at most one live timer exists per key, and arming a new one
// always stops the previous one first.
type Group struct {
	Messages []Message
	timer    *time.Timer
}

// Arm schedules fire after d, superseding any previously armed timer.
// Must only be called inside a Store.Upsert mutation (under the store lock).
func (g *Group) Arm(d time.Duration, fire func()) {
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = time.AfterFunc(d, fire)
}

// Store is the process-wide mapping from batch key to pending group.
// One mutex guards the whole map: critical sections are short (append and
// timer re-arm), so per-key locking would buy contention headroom the
// gateway does not need.
//
// TakeAndRemove is the single mechanism preventing double dispatch: timer
// cancellation is best-effort (a fired timer's callback may already be
// running), so a callback that loses the TakeAndRemove race simply no-ops.
type Store struct {
	mu     sync.Mutex
	groups map[string]*Group
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{groups: make(map[string]*Group)}
}

// Upsert runs mutate against the group for key, creating an empty group
// first if none exists. The mutation executes under the store lock, so an
// append plus re-arm is never interleaved with a concurrent drain of the
// same key.
func (s *Store) Upsert(key string, mutate func(g *Group)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[key]
	if !ok {
		g = &Group{}
		s.groups[key] = g
	}
	mutate(g)
}

// TakeAndRemove atomically removes and returns the messages for key.
// The second return is false when the key is absent — meaning a concurrent
// drain already won, and the caller must treat the flush as a no-op.
func (s *Store) TakeAndRemove(key string) ([]Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[key]
	if !ok {
		return nil, false
	}
	delete(s.groups, key)
	if g.timer != nil {
		g.timer.Stop()
	}
	return g.Messages, true
}

// Keys returns a snapshot of the currently pending batch keys.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.groups))
	for k := range s.groups {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of pending groups.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}
