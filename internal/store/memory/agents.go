// Package memory provides the in-process agent store used in the default
// mode and in tests. State is volatile and process-scoped.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/camposer/agentrelay/internal/store"
)

// AgentStore implements store.AgentStore backed by a map.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]store.AgentData
}

// NewAgentStore creates an empty in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[string]store.AgentData)}
}

func (s *AgentStore) List(ctx context.Context) ([]store.AgentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.AgentData, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *AgentStore) Get(ctx context.Context, id string) (*store.AgentData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *AgentStore) Create(ctx context.Context, a *store.AgentData) error {
	a.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[a.ID]; exists {
		return store.ErrAlreadyExists
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.agents[a.ID] = *a
	return nil
}

func (s *AgentStore) Update(ctx context.Context, a *store.AgentData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.agents[a.ID]
	if !ok {
		return store.ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = time.Now().UTC()
	s.agents[a.ID] = *a
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.agents, id)
	return nil
}

func (s *AgentStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents), nil
}
