package providers

import (
	"fmt"
	"strings"
	"sync"
)

// Registry maps provider names to Provider instances and resolves
// prefixed model ids ("openai/gpt-4o-mini") to (provider, bare model).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string // provider used for unprefixed model ids
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its Name(). The first registered provider
// becomes the fallback for unprefixed model ids.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	if r.fallback == "" {
		r.fallback = p.Name()
	}
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	return names
}

// Resolve splits a model id of the form "{provider}/{model}" and returns
// the matching provider plus the bare model name. Unprefixed ids (or ids
// whose prefix is not a registered provider, e.g. OpenRouter's
// "meta-llama/llama-3-70b") resolve to the fallback provider with the id
// passed through unchanged.
func (r *Registry) Resolve(modelID string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil, "", fmt.Errorf("no providers registered")
	}

	if name, model, ok := strings.Cut(modelID, "/"); ok {
		if p, found := r.providers[name]; found {
			return p, model, nil
		}
	}

	p, ok := r.providers[r.fallback]
	if !ok {
		return nil, "", fmt.Errorf("fallback provider %q not registered", r.fallback)
	}
	return p, modelID, nil
}
