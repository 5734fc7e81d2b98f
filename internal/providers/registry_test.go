package providers

import (
	"context"
	"testing"
)

type namedProvider struct{ name string }

func (p *namedProvider) Name() string         { return p.name }
func (p *namedProvider) DefaultModel() string { return p.name + "-default" }
func (p *namedProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{Content: "ok"}, nil
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&namedProvider{name: "openai"})
	reg.Register(&namedProvider{name: "anthropic"})

	tests := []struct {
		name         string
		modelID      string
		wantProvider string
		wantModel    string
	}{
		{"prefixed openai", "openai/gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"prefixed anthropic", "anthropic/claude-sonnet-4-5", "anthropic", "claude-sonnet-4-5"},
		{"unprefixed falls back to first registered", "gpt-4o-mini", "openai", "gpt-4o-mini"},
		{"unknown prefix passes id through", "meta-llama/llama-3-70b", "openai", "meta-llama/llama-3-70b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, model, err := reg.Resolve(tt.modelID)
			if err != nil {
				t.Fatal(err)
			}
			if p.Name() != tt.wantProvider {
				t.Errorf("provider = %q, want %q", p.Name(), tt.wantProvider)
			}
			if model != tt.wantModel {
				t.Errorf("model = %q, want %q", model, tt.wantModel)
			}
		})
	}
}

func TestRegistryResolveEmpty(t *testing.T) {
	if _, _, err := NewRegistry().Resolve("openai/gpt-4o-mini"); err == nil {
		t.Error("expected error from empty registry")
	}
}

func TestRegistryGetAndNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&namedProvider{name: "openai"})

	if _, ok := reg.Get("openai"); !ok {
		t.Error("Get(openai) not found")
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) should not be found")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "openai" {
		t.Errorf("Names() = %v", names)
	}
}
