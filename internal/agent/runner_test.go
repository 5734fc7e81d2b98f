package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/camposer/agentrelay/internal/providers"
	"github.com/camposer/agentrelay/internal/store"
)

// stubProvider answers canned responses and records the last request.
type stubProvider struct {
	name    string
	lastReq providers.ChatRequest
	resp    providers.ChatResponse
	err     error
}

func (s *stubProvider) Name() string         { return s.name }
func (s *stubProvider) DefaultModel() string { return "stub-model" }

func (s *stubProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &s.resp, nil
}

func testAgent() store.AgentData {
	return store.AgentData{
		ID:           "agent-1",
		Model:        "stub/some-model",
		Instructions: "Be helpful.",
		Temperature:  0.5,
		MaxTokens:    256,
		Skills: []store.Skill{
			{Name: "billing", Keywords: []string{"invoice"}, Context: "We bill monthly."},
		},
	}
}

func TestRunnerInvoke(t *testing.T) {
	p := &stubProvider{name: "stub", resp: providers.ChatResponse{
		Content: "here you go",
		Usage:   &providers.Usage{TotalTokens: 10},
	}}
	reg := providers.NewRegistry()
	reg.Register(p)

	r := NewRunner(reg)
	reply := r.Invoke(context.Background(), testAgent(), "send my invoice", "u1", "s1", "tenant_1")

	if reply.Fallback {
		t.Fatal("unexpected fallback")
	}
	if len(reply.Messages) != 1 || reply.Messages[0] != "here you go" {
		t.Errorf("Messages = %v", reply.Messages)
	}
	if reply.SessionID != "s1" || reply.UserID != "u1" || reply.AgentID != "agent-1" {
		t.Errorf("reply identity fields wrong: %+v", reply)
	}
	if reply.Usage == nil || reply.Usage.TotalTokens != 10 {
		t.Errorf("Usage = %+v", reply.Usage)
	}

	// Model prefix stripped, agent tuning passed through.
	if p.lastReq.Model != "some-model" {
		t.Errorf("request model = %q, want bare name", p.lastReq.Model)
	}
	if p.lastReq.Temperature != 0.5 || p.lastReq.MaxTokens != 256 {
		t.Errorf("tuning not forwarded: %+v", p.lastReq)
	}

	// System prompt carries instructions plus the matched skill context.
	if len(p.lastReq.Messages) != 2 || p.lastReq.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", p.lastReq.Messages)
	}
	system := p.lastReq.Messages[0].Content
	if !strings.Contains(system, "Be helpful.") || !strings.Contains(system, "We bill monthly.") {
		t.Errorf("system prompt missing pieces:\n%s", system)
	}
}

func TestRunnerInvokeProviderFailure(t *testing.T) {
	p := &stubProvider{name: "stub", err: errors.New("upstream down")}
	reg := providers.NewRegistry()
	reg.Register(p)

	reply := NewRunner(reg).Invoke(context.Background(), testAgent(), "hi", "u1", "s1", "tenant_1")

	if !reply.Fallback {
		t.Fatal("expected fallback on provider error")
	}
	if len(reply.Messages) != 1 || reply.Messages[0] != FallbackReply {
		t.Errorf("Messages = %v, want fallback text", reply.Messages)
	}
}

func TestRunnerInvokeNoProviders(t *testing.T) {
	reply := NewRunner(providers.NewRegistry()).Invoke(context.Background(), testAgent(), "hi", "u1", "s1", "tenant_1")
	if !reply.Fallback {
		t.Error("expected fallback with empty registry")
	}
}
