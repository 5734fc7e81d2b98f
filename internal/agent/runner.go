// Package agent turns one inbound message plus an agent configuration
// into a reply by calling the configured LLM provider. Provider failures
// never escape: the runner substitutes a fixed fallback reply so a drained
// batch always produces a deliverable outcome per message.
package agent

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/camposer/agentrelay/internal/providers"
	"github.com/camposer/agentrelay/internal/store"
)

// FallbackReply is returned when the provider call fails.
const FallbackReply = "Sorry, I could not process your message right now."

// Reply is the outcome of one agent invocation, shaped for webhook delivery.
type Reply struct {
	Messages  []string            `json:"messages"`
	Transfer  bool                `json:"transferir"`
	SessionID string              `json:"session_id"`
	UserID    string              `json:"user_id"`
	AgentID   string              `json:"agent_id"`
	Custom    []map[string]string `json:"custom"`
	Usage     *providers.Usage    `json:"agent_usage,omitempty"`
	Fallback  bool                `json:"-"`
}

// Runner invokes agents against the provider registry.
type Runner struct {
	registry *providers.Registry
}

// NewRunner creates a runner over the given provider registry.
func NewRunner(registry *providers.Registry) *Runner {
	return &Runner{registry: registry}
}

// Invoke runs one message through the agent's model and returns the reply.
// The returned error is nil even on provider failure — the reply then
// carries FallbackReply with Fallback set, per the dispatch contract.
func (r *Runner) Invoke(ctx context.Context, cfg store.AgentData, text, userID, sessionID, tenantID string) Reply {
	ctx, span := otel.Tracer("agentrelay/agent").Start(ctx, "agent.invoke")
	span.SetAttributes(
		attribute.String("agent.id", cfg.ID),
		attribute.String("agent.model", cfg.Model),
		attribute.String("tenant.id", tenantID),
	)
	defer span.End()

	reply := Reply{
		SessionID: sessionID,
		UserID:    userID,
		AgentID:   cfg.ID,
		Custom:    []map[string]string{},
	}

	provider, model, err := r.registry.Resolve(cfg.Model)
	if err != nil {
		slog.Warn("agent invoke: no provider for model", "agent", cfg.ID, "model", cfg.Model, "error", err)
		span.SetStatus(codes.Error, err.Error())
		reply.Messages = []string{FallbackReply}
		reply.Fallback = true
		return reply
	}

	matched := MatchSkills(cfg.Skills, text)
	system := BuildSystemPrompt(cfg.Instructions, matched)

	start := time.Now()
	resp, err := provider.Chat(ctx, providers.ChatRequest{
		Model:       model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		slog.Warn("agent invoke failed, using fallback reply",
			"agent", cfg.ID, "provider", provider.Name(), "model", model,
			"elapsed", time.Since(start), "error", err)
		span.SetStatus(codes.Error, err.Error())
		reply.Messages = []string{FallbackReply}
		reply.Fallback = true
		return reply
	}

	slog.Debug("agent invoke complete",
		"agent", cfg.ID, "provider", provider.Name(), "model", model,
		"elapsed", time.Since(start), "skills", len(matched))

	reply.Messages = []string{resp.Content}
	if resp.Usage != nil {
		reply.Usage = resp.Usage
	}
	return reply
}
