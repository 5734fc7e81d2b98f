package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/camposer/agentrelay/internal/agent"
	"github.com/camposer/agentrelay/internal/bus"
	"github.com/camposer/agentrelay/internal/knowledge"
	"github.com/camposer/agentrelay/internal/store"
)

// Invoker produces a reply for one message. Implementations must not
// return provider errors — a failed invocation yields a fallback reply.
type Invoker interface {
	Invoke(ctx context.Context, cfg store.AgentData, text, userID, sessionID, tenantID string) agent.Reply
}

// TurnRecorder persists a conversation turn. Best-effort collaborator.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, turn knowledge.Turn) error
}

// Deliverer posts a reply payload to a webhook URL. Best-effort collaborator.
type Deliverer interface {
	Deliver(ctx context.Context, url string, payload any) error
}

// Dispatcher processes drained groups: partitions messages by agent,
// resolves agent configuration, and runs the invoke → record → deliver
// pipeline once per message in arrival order. A failure on one message
// never aborts its siblings.
type Dispatcher struct {
	agents    store.AgentStore
	invoker   Invoker
	knowledge TurnRecorder // nil disables knowledge sync
	webhooks  Deliverer
	events    bus.EventPublisher // nil disables event broadcast
}

// NewDispatcher wires the dispatch pipeline. knowledge and events may be nil.
func NewDispatcher(agents store.AgentStore, invoker Invoker, kn TurnRecorder, webhooks Deliverer, events bus.EventPublisher) *Dispatcher {
	return &Dispatcher{
		agents:    agents,
		invoker:   invoker,
		knowledge: kn,
		webhooks:  webhooks,
		events:    events,
	}
}

// Dispatch handles one drained group. Runs on the debouncer's flush
// goroutine with no store lock held, so long downstream calls never block
// submissions. ctx should be the process context: a dispatch in flight at
// shutdown finishes under whatever grace the caller allows.
func (d *Dispatcher) Dispatch(ctx context.Context, key string, msgs []Message) {
	if len(msgs) == 0 {
		return
	}

	ctx, span := otel.Tracer("agentrelay/batch").Start(ctx, "batch.dispatch")
	span.SetAttributes(
		attribute.String("batch.key", key),
		attribute.Int("batch.messages", len(msgs)),
	)
	defer span.End()

	start := time.Now()
	slog.Info("dispatching batch", "key", key, "messages", len(msgs))

	// Partition by agent id preserving arrival order. A single key's group
	// is single-agent by construction; partitioning keeps the contract
	// robust if that invariant is ever relaxed.
	order := make([]string, 0, 1)
	byAgent := make(map[string][]Message, 1)
	for _, m := range msgs {
		if _, seen := byAgent[m.AgentID]; !seen {
			order = append(order, m.AgentID)
		}
		byAgent[m.AgentID] = append(byAgent[m.AgentID], m)
	}

	for _, agentID := range order {
		group := byAgent[agentID]
		failed := d.dispatchAgentGroup(ctx, agentID, group)

		if d.events != nil {
			d.events.Broadcast(bus.Event{
				Name: bus.EventBatchDispatched,
				Payload: bus.BatchDispatchedPayload{
					BatchKey:  key,
					AgentID:   agentID,
					Messages:  len(group),
					Failed:    failed,
					ElapsedMS: time.Since(start).Milliseconds(),
				},
			})
		}
	}

	slog.Info("batch dispatched", "key", key, "messages", len(msgs), "elapsed", time.Since(start))
}

// dispatchAgentGroup processes one agent's slice of the drained group and
// returns the number of messages whose invocation fell back.
func (d *Dispatcher) dispatchAgentGroup(ctx context.Context, agentID string, msgs []Message) int {
	cfg, err := d.agents.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("dispatch: agent not found, skipping messages", "agent", agentID, "messages", len(msgs))
		} else {
			slog.Error("dispatch: agent lookup failed, skipping messages", "agent", agentID, "messages", len(msgs), "error", err)
		}
		return len(msgs)
	}

	failed := 0
	for _, msg := range msgs {
		if !d.processMessage(ctx, *cfg, msg) {
			failed++
		}
	}
	return failed
}

// processMessage runs the invoke → record → deliver pipeline for one
// message. Returns false when the agent invocation used the fallback
// reply. Knowledge and webhook failures are logged and swallowed.
func (d *Dispatcher) processMessage(ctx context.Context, cfg store.AgentData, msg Message) bool {
	sessionID := msg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	tenantID := msg.TenantID()

	reply := d.invoker.Invoke(ctx, cfg, msg.Body, msg.UserID, sessionID, tenantID)

	if d.knowledge != nil && len(reply.Messages) > 0 {
		turn := knowledge.Turn{
			TenantID:    tenantID,
			UserID:      msg.UserID,
			SessionID:   sessionID,
			UserMessage: msg.Body,
			BotReply:    reply.Messages[0],
			Timestamp:   time.Now().UTC(),
		}
		if err := d.knowledge.RecordTurn(ctx, turn); err != nil {
			slog.Warn("knowledge sync failed", "tenant", tenantID, "session", sessionID, "error", err)
		}
	}

	if cfg.WebhookURL != "" {
		if err := d.webhooks.Deliver(ctx, cfg.WebhookURL, reply); err != nil {
			slog.Warn("webhook delivery failed", "agent", cfg.ID, "error", err)
		}
	}

	slog.Debug("message processed",
		"agent", cfg.ID, "user", msg.UserID, "session", sessionID, "fallback", reply.Fallback)
	return !reply.Fallback
}
