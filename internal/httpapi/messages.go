package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/camposer/agentrelay/internal/batch"
)

// Deduplicator registers message ids and reports replays within the
// dedupe window. Registration is a side effect of the check, so callers
// must not probe ids for batches that may still be rejected.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, messageID string) bool
}

// MessagesHandler accepts inbound message batches and feeds the debouncer.
type MessagesHandler struct {
	debouncer *batch.Debouncer
	dedupe    Deduplicator // nil disables message-id dedupe
	apiKey    string
}

// NewMessagesHandler creates the intake handler.
func NewMessagesHandler(debouncer *batch.Debouncer, dedupe Deduplicator, apiKey string) *MessagesHandler {
	return &MessagesHandler{debouncer: debouncer, dedupe: dedupe, apiKey: apiKey}
}

// RegisterRoutes registers intake routes on the mux.
func (h *MessagesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/messages", requireAPIKey(h.apiKey, h.handleReceive))
}

type receiveResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	DebounceGroups int    `json:"debounce_groups"`
	Deduplicated   int    `json:"deduplicated,omitempty"`
}

// handleReceive validates the inbound batch and submits it. The response
// is an acknowledgment only: processing outcomes surface via webhooks.
func (h *MessagesHandler) handleReceive(w http.ResponseWriter, r *http.Request) {
	var msgs []batch.Message
	if err := json.NewDecoder(r.Body).Decode(&msgs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	for _, m := range msgs {
		if m.Body == "" || m.AgentID == "" || m.UserID == "" || m.AccountID == "" {
			writeError(w, http.StatusBadRequest, "message, agent_id, user_id and id_conta are required")
			return
		}
	}

	// Dedupe only after the whole batch validated: the duplicate check
	// registers the id, and a rejected batch must stay retryable without
	// losing messages whose ids were probed before the failure.
	now := time.Now().UTC()
	accepted := make([]batch.Message, 0, len(msgs))
	deduped := 0
	for _, m := range msgs {
		if m.ID != "" && h.dedupe != nil && h.dedupe.IsDuplicate(r.Context(), m.ID) {
			slog.Debug("dedupe: skipping duplicate message", "message_id", m.ID)
			deduped++
			continue
		}
		m.ReceivedAt = now
		accepted = append(accepted, m)
	}

	groups := h.debouncer.Submit(accepted)
	slog.Info("messages accepted", "received", len(msgs), "accepted", len(accepted), "groups", groups)

	writeJSON(w, http.StatusAccepted, receiveResponse{
		Success:        true,
		Message:        "batch accepted for processing",
		DebounceGroups: groups,
		Deduplicated:   deduped,
	})
}
