package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/camposer/agentrelay/internal/bus"
	"github.com/camposer/agentrelay/internal/store"
)

// AgentsHandler handles agent CRUD endpoints.
type AgentsHandler struct {
	agents store.AgentStore
	apiKey string
	events bus.EventPublisher // nil = no events
}

// NewAgentsHandler creates a handler for agent management endpoints.
func NewAgentsHandler(agents store.AgentStore, apiKey string, events bus.EventPublisher) *AgentsHandler {
	return &AgentsHandler{agents: agents, apiKey: apiKey, events: events}
}

// RegisterRoutes registers agent management routes on the mux.
func (h *AgentsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/agents", requireAPIKey(h.apiKey, h.handleList))
	mux.HandleFunc("POST /v1/agents", requireAPIKey(h.apiKey, h.handleCreate))
	mux.HandleFunc("GET /v1/agents/{id}", requireAPIKey(h.apiKey, h.handleGet))
	mux.HandleFunc("PUT /v1/agents/{id}", requireAPIKey(h.apiKey, h.handleUpdate))
	mux.HandleFunc("DELETE /v1/agents/{id}", requireAPIKey(h.apiKey, h.handleDelete))
}

func (h *AgentsHandler) emitUpdated(id string) {
	if h.events == nil {
		return
	}
	h.events.Broadcast(bus.Event{Name: bus.EventAgentUpdated, Payload: map[string]string{"id": id}})
}

func (h *AgentsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if agents == nil {
		agents = []store.AgentData{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *AgentsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.agents.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AgentsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var a store.AgentData
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if a.Name == "" || a.Instructions == "" {
		writeError(w, http.StatusBadRequest, "name and instructions are required")
		return
	}

	err := h.agents.Create(r.Context(), &a)
	if errors.Is(err, store.ErrAlreadyExists) {
		writeError(w, http.StatusBadRequest, "agent already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("agent created", "id", a.ID, "name", a.Name)
	h.emitUpdated(a.ID)
	writeJSON(w, http.StatusOK, a)
}

func (h *AgentsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var a store.AgentData
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	a.ID = r.PathValue("id")

	err := h.agents.Update(r.Context(), &a)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("agent updated", "id", a.ID)
	h.emitUpdated(a.ID)
	writeJSON(w, http.StatusOK, a)
}

func (h *AgentsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.agents.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("agent deleted", "id", id)
	h.emitUpdated(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "agent deleted"})
}
