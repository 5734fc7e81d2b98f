package httpapi

import (
	"net/http"
	"strconv"

	"github.com/camposer/agentrelay/internal/knowledge"
)

// KnowledgeHandler exposes read-side knowledge store endpoints.
type KnowledgeHandler struct {
	store  *knowledge.Store // nil when knowledge sync is disabled
	apiKey string
}

// NewKnowledgeHandler creates a handler for knowledge endpoints.
func NewKnowledgeHandler(store *knowledge.Store, apiKey string) *KnowledgeHandler {
	return &KnowledgeHandler{store: store, apiKey: apiKey}
}

// RegisterRoutes registers knowledge routes on the mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/knowledge/status", requireAPIKey(h.apiKey, h.handleStatus))
	mux.HandleFunc("GET /v1/knowledge/tenants/{tenantID}/search", requireAPIKey(h.apiKey, h.handleSearch))
}

func (h *KnowledgeHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_configured"})
		return
	}
	if err := h.store.Status(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "available"})
}

func (h *KnowledgeHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "knowledge store not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	topK, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	tenantID := r.PathValue("tenantID")
	results, err := h.store.Search(r.Context(), tenantID, query, topK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []knowledge.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_id": tenantID,
		"query":     query,
		"results":   results,
	})
}
