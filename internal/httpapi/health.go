package httpapi

import (
	"net/http"
	"time"

	"github.com/camposer/agentrelay/internal/batch"
	"github.com/camposer/agentrelay/internal/knowledge"
	"github.com/camposer/agentrelay/internal/redis"
	"github.com/camposer/agentrelay/internal/store"
)

// HealthHandler reports gateway liveness and collaborator connectivity.
// Unauthenticated: load balancers probe it.
type HealthHandler struct {
	agents    store.AgentStore
	redis     *redis.Client
	knowledge *knowledge.Store
	debouncer *batch.Debouncer
	version   string
}

// NewHealthHandler creates the health endpoint handler.
func NewHealthHandler(agents store.AgentStore, rdb *redis.Client, kn *knowledge.Store, deb *batch.Debouncer, version string) *HealthHandler {
	return &HealthHandler{agents: agents, redis: rdb, knowledge: kn, debouncer: deb, version: version}
}

// RegisterRoutes registers the health routes on the mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleRoot)
}

func (h *HealthHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "agentrelay",
		"version": h.version,
		"status":  "running",
	})
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	agentCount, _ := h.agents.Count(r.Context())

	knowledgeOK := false
	if h.knowledge != nil {
		knowledgeOK = h.knowledge.Status(r.Context()) == nil
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "healthy",
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"agents_count":        agentCount,
		"pending_batches":     h.debouncer.Pending(),
		"redis_connected":     h.redis.Healthy(r.Context()),
		"knowledge_available": knowledgeOK,
	})
}
