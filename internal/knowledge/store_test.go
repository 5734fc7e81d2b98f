package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/camposer/agentrelay/internal/config"
)

// fakeBackend emulates the vector store plus the embeddings endpoint.
func fakeBackend(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch {
		case r.URL.Path == "/embeddings":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{{"embedding": []float64{0.1, 0.2}}},
			})
		case r.URL.Path == "/api/v1/heartbeat":
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/add"):
			w.WriteHeader(http.StatusCreated)
		case strings.HasSuffix(r.URL.Path, "/query"):
			json.NewEncoder(w).Encode(map[string]any{
				"documents": [][]string{{"user: hi\nassistant: hello"}},
				"distances": [][]float64{{0.42}},
				"metadatas": [][]map[string]any{{{"session_id": "s1"}}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func testConfig(url string) config.KnowledgeConfig {
	return config.KnowledgeConfig{
		Enabled:          true,
		StoreURL:         url,
		Collection:       "conversations",
		EmbeddingModel:   "text-embedding-3-small",
		EmbeddingAPIBase: url,
		EmbeddingAPIKey:  "test-key",
	}
}

func TestNewStoreDisabled(t *testing.T) {
	if s := NewStore(config.KnowledgeConfig{}); s != nil {
		t.Error("disabled config should yield nil store")
	}
	if s := NewStore(config.KnowledgeConfig{Enabled: true}); s != nil {
		t.Error("missing URL should yield nil store")
	}
}

func TestRecordTurn(t *testing.T) {
	srv, paths := fakeBackend(t)
	s := NewStore(testConfig(srv.URL))

	turn := Turn{
		TenantID:    "tenant_7",
		UserID:      "u1",
		SessionID:   "s1",
		UserMessage: "hi",
		BotReply:    "hello",
		Timestamp:   time.Now(),
	}
	if err := s.RecordTurn(context.Background(), turn); err != nil {
		t.Fatal(err)
	}

	// Tenant isolation: the collection name carries the tenant id.
	want := "/api/v1/collections/conversations_tenant_7/add"
	found := false
	for _, p := range *paths {
		if p == want {
			found = true
		}
	}
	if !found {
		t.Errorf("add not routed to tenant collection, paths = %v", *paths)
	}
}

func TestSearch(t *testing.T) {
	srv, _ := fakeBackend(t)
	s := NewStore(testConfig(srv.URL))

	results, err := s.Search(context.Background(), "tenant_7", "greeting", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Distance != 0.42 {
		t.Errorf("distance = %v", results[0].Distance)
	}
	if results[0].Metadata["session_id"] != "s1" {
		t.Errorf("metadata = %v", results[0].Metadata)
	}
}

func TestStatus(t *testing.T) {
	srv, _ := fakeBackend(t)
	s := NewStore(testConfig(srv.URL))
	if err := s.Status(context.Background()); err != nil {
		t.Errorf("Status() = %v", err)
	}
}

func TestRecordTurnNoEmbeddingKey(t *testing.T) {
	srv, _ := fakeBackend(t)
	cfg := testConfig(srv.URL)
	cfg.EmbeddingAPIKey = ""
	s := NewStore(cfg)

	if err := s.RecordTurn(context.Background(), Turn{TenantID: "t"}); err == nil {
		t.Error("expected error without embedding key")
	}
}
