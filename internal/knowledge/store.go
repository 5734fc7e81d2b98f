// Package knowledge records conversation turns in an external vector store
// (ChromaDB HTTP client mode) scoped per tenant, and answers similarity
// searches over them. Every write is best-effort: callers log failures and
// carry on — knowledge sync never blocks or fails a dispatch.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/camposer/agentrelay/internal/config"
)

// Store is the HTTP client for the knowledge backend.
type Store struct {
	cfg    config.KnowledgeConfig
	client *http.Client
}

// NewStore creates a knowledge store client. Returns nil when the feature
// is disabled so callers can nil-check instead of branching on config.
func NewStore(cfg config.KnowledgeConfig) *Store {
	if !cfg.Enabled || cfg.StoreURL == "" {
		return nil
	}
	if cfg.Collection == "" {
		cfg.Collection = "conversations"
	}
	return &Store{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Turn is one stored conversation exchange.
type Turn struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	BotReply    string    `json:"bot_reply"`
	Timestamp   time.Time `json:"timestamp"`
}

// SearchResult is one similarity-search hit.
type SearchResult struct {
	Text     string         `json:"text"`
	Distance float64        `json:"distance"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// collectionFor isolates tenants by collection name.
func (s *Store) collectionFor(tenantID string) string {
	return fmt.Sprintf("%s_%s", s.cfg.Collection, tenantID)
}

// RecordTurn embeds and upserts one conversation turn into the tenant's
// collection. Returns an error for the caller to log; the caller must not
// propagate it into the dispatch outcome.
func (s *Store) RecordTurn(ctx context.Context, turn Turn) error {
	doc := fmt.Sprintf("user: %s\nassistant: %s", turn.UserMessage, turn.BotReply)

	embeddings, err := s.embed(ctx, []string{doc})
	if err != nil {
		return fmt.Errorf("embed turn: %w", err)
	}

	body, _ := json.Marshal(map[string]any{
		"ids":        []string{uuid.NewString()},
		"documents":  []string{doc},
		"embeddings": embeddings,
		"metadatas": []map[string]any{{
			"tenant_id":  turn.TenantID,
			"user_id":    turn.UserID,
			"session_id": turn.SessionID,
			"timestamp":  turn.Timestamp.UTC().Format(time.RFC3339),
		}},
	})

	endpoint := fmt.Sprintf("%s/api/v1/collections/%s/add",
		strings.TrimRight(s.cfg.StoreURL, "/"), s.collectionFor(turn.TenantID))
	return s.post(ctx, endpoint, body, nil)
}

// Search runs a similarity search within one tenant's collection.
func (s *Store) Search(ctx context.Context, tenantID, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	embeddings, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	body, _ := json.Marshal(map[string]any{
		"query_embeddings": embeddings,
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	})

	endpoint := fmt.Sprintf("%s/api/v1/collections/%s/query",
		strings.TrimRight(s.cfg.StoreURL, "/"), s.collectionFor(tenantID))

	var raw struct {
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	if err := s.post(ctx, endpoint, body, &raw); err != nil {
		return nil, err
	}

	var results []SearchResult
	if len(raw.Documents) > 0 {
		for i, doc := range raw.Documents[0] {
			r := SearchResult{Text: doc}
			if len(raw.Distances) > 0 && i < len(raw.Distances[0]) {
				r.Distance = raw.Distances[0][i]
			}
			if len(raw.Metadatas) > 0 && i < len(raw.Metadatas[0]) {
				r.Metadata = raw.Metadatas[0][i]
			}
			results = append(results, r)
		}
	}
	return results, nil
}

// Status pings the backend heartbeat endpoint.
func (s *Store) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(s.cfg.StoreURL, "/")+"/api/v1/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("knowledge store unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("knowledge store status %d", resp.StatusCode)
	}
	return nil
}

// embed calls the OpenAI-compatible embeddings endpoint.
func (s *Store) embed(ctx context.Context, texts []string) ([][]float64, error) {
	if s.cfg.EmbeddingAPIKey == "" {
		return nil, fmt.Errorf("embedding API key not configured")
	}

	body, _ := json.Marshal(map[string]any{
		"model": s.cfg.EmbeddingModel,
		"input": texts,
	})

	base := s.cfg.EmbeddingAPIBase
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(base, "/")+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.EmbeddingAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding API call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding API error %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}

	out := make([][]float64, 0, len(result.Data))
	for _, d := range result.Data {
		out = append(out, d.Embedding)
	}
	return out, nil
}

func (s *Store) post(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("knowledge store call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("knowledge store error %d: %s", resp.StatusCode, string(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("parse knowledge response: %w", err)
		}
	}
	return nil
}
