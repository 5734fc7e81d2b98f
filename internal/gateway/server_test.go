package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/camposer/agentrelay/internal/bus"
	"github.com/camposer/agentrelay/internal/config"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBuildMuxRegistersHandlers(t *testing.T) {
	s := NewServer(config.ServerConfig{}, bus.New(), pingHandler{})
	mux := s.BuildMux()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/ping", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("ping status = %d", rr.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	s := NewServer(config.ServerConfig{RateLimitRPS: 1}, bus.New(), pingHandler{})
	h := s.rateLimit(s.BuildMux())

	// Burst is 2x the rate; the third immediate request must be rejected.
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/ping", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first requests should pass: %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", codes[2])
	}
}

func TestRateLimitDisabled(t *testing.T) {
	s := NewServer(config.ServerConfig{}, bus.New(), pingHandler{})
	h := s.rateLimit(s.BuildMux())

	for i := 0; i < 10; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/ping", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d = %d with limiter disabled", i, rr.Code)
		}
	}
}
