// Package webhook delivers dispatch outcomes to caller-configured URLs.
// Delivery is fire-and-forget: failures are returned for logging only and
// never abort the batch that produced them.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedTargets caps the number of per-URL limiters to prevent memory
// exhaustion from rotating target URLs.
const maxTrackedTargets = 4096

// Sender posts JSON payloads to webhook URLs.
type Sender struct {
	client *http.Client

	// Per-target rate limiting; nil limit disables it.
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewSender creates a sender with the given delivery timeout and optional
// per-target requests-per-minute cap (0 disables rate limiting).
func NewSender(timeout time.Duration, ratePerMinute int) *Sender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Sender{
		client:   &http.Client{Timeout: timeout},
		limiters: make(map[string]*rate.Limiter),
	}
	if ratePerMinute > 0 {
		s.limit = rate.Limit(float64(ratePerMinute) / 60.0)
		s.burst = ratePerMinute
	}
	return s
}

// Deliver posts the payload as JSON to url. A non-2xx response is an
// error. Rate-limited targets are rejected, not queued — the caller logs
// and moves on.
func (s *Sender) Deliver(ctx context.Context, url string, payload any) error {
	if url == "" {
		return nil
	}
	if !s.allow(url) {
		return fmt.Errorf("webhook %s: rate limited", url)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook %s: marshal payload: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s: build request: %w", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", url, resp.StatusCode)
	}
	return nil
}

func (s *Sender) allow(url string) bool {
	if s.limit == 0 {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lim, ok := s.limiters[url]
	if !ok {
		// Hard eviction at the cap (map iteration order is as good as any).
		for len(s.limiters) >= maxTrackedTargets {
			for k := range s.limiters {
				delete(s.limiters, k)
				break
			}
		}
		lim = rate.NewLimiter(s.limit, s.burst)
		s.limiters[url] = lim
	}
	return lim.Allow()
}
