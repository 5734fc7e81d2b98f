// Package redis wraps the optional Redis connection used for inbound
// message-id deduplication and health reporting.
//
// Graceful fallback: when Redis is not configured or unreachable, every
// operation returns its zero value instead of blocking the intake path.
package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/camposer/agentrelay/internal/config"
)

// dedupePrefix namespaces message-id keys.
const dedupePrefix = "relay:dedupe:"

// Client is the gateway's Redis handle. A nil Client is valid and inert.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect opens a Redis connection from config. Returns nil (disabled)
// when no URL is configured or the server cannot be reached — the gateway
// runs fine without it.
func Connect(cfg config.RedisConfig) *Client {
	if cfg.URL == "" {
		return nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		slog.Warn("redis: invalid URL, dedupe disabled", "error", err)
		return nil
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis: connection failed, dedupe disabled", "error", err)
		rdb.Close()
		return nil
	}

	slog.Info("redis connected", "addr", opts.Addr)
	return &Client{rdb: rdb, ttl: cfg.DedupeTTL()}
}

// IsDuplicate registers the message id and reports whether it was already
// seen within the dedupe window. First sight registers it atomically
// (SET NX) so concurrent submissions agree on a single winner.
func (c *Client) IsDuplicate(ctx context.Context, messageID string) bool {
	if c == nil || messageID == "" {
		return false
	}
	ok, err := c.rdb.SetNX(ctx, dedupePrefix+messageID, 1, c.ttl).Result()
	if err != nil {
		slog.Debug("redis: dedupe check failed, allowing message", "error", err)
		return false
	}
	return !ok
}

// Healthy reports whether the connection responds to PING.
func (c *Client) Healthy(ctx context.Context) bool {
	if c == nil {
		return false
	}
	return c.rdb.Ping(ctx).Err() == nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
