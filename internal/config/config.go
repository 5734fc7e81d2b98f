// Package config holds the gateway configuration: structure, defaults,
// JSON5 file loading, and environment overrides.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the agentrelay gateway.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Auth      AuthConfig      `json:"auth"`
	Debounce  DebounceConfig  `json:"debounce"`
	Providers ProvidersConfig `json:"providers"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Redis     RedisConfig     `json:"redis,omitempty"`
	Knowledge KnowledgeConfig `json:"knowledge,omitempty"`
	Webhook   WebhookConfig   `json:"webhook,omitempty"`
	Agents    AgentsConfig    `json:"agents,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	RateLimitRPS int    `json:"rate_limit_rps,omitempty"` // 0 = disabled
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig configures request authentication.
// APIKey is NEVER read from the config file (secret) — env AGENTRELAY_API_KEY only.
// An empty key disables the check.
type AuthConfig struct {
	APIKey string `json:"-"`
}

// DebounceConfig configures the message batching core.
type DebounceConfig struct {
	DefaultIntervalMs int  `json:"default_interval_ms,omitempty"` // per-message default when the caller omits one
	DrainOnShutdown   bool `json:"drain_on_shutdown,omitempty"`   // flush pending groups instead of discarding them
}

// DefaultInterval returns the debounce default as a duration.
func (d DebounceConfig) DefaultInterval() time.Duration {
	ms := d.DefaultIntervalMs
	if ms <= 0 {
		ms = 15000
	}
	return time.Duration(ms) * time.Millisecond
}

// ProvidersConfig holds per-provider credentials and endpoints.
// API keys come from env only (AGENTRELAY_OPENAI_API_KEY etc.).
type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai,omitempty"`
	Anthropic  ProviderConfig `json:"anthropic,omitempty"`
	OpenRouter ProviderConfig `json:"openrouter,omitempty"`
}

// ProviderConfig configures one upstream LLM endpoint.
type ProviderConfig struct {
	APIKey       string `json:"-"`
	APIBase      string `json:"api_base,omitempty"`
	DefaultModel string `json:"default_model,omitempty"`
}

// DatabaseConfig selects the agent store backend.
// PostgresDSN is env-only (AGENTRELAY_POSTGRES_DSN).
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"` // "memory" (default), "sqlite", or "postgres"
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"`
	AgentsFile  string `json:"agents_file,omitempty"` // optional JSON5 seed file, watched for changes
}

// IsManagedMode reports whether agents live in Postgres.
func (d DatabaseConfig) IsManagedMode() bool {
	return d.Mode == "postgres" && d.PostgresDSN != ""
}

// RedisConfig configures the optional dedupe cache.
type RedisConfig struct {
	URL              string `json:"url,omitempty"` // redis://host:port/db; empty disables Redis
	Password         string `json:"-"`             // env AGENTRELAY_REDIS_PASSWORD only
	DedupeTTLSeconds int    `json:"dedupe_ttl_seconds,omitempty"`
}

// DedupeTTL returns the message-id dedupe window.
func (r RedisConfig) DedupeTTL() time.Duration {
	if r.DedupeTTLSeconds <= 0 {
		return 20 * time.Minute
	}
	return time.Duration(r.DedupeTTLSeconds) * time.Second
}

// KnowledgeConfig configures the conversation knowledge store.
type KnowledgeConfig struct {
	Enabled          bool   `json:"enabled,omitempty"`
	StoreURL         string `json:"store_url,omitempty"`  // Chroma-compatible HTTP endpoint
	Collection       string `json:"collection,omitempty"` // default "conversations"
	EmbeddingModel   string `json:"embedding_model,omitempty"`
	EmbeddingAPIBase string `json:"embedding_api_base,omitempty"`
	EmbeddingAPIKey  string `json:"-"` // env AGENTRELAY_EMBEDDING_API_KEY only
}

// WebhookConfig configures reply delivery.
type WebhookConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty"` // default 30
	RateLimitRPM   int `json:"rate_limit_rpm,omitempty"`  // per target URL, 0 = disabled
}

// Timeout returns the delivery timeout.
func (w WebhookConfig) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// AgentsConfig configures default-agent seeding.
type AgentsConfig struct {
	SeedDefault         bool   `json:"seed_default"`
	DefaultModel        string `json:"default_model,omitempty"`
	DefaultInstructions string `json:"default_instructions,omitempty"`
}

// TelemetryConfig configures OpenTelemetry trace export.
// When enabled, dispatch and provider-call spans are exported to an
// OTLP-compatible backend (Jaeger, Tempo, Datadog, etc.).
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`     // e.g. "localhost:4317"
	Protocol    string `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	ServiceName string `json:"service_name,omitempty"` // default "agentrelay"
	Insecure    bool   `json:"insecure,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			RateLimitRPS: 0,
		},
		Debounce: DebounceConfig{
			DefaultIntervalMs: 15000,
			DrainOnShutdown:   true,
		},
		Database: DatabaseConfig{
			Mode: "memory",
		},
		Knowledge: KnowledgeConfig{
			Collection:     "conversations",
			EmbeddingModel: "text-embedding-3-small",
		},
		Webhook: WebhookConfig{
			TimeoutSeconds: 30,
		},
		Agents: AgentsConfig{
			SeedDefault:         true,
			DefaultModel:        "openai/gpt-4o-mini",
			DefaultInstructions: "You are a helpful assistant. Answer clearly and concisely.",
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "agentrelay",
		},
	}
}

// HasAnyProvider reports whether at least one provider API key is configured.
func (c *Config) HasAnyProvider() bool {
	return c.Providers.OpenAI.APIKey != "" ||
		c.Providers.Anthropic.APIKey != "" ||
		c.Providers.OpenRouter.APIKey != ""
}
