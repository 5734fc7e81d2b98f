package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/titanous/json5"
)

// Load reads the config file at path (JSON5: comments and trailing commas
// allowed), applies it over Default(), then applies env overrides.
// A missing file is not an error — defaults plus env are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// ApplyEnvOverrides layers environment variables over the loaded config.
// Secrets (API keys, DSN, passwords) are env-only and never persisted.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("AGENTRELAY_API_KEY"); v != "" {
		c.Auth.APIKey = v
	}
	if v := os.Getenv("AGENTRELAY_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("AGENTRELAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("AGENTRELAY_POSTGRES_DSN"); v != "" {
		c.Database.PostgresDSN = v
		if c.Database.Mode == "" || c.Database.Mode == "memory" {
			c.Database.Mode = "postgres"
		}
	}
	if v := os.Getenv("AGENTRELAY_SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
		if c.Database.Mode == "" || c.Database.Mode == "memory" {
			c.Database.Mode = "sqlite"
		}
	}
	if v := os.Getenv("AGENTRELAY_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("AGENTRELAY_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("AGENTRELAY_OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("AGENTRELAY_ANTHROPIC_API_KEY"); v != "" {
		c.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("AGENTRELAY_OPENROUTER_API_KEY"); v != "" {
		c.Providers.OpenRouter.APIKey = v
	}
	if v := os.Getenv("AGENTRELAY_EMBEDDING_API_KEY"); v != "" {
		c.Knowledge.EmbeddingAPIKey = v
	}
	if v := os.Getenv("AGENTRELAY_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
}
