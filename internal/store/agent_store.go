// Package store defines the storage interfaces shared by all backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the requested agent does not exist.
var ErrNotFound = errors.New("agent not found")

// ErrAlreadyExists is returned when creating an agent whose id is taken.
var ErrAlreadyExists = errors.New("agent already exists")

// Skill is a keyword-gated prompt fragment attached to an agent. When an
// inbound message matches one of the keywords, the skill's context is
// appended to the system prompt.
type Skill struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Context     string   `json:"context,omitempty"`
}

// AgentData is the configuration record for one agent.
type AgentData struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Instructions string    `json:"instructions"`
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	Skills       []Skill   `json:"skills,omitempty"`
	WebhookURL   string    `json:"webhook_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Normalize fills derived defaults before persisting: a fresh uuid when the
// caller supplied no id, and the original defaults for model/temperature/
// max_tokens matching the intake contract.
func (a *AgentData) Normalize() {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Model == "" {
		a.Model = "openai/gpt-4o-mini"
	}
	if a.Temperature == 0 {
		a.Temperature = 0.7
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = 1000
	}
}

// SkillsJSON marshals the skills slice for JSONB/TEXT columns.
func (a *AgentData) SkillsJSON() ([]byte, error) {
	if a.Skills == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Skills)
}

// AgentStore manages agent configuration records.
// Implementations must be safe for concurrent use.
type AgentStore interface {
	List(ctx context.Context) ([]AgentData, error)
	Get(ctx context.Context, id string) (*AgentData, error)
	Create(ctx context.Context, a *AgentData) error
	Update(ctx context.Context, a *AgentData) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
