// Package pg provides the Postgres-backed agent store for managed
// (multi-tenant) deployments. Schema lives under migrations/ and is
// applied with `agentrelay migrate up`.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/camposer/agentrelay/internal/store"
)

// OpenDB opens a database/sql handle over the pgx stdlib driver.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// AgentStore implements store.AgentStore backed by Postgres.
type AgentStore struct {
	db *sql.DB
}

// NewAgentStore wraps an open database handle.
func NewAgentStore(db *sql.DB) *AgentStore {
	return &AgentStore{db: db}
}

func (s *AgentStore) List(ctx context.Context) ([]store.AgentData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, instructions, model, temperature, max_tokens,
		        skills, webhook_url, created_at, updated_at
		 FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []store.AgentData
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *AgentStore) Get(ctx context.Context, id string) (*store.AgentData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, instructions, model, temperature, max_tokens,
		        skills, webhook_url, created_at, updated_at
		 FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	return a, err
}

func (s *AgentStore) Create(ctx context.Context, a *store.AgentData) error {
	a.Normalize()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	skills, err := a.SkillsJSON()
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, description, instructions, model, temperature,
		                     max_tokens, skills, webhook_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.Name, a.Description, a.Instructions, a.Model, a.Temperature,
		a.MaxTokens, skills, a.WebhookURL, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *AgentStore) Update(ctx context.Context, a *store.AgentData) error {
	a.UpdatedAt = time.Now().UTC()

	skills, err := a.SkillsJSON()
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET name = $1, description = $2, instructions = $3, model = $4,
		        temperature = $5, max_tokens = $6, skills = $7, webhook_url = $8, updated_at = $9
		 WHERE id = $10`,
		a.Name, a.Description, a.Instructions, a.Model, a.Temperature,
		a.MaxTokens, skills, a.WebhookURL, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *AgentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*store.AgentData, error) {
	var a store.AgentData
	var skillsJSON []byte
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Instructions, &a.Model,
		&a.Temperature, &a.MaxTokens, &skillsJSON, &a.WebhookURL, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(skillsJSON) > 0 {
		if err := json.Unmarshal(skillsJSON, &a.Skills); err != nil {
			return nil, fmt.Errorf("unmarshal skills for agent %s: %w", a.ID, err)
		}
	}
	return &a, nil
}
