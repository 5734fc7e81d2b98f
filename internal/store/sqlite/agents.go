// Package sqlite provides the file-backed agent store for standalone
// deployments that want agents to survive restarts without Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/camposer/agentrelay/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL,
	temperature  REAL NOT NULL,
	max_tokens   INTEGER NOT NULL,
	skills       TEXT NOT NULL DEFAULT '[]',
	webhook_url  TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);`

// AgentStore implements store.AgentStore backed by a local SQLite file.
type AgentStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*AgentStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite is single-writer; serialize access at the pool level.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &AgentStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *AgentStore) Close() error { return s.db.Close() }

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
		 FROM agents WHERE id = ?`, id)

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

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, description, instructions, model, temperature,
		                     max_tokens, skills, webhook_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Description, a.Instructions, a.Model, a.Temperature,
		a.MaxTokens, string(skills), a.WebhookURL, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if existing, getErr := s.Get(ctx, a.ID); getErr == nil && existing != nil {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("create agent: %w", err)
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
		`UPDATE agents SET name = ?, description = ?, instructions = ?, model = ?,
		        temperature = ?, max_tokens = ?, skills = ?, webhook_url = ?, updated_at = ?
		 WHERE id = ?`,
		a.Name, a.Description, a.Instructions, a.Model, a.Temperature,
		a.MaxTokens, string(skills), a.WebhookURL, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
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

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (*store.AgentData, error) {
	var a store.AgentData
	var skillsJSON string
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Instructions, &a.Model,
		&a.Temperature, &a.MaxTokens, &skillsJSON, &a.WebhookURL, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if skillsJSON != "" && skillsJSON != "[]" {
		if err := json.Unmarshal([]byte(skillsJSON), &a.Skills); err != nil {
			return nil, fmt.Errorf("unmarshal skills for agent %s: %w", a.ID, err)
		}
	}
	return &a, nil
}
