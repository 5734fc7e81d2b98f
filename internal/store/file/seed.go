// Package file loads agent definitions from a JSON5 seed file and keeps
// the agent store in sync when the file changes on disk. Intended for
// standalone deployments where agents are edited as config rather than
// through the management API.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"

	"github.com/camposer/agentrelay/internal/store"
)

// SeedLoader syncs a JSON5 agents file into an AgentStore.
type SeedLoader struct {
	path    string
	agents  store.AgentStore
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSeedLoader creates a loader for the given agents file.
func NewSeedLoader(path string, agents store.AgentStore) *SeedLoader {
	return &SeedLoader{path: path, agents: agents, done: make(chan struct{})}
}

// Sync reads the seed file and upserts every agent it defines. Agents
// already in the store are updated in place; agents absent from the file
// are left alone (the file seeds, it does not own the store).
func (l *SeedLoader) Sync(ctx context.Context) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read agents file %s: %w", l.path, err)
	}

	var defs []store.AgentData
	if err := json5.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("parse agents file %s: %w", l.path, err)
	}

	for i := range defs {
		a := defs[i]
		a.Normalize()
		if err := l.agents.Create(ctx, &a); err == store.ErrAlreadyExists {
			if existing, getErr := l.agents.Get(ctx, a.ID); getErr == nil {
				a.CreatedAt = existing.CreatedAt
			}
			if err := l.agents.Update(ctx, &a); err != nil {
				slog.Warn("agents file: update failed", "agent", a.ID, "error", err)
			}
		} else if err != nil {
			slog.Warn("agents file: create failed", "agent", a.ID, "error", err)
		}
	}

	slog.Info("agents file synced", "path", l.path, "agents", len(defs))
	return nil
}

// Watch starts watching the seed file's directory and re-syncs on write.
// Watching the directory rather than the file survives editors that
// replace the file atomically (rename-over-write).
func (l *SeedLoader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(l.path), err)
	}
	l.watcher = w

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(l.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := l.Sync(ctx); err != nil {
					slog.Warn("agents file re-sync failed", "error", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("agents file watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Stop terminates the watch goroutine.
func (l *SeedLoader) Stop() {
	close(l.done)
}
