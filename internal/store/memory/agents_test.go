package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camposer/agentrelay/internal/store"
)

func TestAgentStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewAgentStore()

	a := &store.AgentData{ID: "a1", Name: "First"}
	if err := s.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, &store.AgentData{ID: "a1"}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate create err = %v, want ErrAlreadyExists", err)
	}

	got, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "First" {
		t.Errorf("Name = %q", got.Name)
	}
	// Normalize applied on create.
	if got.Model != "openai/gpt-4o-mini" || got.Temperature != 0.7 || got.MaxTokens != 1000 {
		t.Errorf("defaults not applied: %+v", got)
	}

	got.Name = "Renamed"
	if err := s.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	got2, _ := s.Get(ctx, "a1")
	if got2.Name != "Renamed" {
		t.Errorf("update lost: %q", got2.Name)
	}
	if !got2.CreatedAt.Equal(got.CreatedAt) {
		t.Error("update must preserve CreatedAt")
	}

	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d", n)
	}

	if err := s.Delete(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("get after delete err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "a1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("double delete err = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, &store.AgentData{ID: "ghost"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestAgentStoreCreateGeneratesID(t *testing.T) {
	s := NewAgentStore()
	a := &store.AgentData{Name: "anonymous"}
	if err := s.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if a.ID == "" {
		t.Error("Create should assign an id")
	}
}

func TestAgentStoreListOrderedByCreation(t *testing.T) {
	ctx := context.Background()
	s := NewAgentStore()

	for _, id := range []string{"c", "a", "b"} {
		if err := s.Create(ctx, &store.AgentData{ID: id}); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].ID != "c" || list[1].ID != "a" || list[2].ID != "b" {
		t.Errorf("list not in creation order: %v", []string{list[0].ID, list[1].ID, list[2].ID})
	}
}
