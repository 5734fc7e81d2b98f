package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/camposer/agentrelay/internal/bus"
	"github.com/camposer/agentrelay/internal/store"
	"github.com/camposer/agentrelay/internal/store/memory"
)

func newAgentsMux(t *testing.T, seed ...store.AgentData) (*http.ServeMux, *memory.AgentStore, *[]string) {
	t.Helper()
	agents := memory.NewAgentStore()
	for i := range seed {
		if err := agents.Create(context.Background(), &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	msgBus := bus.New()
	var events []string
	msgBus.Subscribe("test", func(ev bus.Event) {
		if ev.Name == bus.EventAgentUpdated {
			events = append(events, ev.Name)
		}
	})

	mux := http.NewServeMux()
	NewAgentsHandler(agents, "", msgBus).RegisterRoutes(mux)
	return mux, agents, &events
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestAgentsCreateAndGet(t *testing.T) {
	mux, _, events := newAgentsMux(t)

	rr := do(mux, "POST", "/v1/agents", `{"name": "Support", "instructions": "Help users."}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	var created store.AgentData
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ID == "" {
		t.Error("created agent has no id")
	}
	if created.Model != "openai/gpt-4o-mini" || created.Temperature != 0.7 || created.MaxTokens != 1000 {
		t.Errorf("defaults not applied: %+v", created)
	}
	if len(*events) != 1 {
		t.Errorf("agent.updated events = %d, want 1", len(*events))
	}

	rr = do(mux, "GET", "/v1/agents/"+created.ID, "")
	if rr.Code != http.StatusOK {
		t.Errorf("get status = %d", rr.Code)
	}
}

func TestAgentsCreateValidation(t *testing.T) {
	mux, _, _ := newAgentsMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing name", `{"instructions": "x"}`},
		{"missing instructions", `{"name": "x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(mux, "POST", "/v1/agents", tt.body); rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestAgentsList(t *testing.T) {
	mux, _, _ := newAgentsMux(t,
		store.AgentData{ID: "a1", Name: "One", Instructions: "x"},
		store.AgentData{ID: "a2", Name: "Two", Instructions: "y"},
	)

	rr := do(mux, "GET", "/v1/agents", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var list []store.AgentData
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("listed %d agents, want 2", len(list))
	}
}

func TestAgentsListEmptyIsArray(t *testing.T) {
	mux, _, _ := newAgentsMux(t)
	rr := do(mux, "GET", "/v1/agents", "")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("empty list = %q, want []", got)
	}
}

func TestAgentsUpdateAndDelete(t *testing.T) {
	mux, agents, events := newAgentsMux(t,
		store.AgentData{ID: "a1", Name: "One", Instructions: "x"},
	)

	rr := do(mux, "PUT", "/v1/agents/a1", `{"name": "Renamed", "instructions": "x"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rr.Code, rr.Body.String())
	}
	got, _ := agents.Get(context.Background(), "a1")
	if got.Name != "Renamed" {
		t.Errorf("Name = %q", got.Name)
	}

	if rr := do(mux, "PUT", "/v1/agents/ghost", `{"name": "x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rr.Code)
	}

	if rr := do(mux, "DELETE", "/v1/agents/a1", ""); rr.Code != http.StatusOK {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr := do(mux, "DELETE", "/v1/agents/a1", ""); rr.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", rr.Code)
	}
	if len(*events) != 2 {
		t.Errorf("agent.updated events = %d, want 2 (update + delete)", len(*events))
	}
}

func TestAgentsGetMissing(t *testing.T) {
	mux, _, _ := newAgentsMux(t)
	if rr := do(mux, "GET", "/v1/agents/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
