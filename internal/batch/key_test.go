package batch

import (
	"testing"
	"time"
)

func TestBuildBatchKey(t *testing.T) {
	tests := []struct {
		name    string
		agent   string
		user    string
		session string
		want    string
	}{
		{"with session", "agent-1", "user-9", "sess-abc", "agent-1:user-9:sess-abc"},
		{"without session", "agent-1", "user-9", "", "agent-1:user-9:no_session"},
		{"different users differ", "agent-1", "user-2", "", "agent-1:user-2:no_session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildBatchKey(tt.agent, tt.user, tt.session); got != tt.want {
				t.Errorf("BuildBatchKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageKey_SessionlessCoalesce(t *testing.T) {
	a := Message{AgentID: "a", UserID: "u"}
	b := Message{AgentID: "a", UserID: "u"}
	if a.Key() != b.Key() {
		t.Errorf("session-less messages from same pair should share a key: %q vs %q", a.Key(), b.Key())
	}
}

func TestMessageTenantID(t *testing.T) {
	m := Message{AccountID: "42"}
	if got := m.TenantID(); got != "tenant_42" {
		t.Errorf("TenantID() = %q, want %q", got, "tenant_42")
	}
}

func TestMessageInterval(t *testing.T) {
	def := 15 * time.Second
	tests := []struct {
		name string
		ms   int
		want time.Duration
	}{
		{"explicit", 1000, time.Second},
		{"zero uses default", 0, def},
		{"negative uses default", -5, def},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{DebounceMs: tt.ms}
			if got := m.Interval(def); got != tt.want {
				t.Errorf("Interval() = %v, want %v", got, tt.want)
			}
		})
	}
}
