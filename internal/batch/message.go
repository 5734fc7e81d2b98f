// Package batch implements the message debouncing and batching core.
//
// Incoming messages are grouped by (agent, user, session). Each group
// accumulates messages while a per-group timer counts down; every new
// arrival resets the timer to the arriving message's requested interval.
// When the timer expires with no further arrivals, the group is drained
// atomically and dispatched downstream in one shot, so rapid-fire messages
// from a single conversation cost one agent invocation flow instead of many.
package batch

import "time"

// Message is one inbound unit accepted by the gateway. Immutable once
// received; owned by the debouncer until drained.
type Message struct {
	ID         string    `json:"message_id,omitempty"`
	Body       string    `json:"message"`
	AgentID    string    `json:"agent_id"`
	UserID     string    `json:"user_id"`
	AccountID  string    `json:"id_conta"`
	ClientID   string    `json:"cliente_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	DebounceMs int       `json:"debounce,omitempty"`
	ReceivedAt time.Time `json:"-"`
}

// TenantID derives the tenant scope from the account id.
func (m Message) TenantID() string {
	return "tenant_" + m.AccountID
}

// Interval returns the message's requested debounce delay, or def when the
// caller did not specify one.
func (m Message) Interval(def time.Duration) time.Duration {
	if m.DebounceMs <= 0 {
		return def
	}
	return time.Duration(m.DebounceMs) * time.Millisecond
}
