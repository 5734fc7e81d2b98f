package batch

import "fmt"

// noSession is the sentinel substituted when a message carries no session
// id, so that session-less messages from the same (agent, user) pair still
// coalesce into one group instead of each spawning a unique key.
const noSession = "no_session"

// BuildBatchKey derives the grouping key for a message. Pure and total:
// the same inputs always produce the same key.
//
//	{agentID}:{userID}:{sessionID|no_session}
func BuildBatchKey(agentID, userID, sessionID string) string {
	if sessionID == "" {
		sessionID = noSession
	}
	return fmt.Sprintf("%s:%s:%s", agentID, userID, sessionID)
}

// Key returns the batch key for the message.
func (m Message) Key() string {
	return BuildBatchKey(m.AgentID, m.UserID, m.SessionID)
}
