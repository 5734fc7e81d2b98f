package agent

import (
	"strings"

	"github.com/camposer/agentrelay/internal/store"
)

// MatchSkills returns the skills whose keywords appear in the message,
// case-insensitively, preserving the order they are configured in.
func MatchSkills(skills []store.Skill, message string) []store.Skill {
	if len(skills) == 0 {
		return nil
	}
	lower := strings.ToLower(message)

	var matched []store.Skill
	for _, sk := range skills {
		for _, kw := range sk.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				matched = append(matched, sk)
				break
			}
		}
	}
	return matched
}

// BuildSystemPrompt composes the agent instructions with the context of
// any matched skills.
func BuildSystemPrompt(instructions string, matched []store.Skill) string {
	if len(matched) == 0 {
		return instructions
	}

	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\nAvailable skills:\n")
	for _, sk := range matched {
		b.WriteString("- ")
		b.WriteString(sk.Name)
		if sk.Description != "" {
			b.WriteString(": ")
			b.WriteString(sk.Description)
		}
		b.WriteString("\n")
		if sk.Context != "" {
			b.WriteString("  Context: ")
			b.WriteString(sk.Context)
			b.WriteString("\n")
		}
	}
	return b.String()
}
