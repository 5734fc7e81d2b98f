package agent

import (
	"strings"
	"testing"

	"github.com/camposer/agentrelay/internal/store"
)

func TestMatchSkills(t *testing.T) {
	skills := []store.Skill{
		{Name: "billing", Keywords: []string{"invoice", "payment"}},
		{Name: "shipping", Keywords: []string{"delivery", "track"}},
		{Name: "empty", Keywords: nil},
	}

	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"single match", "where is my invoice?", []string{"billing"}},
		{"case insensitive", "PAYMENT overdue", []string{"billing"}},
		{"multiple matches keep config order", "track the invoice delivery", []string{"billing", "shipping"}},
		{"no match", "hello there", nil},
		{"empty message", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchSkills(skills, tt.message)
			if len(got) != len(tt.want) {
				t.Fatalf("matched %d skills, want %d", len(got), len(tt.want))
			}
			for i, sk := range got {
				if sk.Name != tt.want[i] {
					t.Errorf("match[%d] = %q, want %q", i, sk.Name, tt.want[i])
				}
			}
		})
	}
}

func TestMatchSkillsNoSkills(t *testing.T) {
	if got := MatchSkills(nil, "anything"); got != nil {
		t.Errorf("MatchSkills(nil) = %v", got)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	base := "You are a support bot."

	t.Run("no skills returns instructions unchanged", func(t *testing.T) {
		if got := BuildSystemPrompt(base, nil); got != base {
			t.Errorf("got %q", got)
		}
	})

	t.Run("matched skills appended", func(t *testing.T) {
		matched := []store.Skill{
			{Name: "billing", Description: "invoice handling", Context: "We bill monthly."},
		}
		got := BuildSystemPrompt(base, matched)
		if !strings.HasPrefix(got, base) {
			t.Errorf("instructions must lead the prompt: %q", got)
		}
		for _, want := range []string{"Available skills:", "- billing: invoice handling", "Context: We bill monthly."} {
			if !strings.Contains(got, want) {
				t.Errorf("prompt missing %q:\n%s", want, got)
			}
		}
	})
}
