package render

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/store"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func TestSessionsOutput(t *testing.T) {
	var buf bytes.Buffer
	cached := []store.CachedSession{
		{ID: "s1", Title: "First task"},
		{ID: "s2", Title: "Second task"},
	}
	states := map[string]string{"s1": "ACTIVE", "s2": "COMPLETED"}
	aliases := map[string][]string{"s2": {"@work"}}

	Sessions(&buf, cached, states, aliases)
	out := stripANSI(buf.String())

	if !strings.Contains(out, "First task") || !strings.Contains(out, "Second task") {
		t.Errorf("titles missing from output:\n%s", out)
	}
	if !strings.Contains(out, "@work") {
		t.Errorf("alias annotation missing:\n%s", out)
	}
	if !strings.Contains(out, "1:") || !strings.Contains(out, "2:") {
		t.Errorf("1-based indices missing:\n%s", out)
	}
	if !strings.Contains(out, "ACTIVE") || !strings.Contains(out, "COMPLETED") {
		t.Errorf("states missing:\n%s", out)
	}
}

func TestActivitiesOrdersOldestFirst(t *testing.T) {
	var buf bytes.Buffer
	acts := []api.Activity{
		{ID: "a2", CreateTime: "2026-08-30T11:00:00Z", Originator: "agent",
			AgentMessaged: &api.AgentMessaged{AgentMessage: "second"}},
		{ID: "a1", CreateTime: "2026-08-30T10:00:00Z", Originator: "user",
			UserMessaged: &api.UserMessaged{UserMessage: "first"}},
	}

	Activities(&buf, acts, 0, store.CachedSession{ID: "s1"})
	out := buf.String()

	first := strings.Index(out, "first")
	second := strings.Index(out, "second")
	if first == -1 || second == -1 {
		t.Fatalf("messages missing from output:\n%s", out)
	}
	if first > second {
		t.Errorf("activities not ordered oldest first:\n%s", out)
	}
}

func TestActivitiesLimitKeepsNewest(t *testing.T) {
	var buf bytes.Buffer
	acts := []api.Activity{
		{ID: "a1", CreateTime: "2026-08-30T10:00:00Z", Originator: "agent",
			AgentMessaged: &api.AgentMessaged{AgentMessage: "old"}},
		{ID: "a2", CreateTime: "2026-08-30T11:00:00Z", Originator: "agent",
			AgentMessaged: &api.AgentMessaged{AgentMessage: "new"}},
	}

	Activities(&buf, acts, 1, store.CachedSession{ID: "s1"})
	out := buf.String()

	if strings.Contains(out, "old") {
		t.Errorf("limit should drop the oldest record:\n%s", out)
	}
	if !strings.Contains(out, "new") {
		t.Errorf("newest record missing:\n%s", out)
	}
}

func TestActivitiesRendersPlanSteps(t *testing.T) {
	var buf bytes.Buffer
	acts := []api.Activity{
		{ID: "a1", CreateTime: "2026-08-30T10:00:00Z", Originator: "agent",
			PlanGenerated: &api.PlanGenerated{Plan: api.Plan{Steps: []api.Step{
				{Title: "Inspect the failure"},
				{Title: "Write a fix"},
			}}}},
	}

	Activities(&buf, acts, 0, store.CachedSession{ID: "s1"})
	out := buf.String()

	if !strings.Contains(out, "Inspect the failure") || !strings.Contains(out, "Write a fix") {
		t.Errorf("plan steps missing:\n%s", out)
	}
}
