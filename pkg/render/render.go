// Package render formats sessions and activities for terminal output.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/store"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiDim    = "\033[2m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
	ansiCyan   = "\033[36m"
)

func bold(s string) string   { return ansiBold + s + ansiReset }
func dim(s string) string    { return ansiDim + s + ansiReset }
func red(s string) string    { return ansiRed + s + ansiReset }
func green(s string) string  { return ansiGreen + s + ansiReset }
func yellow(s string) string { return ansiYellow + s + ansiReset }
func blue(s string) string   { return ansiBlue + s + ansiReset }
func cyan(s string) string   { return ansiCyan + s + ansiReset }

func stateColor(state string) string {
	switch state {
	case "ACTIVE":
		return green(state)
	case "COMPLETED":
		return blue(state)
	case "":
		return red("UNKNOWN")
	default:
		return red(state)
	}
}

// Sessions prints the cached listing with 1-based indices, alias annotations
// and the live state of each session.
func Sessions(w io.Writer, cached []store.CachedSession, states map[string]string, aliases map[string][]string) {
	for i, session := range cached {
		aliasStr := ""
		if names := aliases[session.ID]; len(names) > 0 {
			aliasStr = yellow(fmt.Sprintf(" (%s) ", strings.Join(names, ", ")))
		}

		fmt.Fprintf(w, "\n%s:%s%s: %s\n",
			bold(fmt.Sprintf("%d", i+1)),
			aliasStr,
			bold(session.ID),
			session.Title,
		)
		fmt.Fprintf(w, "  %s: %s\n", dim("State"), stateColor(states[session.ID]))
	}
}

// Activities prints the last n activities of a session, oldest first.
func Activities(w io.Writer, activities []api.Activity, n int, session store.CachedSession) {
	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Activities for session %s", session.ID)))

	ordered := make([]api.Activity, len(activities))
	copy(ordered, activities)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreateTime < ordered[j].CreateTime
	})

	if n > 0 && len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}

	for _, a := range ordered {
		originator := dim(a.Originator)
		switch a.Originator {
		case "agent":
			originator = cyan(a.Originator)
		case "user":
			originator = green(a.Originator)
		}
		fmt.Fprintf(w, "[%s] %s\n", dim(a.CreateTime), originator)

		switch {
		case a.AgentMessaged != nil:
			if a.AgentMessaged.AgentMessage != "" {
				fmt.Fprintf(w, "  %s\n", a.AgentMessaged.AgentMessage)
			}
		case a.UserMessaged != nil:
			fmt.Fprintf(w, "  %s\n", a.UserMessaged.UserMessage)
		case a.PlanGenerated != nil:
			fmt.Fprintf(w, "  %s\n", yellow("Plan Generated"))
			for _, step := range a.PlanGenerated.Plan.Steps {
				fmt.Fprintf(w, "    - %s\n", step.Title)
			}
		case a.PlanApproved != nil:
			fmt.Fprintf(w, "  %s\n", yellow("Plan Approved"))
		case a.SessionCompleted != nil:
			fmt.Fprintf(w, "  %s\n", blue("Session Completed"))
		case a.ProgressUpdated != nil:
			if a.ProgressUpdated.Title != "" {
				fmt.Fprintf(w, "  %s\n", dim(a.ProgressUpdated.Title))
			}
			if a.ProgressUpdated.Description != "" {
				fmt.Fprintf(w, "    %s\n", dim(a.ProgressUpdated.Description))
			}
		case len(a.Artifacts) > 0:
			renderArtifacts(w, a.Artifacts, session)
		case a.Title != "":
			fmt.Fprintf(w, "  %s\n", dim(a.Title))
		}

		fmt.Fprintln(w)
	}
}

func renderArtifacts(w io.Writer, artifacts []api.Artifact, session store.CachedSession) {
	for _, artifact := range artifacts {
		if artifact.BashOutput != nil {
			fmt.Fprintf(w, "  %s\n", blue("$ "+artifact.BashOutput.Command))
			fmt.Fprintf(w, "    %s\n", artifact.BashOutput.Output)
		}
		if artifact.ChangeSet != nil {
			branch := "unknown branch"
			if session.SourceContext != nil && session.SourceContext.GithubRepoContext != nil {
				branch = session.SourceContext.GithubRepoContext.StartingBranch
			}
			fmt.Fprintf(w, "  %s on %s\n", blue("Code Change"), yellow(branch))
			if artifact.ChangeSet.GitPatch.UnidiffPatch != "" {
				fmt.Fprintln(w, artifact.ChangeSet.GitPatch.UnidiffPatch)
			}
		}
	}
}
