package api

// Wire types for the Jules API. Field names mirror the JSON schema of the
// v1alpha endpoints; everything here is owned by the remote service and only
// referenced locally.

type Source struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type SourceContext struct {
	Source            string             `json:"source"`
	GithubRepoContext *GithubRepoContext `json:"githubRepoContext,omitempty"`
}

type GithubRepoContext struct {
	StartingBranch string `json:"startingBranch"`
}

type Session struct {
	Name           string         `json:"name"`
	ID             string         `json:"id"`
	State          string         `json:"state,omitempty"`
	Title          string         `json:"title"`
	SourceContext  *SourceContext `json:"sourceContext,omitempty"`
	PullRequestURL string         `json:"pullRequestUrl,omitempty"`
}

// Activity is one ordered event in a session's history. Exactly one of the
// kind pointers is set per record.
type Activity struct {
	Name             string           `json:"name"`
	ID               string           `json:"id"`
	Title            string           `json:"title,omitempty"`
	CreateTime       string           `json:"createTime"`
	Originator       string           `json:"originator"`
	AgentMessaged    *AgentMessaged   `json:"agentMessaged,omitempty"`
	UserMessaged     *UserMessaged    `json:"userMessaged,omitempty"`
	ProgressUpdated  *ProgressUpdated `json:"progressUpdated,omitempty"`
	PlanGenerated    *PlanGenerated   `json:"planGenerated,omitempty"`
	PlanApproved     *PlanApproved    `json:"planApproved,omitempty"`
	SessionCompleted *struct{}        `json:"sessionCompleted,omitempty"`
	Artifacts        []Artifact       `json:"artifacts,omitempty"`
}

type AgentMessaged struct {
	AgentMessage string `json:"agentMessage"`
}

type UserMessaged struct {
	UserMessage string `json:"userMessage"`
}

type ProgressUpdated struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type PlanGenerated struct {
	Plan Plan `json:"plan"`
}

type PlanApproved struct {
	PlanID string `json:"planId,omitempty"`
}

type Plan struct {
	ID    string `json:"id"`
	Steps []Step `json:"steps"`
}

type Step struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type Artifact struct {
	BashOutput *BashOutput `json:"bashOutput,omitempty"`
	ChangeSet  *ChangeSet  `json:"changeSet,omitempty"`
}

type BashOutput struct {
	Command string `json:"command"`
	Output  string `json:"output"`
}

type ChangeSet struct {
	Source                 string   `json:"source"`
	GitPatch               GitPatch `json:"gitPatch"`
	SuggestedCommitMessage string   `json:"suggestedCommitMessage,omitempty"`
}

type GitPatch struct {
	UnidiffPatch string `json:"unidiffPatch,omitempty"`
	BaseCommitID string `json:"baseCommitId"`
}

type listSourcesResponse struct {
	Sources []Source `json:"sources"`
}

type listSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type listActivitiesResponse struct {
	Activities    []Activity `json:"activities"`
	NextPageToken string     `json:"nextPageToken,omitempty"`
}
