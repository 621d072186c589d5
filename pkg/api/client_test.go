package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("", ""); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("NewClient without key = %v, want ErrAPIKeyMissing", err)
	}
}

func TestNewClientDefaultBaseURL(t *testing.T) {
	c, err := NewClient("key", "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}

	c, err = NewClient("key", "https://example.test/v1/")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != "https://example.test/v1" {
		t.Errorf("trailing slash not stripped: %q", c.baseURL)
	}
}

func TestRequestCarriesAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		fmt.Fprint(w, `{"sessions": []}`)
	}))
	defer server.Close()

	c, err := NewClient("secret-key", server.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.ListSessions(context.Background()); err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if gotKey != "secret-key" {
		t.Errorf("x-goog-api-key = %q", gotKey)
	}
}

func TestListSessions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"sessions": [{"id": "s1", "title": "First"}, {"id": "s2", "title": "Second"}]}`)
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "s1" || sessions[1].Title != "Second" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such session", http.StatusNotFound)
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	_, err := c.GetSession(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *Error: %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d", apiErr.Status)
	}
}

func TestCreateSessionBody(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		fmt.Fprint(w, `{"id": "new-session", "title": "my task"}`)
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	session, err := c.CreateSession(context.Background(), "sources/repo", "main", "my task", true)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.ID != "new-session" {
		t.Errorf("session.ID = %q", session.ID)
	}

	if got["prompt"] != "my task" || got["title"] != "my task" {
		t.Errorf("prompt/title = %v / %v", got["prompt"], got["title"])
	}
	if got["automationMode"] != "AUTO_CREATE_PR" {
		t.Errorf("automationMode = %v", got["automationMode"])
	}
	sc, _ := got["sourceContext"].(map[string]any)
	if sc["source"] != "sources/repo" {
		t.Errorf("sourceContext = %v", sc)
	}
	repo, _ := sc["githubRepoContext"].(map[string]any)
	if repo["startingBranch"] != "main" {
		t.Errorf("githubRepoContext = %v", repo)
	}
}

func TestCreateSessionWithoutAutoPR(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"id": "new-session"}`)
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	if _, err := c.CreateSession(context.Background(), "sources/repo", "main", "t", false); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, present := got["automationMode"]; present {
		t.Error("automationMode must be omitted when auto-PR is off")
	}
}

func TestFetchActivitiesFollowsPagination(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("page_token")
		tokens = append(tokens, token)
		switch token {
		case "":
			fmt.Fprint(w, `{"activities": [{"id": "a1"}, {"id": "a2"}], "nextPageToken": "page2"}`)
		case "page2":
			fmt.Fprint(w, `{"activities": [{"id": "a3"}]}`)
		default:
			t.Errorf("unexpected page token %q", token)
		}
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	activities, resume, err := c.FetchActivities(context.Background(), "s1", "")
	if err != nil {
		t.Fatalf("FetchActivities failed: %v", err)
	}

	if len(activities) != 3 {
		t.Fatalf("got %d activities, want 3", len(activities))
	}
	for i, want := range []string{"a1", "a2", "a3"} {
		if activities[i].ID != want {
			t.Errorf("activities[%d].ID = %q, want %q (server order must be preserved)", i, activities[i].ID, want)
		}
	}
	if len(tokens) != 2 || tokens[0] != "" || tokens[1] != "page2" {
		t.Errorf("pagination requests = %v", tokens)
	}
	if resume != "page2" {
		t.Errorf("resume token = %q, want the token that requested the final page", resume)
	}
}

func TestFetchActivitiesResumesFromToken(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.URL.Query().Get("page_token"))
		fmt.Fprint(w, `{"activities": [{"id": "a3"}, {"id": "a4"}]}`)
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	activities, resume, err := c.FetchActivities(context.Background(), "s1", "page2")
	if err != nil {
		t.Fatalf("FetchActivities failed: %v", err)
	}

	if len(tokens) != 1 || tokens[0] != "page2" {
		t.Errorf("requests = %v, want a single fetch starting at page2", tokens)
	}
	if len(activities) != 2 {
		t.Errorf("got %d activities, want 2 (only the resumed page)", len(activities))
	}
	if resume != "page2" {
		t.Errorf("resume token = %q, want page2 kept while it is still the final page", resume)
	}
}

func TestSendMessageBody(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/s1:sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	if err := c.SendMessage(context.Background(), "s1", "please continue"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if got["prompt"] != "please continue" {
		t.Errorf("prompt = %v", got["prompt"])
	}
}

func TestDeleteSession(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c, _ := NewClient("key", server.URL)
	if err := c.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/sessions/s1" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}
