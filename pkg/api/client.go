package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://jules.googleapis.com/v1alpha"

// ErrAPIKeyMissing is returned by NewClient when no credential is available.
var ErrAPIKeyMissing = errors.New("API key is missing")

// Error is a non-2xx response from the remote service.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("API error: %d - %s", e.Status, e.Body)
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to the Jules API. It is safe for concurrent use; a token
// bucket smooths request bursts from the poller and user commands sharing
// one client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Status: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

func (c *Client) ListSources(ctx context.Context) ([]Source, error) {
	body, err := c.do(ctx, http.MethodGet, "/sources", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp listSourcesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse sources response: %w", err)
	}
	return resp.Sources, nil
}

func (c *Client) GetSource(ctx context.Context, id string) (*Source, error) {
	body, err := c.do(ctx, http.MethodGet, "/sources/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var source Source
	if err := json.Unmarshal(body, &source); err != nil {
		return nil, fmt.Errorf("parse source response: %w", err)
	}
	return &source, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp listSessionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse sessions response: %w", err)
	}
	return resp.Sessions, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}
	return &session, nil
}

// CreateSession starts a new remote session on source at branch. When autoPR
// is set the service opens a pull request on completion.
func (c *Client) CreateSession(ctx context.Context, source, branch, title string, autoPR bool) (*Session, error) {
	reqBody := map[string]any{
		"prompt": title,
		"title":  title,
		"sourceContext": map[string]any{
			"source": source,
			"githubRepoContext": map[string]any{
				"startingBranch": branch,
			},
		},
	}
	if autoPR {
		reqBody["automationMode"] = "AUTO_CREATE_PR"
	}

	body, err := c.do(ctx, http.MethodPost, "/sessions", nil, reqBody)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}
	return &session, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
	return err
}

func (c *Client) ApprovePlan(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/sessions/"+id+":approvePlan", nil, map[string]any{})
	return err
}

func (c *Client) SendMessage(ctx context.Context, id, prompt string) error {
	_, err := c.do(ctx, http.MethodPost, "/sessions/"+id+":sendMessage", nil, map[string]any{"prompt": prompt})
	return err
}

func (c *Client) GetActivity(ctx context.Context, sessionID, id string) (*Activity, error) {
	body, err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/activities/"+id, nil, nil)
	if err != nil {
		return nil, err
	}

	var activity Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("parse activity response: %w", err)
	}
	return &activity, nil
}

// FetchActivities returns session activity starting at pageToken (the whole
// history when empty), following nextPageToken pagination to exhaustion. The
// returned resume token is the token that requested the final page: a later
// call starting there re-fetches only that page plus anything newer, so
// incremental polls never walk the full history again. The final page is
// re-fetched on purpose since the server may still append to it; the cache
// merge drops the overlap.
func (c *Client) FetchActivities(ctx context.Context, sessionID, pageToken string) ([]Activity, string, error) {
	var all []Activity

	for {
		current := pageToken

		query := url.Values{}
		if current != "" {
			query.Set("page_token", current)
		}

		body, err := c.do(ctx, http.MethodGet, "/sessions/"+sessionID+"/activities", query, nil)
		if err != nil {
			return nil, "", err
		}

		var resp listActivitiesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, "", fmt.Errorf("parse activities response: %w", err)
		}

		all = append(all, resp.Activities...)
		if resp.NextPageToken == "" {
			return all, current, nil
		}
		pageToken = resp.NextPageToken
	}
}
