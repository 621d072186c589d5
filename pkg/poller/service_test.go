package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juleshq/jules/pkg/activity"
	"github.com/juleshq/jules/pkg/api"
)

type fakeClient struct {
	mu          sync.Mutex
	sessions    []api.Session
	activities  map[string][]api.Activity
	resumeToken map[string]string
	failFetch   map[string]error
	fetchCount  map[string]int
	gotTokens   map[string][]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		activities:  make(map[string][]api.Activity),
		resumeToken: make(map[string]string),
		failFetch:   make(map[string]error),
		fetchCount:  make(map[string]int),
		gotTokens:   make(map[string][]string),
	}
}

func (f *fakeClient) ListSessions(_ context.Context) ([]api.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Session(nil), f.sessions...), nil
}

func (f *fakeClient) FetchActivities(_ context.Context, sessionID, pageToken string) ([]api.Activity, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCount[sessionID]++
	f.gotTokens[sessionID] = append(f.gotTokens[sessionID], pageToken)
	if err := f.failFetch[sessionID]; err != nil {
		return nil, "", err
	}
	return append([]api.Activity(nil), f.activities[sessionID]...), f.resumeToken[sessionID], nil
}

func (f *fakeClient) setActivities(sessionID string, acts []api.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities[sessionID] = acts
}

type recordingSink struct {
	mu    sync.Mutex
	calls []struct {
		session api.Session
		records []api.Activity
	}
}

func (r *recordingSink) notify(session api.Session, records []api.Activity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		session api.Session
		records []api.Activity
	}{session, records})
}

func (r *recordingSink) delivered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, c := range r.calls {
		for _, rec := range c.records {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

func agentActivity(id, createTime string) api.Activity {
	return api.Activity{
		ID:            id,
		CreateTime:    createTime,
		Originator:    "agent",
		AgentMessaged: &api.AgentMessaged{AgentMessage: "msg " + id},
	}
}

func TestPollOnceNotifiesNewRecords(t *testing.T) {
	client := newFakeClient()
	client.setActivities("sessions/s1", []api.Activity{
		agentActivity("a1", "2026-08-30T10:00:00Z"),
	})

	cache, err := activity.NewCache(t.TempDir())
	require.NoError(t, err)

	sink := &recordingSink{}
	svc := NewService(client, cache, time.Minute, sink.notify)

	fresh, err := svc.PollOnce(context.Background(), api.Session{ID: "sessions/s1"})
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, []string{"a1"}, sink.delivered())
}

func TestPollOnceDeliversAtMostOnce(t *testing.T) {
	client := newFakeClient()
	client.setActivities("sessions/s1", []api.Activity{
		agentActivity("a1", "2026-08-30T10:00:00Z"),
	})

	cache, err := activity.NewCache(t.TempDir())
	require.NoError(t, err)

	sink := &recordingSink{}
	svc := NewService(client, cache, time.Minute, sink.notify)
	session := api.Session{ID: "sessions/s1"}

	// Racing triggers for the same session: however the cycles interleave,
	// every record is delivered exactly once.
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.PollOnce(context.Background(), session)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"a1"}, sink.delivered())
}

func TestPollOnceIsolatesFailures(t *testing.T) {
	client := newFakeClient()
	client.sessions = []api.Session{
		{ID: "sessions/bad"},
		{ID: "sessions/good"},
	}
	client.failFetch["sessions/bad"] = errors.New("remote unavailable")
	client.setActivities("sessions/good", []api.Activity{
		agentActivity("g1", "2026-08-30T10:00:00Z"),
	})

	cache, err := activity.NewCache(t.TempDir())
	require.NoError(t, err)

	sink := &recordingSink{}
	svc := NewService(client, cache, time.Minute, sink.notify)

	svc.tick(context.Background())

	assert.Equal(t, []string{"g1"}, sink.delivered(),
		"a failing session must not block the healthy one")
}

func TestPollOnceRetriesAfterFailure(t *testing.T) {
	client := newFakeClient()
	client.failFetch["sessions/s1"] = errors.New("transient")

	cache, err := activity.NewCache(t.TempDir())
	require.NoError(t, err)

	sink := &recordingSink{}
	svc := NewService(client, cache, time.Minute, sink.notify)
	session := api.Session{ID: "sessions/s1"}

	_, err = svc.PollOnce(context.Background(), session)
	require.Error(t, err)
	assert.Empty(t, sink.delivered())

	client.mu.Lock()
	delete(client.failFetch, "sessions/s1")
	client.activities["sessions/s1"] = []api.Activity{
		agentActivity("a1", "2026-08-30T10:00:00Z"),
	}
	client.mu.Unlock()

	_, err = svc.PollOnce(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, sink.delivered())
}

func TestPollOnceResumesFromStoredCursor(t *testing.T) {
	client := newFakeClient()
	client.setActivities("sessions/s1", []api.Activity{
		agentActivity("a1", "2026-08-30T10:00:00Z"),
	})
	client.mu.Lock()
	client.resumeToken["sessions/s1"] = "page3"
	client.mu.Unlock()

	cache, err := activity.NewCache(t.TempDir())
	require.NoError(t, err)

	svc := NewService(client, cache, time.Minute, nil)
	session := api.Session{ID: "sessions/s1"}

	_, err = svc.PollOnce(context.Background(), session)
	require.NoError(t, err)
	_, err = svc.PollOnce(context.Background(), session)
	require.NoError(t, err)

	client.mu.Lock()
	tokens := client.gotTokens["sessions/s1"]
	client.mu.Unlock()

	// First cycle starts from scratch; the second resumes at the cursor the
	// first one stored instead of re-walking the history.
	require.Len(t, tokens, 2)
	assert.Equal(t, "", tokens[0])
	assert.Equal(t, "page3", tokens[1])
}

func TestStopIsIdempotentAndWaits(t *testing.T) {
	client := newFakeClient()
	cache, err := activity.NewCache(t.TempDir())
	require.NoError(t, err)

	svc := NewService(client, cache, 10*time.Millisecond, nil)
	svc.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	svc.Stop()
	svc.Stop()
}

func TestStartStopsOnContextCancel(t *testing.T) {
	client := newFakeClient()
	cache, err := activity.NewCache(t.TempDir())
	require.NoError(t, err)

	svc := NewService(client, cache, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		svc.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("polling loop did not exit after context cancellation")
	}
}

func TestNewServiceIntervalFloor(t *testing.T) {
	svc := NewService(newFakeClient(), nil, 0, nil)
	assert.Equal(t, 30*time.Second, svc.interval)
}
