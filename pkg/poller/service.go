// Package poller periodically fetches session activity from the remote
// service, merges it into the activity cache, and hands newly discovered
// records to a notification sink.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/juleshq/jules/pkg/activity"
	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/logger"
)

// Client is the slice of the remote API the poller consumes.
type Client interface {
	ListSessions(ctx context.Context) ([]api.Session, error)
	FetchActivities(ctx context.Context, sessionID, pageToken string) ([]api.Activity, string, error)
}

// NotifyFunc receives records never delivered before, oldest first. It is
// called at most once per record across all poll triggers for a session.
type NotifyFunc func(session api.Session, records []api.Activity)

// Service drives the fetch-merge-notify cycle. A fixed-interval ticker
// retries failed sessions on the next tick; there is no backoff. Failures in
// one session never block the others in the same tick.
//
// All fetch-then-merge cycles for a session, scheduled or user-triggered, go
// through PollOnce, which holds a per-session lock. The cache merge stays the
// single de-duplication authority, and two racing triggers cannot both see
// the same record as new.
type Service struct {
	client   Client
	cache    *activity.Cache
	interval time.Duration
	notify   NotifyFunc

	locks    sync.Map // sessionID -> *sync.Mutex
	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewService(client Client, cache *activity.Cache, interval time.Duration, notify NotifyFunc) *Service {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Service{
		client:   client,
		cache:    cache,
		interval: interval,
		notify:   notify,
		stopChan: make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled or Stop is called.
// In-flight cycles complete; no new cycles start after shutdown.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		logger.InfoCF("poller", "Polling started", map[string]any{
			"interval": s.interval.String(),
		})

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop signals shutdown and waits for in-flight cycles to finish.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Service) tick(ctx context.Context) {
	cycleID := uuid.NewString()

	sessions, err := s.client.ListSessions(ctx)
	if err != nil {
		logger.ErrorCF("poller", "Failed to list sessions", map[string]any{
			"cycle": cycleID,
			"error": err.Error(),
		})
		return
	}

	for _, session := range sessions {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		default:
		}

		if _, err := s.PollOnce(ctx, session); err != nil {
			// Isolated per session; the next tick retries.
			logger.ErrorCF("poller", "Poll cycle failed for session", map[string]any{
				"cycle":      cycleID,
				"session_id": session.ID,
				"error":      err.Error(),
			})
		}
	}
}

// PollOnce runs one fetch-then-merge cycle for session and notifies any new
// records. Cycles for the same session are serialized; cycles for different
// sessions proceed in parallel.
func (s *Service) PollOnce(ctx context.Context, session api.Session) ([]api.Activity, error) {
	mu := s.sessionLock(session.ID)
	mu.Lock()
	defer mu.Unlock()

	pageToken, err := s.cache.PageToken(session.ID)
	if err != nil {
		return nil, err
	}

	fetched, resumeToken, err := s.client.FetchActivities(ctx, session.ID, pageToken)
	if err != nil {
		return nil, err
	}

	fresh, err := s.cache.Merge(session.ID, fetched, resumeToken)
	if err != nil {
		return nil, err
	}

	if len(fresh) > 0 && s.notify != nil {
		s.notify(session, fresh)
	}
	return fresh, nil
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return v.(*sync.Mutex)
}
