// Package store keeps the local session-listing snapshot and the bot owner
// identity. The snapshot lets the resolver and shell completion work from a
// recent listing without a network round-trip; indices refer to positions in
// this snapshot and are not stable across re-listings.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/logger"
)

// CachedSession is the subset of a remote session persisted locally.
type CachedSession struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	SourceContext *api.SourceContext `json:"sourceContext,omitempty"`
}

// SessionStore persists the most recent listing snapshot. Single writer per
// process; cross-process writers are last-write-wins.
type SessionStore struct {
	mu       sync.Mutex
	path     string
	sessions []CachedSession
}

func LoadSessions(path string) (*SessionStore, error) {
	s := &SessionStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read sessions file: %w", err)
	}

	if err := json.Unmarshal(data, &s.sessions); err != nil {
		corruptPath := path + ".corrupt"
		if renameErr := os.Rename(path, corruptPath); renameErr != nil {
			return nil, fmt.Errorf("sessions file is corrupt and could not be set aside: %w", renameErr)
		}
		logger.WarnCF("store", "Sessions file is corrupt, starting with an empty snapshot", map[string]any{
			"preserved": corruptPath,
			"error":     err.Error(),
		})
		s.sessions = nil
	}

	return s, nil
}

// Sync reconciles the snapshot with a live listing: cached entries whose
// session no longer exists are dropped, new sessions are appended. Existing
// order is preserved so indices shift as little as deletions allow.
func (s *SessionStore) Sync(live []api.Session) ([]CachedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	liveIDs := make(map[string]struct{}, len(live))
	for _, session := range live {
		liveIDs[session.ID] = struct{}{}
	}

	kept := s.sessions[:0:0]
	cachedIDs := make(map[string]struct{}, len(s.sessions))
	for _, cs := range s.sessions {
		if _, ok := liveIDs[cs.ID]; !ok {
			continue
		}
		kept = append(kept, cs)
		cachedIDs[cs.ID] = struct{}{}
	}

	for _, session := range live {
		if _, ok := cachedIDs[session.ID]; ok {
			continue
		}
		kept = append(kept, CachedSession{
			ID:            session.ID,
			Title:         session.Title,
			SourceContext: session.SourceContext,
		})
	}

	prev := s.sessions
	s.sessions = kept
	if err := s.saveLocked(); err != nil {
		s.sessions = prev
		return nil, err
	}

	out := make([]CachedSession, len(kept))
	copy(out, kept)
	return out, nil
}

// Add appends one session to the snapshot (used right after create, so the
// new session is resolvable before the next full listing).
func (s *SessionStore) Add(session api.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cs := range s.sessions {
		if cs.ID == session.ID {
			return nil
		}
	}

	s.sessions = append(s.sessions, CachedSession{
		ID:            session.ID,
		Title:         session.Title,
		SourceContext: session.SourceContext,
	})
	if err := s.saveLocked(); err != nil {
		s.sessions = s.sessions[:len(s.sessions)-1]
		return err
	}
	return nil
}

// Remove drops a session from the snapshot by ID.
func (s *SessionStore) Remove(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.sessions[:0:0]
	removed := false
	for _, cs := range s.sessions {
		if cs.ID == sessionID {
			removed = true
			continue
		}
		kept = append(kept, cs)
	}
	if !removed {
		return nil
	}

	prev := s.sessions
	s.sessions = kept
	if err := s.saveLocked(); err != nil {
		s.sessions = prev
		return err
	}
	return nil
}

// List returns the snapshot in stored order.
func (s *SessionStore) List() []CachedSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CachedSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Listing converts the snapshot into api.Session values for the resolver.
func (s *SessionStore) Listing() []api.Session {
	cached := s.List()
	listing := make([]api.Session, 0, len(cached))
	for _, cs := range cached {
		listing = append(listing, api.Session{
			Name:          "sessions/" + cs.ID,
			ID:            cs.ID,
			Title:         cs.Title,
			SourceContext: cs.SourceContext,
		})
	}
	return listing
}

func (s *SessionStore) saveLocked() error {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "sessions-*.tmp")
	if err != nil {
		return err
	}

	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// ReadOwnerChat returns the persisted Telegram owner chat ID, or "" when none
// has been captured yet.
func ReadOwnerChat(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read owner chat file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteOwnerChat persists the Telegram owner chat ID.
func WriteOwnerChat(path, chatID string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(chatID), 0o600)
}
