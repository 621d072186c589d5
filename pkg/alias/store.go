// Package alias persists the mapping from user-chosen names to durable
// remote session IDs. Names carry the leading '@' sentinel in stored form,
// matching what the user types.
package alias

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/juleshq/jules/pkg/logger"
)

var (
	ErrDuplicateAlias  = errors.New("alias already exists")
	ErrUnknownAlias    = errors.New("alias not found")
	ErrMissingSentinel = errors.New("alias must start with '@'")
)

// Alias binds a name to a session ID. Many aliases may point at the same
// session; an alias may outlive its session (dangling entries are resolved
// lazily and rejected by the remote service on use).
type Alias struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
}

// Store is the persisted alias table. Writes are serialized by an internal
// mutex and flushed immediately; concurrent processes sharing the same file
// are last-write-wins.
type Store struct {
	mu      sync.Mutex
	path    string
	entries []Alias
}

// Load reads the alias table at path. A missing file yields an empty store.
// An unparsable file is preserved under a .corrupt suffix and the store
// starts empty, with a warning; user data is never dropped silently.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read aliases file: %w", err)
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		corruptPath := path + ".corrupt"
		if renameErr := os.Rename(path, corruptPath); renameErr != nil {
			return nil, fmt.Errorf("aliases file is corrupt and could not be set aside: %w", renameErr)
		}
		logger.WarnCF("alias", "Aliases file is corrupt, starting with an empty table", map[string]any{
			"preserved": corruptPath,
			"error":     err.Error(),
		})
		s.entries = nil
	}

	return s, nil
}

// Add inserts a new alias and persists immediately.
func (s *Store) Add(name, sessionID string) error {
	if !strings.HasPrefix(name, "@") {
		return ErrMissingSentinel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateAlias, name)
		}
	}

	s.entries = append(s.entries, Alias{Name: name, SessionID: sessionID})
	if err := s.saveLocked(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return err
	}
	return nil
}

// Remove deletes an alias by name and persists.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.Name == name {
			removed := e
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			if err := s.saveLocked(); err != nil {
				s.entries = append(s.entries[:i], append([]Alias{removed}, s.entries[i:]...)...)
				return err
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownAlias, name)
}

// RemoveBySession deletes every alias bound to sessionID and persists.
// Returns the removed names.
func (s *Store) RemoveBySession(sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if e.SessionID == sessionID {
			removed = append(removed, e.Name)
			continue
		}
		kept = append(kept, e)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	prev := s.entries
	s.entries = kept
	if err := s.saveLocked(); err != nil {
		s.entries = prev
		return nil, err
	}
	return removed, nil
}

// Resolve returns the session ID bound to name.
func (s *Store) Resolve(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Name == name {
			return e.SessionID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownAlias, name)
}

// List returns all aliases in insertion order.
func (s *Store) List() []Alias {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Alias, len(s.entries))
	copy(out, s.entries)
	return out
}

// BySession returns alias names grouped by session ID.
func (s *Store) BySession() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	grouped := make(map[string][]string)
	for _, e := range s.entries {
		grouped[e.SessionID] = append(grouped[e.SessionID], e.Name)
	}
	return grouped
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "aliases-*.tmp")
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
