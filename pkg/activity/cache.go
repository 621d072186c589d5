// Package activity caches fetched session activity on disk so history can be
// listed without a network round-trip and so the poller can tell new records
// from ones already seen.
package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/juleshq/jules/pkg/api"
	"github.com/juleshq/jules/pkg/logger"
)

// entry is the on-disk record for one session. The activity sequence is
// append-only relative to what has been fetched; PageToken is the pagination
// cursor the next fetch resumes from, so polls only walk pages added since
// the last merge.
type entry struct {
	SessionID  string         `json:"session_id"`
	Activities []api.Activity `json:"activities"`
	PageToken  string         `json:"page_token,omitempty"`
}

// Cache is the persisted per-session activity log. One file per session under
// dir. The cache never evicts; activity volume per session is small and
// unbounded retention is a deliberate simplicity choice.
//
// Merge performs a read-modify-write on the stored sequence, so calls for the
// same session must be serialized by the caller (the poller holds a keyed
// lock around each fetch-then-merge cycle). The internal mutex only protects
// the cache's own table against torn writes.
type Cache struct {
	mu  sync.Mutex
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create activity cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Merge folds fetched into the stored sequence for sessionID and returns the
// records not seen before, in server order. Re-fetching the same batch is
// idempotent: the second call returns nothing new. A batch that is not a
// superset of the stored sequence (pagination drift) never truncates the
// cache; the union is kept, ordered by create time. pageToken is the cursor
// the fetch stopped at and is persisted alongside, so the next fetch resumes
// there instead of re-walking the history.
func (c *Cache) Merge(sessionID string, fetched []api.Activity, pageToken string) ([]api.Activity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.loadLocked(sessionID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(e.Activities))
	for _, a := range e.Activities {
		seen[a.ID] = struct{}{}
	}

	var fresh []api.Activity
	for _, a := range fetched {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		e.Activities = append(e.Activities, a)
		fresh = append(fresh, a)
	}

	if len(fresh) == 0 && pageToken == e.PageToken {
		return nil, nil
	}

	sortActivities(e.Activities)
	e.PageToken = pageToken

	if err := c.saveLocked(e); err != nil {
		return nil, err
	}
	return fresh, nil
}

// History returns the full cached sequence for sessionID, oldest first.
func (c *Cache) History(sessionID string) ([]api.Activity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.loadLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return e.Activities, nil
}

// PageToken returns the pagination cursor the next fetch should resume from,
// or "" for an unknown session (fetch from the start).
func (c *Cache) PageToken(sessionID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.loadLocked(sessionID)
	if err != nil {
		return "", err
	}
	return e.PageToken, nil
}

// Delete removes the cached history for sessionID.
func (c *Cache) Delete(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path, err := c.entryPath(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Activities are ordered by server-assigned create time; ID breaks ties so
// the order is total and stable across merges.
func sortActivities(activities []api.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		if activities[i].CreateTime != activities[j].CreateTime {
			return activities[i].CreateTime < activities[j].CreateTime
		}
		return activities[i].ID < activities[j].ID
	})
}

func (c *Cache) loadLocked(sessionID string) (*entry, error) {
	path, err := c.entryPath(sessionID)
	if err != nil {
		return nil, err
	}

	e := &entry{SessionID: sessionID}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, fmt.Errorf("read activity cache: %w", err)
	}

	if err := sonic.Unmarshal(data, e); err != nil {
		corruptPath := path + ".corrupt"
		if renameErr := os.Rename(path, corruptPath); renameErr != nil {
			return nil, fmt.Errorf("activity cache for %s is corrupt and could not be set aside: %w", sessionID, renameErr)
		}
		logger.WarnCF("activity", "Activity cache file is corrupt, starting empty for session", map[string]any{
			"session_id": sessionID,
			"preserved":  corruptPath,
			"error":      err.Error(),
		})
		return &entry{SessionID: sessionID}, nil
	}

	return e, nil
}

func (c *Cache) saveLocked(e *entry) error {
	path, err := c.entryPath(e.SessionID)
	if err != nil {
		return err
	}

	data, err := sonic.Marshal(e)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(c.dir, "activity-*.tmp")
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
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// sanitizeFilename makes a session ID safe as a filename. ':' is the volume
// separator on Windows and '/' would escape the cache dir.
func sanitizeFilename(sessionID string) string {
	replaced := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(sessionID)
	return replaced
}

func (c *Cache) entryPath(sessionID string) (string, error) {
	filename := sanitizeFilename(sessionID)
	if filename == "" || filename == "." || !filepath.IsLocal(filename) {
		return "", os.ErrInvalid
	}
	return filepath.Join(c.dir, filename+".json"), nil
}
