package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/juleshq/jules/pkg/api"
)

func TestSyncDropsDeadAndAppendsNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}

	for _, id := range []string{"one", "two", "three"} {
		if err := s.Add(api.Session{ID: id, Title: "t-" + id}); err != nil {
			t.Fatalf("Add(%s) failed: %v", id, err)
		}
	}

	// "two" died remotely, "four" is new.
	live := []api.Session{
		{ID: "three", Title: "t-three"},
		{ID: "one", Title: "t-one"},
		{ID: "four", Title: "t-four"},
	}

	synced, err := s.Sync(live)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	wantOrder := []string{"one", "three", "four"}
	if len(synced) != len(wantOrder) {
		t.Fatalf("Sync returned %d sessions, want %d", len(synced), len(wantOrder))
	}
	for i, want := range wantOrder {
		if synced[i].ID != want {
			t.Errorf("synced[%d].ID = %q, want %q (cached order must survive, new entries last)", i, synced[i].ID, want)
		}
	}
}

func TestSyncEmptyListingClearsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if err := s.Add(api.Session{ID: "one"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	synced, err := s.Sync(nil)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(synced) != 0 {
		t.Errorf("Sync(nil) kept %d sessions, want 0", len(synced))
	}
}

func TestAddIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}

	if err := s.Add(api.Session{ID: "one", Title: "first"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(api.Session{ID: "one", Title: "first"}); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}
	if got := s.List(); len(got) != 1 {
		t.Errorf("List after double Add = %d entries, want 1", len(got))
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if err := s.Remove("never-seen"); err != nil {
		t.Errorf("Remove of unknown session = %v, want nil", err)
	}
}

func TestSnapshotSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if err := s.Add(api.Session{ID: "one", Title: "first"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	reloaded, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := reloaded.List()
	if len(got) != 1 || got[0].ID != "one" || got[0].Title != "first" {
		t.Errorf("reloaded snapshot = %v", got)
	}
}

func TestCorruptSnapshotIsPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	if err := os.WriteFile(path, []byte("[broken"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions of corrupt file failed: %v", err)
	}
	if got := s.List(); len(got) != 0 {
		t.Errorf("corrupt load yielded %d entries, want 0", len(got))
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("corrupt file was not preserved: %v", err)
	}
}

func TestListingMirrorsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := LoadSessions(path)
	if err != nil {
		t.Fatalf("LoadSessions failed: %v", err)
	}
	if err := s.Add(api.Session{ID: "one", Title: "first"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	listing := s.Listing()
	if len(listing) != 1 {
		t.Fatalf("Listing returned %d sessions, want 1", len(listing))
	}
	if listing[0].ID != "one" || listing[0].Title != "first" {
		t.Errorf("Listing[0] = %+v", listing[0])
	}
}

func TestOwnerChatRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owner_chat_id")

	got, err := ReadOwnerChat(path)
	if err != nil {
		t.Fatalf("ReadOwnerChat on missing file failed: %v", err)
	}
	if got != "" {
		t.Errorf("missing owner chat file read as %q, want empty", got)
	}

	if err := WriteOwnerChat(path, "123456789"); err != nil {
		t.Fatalf("WriteOwnerChat failed: %v", err)
	}
	got, err = ReadOwnerChat(path)
	if err != nil {
		t.Fatalf("ReadOwnerChat failed: %v", err)
	}
	if got != "123456789" {
		t.Errorf("ReadOwnerChat = %q, want 123456789", got)
	}
}
