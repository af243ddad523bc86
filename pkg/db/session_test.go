package db

import (
	"path/filepath"
	"testing"
	"time"

	"Ripple/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

func TestLoad_EmptyStore(t *testing.T) {
	store := openTestStore(t)

	user, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user != nil {
		t.Errorf("Expected nil identity from empty store, got %+v", user)
	}
}

func TestSaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	saved := models.User{
		ID:         "alice-1",
		Name:       "Alice",
		Avatar:     "https://example.test/alice.png",
		Status:     models.PresenceOnline,
		LastActive: time.Now().Truncate(time.Second),
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	user, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user == nil {
		t.Fatal("Expected saved identity, got nil")
	}
	if user.ID != saved.ID || user.Name != saved.Name || user.Status != saved.Status {
		t.Errorf("Loaded identity does not match saved: %+v", user)
	}
}

func TestSave_ReplacesPrevious(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save(models.User{ID: "alice", Name: "Alice"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(models.User{ID: "bob", Name: "Bob"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	user, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user == nil || user.ID != "bob" {
		t.Errorf("Expected the later identity to win, got %+v", user)
	}
}

func TestClear(t *testing.T) {
	store := openTestStore(t)

	if err := store.Save(models.User{ID: "alice", Name: "Alice"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	user, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user != nil {
		t.Errorf("Expected no identity after clear, got %+v", user)
	}

	// Clearing an empty store is fine.
	if err := store.Clear(); err != nil {
		t.Errorf("Clear on empty store failed: %v", err)
	}
}
