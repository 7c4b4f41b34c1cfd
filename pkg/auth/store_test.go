package auth

import (
	"errors"
	"testing"

	"github.com/agrigrow/agrichat/pkg/api"
)

func testCredential() Credential {
	return Credential{
		Token: "tok-123",
		User:  api.User{ID: "u1", FullName: "Farm Er", Email: "farmer@example.com"},
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Save(testCredential()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	cred, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cred.Token != "tok-123" {
		t.Errorf("unexpected token %q", cred.Token)
	}
	if cred.User.Email != "farmer@example.com" {
		t.Errorf("unexpected user %+v", cred.User)
	}
}

func TestStore_LoadWithoutCredential(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.Load(); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("expected ErrNotLoggedIn, got %v", err)
	}
}

func TestStore_SaveRejectsEmptyToken(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Save(Credential{}); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(t.TempDir())

	// Clearing with nothing saved is a no-op.
	if err := store.Clear(); err != nil {
		t.Errorf("clear on empty store failed: %v", err)
	}

	if err := store.Save(testCredential()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("expected ErrNotLoggedIn after clear, got %v", err)
	}
}
