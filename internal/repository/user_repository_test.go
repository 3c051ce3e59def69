package repository

import (
	"errors"
	"strings"
	"testing"

	"auth-core-service/internal/domain"
)

func TestUserRegisterWritesCredentials(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := &domain.User{GroupID: 10}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create anonymous user: %v", err)
	}
	if u.UUID == "" {
		t.Fatal("expected generated uuid")
	}

	registered, err := repo.Register(u.ID, "player@example.com", "hashed")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.UsernameValue() != "player@example.com" {
		t.Fatalf("unexpected username: %q", registered.UsernameValue())
	}
	if registered.PasswordHash == nil || *registered.PasswordHash != "hashed" {
		t.Fatal("expected password hash persisted")
	}
}

func TestUserRegisterUnknownID(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	if _, err := repo.Register(999, "ghost@example.com", "hashed"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserFindByUsernameScopedToGroup(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := &domain.User{GroupID: 1, Username: strPtr("15551230000")}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := repo.FindByUsername("15551230000", 1); err != nil {
		t.Fatalf("find in group: %v", err)
	}
	if _, err := repo.FindByUsername("15551230000", 2); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound in other group, got %v", err)
	}
}

func TestUserDeactivateTombstonesUsername(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := &domain.User{GroupID: 1, Username: strPtr("old@example.com")}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.Deactivate(u.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if !got.Deactivated {
		t.Fatal("expected deactivated flag set")
	}
	if got.DeletedAt == nil {
		t.Fatal("expected deleted_at set")
	}
	if !strings.Contains(got.UsernameValue(), "__deleted__") {
		t.Fatalf("expected tombstoned username, got %q", got.UsernameValue())
	}

	// The identity is free to be claimed again.
	if _, err := repo.FindLiveByUsername("old@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected tombstoned user invisible to live lookup, got %v", err)
	}
	fresh := &domain.User{GroupID: 1, Username: strPtr("old@example.com")}
	if err := repo.Create(fresh); err != nil {
		t.Fatalf("re-claim username: %v", err)
	}
}

func TestUserSaveRefreshToken(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := &domain.User{GroupID: 1, Username: strPtr("legacy@example.com")}
	if err := repo.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := repo.SaveRefreshToken(u.ID, strPtr("opaque-token")); err != nil {
		t.Fatalf("save refresh token: %v", err)
	}
	got, err := repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.RefreshToken == nil || *got.RefreshToken != "opaque-token" {
		t.Fatal("expected refresh token persisted")
	}
	if err := repo.SaveRefreshToken(u.ID, nil); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	got, err = repo.FindByID(u.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if got.RefreshToken != nil {
		t.Fatal("expected refresh token cleared on logout")
	}
}
