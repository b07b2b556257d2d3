package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/Vishal-meena/NeoFi-Api/internal/models"
)

func TestCreateUserAndGet(t *testing.T) {
	repos := openTestRepos(t)
	user := seedUser(t, repos, "alice")

	byID, err := repos.users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Username != "alice" {
		t.Fatalf("unexpected username: %q", byID.Username)
	}

	byName, err := repos.users.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.ID != user.ID {
		t.Fatalf("unexpected id: %v", byName.ID)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repos := openTestRepos(t)
	seedUser(t, repos, "alice")

	err := repos.users.Create(context.Background(), &models.User{
		ID:             uuid.New(),
		Username:       "alice",
		Email:          "other@example.com",
		HashedPassword: "x",
	})
	if !errors.Is(err, ErrUsernameAlreadyExists) {
		t.Fatalf("expected ErrUsernameAlreadyExists, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	repos := openTestRepos(t)
	seedUser(t, repos, "alice")

	err := repos.users.Create(context.Background(), &models.User{
		ID:             uuid.New(),
		Username:       "alice2",
		Email:          "alice@example.com",
		HashedPassword: "x",
	})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	repos := openTestRepos(t)

	if _, err := repos.users.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repos.users.GetByUsername(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
