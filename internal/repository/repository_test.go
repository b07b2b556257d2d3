package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/database"
	"github.com/Vishal-meena/NeoFi-Api/internal/models"
)

type testRepos struct {
	users    UserRepository
	events   EventRepository
	versions VersionRepository
	perms    PermissionRepository
}

func openTestRepos(t *testing.T) *testRepos {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := zerolog.Nop()
	versions := NewVersionRepository(db.DB(), log)

	return &testRepos{
		users:    NewUserRepository(db.DB(), log),
		events:   NewEventRepository(db.DB(), versions, log),
		versions: versions,
		perms:    NewPermissionRepository(db.DB(), log),
	}
}

func seedUser(t *testing.T, repos *testRepos, username string) *models.User {
	t.Helper()

	user := &models.User{
		ID:             uuid.New(),
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: "not-a-real-hash",
	}
	if err := repos.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func seedEvent(t *testing.T, repos *testRepos, owner *models.User, title string) *models.Event {
	t.Helper()

	event := &models.Event{
		ID:          uuid.New(),
		Title:       title,
		Description: "a description",
		StartTime:   time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
		OwnerID:     owner.ID,
	}
	if err := repos.events.Create(context.Background(), event); err != nil {
		t.Fatalf("seed event %s: %v", title, err)
	}
	return event
}

func strptr(s string) *string { return &s }

func boolptr(b bool) *bool { return &b }

func timeptr(t time.Time) *time.Time { return &t }
