package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Vishal-meena/NeoFi-Api/internal/models"
)

func TestGetVersionNotFound(t *testing.T) {
	repos := openTestRepos(t)
	owner := seedUser(t, repos, "alice")
	event := seedEvent(t, repos, owner, "Standup")

	if _, err := repos.versions.Get(context.Background(), event.ID, 2); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestDiffAgainstSelfIsEmpty(t *testing.T) {
	repos := openTestRepos(t)
	owner := seedUser(t, repos, "alice")
	event := seedEvent(t, repos, owner, "Standup")

	diff, err := repos.versions.Diff(context.Background(), event.ID, 1, 1)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if len(diff.Differences) != 0 {
		t.Fatalf("expected empty diff, got %+v", diff.Differences)
	}
}

func TestDiffIsDirectional(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	owner := seedUser(t, repos, "alice")
	event := seedEvent(t, repos, owner, "Standup")

	if _, err := repos.events.Update(ctx, event.ID, &models.EventUpdateRequest{
		Title:    strptr("Daily Standup"),
		Location: strptr("Room 4"),
	}, owner.ID); err != nil {
		t.Fatalf("update: %v", err)
	}

	forward, err := repos.versions.Diff(ctx, event.ID, 1, 2)
	if err != nil {
		t.Fatalf("diff 1,2: %v", err)
	}
	backward, err := repos.versions.Diff(ctx, event.ID, 2, 1)
	if err != nil {
		t.Fatalf("diff 2,1: %v", err)
	}

	if len(forward.Differences) != 2 || len(backward.Differences) != 2 {
		t.Fatalf("expected 2 changed fields each way, got %d and %d",
			len(forward.Differences), len(backward.Differences))
	}

	// Same set of fields, old/new swapped. No normalization by number.
	for i := range forward.Differences {
		f, b := forward.Differences[i], backward.Differences[i]
		if f.Field != b.Field {
			t.Fatalf("field order differs between directions: %q vs %q", f.Field, b.Field)
		}
		if f.Field == "title" {
			if f.OldValue != "Standup" || f.NewValue != "Daily Standup" {
				t.Fatalf("forward title diff wrong: %+v", f)
			}
			if b.OldValue != "Daily Standup" || b.NewValue != "Standup" {
				t.Fatalf("backward title diff wrong: %+v", b)
			}
		}
	}
}

func TestDiffFollowsFixedFieldOrder(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	owner := seedUser(t, repos, "alice")
	event := seedEvent(t, repos, owner, "Standup")

	newEnd := event.EndTime.Add(time.Hour)
	if _, err := repos.events.Update(ctx, event.ID, &models.EventUpdateRequest{
		Title:       strptr("Planning"),
		Description: strptr("longer session"),
		EndTime:     &newEnd,
		Location:    strptr("Room 4"),
	}, owner.ID); err != nil {
		t.Fatalf("update: %v", err)
	}

	diff, err := repos.versions.Diff(ctx, event.ID, 1, 2)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	want := []string{"title", "description", "end_time", "location"}
	if len(diff.Differences) != len(want) {
		t.Fatalf("expected %d differences, got %+v", len(want), diff.Differences)
	}
	for i, field := range want {
		if diff.Differences[i].Field != field {
			t.Fatalf("expected %q at position %d, got %q", field, i, diff.Differences[i].Field)
		}
	}
}

func TestDiffMissingVersion(t *testing.T) {
	repos := openTestRepos(t)
	owner := seedUser(t, repos, "alice")
	event := seedEvent(t, repos, owner, "Standup")

	if _, err := repos.versions.Diff(context.Background(), event.ID, 1, 9); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestChangelogOrderAndAttribution(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	owner := seedUser(t, repos, "alice")
	editor := seedUser(t, repos, "bob")
	event := seedEvent(t, repos, owner, "Standup")

	if _, err := repos.events.Update(ctx, event.ID, &models.EventUpdateRequest{Title: strptr("Daily Standup")}, editor.ID); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, err := repos.versions.Changelog(ctx, event.ID)
	if err != nil {
		t.Fatalf("changelog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ModifiedBy != "alice" || entries[1].ModifiedBy != "bob" {
		t.Fatalf("wrong attribution: %q, %q", entries[0].ModifiedBy, entries[1].ModifiedBy)
	}
	if entries[0].Changes.Title != "Standup" || entries[1].Changes.Title != "Daily Standup" {
		t.Fatalf("wrong changelog contents")
	}
}

func TestChangelogUnknownModifier(t *testing.T) {
	repos := openTestRepos(t)
	ctx := context.Background()
	owner := seedUser(t, repos, "alice")
	event := seedEvent(t, repos, owner, "Standup")

	// A modifier id with no user row behind it renders as "Unknown".
	if _, err := repos.events.Update(ctx, event.ID, &models.EventUpdateRequest{Title: strptr("Edited")}, uuid.New()); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, err := repos.versions.Changelog(ctx, event.ID)
	if err != nil {
		t.Fatalf("changelog: %v", err)
	}
	if entries[1].ModifiedBy != "Unknown" {
		t.Fatalf("expected Unknown modifier, got %q", entries[1].ModifiedBy)
	}
}
