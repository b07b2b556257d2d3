package models

import (
	"time"

	"github.com/google/uuid"
)

// EventVersion is an immutable snapshot of an event's editable fields.
// Versions are numbered 1..N per event and are never rewritten; the
// ledger is the audit trail for the event.
type EventVersion struct {
	ID                int64              `json:"id" db:"id"`
	EventID           uuid.UUID          `json:"event_id" db:"event_id"`
	Title             string             `json:"title" db:"title"`
	Description       string             `json:"description" db:"description"`
	StartTime         time.Time          `json:"start_time" db:"start_time"`
	EndTime           time.Time          `json:"end_time" db:"end_time"`
	Location          *string            `json:"location" db:"location"`
	IsRecurring       bool               `json:"is_recurring" db:"is_recurring"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern" db:"recurrence_pattern"`
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date" db:"recurrence_end_date"`
	ModifiedByID      uuid.UUID          `json:"modified_by_id" db:"modified_by_id"`
	VersionNumber     int                `json:"version_number" db:"version_number"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
}

// SnapshotOf copies the event's editable fields into a new version
// record attributed to the modifier. The version number is assigned
// when the snapshot is recorded.
func SnapshotOf(event *Event, modifierID uuid.UUID) *EventVersion {
	return &EventVersion{
		EventID:           event.ID,
		Title:             event.Title,
		Description:       event.Description,
		StartTime:         event.StartTime,
		EndTime:           event.EndTime,
		Location:          event.Location,
		IsRecurring:       event.IsRecurring,
		RecurrencePattern: event.RecurrencePattern,
		RecurrenceEndDate: event.RecurrenceEndDate,
		ModifiedByID:      modifierID,
	}
}

// ChangelogEntry is one line of an event's history, annotated with the
// modifier's username.
type ChangelogEntry struct {
	Version    int           `json:"version"`
	ModifiedBy string        `json:"modified_by"`
	ModifiedAt time.Time     `json:"modified_at"`
	Changes    VersionFields `json:"changes"`
}

// VersionFields is the tracked field set as rendered in changelogs.
type VersionFields struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	StartTime         time.Time          `json:"start_time"`
	EndTime           time.Time          `json:"end_time"`
	Location          *string            `json:"location"`
	IsRecurring       bool               `json:"is_recurring"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date"`
}

// DiffItem reports one field that differs between two versions.
type DiffItem struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// VersionDiff is the field-level comparison of two versions. OldValue
// always comes from Version1 and NewValue from Version2, regardless of
// their numeric order.
type VersionDiff struct {
	Version1    int        `json:"version1"`
	Version2    int        `json:"version2"`
	Differences []DiffItem `json:"differences"`
}
