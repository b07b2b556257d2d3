package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RecurrencePattern classifies how an event repeats. Expansion into
// concrete occurrences is out of scope; the pattern is stored as-is.
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "daily"
	RecurrenceWeekly  RecurrencePattern = "weekly"
	RecurrenceMonthly RecurrencePattern = "monthly"
	RecurrenceYearly  RecurrencePattern = "yearly"
	RecurrenceCustom  RecurrencePattern = "custom"
)

// Valid reports whether the pattern is one of the known values.
func (p RecurrencePattern) Valid() bool {
	switch p {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly, RecurrenceCustom:
		return true
	}
	return false
}

var (
	ErrInvalidTimeWindow = errors.New("start_time must be before end_time")
	ErrInvalidRecurrence = errors.New("recurrence_pattern is required for recurring events and must be unset otherwise")
)

// Event is the current mutable projection of a calendar event. Every
// mutation also appends a snapshot to the event's version ledger.
type Event struct {
	ID                uuid.UUID          `json:"id" db:"id"`
	Title             string             `json:"title" db:"title"`
	Description       string             `json:"description" db:"description"`
	StartTime         time.Time          `json:"start_time" db:"start_time"`
	EndTime           time.Time          `json:"end_time" db:"end_time"`
	Location          *string            `json:"location" db:"location"`
	IsRecurring       bool               `json:"is_recurring" db:"is_recurring"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern" db:"recurrence_pattern"`
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date" db:"recurrence_end_date"`
	OwnerID           uuid.UUID          `json:"owner_id" db:"owner_id"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" db:"updated_at"`
}

// EventRequest carries the editable fields for event creation
type EventRequest struct {
	Title             string             `json:"title" validate:"required"`
	Description       string             `json:"description"`
	StartTime         time.Time          `json:"start_time" validate:"required"`
	EndTime           time.Time          `json:"end_time" validate:"required"`
	Location          *string            `json:"location"`
	IsRecurring       bool               `json:"is_recurring"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern"`
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date"`
}

// Validate enforces the time-window and recurrence invariants.
func (r *EventRequest) Validate() error {
	if !r.StartTime.Before(r.EndTime) {
		return ErrInvalidTimeWindow
	}
	if r.IsRecurring {
		if r.RecurrencePattern == nil || !r.RecurrencePattern.Valid() {
			return ErrInvalidRecurrence
		}
	} else if r.RecurrencePattern != nil || r.RecurrenceEndDate != nil {
		return ErrInvalidRecurrence
	}
	return nil
}

// EventUpdateRequest carries a partial update; nil fields keep their
// current values.
type EventUpdateRequest struct {
	Title             *string            `json:"title,omitempty"`
	Description       *string            `json:"description,omitempty"`
	StartTime         *time.Time         `json:"start_time,omitempty"`
	EndTime           *time.Time         `json:"end_time,omitempty"`
	Location          *string            `json:"location,omitempty"`
	IsRecurring       *bool              `json:"is_recurring,omitempty"`
	RecurrencePattern *RecurrencePattern `json:"recurrence_pattern,omitempty"`
	RecurrenceEndDate *time.Time         `json:"recurrence_end_date,omitempty"`
}

// Apply overlays the set fields onto the event.
func (r *EventUpdateRequest) Apply(event *Event) {
	if r.Title != nil {
		event.Title = *r.Title
	}
	if r.Description != nil {
		event.Description = *r.Description
	}
	if r.StartTime != nil {
		event.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		event.EndTime = *r.EndTime
	}
	if r.Location != nil {
		event.Location = r.Location
	}
	if r.IsRecurring != nil {
		event.IsRecurring = *r.IsRecurring
		// Turning recurrence off clears the stored pattern and end date;
		// a partial update has no other way to unset them.
		if !event.IsRecurring {
			event.RecurrencePattern = nil
			event.RecurrenceEndDate = nil
		}
	}
	if r.RecurrencePattern != nil {
		event.RecurrencePattern = r.RecurrencePattern
	}
	if r.RecurrenceEndDate != nil {
		event.RecurrenceEndDate = r.RecurrenceEndDate
	}
}

// Validate checks the invariants of the event that results from
// applying the update; event must already have the update applied.
func (e *Event) Validate() error {
	if !e.StartTime.Before(e.EndTime) {
		return ErrInvalidTimeWindow
	}
	if e.IsRecurring {
		if e.RecurrencePattern == nil || !e.RecurrencePattern.Valid() {
			return ErrInvalidRecurrence
		}
	} else if e.RecurrencePattern != nil || e.RecurrenceEndDate != nil {
		return ErrInvalidRecurrence
	}
	return nil
}

// BatchEventRequest wraps a list of events created in a single
// all-or-nothing call.
type BatchEventRequest struct {
	Events []EventRequest `json:"events" validate:"required,min=1,dive"`
}

// ListEventsQuery holds the filters for listing a user's events.
type ListEventsQuery struct {
	Skip      int
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
}
