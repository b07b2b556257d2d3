package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/models"
)

// EventRepository defines the interface for event data access. Every
// mutation records a snapshot in the version ledger within the same
// transaction, so an event row and its history can never diverge.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	CreateBatch(ctx context.Context, events []*models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Update(ctx context.Context, id uuid.UUID, updateReq *models.EventUpdateRequest, modifierID uuid.UUID) (*models.Event, error)
	Rollback(ctx context.Context, id uuid.UUID, versionNumber int, modifierID uuid.UUID) (*models.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, q models.ListEventsQuery) ([]*models.Event, error)
}

type eventRepository struct {
	db       *sql.DB
	versions VersionRepository
	log      zerolog.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sql.DB, versions VersionRepository, log zerolog.Logger) EventRepository {
	return &eventRepository{
		db:       db,
		versions: versions,
		log:      log,
	}
}

// Create inserts a new event and records version 1, atomically.
func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.insert(ctx, tx, event); err != nil {
		return err
	}

	if _, err := r.versions.Record(ctx, tx, models.SnapshotOf(event, event.OwnerID)); err != nil {
		return err
	}

	return tx.Commit()
}

// CreateBatch inserts every event with its version-1 snapshot inside a
// single transaction. Any failure leaves nothing persisted.
func (r *eventRepository) CreateBatch(ctx context.Context, events []*models.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, event := range events {
		if err := r.insert(ctx, tx, event); err != nil {
			return err
		}
		if _, err := r.versions.Record(ctx, tx, models.SnapshotOf(event, event.OwnerID)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *eventRepository) insert(ctx context.Context, tx *sql.Tx, event *models.Event) error {
	query := `
		INSERT INTO events (
			id, title, description, start_time, end_time, location,
			is_recurring, recurrence_pattern, recurrence_end_date,
			owner_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := tx.ExecContext(ctx, query,
		event.ID,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		nullString(event.Location),
		event.IsRecurring,
		nullPattern(event.RecurrencePattern),
		nullTime(event.RecurrenceEndDate),
		event.OwnerID,
		event.CreatedAt,
		event.UpdatedAt,
	)

	if err != nil {
		r.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to create event")
		return err
	}

	return nil
}

// GetByID retrieves an event by its ID
func (r *eventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	return r.getFrom(ctx, r.db, id)
}

func (r *eventRepository) getFrom(ctx context.Context, q rowQuerier, id uuid.UUID) (*models.Event, error) {
	query := `
		SELECT id, title, description, start_time, end_time, location,
		       is_recurring, recurrence_pattern, recurrence_end_date,
		       owner_id, created_at, updated_at
		FROM events
		WHERE id = $1
	`

	event, err := scanEvent(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		r.log.Error().Err(err).Str("event_id", id.String()).Msg("Failed to get event by ID")
		return nil, err
	}

	return event, nil
}

// Update applies the set fields of the partial update and records a
// snapshot of the full resulting field set, all in one transaction.
func (r *eventRepository) Update(ctx context.Context, id uuid.UUID, updateReq *models.EventUpdateRequest, modifierID uuid.UUID) (*models.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	event, err := r.getFrom(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	updateReq.Apply(event)
	if err := event.Validate(); err != nil {
		return nil, err
	}

	if err := r.store(ctx, tx, event); err != nil {
		return nil, err
	}

	if _, err := r.versions.Record(ctx, tx, models.SnapshotOf(event, modifierID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return event, nil
}

// Rollback restores the event's editable fields from a past snapshot
// and records the result as a new forward version. History only grows.
func (r *eventRepository) Rollback(ctx context.Context, id uuid.UUID, versionNumber int, modifierID uuid.UUID) (*models.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	event, err := r.getFrom(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	target, err := r.versions.GetTx(ctx, tx, id, versionNumber)
	if err != nil {
		return nil, err
	}

	event.Title = target.Title
	event.Description = target.Description
	event.StartTime = target.StartTime
	event.EndTime = target.EndTime
	event.Location = target.Location
	event.IsRecurring = target.IsRecurring
	event.RecurrencePattern = target.RecurrencePattern
	event.RecurrenceEndDate = target.RecurrenceEndDate

	if err := r.store(ctx, tx, event); err != nil {
		return nil, err
	}

	if _, err := r.versions.Record(ctx, tx, models.SnapshotOf(event, modifierID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return event, nil
}

func (r *eventRepository) store(ctx context.Context, tx *sql.Tx, event *models.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, start_time = $3, end_time = $4,
		    location = $5, is_recurring = $6, recurrence_pattern = $7,
		    recurrence_end_date = $8, updated_at = $9
		WHERE id = $10
	`

	event.UpdatedAt = time.Now().UTC()

	_, err := tx.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.StartTime,
		event.EndTime,
		nullString(event.Location),
		event.IsRecurring,
		nullPattern(event.RecurrencePattern),
		nullTime(event.RecurrenceEndDate),
		event.UpdatedAt,
		event.ID,
	)

	if err != nil {
		r.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to update event")
		return err
	}

	return nil
}

// Delete removes an event; its versions and permission grants cascade.
func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM events WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.log.Error().Err(err).Str("event_id", id.String()).Msg("Failed to delete event")
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to get rows affected for event delete")
		return err
	}

	if rowsAffected == 0 {
		return ErrEventNotFound
	}

	return nil
}

// ListByOwner lists a user's events with optional time-range filters
// and pagination. The limit is clamped to [1, 100].
func (r *eventRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, q models.ListEventsQuery) ([]*models.Event, error) {
	query := `
		SELECT id, title, description, start_time, end_time, location,
		       is_recurring, recurrence_pattern, recurrence_end_date,
		       owner_id, created_at, updated_at
		FROM events
		WHERE owner_id = $1
	`
	args := []any{ownerID}

	if q.StartDate != nil {
		query += ` AND start_time >= $` + strconv.Itoa(len(args)+1)
		args = append(args, *q.StartDate)
	}
	if q.EndDate != nil {
		query += ` AND end_time <= $` + strconv.Itoa(len(args)+1)
		args = append(args, *q.EndDate)
	}

	limit := q.Limit
	if limit < 1 {
		limit = 100
	}
	if limit > 100 {
		limit = 100
	}
	skip := q.Skip
	if skip < 0 {
		skip = 0
	}

	query += ` ORDER BY start_time ASC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error().Err(err).Str("owner_id", ownerID.String()).Msg("Failed to list events")
		return nil, err
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event, err := scanEventRows(rows)
		if err != nil {
			r.log.Error().Err(err).Msg("Failed to scan event")
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func scanEvent(row *sql.Row) (*models.Event, error) {
	var (
		event    models.Event
		location sql.NullString
		pattern  sql.NullString
		endDate  sql.NullTime
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.StartTime,
		&event.EndTime,
		&location,
		&event.IsRecurring,
		&pattern,
		&endDate,
		&event.OwnerID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Location = fromNullString(location)
	event.RecurrencePattern = fromNullPattern(pattern)
	event.RecurrenceEndDate = fromNullTime(endDate)

	return &event, nil
}

func scanEventRows(rows *sql.Rows) (*models.Event, error) {
	var (
		event    models.Event
		location sql.NullString
		pattern  sql.NullString
		endDate  sql.NullTime
	)
	err := rows.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.StartTime,
		&event.EndTime,
		&location,
		&event.IsRecurring,
		&pattern,
		&endDate,
		&event.OwnerID,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Location = fromNullString(location)
	event.RecurrencePattern = fromNullPattern(pattern)
	event.RecurrenceEndDate = fromNullTime(endDate)

	return &event, nil
}

