package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/models"
)

// diffFields is the fixed comparison order for version diffs.
var diffFields = []string{
	"title",
	"description",
	"start_time",
	"end_time",
	"location",
	"is_recurring",
	"recurrence_pattern",
	"recurrence_end_date",
}

// VersionRepository is the append-only ledger of event snapshots.
// Record runs inside the caller's transaction so that a snapshot and
// the event mutation it belongs to commit or roll back together.
type VersionRepository interface {
	Record(ctx context.Context, tx *sql.Tx, version *models.EventVersion) (int, error)
	Get(ctx context.Context, eventID uuid.UUID, number int) (*models.EventVersion, error)
	GetTx(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, number int) (*models.EventVersion, error)
	Changelog(ctx context.Context, eventID uuid.UUID) ([]models.ChangelogEntry, error)
	Diff(ctx context.Context, eventID uuid.UUID, v1, v2 int) (*models.VersionDiff, error)
}

type versionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *sql.DB, log zerolog.Logger) VersionRepository {
	return &versionRepository{
		db:  db,
		log: log,
	}
}

// Record assigns the next version number for the event and inserts the
// snapshot. Reading MAX(version_number) and inserting happen in the
// caller's transaction; the UNIQUE(event_id, version_number) index is
// the backstop if two transactions ever interleave.
func (r *versionRepository) Record(ctx context.Context, tx *sql.Tx, version *models.EventVersion) (int, error) {
	var current sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(version_number) FROM event_versions WHERE event_id = $1`,
		version.EventID,
	).Scan(&current)
	if err != nil {
		r.log.Error().Err(err).Str("event_id", version.EventID.String()).Msg("Failed to read current version number")
		return 0, err
	}

	version.VersionNumber = int(current.Int64) + 1
	version.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO event_versions (
			event_id, title, description, start_time, end_time, location,
			is_recurring, recurrence_pattern, recurrence_end_date,
			modified_by_id, version_number, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	res, err := tx.ExecContext(ctx, query,
		version.EventID,
		version.Title,
		version.Description,
		version.StartTime,
		version.EndTime,
		nullString(version.Location),
		version.IsRecurring,
		nullPattern(version.RecurrencePattern),
		nullTime(version.RecurrenceEndDate),
		version.ModifiedByID,
		version.VersionNumber,
		version.CreatedAt,
	)
	if err != nil {
		r.log.Error().Err(err).
			Str("event_id", version.EventID.String()).
			Int("version", version.VersionNumber).
			Msg("Failed to record version")
		return 0, err
	}

	if id, err := res.LastInsertId(); err == nil {
		version.ID = id
	}

	return version.VersionNumber, nil
}

// Get retrieves a snapshot by event and version number
func (r *versionRepository) Get(ctx context.Context, eventID uuid.UUID, number int) (*models.EventVersion, error) {
	return r.getFrom(ctx, r.db, eventID, number)
}

// GetTx is Get inside an open transaction
func (r *versionRepository) GetTx(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, number int) (*models.EventVersion, error) {
	return r.getFrom(ctx, tx, eventID, number)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *versionRepository) getFrom(ctx context.Context, q rowQuerier, eventID uuid.UUID, number int) (*models.EventVersion, error) {
	query := `
		SELECT id, event_id, title, description, start_time, end_time, location,
		       is_recurring, recurrence_pattern, recurrence_end_date,
		       modified_by_id, version_number, created_at
		FROM event_versions
		WHERE event_id = $1 AND version_number = $2
	`

	version, err := scanVersion(q.QueryRowContext(ctx, query, eventID, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		r.log.Error().Err(err).
			Str("event_id", eventID.String()).
			Int("version", number).
			Msg("Failed to get version")
		return nil, err
	}

	return version, nil
}

// Changelog returns all snapshots for the event in ascending version
// order, each annotated with the modifier's username. "Unknown" stands
// in when the user record no longer exists.
func (r *versionRepository) Changelog(ctx context.Context, eventID uuid.UUID) ([]models.ChangelogEntry, error) {
	query := `
		SELECT v.version_number, u.username, v.created_at,
		       v.title, v.description, v.start_time, v.end_time, v.location,
		       v.is_recurring, v.recurrence_pattern, v.recurrence_end_date
		FROM event_versions v
		LEFT JOIN users u ON u.id = v.modified_by_id
		WHERE v.event_id = $1
		ORDER BY v.version_number ASC
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		r.log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to load changelog")
		return nil, err
	}
	defer rows.Close()

	var entries []models.ChangelogEntry
	for rows.Next() {
		var (
			entry    models.ChangelogEntry
			username sql.NullString
			location sql.NullString
			pattern  sql.NullString
			endDate  sql.NullTime
		)
		if err := rows.Scan(
			&entry.Version,
			&username,
			&entry.ModifiedAt,
			&entry.Changes.Title,
			&entry.Changes.Description,
			&entry.Changes.StartTime,
			&entry.Changes.EndTime,
			&location,
			&entry.Changes.IsRecurring,
			&pattern,
			&endDate,
		); err != nil {
			r.log.Error().Err(err).Msg("Failed to scan changelog entry")
			return nil, err
		}

		entry.ModifiedBy = "Unknown"
		if username.Valid {
			entry.ModifiedBy = username.String
		}
		entry.Changes.Location = fromNullString(location)
		entry.Changes.RecurrencePattern = fromNullPattern(pattern)
		entry.Changes.RecurrenceEndDate = fromNullTime(endDate)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Diff compares two snapshots field by field. Output follows the fixed
// field order; old values come from v1, new values from v2, even when
// v1 is the later version.
func (r *versionRepository) Diff(ctx context.Context, eventID uuid.UUID, v1, v2 int) (*models.VersionDiff, error) {
	a, err := r.Get(ctx, eventID, v1)
	if err != nil {
		return nil, err
	}
	b, err := r.Get(ctx, eventID, v2)
	if err != nil {
		return nil, err
	}

	diff := &models.VersionDiff{
		Version1:    v1,
		Version2:    v2,
		Differences: []models.DiffItem{},
	}

	for _, field := range diffFields {
		oldVal, newVal := fieldValue(a, field), fieldValue(b, field)
		if !valuesEqual(oldVal, newVal) {
			diff.Differences = append(diff.Differences, models.DiffItem{
				Field:    field,
				OldValue: oldVal,
				NewValue: newVal,
			})
		}
	}

	return diff, nil
}

func fieldValue(v *models.EventVersion, field string) any {
	switch field {
	case "title":
		return v.Title
	case "description":
		return v.Description
	case "start_time":
		return v.StartTime
	case "end_time":
		return v.EndTime
	case "location":
		return v.Location
	case "is_recurring":
		return v.IsRecurring
	case "recurrence_pattern":
		return v.RecurrencePattern
	case "recurrence_end_date":
		return v.RecurrenceEndDate
	}
	return nil
}

// valuesEqual compares tracked field values, treating nil pointers as
// equal to each other and time values by instant rather than location.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		return av == b.(string)
	case bool:
		return av == b.(bool)
	case time.Time:
		return av.Equal(b.(time.Time))
	case *string:
		bv := b.(*string)
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return *av == *bv
	case *models.RecurrencePattern:
		bv := b.(*models.RecurrencePattern)
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return *av == *bv
	case *time.Time:
		bv := b.(*time.Time)
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return av.Equal(*bv)
	}
	return a == b
}

func scanVersion(row *sql.Row) (*models.EventVersion, error) {
	var (
		version  models.EventVersion
		location sql.NullString
		pattern  sql.NullString
		endDate  sql.NullTime
	)
	err := row.Scan(
		&version.ID,
		&version.EventID,
		&version.Title,
		&version.Description,
		&version.StartTime,
		&version.EndTime,
		&location,
		&version.IsRecurring,
		&pattern,
		&endDate,
		&version.ModifiedByID,
		&version.VersionNumber,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	version.Location = fromNullString(location)
	version.RecurrencePattern = fromNullPattern(pattern)
	version.RecurrenceEndDate = fromNullTime(endDate)

	return &version, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullPattern(p *models.RecurrencePattern) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func fromNullPattern(s sql.NullString) *models.RecurrencePattern {
	if !s.Valid {
		return nil
	}
	p := models.RecurrencePattern(s.String)
	return &p
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
