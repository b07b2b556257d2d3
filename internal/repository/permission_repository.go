package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vishal-meena/NeoFi-Api/internal/models"
)

// PermissionRepository manages role grants keyed by (event, user).
// Re-granting replaces the role in place; there is never more than one
// row per pair.
type PermissionRepository interface {
	Share(ctx context.Context, eventID uuid.UUID, grants []models.PermissionRequest) error
	List(ctx context.Context, eventID uuid.UUID) ([]models.Permission, error)
	GetRole(ctx context.Context, eventID, userID uuid.UUID) (models.Role, error)
}

type permissionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db *sql.DB, log zerolog.Logger) PermissionRepository {
	return &permissionRepository{
		db:  db,
		log: log,
	}
}

// Share applies a batch of grants all-or-nothing: every referenced user
// is validated before any grant is written, and all upserts run in one
// transaction.
func (r *permissionRepository) Share(ctx context.Context, eventID uuid.UUID, grants []models.PermissionRequest) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Validate every grantee before touching the table.
	for _, grant := range grants {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
			grant.UserID,
		).Scan(&exists)
		if err != nil {
			r.log.Error().Err(err).Str("user_id", grant.UserID.String()).Msg("Failed to check grantee existence")
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
	}

	query := `
		INSERT INTO event_permissions (event_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT(event_id, user_id) DO UPDATE SET role = excluded.role
	`

	now := time.Now().UTC()
	for _, grant := range grants {
		if _, err := tx.ExecContext(ctx, query, eventID, grant.UserID, grant.Role, now); err != nil {
			r.log.Error().Err(err).
				Str("event_id", eventID.String()).
				Str("user_id", grant.UserID.String()).
				Msg("Failed to grant permission")
			return err
		}
	}

	return tx.Commit()
}

// List returns all grants for the event
func (r *permissionRepository) List(ctx context.Context, eventID uuid.UUID) ([]models.Permission, error) {
	query := `
		SELECT event_id, user_id, role, created_at
		FROM event_permissions
		WHERE event_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		r.log.Error().Err(err).Str("event_id", eventID.String()).Msg("Failed to list permissions")
		return nil, err
	}
	defer rows.Close()

	permissions := []models.Permission{}
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.EventID, &p.UserID, &p.Role, &p.CreatedAt); err != nil {
			r.log.Error().Err(err).Msg("Failed to scan permission")
			return nil, err
		}
		permissions = append(permissions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return permissions, nil
}

// GetRole returns the role granted to the user on the event, or
// RoleNone when no grant exists.
func (r *permissionRepository) GetRole(ctx context.Context, eventID, userID uuid.UUID) (models.Role, error) {
	query := `
		SELECT role
		FROM event_permissions
		WHERE event_id = $1 AND user_id = $2
	`

	var role models.Role
	err := r.db.QueryRowContext(ctx, query, eventID, userID).Scan(&role)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.RoleNone, nil
		}
		r.log.Error().Err(err).
			Str("event_id", eventID.String()).
			Str("user_id", userID.String()).
			Msg("Failed to get role")
		return models.RoleNone, err
	}

	return role, nil
}
