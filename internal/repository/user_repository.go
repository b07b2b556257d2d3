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

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type userRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, log zerolog.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log,
	}
}

// Create creates a new user in the database. Duplicate usernames and
// emails are rejected with dedicated errors.
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	exists, err := r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, user.Username)
	if err != nil {
		r.log.Error().Err(err).Str("username", user.Username).Msg("Failed to check username existence")
		return err
	}
	if exists {
		return ErrUsernameAlreadyExists
	}

	exists, err = r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, user.Email)
	if err != nil {
		r.log.Error().Err(err).Str("email", user.Email).Msg("Failed to check email existence")
		return err
	}
	if exists {
		return ErrEmailAlreadyExists
	}

	query := `
		INSERT INTO users (id, username, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Email,
		user.HashedPassword,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		r.log.Error().Err(err).Str("username", user.Username).Msg("Failed to create user")
		return err
	}

	return nil
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.get(ctx, `
		SELECT id, username, email, hashed_password, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
}

// GetByUsername retrieves a user by their username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.get(ctx, `
		SELECT id, username, email, hashed_password, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username)
}

func (r *userRepository) get(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.HashedPassword,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		r.log.Error().Err(err).Msg("Failed to get user")
		return nil, err
	}

	return &user, nil
}

func (r *userRepository) exists(ctx context.Context, query string, arg any) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists)
	return exists, err
}
