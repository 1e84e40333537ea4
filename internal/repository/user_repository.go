package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/model"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create adds a new user and returns its id
func (r *UserRepository) Create(ctx context.Context, user *model.UserRegister, passwordHash string) (int64, error) {
	query := `INSERT INTO users (username, email, password_hash, is_active, role, created_at)
	          VALUES ($1, $2, $3, TRUE, 'user', NOW())
	          RETURNING id`

	var id int64
	err := r.db.GetContext(ctx, &id, query, user.Username, user.Email, passwordHash)
	if err != nil {
		r.logger.Error("failed to create user", zap.Error(err))
		return 0, err
	}
	return id, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, username, email, password_hash, is_active, role, created_at, last_login_at
	          FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get user by ID", zap.Error(err), zap.Int64("id", id))
		return nil, err
	}
	return &user, nil
}

// GetByUsernameOrEmail retrieves a user matching either identifier
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*model.User, error) {
	query := `SELECT id, username, email, password_hash, is_active, role, created_at, last_login_at
	          FROM users WHERE username = $1 OR email = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, usernameOrEmail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get user", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin records the time of a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		r.logger.Error("failed to update last login", zap.Error(err), zap.Int64("id", id))
		return err
	}
	return nil
}
