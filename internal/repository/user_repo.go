package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studytrail/internal/database"
	"studytrail/internal/models"
)

// UserRepository handles database operations for claimed usernames
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser claims username, failing with ErrUsernameTaken if it already exists
func (r *UserRepository) CreateUser(ctx context.Context, username, tokenID string) (*models.User, error) {
	existing, err := r.GetUser(ctx, username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	now := time.Now().UTC()
	query := `INSERT INTO users (username, token_id, created_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, username, tokenID, now); err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &models.User{Username: username, TokenID: tokenID, CreatedAt: now}, nil
}

// GetUser retrieves a user by username, or ErrNotFound
func (r *UserRepository) GetUser(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT username, token_id, created_at FROM users WHERE username = ?`
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.Username, &user.TokenID, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateTokenID records the id of the most recently issued token
func (r *UserRepository) UpdateTokenID(ctx context.Context, username, tokenID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET token_id = ? WHERE username = ?`, tokenID, username)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
