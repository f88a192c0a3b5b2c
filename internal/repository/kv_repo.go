package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studytrail/internal/database"
)

// KeyValueRepository is the local string-keyed store backing the learner's device
type KeyValueRepository struct {
	db database.DBTX
}

// NewKeyValueRepository creates a new key/value repository
func NewKeyValueRepository(db database.DBTX) *KeyValueRepository {
	return &KeyValueRepository{db: db}
}

// Get returns the value stored under key, or ErrNotFound
func (r *KeyValueRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, nil
}

// Put stores value under key, replacing any previous value
func (r *KeyValueRepository) Put(ctx context.Context, key, value string) error {
	query := r.db.GetDialect().UpsertQuery("kv_store", "key", "value", "updated_at")
	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (r *KeyValueRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}
