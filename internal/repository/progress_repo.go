package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studytrail/internal/database"
)

// ProgressRow is a serialized remote progress record
type ProgressRow struct {
	Username  string
	Payload   []byte
	UpdatedAt time.Time
}

// ProgressRepository stores whole progress records keyed by username
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// GetProgress returns the serialized record for username, or ErrNotFound
func (r *ProgressRepository) GetProgress(ctx context.Context, username string) ([]byte, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM progress WHERE username = ?`, username).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return []byte(payload), nil
}

// PutProgress replaces the record for username
func (r *ProgressRepository) PutProgress(ctx context.Context, username string, payload []byte) error {
	query := r.db.GetDialect().UpsertQuery("progress", "username", "payload", "updated_at")
	if _, err := r.db.ExecContext(ctx, query, username, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// ListProgress returns every stored record ordered by username
func (r *ProgressRepository) ListProgress(ctx context.Context) ([]ProgressRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT username, payload, updated_at FROM progress ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var out []ProgressRow
	for rows.Next() {
		var row ProgressRow
		var payload string
		if err := rows.Scan(&row.Username, &payload, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		row.Payload = []byte(payload)
		out = append(out, row)
	}
	return out, rows.Err()
}
