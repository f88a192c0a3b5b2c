package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studytrail/internal/database"
	"studytrail/internal/models"
	"studytrail/internal/reconcile"
	"studytrail/internal/repository"
)

const backupVersion = "1.0"

// BackupData represents the complete remote store backup structure
type BackupData struct {
	Version      string                  `json:"version"`
	ExportedAt   time.Time               `json:"exported_at"`
	DatabaseType string                  `json:"database_type"`
	Users        []UserBackup            `json:"users"`
	Progress     []models.ProgressRecord `json:"progress"`
}

// UserBackup represents a claimed username for backup. Tokens are not exported;
// learners re-claim after a restore.
type UserBackup struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ImportReport counts what an import did
type ImportReport struct {
	UsersCreated   int
	RecordsCreated int
	RecordsMerged  int
	RecordsSkipped int
}

// BackupService handles remote store export and merge-import
type BackupService struct {
	db     *database.DB
	logger *zap.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, logger *zap.Logger) *BackupService {
	return &BackupService{db: db, logger: logger}
}

// Export writes every claimed username and progress record to w as JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.MigrationsSubdir(),
		Users:        []UserBackup{},
		Progress:     []models.ProgressRecord{},
	}

	if err := s.exportUsers(ctx, backup); err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	if err := s.exportProgress(ctx, backup); err != nil {
		return nil, fmt.Errorf("failed to export progress: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	s.logger.Info("remote store exported",
		zap.Int("users", len(backup.Users)),
		zap.Int("records", len(backup.Progress)))
	return backup, nil
}

func (s *BackupService) exportUsers(ctx context.Context, backup *BackupData) error {
	rows, err := s.db.QueryContext(ctx, "SELECT username, created_at FROM users ORDER BY username")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var u UserBackup
		if err := rows.Scan(&u.Username, &u.CreatedAt); err != nil {
			return err
		}
		backup.Users = append(backup.Users, u)
	}
	return rows.Err()
}

func (s *BackupService) exportProgress(ctx context.Context, backup *BackupData) error {
	rows, err := repository.NewProgressRepository(s.db).ListProgress(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		p, err := models.DecodeProgress(row.Payload)
		if err != nil {
			s.logger.Warn("skipping malformed stored progress", zap.String("username", row.Username), zap.Error(err))
			continue
		}
		backup.Progress = append(backup.Progress, models.ProgressRecord{
			Username:  row.Username,
			Progress:  p,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return nil
}

// Import reads a backup from r and merges it into the store in one
// transaction. Existing records are joined with the backup, never replaced,
// so importing cannot lose progress.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	report := &ImportReport{}
	err := s.db.WithinTx(ctx, func(tx *database.Tx) error {
		users := repository.NewUserRepository(tx)
		progress := repository.NewProgressRepository(tx)

		for _, u := range backup.Users {
			created, err := ensureUser(ctx, users, u.Username)
			if err != nil {
				return err
			}
			if created {
				report.UsersCreated++
			}
		}

		for _, record := range backup.Progress {
			if record.Progress == nil || record.Progress.Validate() != nil {
				s.logger.Warn("skipping malformed backup record", zap.String("username", record.Username))
				report.RecordsSkipped++
				continue
			}
			created, err := ensureUser(ctx, users, record.Username)
			if err != nil {
				return err
			}
			if created {
				report.UsersCreated++
			}

			merged, existed, err := mergeStored(ctx, progress, record)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(merged)
			if err != nil {
				return err
			}
			if err := progress.PutProgress(ctx, record.Username, payload); err != nil {
				return err
			}
			if existed {
				report.RecordsMerged++
			} else {
				report.RecordsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", err)
	}

	s.logger.Info("remote store imported",
		zap.Int("users_created", report.UsersCreated),
		zap.Int("records_created", report.RecordsCreated),
		zap.Int("records_merged", report.RecordsMerged),
		zap.Int("records_skipped", report.RecordsSkipped))
	return report, nil
}

func ensureUser(ctx context.Context, users *repository.UserRepository, username string) (bool, error) {
	_, err := users.CreateUser(ctx, username, uuid.NewString())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrUsernameTaken):
		return false, nil
	default:
		return false, err
	}
}

func mergeStored(ctx context.Context, progress *repository.ProgressRepository, record models.ProgressRecord) (*models.CurriculumProgress, bool, error) {
	payload, err := progress.GetProgress(ctx, record.Username)
	if errors.Is(err, repository.ErrNotFound) {
		return record.Progress, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	stored, err := models.DecodeProgress(payload)
	if err != nil {
		return record.Progress, true, nil
	}
	return reconcile.Merge(stored, record.Progress), true, nil
}
