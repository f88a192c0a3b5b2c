// Package progress owns the learner's progress record on the device: loading
// and saving it, importing legacy drafts, holding the claimed identity,
// deriving completion figures and keeping the record in step with the
// remote store.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/repository"
)

// Well-known keys in the local key/value store
const (
	ProgressKey = "studytrail.progress"
	IdentityKey = "studytrail.identity"
)

// KeyValueStore is the local string-keyed persistence the store writes through.
// Get returns repository.ErrNotFound for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store loads and saves the whole progress record under ProgressKey
type Store struct {
	kv     KeyValueStore
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a store over kv
func NewStore(kv KeyValueStore, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger, now: time.Now}
}

// Load returns a structurally valid record. Missing, corrupt or malformed data
// is replaced by a fresh record which is persisted straight away; a read error
// yields a fresh record without overwriting what is stored.
func (s *Store) Load(ctx context.Context) *models.CurriculumProgress {
	raw, err := s.kv.Get(ctx, ProgressKey)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Info("no saved progress, starting fresh")
		return s.fresh(ctx)
	case err != nil:
		s.logger.Warn("failed to read saved progress, continuing with a fresh record", zap.Error(err))
		return models.NewCurriculumProgress(s.now())
	}

	p, err := models.DecodeProgress([]byte(raw))
	if err != nil {
		s.logger.Warn("saved progress is malformed, replacing it", zap.Error(err))
		return s.fresh(ctx)
	}
	return p
}

// Save overwrites the stored record with p
func (s *Store) Save(ctx context.Context, p *models.CurriculumProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := s.kv.Put(ctx, ProgressKey, string(data)); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// Reset replaces the stored record with a fresh one and returns it
func (s *Store) Reset(ctx context.Context) (*models.CurriculumProgress, error) {
	p := models.NewCurriculumProgress(s.now())
	return p, s.Save(ctx, p)
}

func (s *Store) fresh(ctx context.Context) *models.CurriculumProgress {
	p := models.NewCurriculumProgress(s.now())
	if err := s.Save(ctx, p); err != nil {
		s.logger.Warn("failed to persist fresh progress", zap.Error(err))
	}
	return p
}
