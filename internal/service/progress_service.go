package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/repository"
)

// ProgressStore is the persistence behind remote progress records
type ProgressStore interface {
	GetProgress(ctx context.Context, username string) ([]byte, error)
	PutProgress(ctx context.Context, username string, payload []byte) error
}

// ProgressCache is an optional read cache in front of the store. Writes go
// through Set; read fills use SetNX so a fill never replaces a newer write.
type ProgressCache interface {
	Get(ctx context.Context, username string) ([]byte, error)
	Set(ctx context.Context, username string, payload []byte) error
	SetNX(ctx context.Context, username string, payload []byte) (bool, error)
	Invalidate(ctx context.Context, username string) error
}

// ProgressService reads and replaces whole remote progress records
type ProgressService struct {
	store  ProgressStore
	users  UserStore
	cache  ProgressCache
	logger *zap.Logger
}

// NewProgressService creates a progress service. cache may be nil.
func NewProgressService(store ProgressStore, users UserStore, cache ProgressCache, logger *zap.Logger) *ProgressService {
	return &ProgressService{store: store, users: users, cache: cache, logger: logger}
}

// Get returns the serialized record for username, or ErrNotFound
func (s *ProgressService) Get(ctx context.Context, username string) ([]byte, error) {
	if s.cache != nil {
		if payload, err := s.cache.Get(ctx, username); err == nil {
			return payload, nil
		}
	}

	payload, err := s.store.GetProgress(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if _, err := s.cache.SetNX(ctx, username, payload); err != nil {
			s.logger.Warn("failed to cache progress", zap.String("username", username), zap.Error(err))
		}
	}
	return payload, nil
}

// Put validates payload and replaces the record for username. A malformed
// payload returns models.ErrInvalidProgress; an unclaimed username ErrNotFound.
func (s *ProgressService) Put(ctx context.Context, username string, payload []byte) error {
	p, err := models.DecodeProgress(payload)
	if err != nil {
		return err
	}
	if _, err := s.users.GetUser(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	canonical, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := s.store.PutProgress(ctx, username, canonical); err != nil {
		return err
	}

	if s.cache != nil {
		s.writeThrough(ctx, username, canonical)
	}
	return nil
}

// writeThrough replaces the cached record; when that fails the entry is
// dropped so readers fall back to the store
func (s *ProgressService) writeThrough(ctx context.Context, username string, payload []byte) {
	err := s.cache.Set(ctx, username, payload)
	if err == nil {
		return
	}
	s.logger.Warn("failed to cache written progress", zap.String("username", username), zap.Error(err))
	if err := s.cache.Invalidate(ctx, username); err != nil {
		s.logger.Warn("failed to invalidate cached progress", zap.String("username", username), zap.Error(err))
	}
}
