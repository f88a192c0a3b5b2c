package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"studytrail/internal/catalog"
	"studytrail/internal/config"
	"studytrail/internal/database"
	"studytrail/internal/logger"
	"studytrail/internal/models"
	"studytrail/internal/progress"
	"studytrail/internal/remote"
	"studytrail/internal/repository"
)

// Session wires the local store, tracker, identity and syncer for one command run
type Session struct {
	Config   *config.Config
	Catalog  *models.Catalog
	Tracker  *progress.Tracker
	Identity *progress.IdentityManager
	Syncer   *progress.Syncer
	Remote   *remote.Client // nil in local-only mode

	db *database.DB
}

// OpenSession opens the local database, loads the record and, when an identity
// is already held, fetches and merges the remote record before the visit is stamped.
func OpenSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	cat, err := catalog.Load(cfg.Client.CatalogPath)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenLocal(cfg.Client.DataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if _, err := db.RunMigrations(ctx, database.SchemaLocal); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}

	kv := repository.NewKeyValueRepository(db)
	store := progress.NewStore(kv, logger)
	tracker := progress.OpenTracker(ctx, store, cat, logger,
		progress.WithMigrator(progress.NewMigrator(kv, progress.DefaultLegacyKeys, logger)))

	// Interfaces stay nil in local-only mode
	var (
		client      *remote.Client
		claimer     progress.Claimer
		remoteStore progress.RemoteStore
	)
	if !cfg.Client.LocalOnly() {
		client = remote.NewClient(cfg.Client.ServerURL, cfg.Client.RequestTimeout)
		claimer = client
		remoteStore = client
	}

	identity := progress.NewIdentityManager(kv, claimer, logger)
	identity.Load(ctx)

	syncer := progress.NewSyncer(remoteStore, identity, tracker, cfg.Client.PushDelay, logger)
	tracker.OnMutation(syncer.ScheduleMutation)

	syncer.OnIdentity(ctx)
	tracker.StartSession(ctx)

	return &Session{
		Config:   cfg,
		Catalog:  cat,
		Tracker:  tracker,
		Identity: identity,
		Syncer:   syncer,
		Remote:   client,
		db:       db,
	}, nil
}

// Close pushes any pending write, then releases the local store
func (s *Session) Close(ctx context.Context) error {
	s.Syncer.Flush(ctx)
	s.Syncer.Close()
	return s.db.Close()
}

// withSession loads configuration, runs fn inside a session and closes it
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	s, err := OpenSession(ctx, cfg, log)
	if err != nil {
		return err
	}

	runErr := fn(ctx, s)
	if err := s.Close(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close local store: %w", err)
	}
	return runErr
}
