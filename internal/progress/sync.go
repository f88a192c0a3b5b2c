package progress

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/reconcile"
)

// RemoteStore reads and replaces whole progress records on the remote side
type RemoteStore interface {
	FetchProgress(ctx context.Context, username string) (*models.CurriculumProgress, error)
	PushProgress(ctx context.Context, identity models.Identity, p *models.CurriculumProgress) error
}

// IdentitySource yields the current identity and can forget it
type IdentitySource interface {
	Current() models.Identity
	Clear(ctx context.Context) error
}

// State is the local record the syncer reconciles against
type State interface {
	// Snapshot returns a copy of the current record
	Snapshot() *models.CurriculumProgress
	// MergeRemote joins remote into the current record, persists the result and returns a copy of it
	MergeRemote(ctx context.Context, remote *models.CurriculumProgress) *models.CurriculumProgress
}

// Syncer keeps the local record and the remote store in step: a fetch-merge
// once per identity, a debounced full push after mutations and an explicit
// merge at first login. Failures never touch local state; they come back as
// SyncResult values and leave the session local-only until the next trigger.
type Syncer struct {
	remote    RemoteStore
	identity  IdentitySource
	state     State
	debouncer *reconcile.Debouncer
	logger    *zap.Logger

	// background is used by pushes fired from the debounce timer
	background context.Context
	cancel     context.CancelFunc

	mu      sync.Mutex
	fetched map[string]bool
	last    map[SyncOp]SyncResult
}

// NewSyncer creates a syncer. A nil remote makes every operation a skip.
func NewSyncer(remote RemoteStore, identity IdentitySource, state State, pushDelay time.Duration, logger *zap.Logger) *Syncer {
	background, cancel := context.WithCancel(context.Background())
	return &Syncer{
		remote:     remote,
		identity:   identity,
		state:      state,
		debouncer:  reconcile.NewDebouncer(pushDelay),
		logger:     logger,
		background: background,
		cancel:     cancel,
		fetched:    make(map[string]bool),
		last:       make(map[SyncOp]SyncResult),
	}
}

// OnIdentity fetches the remote record for the current identity and merges it
// into local state. It does real work once per username per Syncer; calls made
// while that fetch is in flight are skipped, and a failed fetch is retried on
// the next call.
func (s *Syncer) OnIdentity(ctx context.Context) SyncResult {
	username := s.identity.Current().Username
	if s.remote == nil || username == "" {
		return s.record(skipped(OpFetch))
	}

	if !s.claimFetch(username) {
		return s.record(skipped(OpFetch))
	}

	remoteProgress, err := s.remote.FetchProgress(ctx, username)
	result := classify(OpFetch, err)
	switch result.Outcome {
	case OutcomeApplied:
		s.state.MergeRemote(ctx, remoteProgress)
	case OutcomeNotFound, OutcomeRejected:
		// settled; no retry for this identity
	default:
		s.releaseFetch(username)
	}
	return s.record(result)
}

// ManualMerge is the first-login flow: when both sides hold progress it merges
// them once and pushes the merged record; when only the device holds progress
// it seeds the remote store with it.
func (s *Syncer) ManualMerge(ctx context.Context) SyncResult {
	identity := s.identity.Current()
	if s.remote == nil || identity.Username == "" {
		return s.record(skipped(OpManualMerge))
	}

	remoteProgress, err := s.remote.FetchProgress(ctx, identity.Username)
	result := classify(OpManualMerge, err)
	switch result.Outcome {
	case OutcomeApplied:
		s.state.MergeRemote(ctx, remoteProgress)
		s.markFetched(identity.Username)
	case OutcomeNotFound:
		s.markFetched(identity.Username)
		if !s.state.Snapshot().HasProgress() {
			return s.record(result)
		}
	default:
		return s.record(result)
	}

	s.debouncer.Cancel()
	s.Push(ctx)
	return s.record(result)
}

// ScheduleMutation (re)starts the push quiet period. Without a token it does nothing.
func (s *Syncer) ScheduleMutation() {
	if s.remote == nil || !s.identity.Current().CanWrite() {
		return
	}
	s.debouncer.Trigger(func() {
		s.Push(s.background)
	})
}

// Push sends the current record to the remote store in full
func (s *Syncer) Push(ctx context.Context) SyncResult {
	identity := s.identity.Current()
	if s.remote == nil || !identity.CanWrite() {
		return s.record(skipped(OpPush))
	}
	err := s.remote.PushProgress(ctx, identity, s.state.Snapshot())
	return s.record(classify(OpPush, err))
}

// Flush runs a pending debounced push now. It skips when nothing is pending.
func (s *Syncer) Flush(ctx context.Context) SyncResult {
	if s.debouncer.Flush() == nil {
		return skipped(OpPush)
	}
	return s.Push(ctx)
}

// PushPending reports whether a debounced push is waiting
func (s *Syncer) PushPending() bool {
	return s.debouncer.Pending()
}

// ClearIdentity cancels any pending push and forgets the identity
func (s *Syncer) ClearIdentity(ctx context.Context) error {
	s.debouncer.Cancel()
	return s.identity.Clear(ctx)
}

// Close cancels any pending push and aborts pushes in flight
func (s *Syncer) Close() {
	s.debouncer.Stop()
	s.cancel()
}

// LastResult returns the most recent result for op
func (s *Syncer) LastResult(op SyncOp) (SyncResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[op]
	return r, ok
}

// claimFetch marks username as fetched before the fetch runs. It reports false
// when another call already holds or completed the fetch.
func (s *Syncer) claimFetch(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetched[username] {
		return false
	}
	s.fetched[username] = true
	return true
}

func (s *Syncer) releaseFetch(username string) {
	s.mu.Lock()
	delete(s.fetched, username)
	s.mu.Unlock()
}

func (s *Syncer) markFetched(username string) {
	s.mu.Lock()
	s.fetched[username] = true
	s.mu.Unlock()
}

// record is the degrade policy: failures are logged and the session carries
// on local-only; nothing is returned as a hard error
func (s *Syncer) record(result SyncResult) SyncResult {
	s.mu.Lock()
	s.last[result.Op] = result
	s.mu.Unlock()

	fields := []zap.Field{zap.String("op", string(result.Op)), zap.Stringer("outcome", result.Outcome)}
	switch result.Outcome {
	case OutcomeOffline:
		s.logger.Warn("remote store unavailable, continuing local-only", append(fields, zap.Error(result.Err))...)
	case OutcomeRejected:
		s.logger.Warn("remote store rejected sync, continuing local-only", append(fields, zap.Error(result.Err))...)
	case OutcomeApplied:
		s.logger.Info("sync applied", fields...)
	default:
		s.logger.Debug("sync not applied", fields...)
	}
	return result
}
