package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/remote"
)

const testPushDelay = 50 * time.Millisecond

type syncFixture struct {
	kv       *memoryKV
	tracker  *Tracker
	remote   *fakeRemote
	identity *staticIdentity
	syncer   *Syncer
}

func newSyncFixture(t *testing.T, identity models.Identity) *syncFixture {
	t.Helper()
	f := &syncFixture{
		kv:       newMemoryKV(),
		remote:   newFakeRemote(),
		identity: &staticIdentity{identity: identity},
	}
	f.tracker = openTestTracker(t, f.kv, day(1, 9))
	f.syncer = NewSyncer(f.remote, f.identity, f.tracker, testPushDelay, zap.NewNop())
	f.tracker.OnMutation(f.syncer.ScheduleMutation)
	t.Cleanup(f.syncer.Close)
	return f
}

func remoteRecord(xp int) *models.CurriculumProgress {
	p := models.NewCurriculumProgress(day(3, 9))
	p.XP = xp
	p.Topic("variables").QuizAttempts["q1"] = &models.QuizAttempt{Correct: true, Attempts: 1, FirstTryCorrect: true}
	return p
}

func waitForPush(t *testing.T, f *fakeRemote) {
	t.Helper()
	select {
	case <-f.pushed:
	case <-time.After(2 * time.Second):
		t.Fatal("push did not happen")
	}
}

func TestOnIdentityFetchesOncePerIdentity(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada"})
	f.remote.records["ada"] = remoteRecord(300)
	ctx := context.Background()

	first := f.syncer.OnIdentity(ctx)
	assert.Equal(t, OutcomeApplied, first.Outcome)
	assert.Equal(t, 300, f.tracker.Snapshot().XP)
	assert.Equal(t, 300, storedProgress(t, f.kv).XP)

	second := f.syncer.OnIdentity(ctx)
	assert.Equal(t, OutcomeSkipped, second.Outcome)
	fetches, _ := f.remote.counts()
	assert.Equal(t, 1, fetches)

	f.identity.identity = models.Identity{Username: "grace"}
	assert.Equal(t, OutcomeNotFound, f.syncer.OnIdentity(ctx).Outcome)
	assert.Equal(t, OutcomeSkipped, f.syncer.OnIdentity(ctx).Outcome)
	fetches, _ = f.remote.counts()
	assert.Equal(t, 2, fetches)
}

func TestOnIdentityConcurrentCallsFetchOnce(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada"})
	f.remote.records["ada"] = remoteRecord(300)
	f.remote.fetchDelay = 50 * time.Millisecond

	const callers = 4
	results := make(chan SyncResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.syncer.OnIdentity(context.Background())
		}()
	}
	wg.Wait()
	close(results)

	applied := 0
	for r := range results {
		if r.Outcome == OutcomeApplied {
			applied++
		} else {
			assert.Equal(t, OutcomeSkipped, r.Outcome)
		}
	}
	assert.Equal(t, 1, applied)
	fetches, _ := f.remote.counts()
	assert.Equal(t, 1, fetches)
	assert.Equal(t, 300, f.tracker.Snapshot().XP)
}

func TestOnIdentityCancelledFetchIsRetried(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada"})
	f.remote.records["ada"] = remoteRecord(300)

	f.remote.fetchErr = context.Canceled
	assert.Equal(t, OutcomeSkipped, f.syncer.OnIdentity(context.Background()).Outcome)

	f.remote.fetchErr = nil
	assert.Equal(t, OutcomeApplied, f.syncer.OnIdentity(context.Background()).Outcome)
}

func TestOnIdentityOfflineLeavesStateAndRetries(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada"})
	ctx := context.Background()
	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))
	before := f.tracker.Snapshot()

	f.remote.fetchErr = fmt.Errorf("%w: connection refused", remote.ErrUnavailable)
	result := f.syncer.OnIdentity(ctx)
	assert.Equal(t, OutcomeOffline, result.Outcome)
	assert.True(t, result.Degraded())
	assert.Equal(t, before, f.tracker.Snapshot())

	f.remote.fetchErr = nil
	f.remote.records["ada"] = remoteRecord(50)
	assert.Equal(t, OutcomeApplied, f.syncer.OnIdentity(ctx).Outcome)
	assert.Equal(t, 50, f.tracker.Snapshot().XP)

	last, ok := f.syncer.LastResult(OpFetch)
	require.True(t, ok)
	assert.Equal(t, OutcomeApplied, last.Outcome)
}

func TestOnIdentityWithoutIdentityOrRemote(t *testing.T) {
	f := newSyncFixture(t, models.Identity{})
	assert.Equal(t, OutcomeSkipped, f.syncer.OnIdentity(context.Background()).Outcome)

	localOnly := NewSyncer(nil, &staticIdentity{identity: models.Identity{Username: "ada", AuthToken: "t"}}, f.tracker, testPushDelay, zap.NewNop())
	defer localOnly.Close()
	assert.Equal(t, OutcomeSkipped, localOnly.OnIdentity(context.Background()).Outcome)
	assert.Equal(t, OutcomeSkipped, localOnly.Push(context.Background()).Outcome)
}

func TestDebouncedPushCoalescesMutations(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, f.tracker.RecordEssayDraft(ctx, "variables", "draft", i))
	}
	assert.True(t, f.syncer.PushPending())

	waitForPush(t, f.remote)
	time.Sleep(2 * testPushDelay)

	_, pushes := f.remote.counts()
	assert.Equal(t, 1, pushes)
	assert.Equal(t, "secret", f.remote.lastToken)
	assert.Equal(t, 5, f.remote.record("ada").Topics["variables"].EssayCharCount, "the push carries the latest state")
}

func TestPushSkippedWithoutToken(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada"})
	ctx := context.Background()

	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))
	assert.False(t, f.syncer.PushPending())
	assert.Equal(t, OutcomeSkipped, f.syncer.Push(ctx).Outcome)

	_, pushes := f.remote.counts()
	assert.Zero(t, pushes)
}

func TestPushFailureIsReported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"offline", fmt.Errorf("%w: timeout", remote.ErrUnavailable), OutcomeOffline},
		{"unauthorized", remote.ErrUnauthorized, OutcomeRejected},
		{"rejected", remote.ErrRejected, OutcomeRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
			f.remote.pushErr = tt.err

			result := f.syncer.Push(context.Background())
			assert.Equal(t, tt.want, result.Outcome)
			assert.ErrorIs(t, result.Err, tt.err)
		})
	}
}

func TestClearIdentityCancelsPendingPush(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
	ctx := context.Background()

	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))
	require.True(t, f.syncer.PushPending())
	require.NoError(t, f.syncer.ClearIdentity(ctx))

	time.Sleep(3 * testPushDelay)
	_, pushes := f.remote.counts()
	assert.Zero(t, pushes)
	assert.False(t, f.identity.Current().CanWrite())
}

func TestCloseCancelsPendingPush(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
	ctx := context.Background()

	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))
	f.syncer.Close()
	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))

	time.Sleep(3 * testPushDelay)
	_, pushes := f.remote.counts()
	assert.Zero(t, pushes)
}

func TestFlushPushesPendingWriteNow(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
	ctx := context.Background()

	assert.Equal(t, OutcomeSkipped, f.syncer.Flush(ctx).Outcome)

	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))
	assert.Equal(t, OutcomeApplied, f.syncer.Flush(ctx).Outcome)
	assert.False(t, f.syncer.PushPending())

	time.Sleep(3 * testPushDelay)
	_, pushes := f.remote.counts()
	assert.Equal(t, 1, pushes)
	assert.Equal(t, xpFirstTryCorrect, f.remote.record("ada").XP)
}

func TestManualMerge(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
	ctx := context.Background()
	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))
	f.remote.records["ada"] = remoteRecord(120)

	result := f.syncer.ManualMerge(ctx)
	require.Equal(t, OutcomeApplied, result.Outcome)

	local := f.tracker.Snapshot()
	assert.Equal(t, 120, local.XP)
	assert.Contains(t, local.Topics, "loops")
	assert.Contains(t, local.Topics, "variables")

	pushed := f.remote.record("ada")
	assert.Equal(t, local, pushed)

	assert.Equal(t, OutcomeSkipped, f.syncer.OnIdentity(ctx).Outcome, "manual merge counts as the identity fetch")
}

func TestManualMergeSeedsEmptyRemote(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
	ctx := context.Background()
	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))

	assert.Equal(t, OutcomeNotFound, f.syncer.ManualMerge(ctx).Outcome)
	assert.Equal(t, f.tracker.Snapshot(), f.remote.record("ada"))
}

func TestManualMergeOfflineLeavesState(t *testing.T) {
	f := newSyncFixture(t, models.Identity{Username: "ada", AuthToken: "secret"})
	ctx := context.Background()
	require.NoError(t, f.tracker.RecordQuizAttempt(ctx, "loops", "q1", true))
	before := f.tracker.Snapshot()
	f.remote.fetchErr = remote.ErrUnavailable

	assert.Equal(t, OutcomeOffline, f.syncer.ManualMerge(ctx).Outcome)
	assert.Equal(t, before, f.tracker.Snapshot())
}
