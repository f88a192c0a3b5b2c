package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studytrail/internal/models"
)

func openTestTracker(t *testing.T, kv *memoryKV, now time.Time, opts ...TrackerOption) *Tracker {
	t.Helper()
	store := newTestStore(kv)
	opts = append([]TrackerOption{WithClock(func() time.Time { return now })}, opts...)
	return OpenTracker(context.Background(), store, testCatalog(), zap.NewNop(), opts...)
}

func storedProgress(t *testing.T, kv *memoryKV) *models.CurriculumProgress {
	t.Helper()
	raw, ok := kv.value(ProgressKey)
	require.True(t, ok)
	p, err := models.DecodeProgress([]byte(raw))
	require.NoError(t, err)
	return p
}

func TestRecordQuizAttempt(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	ctx := context.Background()

	require.NoError(t, tr.RecordQuizAttempt(ctx, "variables", "q1", true))
	require.NoError(t, tr.RecordQuizAttempt(ctx, "variables", "q1", false))
	require.NoError(t, tr.RecordQuizAttempt(ctx, "variables", "q2", false))
	require.NoError(t, tr.RecordQuizAttempt(ctx, "variables", "q2", true))
	require.NoError(t, tr.RecordQuizAttempt(ctx, "variables", "q2", true))

	p := tr.Snapshot()
	q1 := p.Topics["variables"].QuizAttempts["q1"]
	assert.Equal(t, &models.QuizAttempt{Correct: true, Attempts: 2, FirstTryCorrect: true}, q1)
	q2 := p.Topics["variables"].QuizAttempts["q2"]
	assert.Equal(t, &models.QuizAttempt{Correct: true, Attempts: 3, FirstTryCorrect: false}, q2)
	assert.Equal(t, xpFirstTryCorrect+xpLaterCorrect, p.XP)

	assert.Equal(t, p, storedProgress(t, kv), "every mutation is persisted")
}

func TestRecordQuizAttemptUnknownIDs(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	ctx := context.Background()

	assert.ErrorIs(t, tr.RecordQuizAttempt(ctx, "nope", "q1", true), ErrUnknownTopic)
	assert.ErrorIs(t, tr.RecordQuizAttempt(ctx, "loops", "q9", true), ErrUnknownQuiz)
	assert.Empty(t, tr.Snapshot().Topics, "topics are only created by valid interactions")
}

func TestRecordEssay(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	ctx := context.Background()

	require.NoError(t, tr.RecordEssayDraft(ctx, "loops", "for", 3))
	p := tr.Snapshot()
	assert.False(t, p.Topics["loops"].EssaySubmitted)
	assert.Zero(t, p.XP)

	require.NoError(t, tr.RecordEssaySave(ctx, "loops", "for range", 9))
	require.NoError(t, tr.RecordEssaySave(ctx, "loops", "for range over", 14))
	require.NoError(t, tr.RecordEssayDraft(ctx, "loops", "for", 3))

	p = tr.Snapshot()
	assert.True(t, p.Topics["loops"].EssaySubmitted, "submission is sticky")
	assert.Equal(t, "for", p.Topics["loops"].EssayText)
	assert.Equal(t, 14, p.Topics["loops"].EssayCharCount, "a later draft never shortens a submitted essay")
	assert.Equal(t, xpEssaySubmitted, p.XP, "only the first submission earns xp")

	assert.ErrorIs(t, tr.RecordEssaySave(ctx, "nope", "x", 1), ErrUnknownTopic)
	assert.ErrorIs(t, tr.RecordEssayDraft(ctx, "loops", "x", -1), ErrNegativeLength)
}

func TestDraftAfterSubmitKeepsRewardUnlockable(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	ctx := context.Background()

	require.NoError(t, tr.RecordQuizAttempt(ctx, "loops", "q1", true))
	require.NoError(t, tr.RecordEssaySave(ctx, "loops", "range loops", 11))
	require.True(t, tr.IsRewardUnlockable("loops"))

	require.NoError(t, tr.RecordEssayDraft(ctx, "loops", "ab", 2))
	assert.True(t, tr.IsRewardUnlockable("loops"))
	assert.Equal(t, "ab", tr.Snapshot().Topics["loops"].EssayText)
	assert.Equal(t, 11, storedProgress(t, kv).Topics["loops"].EssayCharCount)
}

func TestMarkRewardUnlocked(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	ctx := context.Background()

	assert.ErrorIs(t, tr.MarkRewardUnlocked(ctx, "loops"), ErrRewardLocked)
	assert.False(t, tr.IsRewardUnlockable("loops"))

	require.NoError(t, tr.RecordQuizAttempt(ctx, "loops", "q1", true))
	require.NoError(t, tr.RecordEssaySave(ctx, "loops", "ranges", 6))
	assert.True(t, tr.IsRewardUnlockable("loops"))

	require.NoError(t, tr.MarkRewardUnlocked(ctx, "loops"))
	assert.True(t, tr.Snapshot().Topics["loops"].RewardUnlocked)
	assert.Equal(t, 100, tr.TopicCompletion("loops"))
	assert.Equal(t, 50, tr.LessonCompletion("basics"))
	assert.Equal(t, 25, tr.CurriculumCompletion())
	assert.InDelta(t, 1.0, tr.Accuracy(""), 1e-9)
}

func TestStartSessionStreak(t *testing.T) {
	tests := []struct {
		name       string
		lastVisit  time.Time
		streak     int
		now        time.Time
		wantStreak int
	}{
		{"fresh record", day(5, 8), 0, day(5, 9), 1},
		{"same day", day(5, 8), 3, day(5, 22), 3},
		{"next day", day(5, 23), 3, day(6, 1), 4},
		{"gap", day(5, 8), 3, day(8, 9), 1},
		{"clock behind", day(6, 8), 3, day(5, 9), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMemoryKV()
			seed := models.NewCurriculumProgress(tt.lastVisit)
			seed.StreakDays = tt.streak
			require.NoError(t, newTestStore(kv).Save(context.Background(), seed))

			tr := openTestTracker(t, kv, tt.now)
			tr.StartSession(context.Background())

			p := tr.Snapshot()
			assert.Equal(t, tt.wantStreak, p.StreakDays)
			if tt.now.After(tt.lastVisit) {
				assert.Equal(t, tt.now, p.LastVisit)
			} else {
				assert.Equal(t, tt.lastVisit, p.LastVisit)
			}
		})
	}
}

func TestResetProgress(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	ctx := context.Background()
	mutations := 0
	tr.OnMutation(func() { mutations++ })

	require.NoError(t, tr.RecordQuizAttempt(ctx, "loops", "q1", true))
	tr.ResetProgress(ctx)

	assert.Equal(t, 2, mutations)
	assert.False(t, tr.Snapshot().HasProgress())
	assert.False(t, storedProgress(t, kv).HasProgress())
}

func TestFailedMutationIsNotPersistedOrAnnounced(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	mutations := 0
	tr.OnMutation(func() { mutations++ })

	assert.Error(t, tr.MarkRewardUnlocked(context.Background(), "loops"))
	assert.Zero(t, mutations)
}

func TestSaveFailureDoesNotInterruptSession(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	kv.putErr = errDisk

	require.NoError(t, tr.RecordQuizAttempt(context.Background(), "loops", "q1", true))
	assert.Equal(t, xpFirstTryCorrect, tr.Snapshot().XP)
}

func TestOpenTrackerRunsMigration(t *testing.T) {
	kv := seededLegacyKV()
	tr := openTestTracker(t, kv, day(1, 9), WithMigrator(NewMigrator(kv, legacyKeys, zap.NewNop())))

	assert.True(t, tr.Snapshot().Topics["variables"].EssaySubmitted)
	assert.True(t, storedProgress(t, kv).Topics["variables"].EssaySubmitted)
}

func TestMergeRemoteJoinsCurrentState(t *testing.T) {
	kv := newMemoryKV()
	tr := openTestTracker(t, kv, day(1, 9))
	ctx := context.Background()
	require.NoError(t, tr.RecordQuizAttempt(ctx, "loops", "q1", false))
	require.NoError(t, tr.RecordQuizAttempt(ctx, "loops", "q1", true))

	remoteProgress := models.NewCurriculumProgress(day(2, 9))
	remoteProgress.XP = 300
	remoteProgress.Topic("loops").QuizAttempts["q1"] = &models.QuizAttempt{Correct: true, Attempts: 1, FirstTryCorrect: true}

	merged := tr.MergeRemote(ctx, remoteProgress)

	assert.Equal(t, 300, merged.XP)
	assert.Equal(t, &models.QuizAttempt{Correct: true, Attempts: 2, FirstTryCorrect: true}, merged.Topics["loops"].QuizAttempts["q1"])
	assert.Equal(t, merged, storedProgress(t, kv))
}
