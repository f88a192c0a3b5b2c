package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/reconcile"
)

// XP awards
const (
	xpFirstTryCorrect = 10
	xpLaterCorrect    = 5
	xpEssaySubmitted  = 20
)

var (
	ErrUnknownTopic   = errors.New("unknown topic")
	ErrUnknownQuiz    = errors.New("unknown quiz")
	ErrRewardLocked   = errors.New("reward is not unlockable yet")
	ErrNegativeLength = errors.New("essay character count must not be negative")
)

// Tracker is the entry point for content collaborators: it applies mutation
// events to the record, persists after every mutation and answers derived
// queries. All access to the record is serialized by the tracker's mutex.
type Tracker struct {
	store     *Store
	catalog   *models.Catalog
	evaluator *Evaluator
	logger    *zap.Logger
	now       func() time.Time

	migrator *Migrator

	mu         sync.Mutex
	progress   *models.CurriculumProgress
	onMutation func()
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithClock overrides the time source
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithMigrator imports legacy drafts when the tracker opens
func WithMigrator(m *Migrator) TrackerOption {
	return func(t *Tracker) {
		t.migrator = m
	}
}

// OpenTracker loads the record from store and runs the legacy migration, if configured
func OpenTracker(ctx context.Context, store *Store, catalog *models.Catalog, logger *zap.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:     store,
		catalog:   catalog,
		evaluator: NewEvaluator(catalog),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress = store.Load(ctx)
	if t.migrator != nil {
		t.migrator.Run(ctx, t.progress, t.persist)
	}
	return t
}

// OnMutation registers fn to run after every persisted mutation, typically
// Syncer.ScheduleMutation
func (t *Tracker) OnMutation(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMutation = fn
}

// Snapshot returns a copy of the current record
func (t *Tracker) Snapshot() *models.CurriculumProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress.Clone()
}

// MergeRemote joins remote into the current record and persists the result
func (t *Tracker) MergeRemote(ctx context.Context, remote *models.CurriculumProgress) *models.CurriculumProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress = reconcile.Merge(t.progress, remote)
	t.persist(ctx)
	return t.progress.Clone()
}

// StartSession stamps the visit and advances the streak: +1 when the previous
// visit was the day before, unchanged on the same day, back to 1 after a gap
func (t *Tracker) StartSession(ctx context.Context) {
	_ = t.mutate(ctx, func(p *models.CurriculumProgress) error {
		now := t.now()
		days := calendarDaysBetween(p.LastVisit, now)
		switch {
		case p.StreakDays == 0 || days > 1:
			p.StreakDays = 1
		case days == 1:
			p.StreakDays++
		}
		if now.After(p.LastVisit) {
			p.LastVisit = now.UTC()
		}
		return nil
	})
}

// RecordQuizAttempt records one answer to a quiz. The first answer decides
// firstTryCorrect; the first correct answer earns XP.
func (t *Tracker) RecordQuizAttempt(ctx context.Context, topicID, quizID string, correct bool) error {
	topic, ok := t.catalog.FindTopic(topicID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topicID)
	}
	if !topic.HasQuiz(quizID) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownQuiz, topicID, quizID)
	}

	return t.mutate(ctx, func(p *models.CurriculumProgress) error {
		tp := p.Topic(topicID)
		attempt := tp.QuizAttempts[quizID]
		if attempt == nil {
			attempt = &models.QuizAttempt{}
			tp.QuizAttempts[quizID] = attempt
		}

		first := attempt.Attempts == 0
		attempt.Attempts++
		if first {
			attempt.FirstTryCorrect = correct
		}
		if correct && !attempt.Correct {
			attempt.Correct = true
			if first {
				p.XP += xpFirstTryCorrect
			} else {
				p.XP += xpLaterCorrect
			}
		}
		return nil
	})
}

// RecordEssayDraft stores work in progress without submitting it
func (t *Tracker) RecordEssayDraft(ctx context.Context, topicID, text string, charCount int) error {
	return t.recordEssay(ctx, topicID, text, charCount, false)
}

// RecordEssaySave stores and submits the essay; the first submission earns XP
func (t *Tracker) RecordEssaySave(ctx context.Context, topicID, text string, charCount int) error {
	return t.recordEssay(ctx, topicID, text, charCount, true)
}

func (t *Tracker) recordEssay(ctx context.Context, topicID, text string, charCount int, submit bool) error {
	if _, ok := t.catalog.FindTopic(topicID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topicID)
	}
	if charCount < 0 {
		return ErrNegativeLength
	}

	return t.mutate(ctx, func(p *models.CurriculumProgress) error {
		tp := p.Topic(topicID)
		tp.EssayText = text
		if tp.EssaySubmitted {
			// a submitted essay keeps the length it was accepted with
			tp.EssayCharCount = max(tp.EssayCharCount, charCount)
		} else {
			tp.EssayCharCount = charCount
		}
		if submit && !tp.EssaySubmitted {
			tp.EssaySubmitted = true
			p.XP += xpEssaySubmitted
		}
		return nil
	})
}

// MarkRewardUnlocked sets the topic's reward once it is unlockable
func (t *Tracker) MarkRewardUnlocked(ctx context.Context, topicID string) error {
	if _, ok := t.catalog.FindTopic(topicID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topicID)
	}

	return t.mutate(ctx, func(p *models.CurriculumProgress) error {
		if !t.evaluator.RewardUnlockable(p, topicID) {
			return ErrRewardLocked
		}
		p.Topic(topicID).RewardUnlocked = true
		return nil
	})
}

// ResetProgress replaces the record with a fresh one
func (t *Tracker) ResetProgress(ctx context.Context) {
	t.mu.Lock()
	fresh, err := t.store.Reset(ctx)
	if err != nil {
		t.logger.Warn("failed to save reset progress, continuing unsaved", zap.Error(err))
	}
	t.progress = fresh
	hook := t.onMutation
	t.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// TopicCompletion returns the completion percentage of a topic
func (t *Tracker) TopicCompletion(topicID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluator.TopicCompletion(t.progress, topicID)
}

// LessonCompletion returns the completion percentage of a lesson
func (t *Tracker) LessonCompletion(lessonID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluator.LessonCompletion(t.progress, lessonID)
}

// CurriculumCompletion returns the completion percentage of the whole catalog
func (t *Tracker) CurriculumCompletion() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluator.CurriculumCompletion(t.progress)
}

// Accuracy returns the share of attempted quizzes answered correctly; "" covers all topics
func (t *Tracker) Accuracy(topicID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluator.Accuracy(t.progress, topicID)
}

// IsRewardUnlockable reports whether the topic's reward can be unlocked
func (t *Tracker) IsRewardUnlockable(topicID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evaluator.RewardUnlockable(t.progress, topicID)
}

// mutate applies fn to the record, persists it and notifies the mutation hook.
// When fn fails nothing is persisted.
func (t *Tracker) mutate(ctx context.Context, fn func(p *models.CurriculumProgress) error) error {
	t.mu.Lock()
	if err := fn(t.progress); err != nil {
		t.mu.Unlock()
		return err
	}
	t.persist(ctx)
	hook := t.onMutation
	t.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// persist saves the record; a failed save is logged and the session carries on.
// Callers hold mu.
func (t *Tracker) persist(ctx context.Context) error {
	err := t.store.Save(ctx, t.progress)
	if err != nil {
		t.logger.Warn("failed to save progress, continuing unsaved", zap.Error(err))
	}
	return err
}

// calendarDaysBetween counts calendar days from from to to in to's location
func calendarDaysBetween(from, to time.Time) int {
	loc := to.Location()
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.Date()
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}
