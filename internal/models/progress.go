package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidProgress = errors.New("invalid progress record")

// CurriculumProgress is the root progress record, one per identity/session
type CurriculumProgress struct {
	Topics     map[string]*TopicProgress `json:"topics"`
	XP         int                       `json:"xp"`
	StreakDays int                       `json:"streakDays"`
	LastVisit  time.Time                 `json:"lastVisit"`
}

// TopicProgress tracks a single topic the learner has touched
type TopicProgress struct {
	QuizAttempts   map[string]*QuizAttempt `json:"quizAttempts"`
	EssaySubmitted bool                    `json:"essaySubmitted"`
	EssayCharCount int                     `json:"essayCharCount"`
	EssayText      string                  `json:"essayText"`
	RewardUnlocked bool                    `json:"rewardUnlocked"`
}

// QuizAttempt records the learner's history with one quiz
type QuizAttempt struct {
	Correct         bool `json:"correct"`
	Attempts        int  `json:"attempts"`
	FirstTryCorrect bool `json:"firstTryCorrect"`
}

// requiredProgressFields are the root keys a persisted record must carry
var requiredProgressFields = []string{"topics", "xp", "streakDays", "lastVisit"}

// NewCurriculumProgress creates an empty record stamped with the given visit time
func NewCurriculumProgress(now time.Time) *CurriculumProgress {
	return &CurriculumProgress{
		Topics:    make(map[string]*TopicProgress),
		LastVisit: now.UTC(),
	}
}

// NewTopicProgress creates an empty topic record
func NewTopicProgress() *TopicProgress {
	return &TopicProgress{QuizAttempts: make(map[string]*QuizAttempt)}
}

// Topic returns the topic record for id, creating it on first interaction
func (p *CurriculumProgress) Topic(id string) *TopicProgress {
	if p.Topics == nil {
		p.Topics = make(map[string]*TopicProgress)
	}
	topic, ok := p.Topics[id]
	if !ok || topic == nil {
		topic = NewTopicProgress()
		p.Topics[id] = topic
	}
	if topic.QuizAttempts == nil {
		topic.QuizAttempts = make(map[string]*QuizAttempt)
	}
	return topic
}

// HasProgress reports whether the learner has earned anything worth merging
func (p *CurriculumProgress) HasProgress() bool {
	if p == nil {
		return false
	}
	return p.XP > 0 || p.StreakDays > 0 || len(p.Topics) > 0
}

// Clone returns a deep copy of the record
func (p *CurriculumProgress) Clone() *CurriculumProgress {
	if p == nil {
		return nil
	}
	out := &CurriculumProgress{
		Topics:     make(map[string]*TopicProgress, len(p.Topics)),
		XP:         p.XP,
		StreakDays: p.StreakDays,
		LastVisit:  p.LastVisit,
	}
	for id, topic := range p.Topics {
		if topic == nil {
			continue
		}
		out.Topics[id] = topic.Clone()
	}
	return out
}

// Clone returns a deep copy of the topic
func (t *TopicProgress) Clone() *TopicProgress {
	if t == nil {
		return nil
	}
	out := &TopicProgress{
		QuizAttempts:   make(map[string]*QuizAttempt, len(t.QuizAttempts)),
		EssaySubmitted: t.EssaySubmitted,
		EssayCharCount: t.EssayCharCount,
		EssayText:      t.EssayText,
		RewardUnlocked: t.RewardUnlocked,
	}
	for id, attempt := range t.QuizAttempts {
		if attempt == nil {
			continue
		}
		copied := *attempt
		out.QuizAttempts[id] = &copied
	}
	return out
}

// Validate checks the value ranges of a decoded record and fills in nil maps
func (p *CurriculumProgress) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidProgress)
	}
	if p.Topics == nil {
		return fmt.Errorf("%w: topics missing", ErrInvalidProgress)
	}
	if p.XP < 0 {
		return fmt.Errorf("%w: xp is negative", ErrInvalidProgress)
	}
	if p.StreakDays < 0 {
		return fmt.Errorf("%w: streakDays is negative", ErrInvalidProgress)
	}
	for id, topic := range p.Topics {
		if topic == nil {
			return fmt.Errorf("%w: topic %q is null", ErrInvalidProgress, id)
		}
		if topic.EssayCharCount < 0 {
			return fmt.Errorf("%w: topic %q essayCharCount is negative", ErrInvalidProgress, id)
		}
		if topic.QuizAttempts == nil {
			topic.QuizAttempts = make(map[string]*QuizAttempt)
		}
		for quizID, attempt := range topic.QuizAttempts {
			if attempt == nil {
				return fmt.Errorf("%w: quiz %q/%q is null", ErrInvalidProgress, id, quizID)
			}
			if attempt.Attempts < 1 {
				return fmt.Errorf("%w: quiz %q/%q has no attempts", ErrInvalidProgress, id, quizID)
			}
		}
	}
	return nil
}

// DecodeProgress parses a serialized record and rejects anything that is not
// structurally a CurriculumProgress
func DecodeProgress(data []byte) (*CurriculumProgress, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgress, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidProgress)
	}
	for _, name := range requiredProgressFields {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return nil, fmt.Errorf("%w: missing field %s", ErrInvalidProgress, name)
		}
	}

	var p CurriculumProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgress, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Identity pairs a claimed username with the opaque token that gates remote writes
type Identity struct {
	Username  string `json:"username"`
	AuthToken string `json:"authToken"`
}

// CanWrite reports whether remote writes are possible for this identity
func (i Identity) CanWrite() bool {
	return i.Username != "" && i.AuthToken != ""
}
