// Package reconcile merges divergent copies of a progress record.
//
// Every field rule is associative, commutative and idempotent, so Merge is a
// join over the whole record: merging never erases progress, whichever side
// is older. The only asymmetry is the essay text tie-break, which always keeps
// the local side.
package reconcile

import (
	"unicode/utf8"

	"studytrail/internal/models"
)

// Merge joins a local and a remote record into a new record. Neither input is
// modified. A nil side is treated as absent.
func Merge(local, remote *models.CurriculumProgress) *models.CurriculumProgress {
	switch {
	case local == nil && remote == nil:
		return nil
	case local == nil:
		return remote.Clone()
	case remote == nil:
		return local.Clone()
	}

	merged := &models.CurriculumProgress{
		Topics:     make(map[string]*models.TopicProgress, len(local.Topics)),
		XP:         max(local.XP, remote.XP),
		StreakDays: max(local.StreakDays, remote.StreakDays),
		LastVisit:  local.LastVisit,
	}
	if remote.LastVisit.After(local.LastVisit) {
		merged.LastVisit = remote.LastVisit
	}

	for id, topic := range local.Topics {
		if topic == nil {
			continue
		}
		if other, ok := remote.Topics[id]; ok && other != nil {
			merged.Topics[id] = mergeTopic(topic, other)
			continue
		}
		merged.Topics[id] = topic.Clone()
	}
	for id, topic := range remote.Topics {
		if topic == nil {
			continue
		}
		if _, done := merged.Topics[id]; done {
			continue
		}
		merged.Topics[id] = topic.Clone()
	}

	return merged
}

func mergeTopic(local, remote *models.TopicProgress) *models.TopicProgress {
	merged := &models.TopicProgress{
		QuizAttempts:   make(map[string]*models.QuizAttempt, len(local.QuizAttempts)),
		EssaySubmitted: local.EssaySubmitted || remote.EssaySubmitted,
		EssayCharCount: max(local.EssayCharCount, remote.EssayCharCount),
		EssayText:      longerText(local.EssayText, remote.EssayText),
		RewardUnlocked: local.RewardUnlocked || remote.RewardUnlocked,
	}

	for id, attempt := range local.QuizAttempts {
		if attempt == nil {
			continue
		}
		if other, ok := remote.QuizAttempts[id]; ok && other != nil {
			merged.QuizAttempts[id] = mergeAttempt(attempt, other)
			continue
		}
		copied := *attempt
		merged.QuizAttempts[id] = &copied
	}
	for id, attempt := range remote.QuizAttempts {
		if attempt == nil {
			continue
		}
		if _, done := merged.QuizAttempts[id]; done {
			continue
		}
		copied := *attempt
		merged.QuizAttempts[id] = &copied
	}

	return merged
}

func mergeAttempt(local, remote *models.QuizAttempt) *models.QuizAttempt {
	return &models.QuizAttempt{
		Correct:         local.Correct || remote.Correct,
		Attempts:        max(local.Attempts, remote.Attempts),
		FirstTryCorrect: local.FirstTryCorrect || remote.FirstTryCorrect,
	}
}

// longerText keeps the draft with more characters. A shorter but newer edit
// loses; on equal length the local draft wins.
func longerText(local, remote string) string {
	if utf8.RuneCountInString(remote) > utf8.RuneCountInString(local) {
		return remote
	}
	return local
}
