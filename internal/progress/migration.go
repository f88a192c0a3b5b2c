package progress

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/repository"
)

// DefaultLegacyKeys maps the essay draft keys written by older releases to the
// topic each draft belongs to
var DefaultLegacyKeys = map[string]string{
	"essay-draft-variables": "variables",
	"essay-draft-loops":     "loops",
	"essay-draft-functions": "functions",
}

// legacyEssay is the payload older releases stored per essay draft
type legacyEssay struct {
	Text      string `json:"text"`
	Submitted bool   `json:"submitted"`
}

// MigrationReport lists what a migration run did with each legacy key
type MigrationReport struct {
	Imported []string // topic ids that received a legacy draft
	Skipped  []string // legacy keys that were unreadable, empty or would overwrite a submitted essay
	Ran      bool     // false when the migration already ran in this process
}

// Migrator imports legacy essay drafts into the progress record. It runs at
// most once per Migrator; legacy keys are deleted once the import is saved, so
// a new process finds nothing left to import.
type Migrator struct {
	kv     KeyValueStore
	keys   map[string]string
	logger *zap.Logger

	mu   sync.Mutex
	done bool
}

// NewMigrator creates a migrator for the given legacy key to topic mapping
func NewMigrator(kv KeyValueStore, keys map[string]string, logger *zap.Logger) *Migrator {
	return &Migrator{kv: kv, keys: keys, logger: logger}
}

// Run imports legacy drafts into p in place and hands the result to save.
// It never overwrites an essay that is already submitted. Legacy keys are
// deleted only once save succeeds, or when nothing was imported; a failed save
// keeps them for the next process.
func (m *Migrator) Run(ctx context.Context, p *models.CurriculumProgress, save func(context.Context) error) MigrationReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return MigrationReport{}
	}
	m.done = true

	report := MigrationReport{Ran: true}
	var seen []string
	for key, topicID := range m.keys {
		raw, err := m.kv.Get(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			m.logger.Debug("failed to read legacy key", zap.String("key", key), zap.Error(err))
			continue
		}

		seen = append(seen, key)
		if m.importDraft(p, topicID, raw) {
			report.Imported = append(report.Imported, topicID)
		} else {
			report.Skipped = append(report.Skipped, key)
		}
	}

	if len(report.Imported) > 0 {
		if err := save(ctx); err != nil {
			m.logger.Warn("failed to save imported drafts, keeping legacy keys", zap.Error(err))
			return report
		}
		m.logger.Info("imported legacy essay drafts", zap.Strings("topics", report.Imported))
	}

	for _, key := range seen {
		if err := m.kv.Delete(ctx, key); err != nil {
			m.logger.Warn("failed to delete legacy key", zap.String("key", key), zap.Error(err))
		}
	}
	return report
}

func (m *Migrator) importDraft(p *models.CurriculumProgress, topicID, raw string) bool {
	var legacy legacyEssay
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		m.logger.Debug("skipping unreadable legacy draft", zap.String("topic", topicID), zap.Error(err))
		return false
	}
	if strings.TrimSpace(legacy.Text) == "" {
		return false
	}
	if existing, ok := p.Topics[topicID]; ok && existing != nil && existing.EssaySubmitted {
		return false
	}

	topic := p.Topic(topicID)
	chars := utf8.RuneCountInString(legacy.Text)
	if chars > utf8.RuneCountInString(topic.EssayText) {
		topic.EssayText = legacy.Text
	}
	topic.EssayCharCount = max(topic.EssayCharCount, chars)
	topic.EssaySubmitted = topic.EssaySubmitted || legacy.Submitted
	return true
}
