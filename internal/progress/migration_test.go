package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studytrail/internal/models"
)

var legacyKeys = map[string]string{
	"essay-draft-variables": "variables",
	"essay-draft-loops":     "loops",
	"essay-draft-functions": "functions",
}

func saveOK(context.Context) error { return nil }

func seededLegacyKV() *memoryKV {
	kv := newMemoryKV()
	kv.data["essay-draft-variables"] = `{"text":"Shadowing hides an outer name.","submitted":true}`
	kv.data["essay-draft-loops"] = `{"text":"for is the only loop","submitted":false}`
	kv.data["essay-draft-functions"] = `{not json`
	return kv
}

func TestMigratorImportsDrafts(t *testing.T) {
	kv := seededLegacyKV()
	p := models.NewCurriculumProgress(day(1, 9))

	report := NewMigrator(kv, legacyKeys, zap.NewNop()).Run(context.Background(), p, saveOK)

	assert.True(t, report.Ran)
	assert.ElementsMatch(t, []string{"variables", "loops"}, report.Imported)
	assert.Equal(t, []string{"essay-draft-functions"}, report.Skipped)

	variables := p.Topics["variables"]
	require.NotNil(t, variables)
	assert.True(t, variables.EssaySubmitted)
	assert.Equal(t, "Shadowing hides an outer name.", variables.EssayText)
	assert.Equal(t, 30, variables.EssayCharCount)

	loops := p.Topics["loops"]
	require.NotNil(t, loops)
	assert.False(t, loops.EssaySubmitted)

	assert.NotContains(t, p.Topics, "functions")
	for key := range legacyKeys {
		_, ok := kv.value(key)
		assert.False(t, ok, "legacy key %s should be deleted", key)
	}
}

func TestMigratorDoesNoHarm(t *testing.T) {
	kv := seededLegacyKV()
	p := models.NewCurriculumProgress(day(1, 9))
	submitted := p.Topic("variables")
	submitted.EssaySubmitted = true
	submitted.EssayText = "short"
	submitted.EssayCharCount = 5

	draft := p.Topic("loops")
	draft.EssayText = "a much longer draft than the legacy one"
	draft.EssayCharCount = 39

	report := NewMigrator(kv, legacyKeys, zap.NewNop()).Run(context.Background(), p, saveOK)

	assert.Equal(t, []string{"loops"}, report.Imported)
	assert.Equal(t, "short", p.Topics["variables"].EssayText)
	assert.Equal(t, 5, p.Topics["variables"].EssayCharCount)
	assert.Equal(t, "a much longer draft than the legacy one", p.Topics["loops"].EssayText)
	assert.Equal(t, 39, p.Topics["loops"].EssayCharCount)
}

func TestMigratorSkipsEmptyText(t *testing.T) {
	kv := newMemoryKV()
	kv.data["essay-draft-loops"] = `{"text":"   ","submitted":true}`
	p := models.NewCurriculumProgress(day(1, 9))

	report := NewMigrator(kv, legacyKeys, zap.NewNop()).Run(context.Background(), p, saveOK)

	assert.Empty(t, report.Imported)
	assert.Empty(t, p.Topics)
	_, ok := kv.value("essay-draft-loops")
	assert.False(t, ok)
}

func TestMigratorIsIdempotent(t *testing.T) {
	ctx := context.Background()

	once := models.NewCurriculumProgress(day(1, 9))
	NewMigrator(seededLegacyKV(), legacyKeys, zap.NewNop()).Run(ctx, once, saveOK)

	kv := seededLegacyKV()
	twice := models.NewCurriculumProgress(day(1, 9))
	m := NewMigrator(kv, legacyKeys, zap.NewNop())
	m.Run(ctx, twice, saveOK)
	second := m.Run(ctx, twice, saveOK)
	assert.False(t, second.Ran)

	// a later process finds the keys already gone
	NewMigrator(kv, legacyKeys, zap.NewNop()).Run(ctx, twice, saveOK)

	assert.Equal(t, once, twice)
}

func TestMigratorKeepsKeysWhenSaveFails(t *testing.T) {
	kv := seededLegacyKV()
	p := models.NewCurriculumProgress(day(1, 9))
	saves := 0

	report := NewMigrator(kv, legacyKeys, zap.NewNop()).Run(context.Background(), p, func(context.Context) error {
		saves++
		return errDisk
	})

	assert.Equal(t, 1, saves)
	assert.ElementsMatch(t, []string{"variables", "loops"}, report.Imported)
	for key := range legacyKeys {
		_, ok := kv.value(key)
		assert.True(t, ok, "legacy key %s should survive a failed save", key)
	}
}

func TestMigratorSkipsSaveWhenNothingImported(t *testing.T) {
	kv := newMemoryKV()
	kv.data["essay-draft-functions"] = `{not json`

	report := NewMigrator(kv, legacyKeys, zap.NewNop()).Run(context.Background(), models.NewCurriculumProgress(day(1, 9)), func(context.Context) error {
		t.Fatal("save should not run without imports")
		return nil
	})

	assert.Empty(t, report.Imported)
	_, ok := kv.value("essay-draft-functions")
	assert.False(t, ok)
}

func TestOpenTrackerRetriesMigrationAfterFailedSave(t *testing.T) {
	ctx := context.Background()
	kv := seededLegacyKV()
	kv.putErr = errDisk

	tracker := OpenTracker(ctx, NewStore(kv, zap.NewNop()), testCatalog(), zap.NewNop(),
		WithMigrator(NewMigrator(kv, legacyKeys, zap.NewNop())))
	assert.Equal(t, "for is the only loop", tracker.Snapshot().Topics["loops"].EssayText)
	_, ok := kv.value("essay-draft-loops")
	require.True(t, ok, "draft must not be lost when the import was never saved")

	kv.putErr = nil
	OpenTracker(ctx, NewStore(kv, zap.NewNop()), testCatalog(), zap.NewNop(),
		WithMigrator(NewMigrator(kv, legacyKeys, zap.NewNop())))
	_, ok = kv.value("essay-draft-loops")
	assert.False(t, ok)
	assert.Equal(t, "for is the only loop", storedProgress(t, kv).Topics["loops"].EssayText)
}
