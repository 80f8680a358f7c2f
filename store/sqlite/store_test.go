package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minios-linux/transmerge/corpus"
	"github.com/minios-linux/transmerge/merge"
	"github.com/minios-linux/transmerge/plural"
	"github.com/minios-linux/transmerge/store"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "transmerge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleUnits() []*corpus.Unit {
	return []*corpus.Unit{
		{Source: "Hello"},
		{Source: "Open", Context: "menu"},
		{Source: "Open", Context: "button", Target: "Öffnen"},
		{Source: plural.Join([]string{"%d file", "%d files"})},
	}
}

func TestCreateAndLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	tr, err := s.Create(ctx, "de", sampleUnits())
	require.NoError(t, err)
	assert.Equal(t, 4, tr.Stats.Total)
	assert.Equal(t, 1, tr.Stats.Translated)

	_, err = s.Create(ctx, "de", nil)
	assert.ErrorIs(t, err, store.ErrExists)

	got, err := s.Translation(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, tr.Stats, got.Stats)
	require.Len(t, got.Units, 4)
	for i, u := range got.Units {
		assert.Equal(t, i, u.Position)
	}
	assert.Equal(t, "Öffnen", got.Units[2].Target)
	assert.True(t, got.Units[3].IsPlural())

	_, err = s.Translation(ctx, "fr")
	assert.ErrorIs(t, err, store.ErrNoTranslation)
}

func TestLanguagesSorted(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for _, lang := range []string{"ru", "de", "fr"} {
		_, err := s.Create(ctx, lang, sampleUnits())
		require.NoError(t, err)
	}
	langs, err := s.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "fr", "ru"}, langs)
}

func TestLookupMatchesExactContext(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	tr, err := s.Create(ctx, "de", sampleUnits())
	require.NoError(t, err)

	u, err := s.Lookup(ctx, tr, "Open", "button")
	require.NoError(t, err)
	assert.Equal(t, "Öffnen", u.Target)

	u, err = s.Lookup(ctx, tr, "Open", "menu")
	require.NoError(t, err)
	assert.Equal(t, "", u.Target)

	_, err = s.Lookup(ctx, tr, "Open", "")
	assert.True(t, errors.Is(err, merge.ErrNotFound))
}

func TestReopenKeepsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transmerge.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create(ctx, "de", sampleUnits())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)

	langs, err := s.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"de"}, langs)
}

func TestImportBatchThroughEngine(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	tr, err := s.Create(ctx, "de", sampleUnits())
	require.NoError(t, err)

	engine := merge.NewEngine(s)
	report, err := engine.ImportBatch(ctx, tr, []merge.Record{
		{Source: "Hello", Target: plural.Plain("Hallo")},
		{Source: "Open", Context: "button", Target: plural.Plain("Aufmachen")},
		{Source: plural.Join([]string{"%d file", "%d files"}), Target: plural.Forms{"%d Datei", "%d Dateien"}},
		{Source: "Missing", Target: plural.Plain("Fehlt")},
	}, merge.Policy{Method: merge.MethodTranslate})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 1, report.NotFound)
	assert.Equal(t, 2, report.Skipped)

	got, err := s.Translation(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stats.Translated)
	assert.Equal(t, 4, got.Stats.Total)
	assert.Equal(t, "Hallo", got.Units[0].Target)
	assert.Equal(t, "Öffnen", got.Units[2].Target)
	assert.Equal(t, []string{"%d Datei", "%d Dateien"}, got.Units[3].TargetForms())
}

func TestSuggestionsStored(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	tr, err := s.Create(ctx, "de", sampleUnits())
	require.NoError(t, err)

	engine := merge.NewEngine(s)
	report, err := engine.ImportBatch(ctx, tr, []merge.Record{
		{Source: "Open", Context: "button", Target: plural.Plain("Aufmachen")},
	}, merge.Policy{Method: merge.MethodSuggest, Author: "anna"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Suggested)

	sgs, err := s.Suggestions(ctx, "de")
	require.NoError(t, err)
	require.Len(t, sgs, 1)
	assert.NotEmpty(t, sgs[0].ID)
	assert.Equal(t, "Aufmachen", sgs[0].Target)
	assert.Equal(t, "anna", sgs[0].Author)
	assert.Equal(t, tr.Units[2].IDHash(), sgs[0].IDHash)

	u, err := s.Lookup(ctx, tr, "Open", "button")
	require.NoError(t, err)
	assert.Equal(t, 1, u.SuggestionCount)
	assert.Equal(t, "Öffnen", u.Target)
}

func TestSaveUnitForeignTranslation(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "de", sampleUnits())
	require.NoError(t, err)

	err = s.SaveUnit(ctx, &corpus.Translation{Language: "fr"}, &corpus.Unit{Source: "Hello", Target: "Bonjour"})
	assert.Error(t, err)
}

func TestSerializeCancelled(t *testing.T) {
	s := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Serialize(ctx, "de", func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestSuggestionsRejectsCorruptTimestamp(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	_, err := s.Create(ctx, "de", sampleUnits())
	require.NoError(t, err)

	_, err = s.DB.Exec(`INSERT INTO suggestions(id, language, id_hash, target, author, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"s1", "de", 42, "Hallo", "", "yesterday")
	require.NoError(t, err)

	_, err = s.Suggestions(ctx, "de")
	assert.ErrorContains(t, err, "created_at")
}

func TestMigrationsRecordedOnce(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.migrate(context.Background()))

	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, "0001_init.sql").Scan(&n))
	assert.Equal(t, 1, n)
}
