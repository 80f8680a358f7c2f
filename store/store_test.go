package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/minios-linux/transmerge/corpus"
	"github.com/minios-linux/transmerge/idhash"
	"github.com/minios-linux/transmerge/merge"
)

func sampleUnits() []*corpus.Unit {
	return []*corpus.Unit{
		{Source: "Hello"},
		{Source: "Open", Context: "menu"},
		{Source: "Open", Context: "button", Target: "Öffnen"},
	}
}

func TestLoadNonExistent(t *testing.T) {
	m, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	langs, _ := m.Languages(context.Background())
	if len(langs) != 0 {
		t.Fatalf("Languages = %v, want empty", langs)
	}
}

func TestCreateAssignsPositionsAndStats(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	input := sampleUnits()
	tr, err := m.Create(ctx, "de", input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if tr.Stats.Total != 3 || tr.Stats.Translated != 1 {
		t.Fatalf("Stats = %+v, want total=3 translated=1", tr.Stats)
	}
	for i, u := range tr.Units {
		if u.Position != i {
			t.Fatalf("unit %d position = %d", i, u.Position)
		}
	}
	if tr.Units[0] == input[0] {
		t.Fatal("Create should copy units")
	}

	if _, err := m.Create(ctx, "de", nil); !errors.Is(err, ErrExists) {
		t.Fatalf("second Create error = %v, want ErrExists", err)
	}
}

func TestLookupMatchesExactSourceAndContext(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tr, _ := m.Create(ctx, "de", sampleUnits())

	u, err := m.Lookup(ctx, tr, "Open", "button")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if u.Target != "Öffnen" {
		t.Fatalf("Lookup returned wrong unit: %+v", u)
	}

	if _, err := m.Lookup(ctx, tr, "Open", ""); !errors.Is(err, merge.ErrNotFound) {
		t.Fatalf("Lookup(Open, \"\") error = %v, want ErrNotFound", err)
	}
	if _, err := m.Lookup(ctx, &corpus.Translation{Language: "fr"}, "Hello", ""); !errors.Is(err, ErrNoTranslation) {
		t.Fatalf("Lookup(fr) error = %v, want ErrNoTranslation", err)
	}
}

func TestLookupDoesNotConfuseHashCollisions(t *testing.T) {
	// "ab"+"c" and "a"+"bc" share an identity hash.
	m := NewMemory()
	ctx := context.Background()
	tr, _ := m.Create(ctx, "de", []*corpus.Unit{
		{Source: "ab", Context: "c", Target: "first"},
		{Source: "a", Context: "bc", Target: "second"},
	})
	if tr.Units[0].IDHash() != tr.Units[1].IDHash() {
		t.Fatal("expected colliding identity hashes")
	}

	u, err := m.Lookup(ctx, tr, "a", "bc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if u.Target != "second" {
		t.Fatalf("Lookup(a, bc) = %q, want second", u.Target)
	}
}

func TestSaveUnitRejectsForeignUnit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tr, _ := m.Create(ctx, "de", sampleUnits())

	if err := m.SaveUnit(ctx, tr, &corpus.Unit{Source: "Hello", Target: "Hallo"}); err != nil {
		t.Fatalf("SaveUnit(known unit): %v", err)
	}
	if got := tr.Units[0].Target; got != "Hallo" {
		t.Fatalf("stored target = %q, want Hallo", got)
	}
	if err := m.SaveUnit(ctx, tr, &corpus.Unit{Source: "Goodbye"}); err == nil {
		t.Fatal("SaveUnit(foreign unit) should fail")
	}
	if err := m.SaveUnit(ctx, tr, &corpus.Unit{Source: "Open"}); err == nil {
		t.Fatal("SaveUnit(unit with wrong context) should fail")
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tr, _ := m.Create(ctx, "de", sampleUnits())

	u, err := m.Lookup(ctx, tr, "Hello", "")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	u.Target = "Hallo"
	if got := tr.Units[0].Target; got != "" {
		t.Fatalf("stored target = %q after editing lookup result, want empty", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tr, _ := m.Create(ctx, "ru", sampleUnits())
	if _, err := m.Create(ctx, "de", sampleUnits()[:1]); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tr.Units[0].Target = "Привет"
	tr.Recompute()
	if err := m.SaveStats(ctx, tr); err != nil {
		t.Fatalf("SaveStats: %v", err)
	}
	if err := m.AddSuggestion(ctx, tr, tr.Units[1], corpus.Suggestion{
		Language: "ru",
		IDHash:   tr.Units[1].IDHash(),
		Target:   "Открыть",
		Author:   "tester",
	}); err != nil {
		t.Fatalf("AddSuggestion: %v", err)
	}

	if err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Fatalf("corpus file not created: %v", err)
	}

	m2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	langs, _ := m2.Languages(ctx)
	if len(langs) != 2 || langs[0] != "de" || langs[1] != "ru" {
		t.Fatalf("Languages = %v, want [de ru]", langs)
	}
	ru, err := m2.Translation(ctx, "ru")
	if err != nil {
		t.Fatalf("Translation(ru): %v", err)
	}
	if ru.Stats.Translated != 2 || ru.Stats.Total != 3 {
		t.Fatalf("reloaded stats = %+v", ru.Stats)
	}
	u, err := m2.Lookup(ctx, ru, "Hello", "")
	if err != nil || u.Target != "Привет" {
		t.Fatalf("reloaded Lookup = %+v, %v", u, err)
	}
	sugg, _ := m2.Suggestions(ctx, "ru")
	if len(sugg) != 1 || sugg[0].Target != "Открыть" || sugg[0].IDHash != idhash.Compute("Open", "menu") {
		t.Fatalf("reloaded suggestions = %+v", sugg)
	}
	if sugg[0].ID == "" {
		t.Fatal("suggestion id should be assigned")
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("version: 99\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load should reject a newer format version")
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := NewMemory().Save(); err == nil {
		t.Fatal("Save without path should fail")
	}
}

func TestSerializeExcludesSameLanguage(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		running int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Serialize(ctx, "de", func() error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent batches = %d, want 1", maxSeen)
	}
}

func TestSerializeHonoursCancellation(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := m.Serialize(ctx, "de", func() error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("Serialize(cancelled) = %v, called=%v", err, called)
	}
}
