// Package store keeps translations in memory and persists them as
// corpus.yaml.
//
// Units are indexed by their identity hash; a lookup still compares the
// exact source and context, so two strings sharing a hash never match
// each other. Import batches for one language are serialized through
// Serialize.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/transmerge/corpus"
	"github.com/minios-linux/transmerge/idhash"
	"github.com/minios-linux/transmerge/merge"
)

// FileName is the default corpus file name.
const FileName = "corpus.yaml"

// Version is the corpus file format version.
const Version = 1

var (
	// ErrNoTranslation is returned for languages that were never created.
	ErrNoTranslation = errors.New("translation does not exist")
	// ErrExists is returned when creating a language twice.
	ErrExists = errors.New("translation already exists")
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// document is the on-disk layout of corpus.yaml.
type document struct {
	Version      int                   `yaml:"version"`
	Translations []*corpus.Translation `yaml:"translations"`
	Suggestions  []corpus.Suggestion   `yaml:"suggestions,omitempty"`
}

// Memory is an in-memory corpus, optionally backed by a YAML file.
type Memory struct {
	mu           sync.Mutex
	translations map[string]*corpus.Translation
	index        map[string]map[idhash.Hash][]*corpus.Unit
	suggestions  []corpus.Suggestion
	locks        map[string]*sync.Mutex

	path string
}

var (
	_ merge.Store      = (*Memory)(nil)
	_ merge.Serializer = (*Memory)(nil)
)

// NewMemory returns an empty corpus that is not bound to a file.
func NewMemory() *Memory {
	return &Memory{
		translations: make(map[string]*corpus.Translation),
		index:        make(map[string]map[idhash.Hash][]*corpus.Unit),
		locks:        make(map[string]*sync.Mutex),
	}
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads corpus.yaml from dir. A missing file yields an empty
// corpus bound to that path.
func Load(dir string) (*Memory, error) {
	path := filepath.Join(dir, FileName)
	m := NewMemory()
	m.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Version > Version {
		return nil, fmt.Errorf("%s: unsupported version %d (max %d)", path, doc.Version, Version)
	}

	for _, tr := range doc.Translations {
		if tr == nil || tr.Language == "" {
			return nil, fmt.Errorf("%s: translation without language", path)
		}
		if _, ok := m.translations[tr.Language]; ok {
			return nil, fmt.Errorf("%s: duplicate translation %q", path, tr.Language)
		}
		m.add(tr)
	}
	m.suggestions = doc.Suggestions

	return m, nil
}

// Save writes the corpus to its file.
func (m *Memory) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.path == "" {
		return fmt.Errorf("corpus file path not set")
	}

	doc := document{Version: Version, Suggestions: m.suggestions}
	for _, lang := range m.languagesLocked() {
		doc.Translations = append(doc.Translations, m.translations[lang])
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshaling corpus: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("creating corpus dir: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", m.path, err)
	}
	return nil
}

// Path returns the corpus file path.
func (m *Memory) Path() string {
	return m.path
}

// ---------------------------------------------------------------------------
// Translations
// ---------------------------------------------------------------------------

// Create adds a translation for language with the given units. Unit
// positions are assigned in slice order.
func (m *Memory) Create(ctx context.Context, language string, units []*corpus.Unit) (*corpus.Translation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.translations[language]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, language)
	}
	tr := &corpus.Translation{Language: language}
	for i, u := range units {
		cp := *u
		cp.Position = i
		tr.Units = append(tr.Units, &cp)
	}
	tr.Recompute()
	m.add(tr)
	return tr, nil
}

// Translation returns the stored translation of language.
func (m *Memory) Translation(ctx context.Context, language string) (*corpus.Translation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.translations[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTranslation, language)
	}
	return tr, nil
}

// Languages returns the stored languages in sorted order.
func (m *Memory) Languages(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.languagesLocked(), nil
}

// Suggestions returns the suggestions recorded for language.
func (m *Memory) Suggestions(ctx context.Context, language string) ([]corpus.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []corpus.Suggestion
	for _, s := range m.suggestions {
		if s.Language == language {
			out = append(out, s)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// merge.Store
// ---------------------------------------------------------------------------

// Lookup implements merge.Store. The returned unit is a copy; changes
// are stored by SaveUnit.
func (m *Memory) Lookup(ctx context.Context, tr *corpus.Translation, source, msgctxt string) (*corpus.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[tr.Language]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTranslation, tr.Language)
	}
	u := m.findLocked(tr.Language, source, msgctxt)
	if u == nil {
		return nil, merge.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// SaveUnit implements merge.Store. It stores the target, fuzzy flag
// and suggestion count of u on the unit with the same source and
// context.
func (m *Memory) SaveUnit(ctx context.Context, tr *corpus.Translation, u *corpus.Unit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.findLocked(tr.Language, u.Source, u.Context)
	if stored == nil {
		return fmt.Errorf("unit %s does not belong to translation %s", u.Checksum(), tr.Language)
	}
	stored.Target = u.Target
	stored.Fuzzy = u.Fuzzy
	stored.SuggestionCount = u.SuggestionCount
	return nil
}

// AddSuggestion implements merge.Store. The suggestion count of u is
// stored with it.
func (m *Memory) AddSuggestion(ctx context.Context, tr *corpus.Translation, u *corpus.Unit, s corpus.Suggestion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.findLocked(tr.Language, u.Source, u.Context)
	if stored == nil {
		return fmt.Errorf("unit %s does not belong to translation %s", u.Checksum(), tr.Language)
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("%s-%d", tr.Language, len(m.suggestions)+1)
	}
	m.suggestions = append(m.suggestions, s)
	stored.SuggestionCount = u.SuggestionCount
	return nil
}

// Units implements merge.Store.
func (m *Memory) Units(ctx context.Context, tr *corpus.Translation) ([]*corpus.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.translations[tr.Language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTranslation, tr.Language)
	}
	units := make([]*corpus.Unit, len(stored.Units))
	copy(units, stored.Units)
	return units, nil
}

// SaveStats implements merge.Store.
func (m *Memory) SaveStats(ctx context.Context, tr *corpus.Translation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.translations[tr.Language]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTranslation, tr.Language)
	}
	stored.Stats = tr.Stats
	return nil
}

// Serialize implements merge.Serializer: fn runs while no other batch
// for language is running.
func (m *Memory) Serialize(ctx context.Context, language string, fn func() error) error {
	m.mu.Lock()
	lock, ok := m.locks[language]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[language] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (m *Memory) add(tr *corpus.Translation) {
	idx := make(map[idhash.Hash][]*corpus.Unit, len(tr.Units))
	for _, u := range tr.Units {
		h := u.IDHash()
		idx[h] = append(idx[h], u)
	}
	m.translations[tr.Language] = tr
	m.index[tr.Language] = idx
}

func (m *Memory) findLocked(language, source, msgctxt string) *corpus.Unit {
	for _, u := range m.index[language][idhash.Compute(source, msgctxt)] {
		if u.Matches(source, msgctxt) {
			return u
		}
	}
	return nil
}

func (m *Memory) languagesLocked() []string {
	langs := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
