package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/minios-linux/transmerge/corpus"
	"github.com/minios-linux/transmerge/idhash"
	"github.com/minios-linux/transmerge/merge"
	"github.com/minios-linux/transmerge/store"
)

var unitColumns = []string{"source", "context", "target", "fuzzy", "suggestion_count", "position"}

// Store is an SQLite-backed corpus.
type Store struct {
	DB *sql.DB
	SQ sq.StatementBuilderType

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var (
	_ merge.Store      = (*Store)(nil)
	_ merge.Serializer = (*Store)(nil)
)

// Create adds a translation for language with the given units.
func (s *Store) Create(ctx context.Context, language string, units []*corpus.Unit) (*corpus.Translation, error) {
	tr := &corpus.Translation{Language: language}
	for i, u := range units {
		cp := *u
		cp.Position = i
		tr.Units = append(tr.Units, &cp)
	}
	tr.Recompute()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		q, args, err := s.SQ.Select("COUNT(*)").From("translations").Where(sq.Eq{"language": language}).ToSql()
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", store.ErrExists, language)
		}

		q, args, err = s.SQ.Insert("translations").
			Columns("language", "translated", "fuzzy", "total").
			Values(language, tr.Stats.Translated, tr.Stats.Fuzzy, tr.Stats.Total).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert translation: %w", err)
		}

		for _, u := range tr.Units {
			q, args, err := s.SQ.Insert("units").
				Columns(append([]string{"language", "id_hash"}, unitColumns...)...).
				Values(language, int64(u.IDHash()), u.Source, u.Context, u.Target, u.Fuzzy, u.SuggestionCount, u.Position).
				ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, q, args...); err != nil {
				return fmt.Errorf("insert unit %s: %w", u.Checksum(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// Translation loads the translation of language with all its units.
func (s *Store) Translation(ctx context.Context, language string) (*corpus.Translation, error) {
	q, args, err := s.SQ.Select("translated", "fuzzy", "total").From("translations").
		Where(sq.Eq{"language": language}).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	tr := &corpus.Translation{Language: language}
	err = s.DB.QueryRowContext(ctx, q, args...).Scan(&tr.Stats.Translated, &tr.Stats.Fuzzy, &tr.Stats.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNoTranslation, language)
	}
	if err != nil {
		return nil, err
	}
	tr.Units, err = s.Units(ctx, tr)
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// Languages returns the stored languages in sorted order.
func (s *Store) Languages(ctx context.Context) ([]string, error) {
	q, args, err := s.SQ.Select("language").From("translations").OrderBy("language").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var langs []string
	for rows.Next() {
		var lang string
		if err := rows.Scan(&lang); err != nil {
			return nil, err
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}

// Suggestions returns the suggestions recorded for language, oldest
// first.
func (s *Store) Suggestions(ctx context.Context, language string) ([]corpus.Suggestion, error) {
	q, args, err := s.SQ.Select("id", "id_hash", "target", "author", "created_at").From("suggestions").
		Where(sq.Eq{"language": language}).OrderBy("created_at", "rowid").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []corpus.Suggestion
	for rows.Next() {
		sg := corpus.Suggestion{Language: language}
		var h int64
		var created string
		if err := rows.Scan(&sg.ID, &h, &sg.Target, &sg.Author, &created); err != nil {
			return nil, err
		}
		sg.IDHash = idhash.Hash(h)
		if sg.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("suggestion %s: created_at: %w", sg.ID, err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// Lookup implements merge.Store. Rows are selected by identity hash and
// then compared on the exact source and context.
func (s *Store) Lookup(ctx context.Context, tr *corpus.Translation, source, msgctxt string) (*corpus.Unit, error) {
	q, args, err := s.SQ.Select(unitColumns...).From("units").
		Where(sq.Eq{"language": tr.Language, "id_hash": int64(idhash.Compute(source, msgctxt))}).
		ToSql()
	if err != nil {
		return nil, err
	}
	units, err := s.queryUnits(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	for _, u := range units {
		if u.Matches(source, msgctxt) {
			return u, nil
		}
	}
	return nil, merge.ErrNotFound
}

// SaveUnit implements merge.Store.
func (s *Store) SaveUnit(ctx context.Context, tr *corpus.Translation, u *corpus.Unit) error {
	q, args, err := s.SQ.Update("units").
		Set("target", u.Target).
		Set("fuzzy", u.Fuzzy).
		Set("suggestion_count", u.SuggestionCount).
		Where(sq.Eq{"language": tr.Language, "source": u.Source, "context": u.Context}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update unit %s: %w", u.Checksum(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unit %s does not belong to translation %s", u.Checksum(), tr.Language)
	}
	return nil
}

// AddSuggestion implements merge.Store.
func (s *Store) AddSuggestion(ctx context.Context, tr *corpus.Translation, u *corpus.Unit, sg corpus.Suggestion) error {
	if sg.ID == "" {
		sg.ID = uuid.NewString()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		q, args, err := s.SQ.Insert("suggestions").
			Columns("id", "language", "id_hash", "target", "author", "created_at").
			Values(sg.ID, tr.Language, int64(sg.IDHash), sg.Target, sg.Author, sg.CreatedAt.UTC().Format(time.RFC3339Nano)).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert suggestion: %w", err)
		}

		q, args, err = s.SQ.Update("units").
			Set("suggestion_count", u.SuggestionCount).
			Where(sq.Eq{"language": tr.Language, "source": u.Source, "context": u.Context}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("update suggestion count: %w", err)
		}
		return nil
	})
}

// Units implements merge.Store.
func (s *Store) Units(ctx context.Context, tr *corpus.Translation) ([]*corpus.Unit, error) {
	q, args, err := s.SQ.Select(unitColumns...).From("units").
		Where(sq.Eq{"language": tr.Language}).OrderBy("position").ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryUnits(ctx, q, args...)
}

// SaveStats implements merge.Store.
func (s *Store) SaveStats(ctx context.Context, tr *corpus.Translation) error {
	q, args, err := s.SQ.Update("translations").
		Set("translated", tr.Stats.Translated).
		Set("fuzzy", tr.Stats.Fuzzy).
		Set("total", tr.Stats.Total).
		Where(sq.Eq{"language": tr.Language}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNoTranslation, tr.Language)
	}
	return nil
}

// Serialize implements merge.Serializer.
func (s *Store) Serialize(ctx context.Context, language string, fn func() error) error {
	s.mu.Lock()
	lock, ok := s.locks[language]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[language] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

func (s *Store) queryUnits(ctx context.Context, q string, args ...any) ([]*corpus.Unit, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*corpus.Unit
	for rows.Next() {
		var u corpus.Unit
		if err := rows.Scan(&u.Source, &u.Context, &u.Target, &u.Fuzzy, &u.SuggestionCount, &u.Position); err != nil {
			return nil, err
		}
		units = append(units, &u)
	}
	return units, rows.Err()
}
