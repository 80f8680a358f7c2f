// Package merge applies externally authored translations to an existing
// translation.
//
// Each incoming record is matched to a unit by exact source and context.
// Depending on the import policy the record becomes the unit's target,
// a fuzzy target, or a suggestion. A unit that is already translated is
// left alone unless the policy allows overwriting. Records that cannot
// be matched or are malformed are skipped without aborting the batch.
package merge

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/minios-linux/transmerge/corpus"
	"github.com/minios-linux/transmerge/plural"
	"github.com/minios-linux/transmerge/stats"
)

// ErrInvalidRecord marks an incoming record that cannot be imported.
var ErrInvalidRecord = errors.New("invalid record")

// ErrNotFound is returned by Store.Lookup when no unit matches.
var ErrNotFound = errors.New("unit not found")

// Record is one parsed translation from an import file.
type Record struct {
	// Source is the source string, plural forms joined with plural.Join.
	Source string
	// Context disambiguates identical sources.
	Context string
	// Target is the imported translation.
	Target plural.Value
}

// RecordError describes why a record was rejected.
type RecordError struct {
	Index   int
	Source  string
	Context string
	Reason  string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%q): %s", e.Index, e.Source, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidRecord.
func (e *RecordError) Unwrap() error {
	return ErrInvalidRecord
}

// Store is the storage the engine reads units from and writes them to.
// Implementations must keep concurrent batches for the same translation
// apart, either by implementing Serializer or by the caller.
type Store interface {
	// Lookup returns the unit of tr with exactly this source and
	// context, or ErrNotFound.
	Lookup(ctx context.Context, tr *corpus.Translation, source, msgctxt string) (*corpus.Unit, error)
	// SaveUnit persists the target, fuzzy flag and suggestion count of u
	// onto the stored unit with the same source and context.
	SaveUnit(ctx context.Context, tr *corpus.Translation, u *corpus.Unit) error
	// AddSuggestion records s and persists the suggestion count of u.
	AddSuggestion(ctx context.Context, tr *corpus.Translation, u *corpus.Unit, s corpus.Suggestion) error
	// Units returns the current units of tr.
	Units(ctx context.Context, tr *corpus.Translation) ([]*corpus.Unit, error)
	// SaveStats persists tr.Stats.
	SaveStats(ctx context.Context, tr *corpus.Translation) error
}

// Serializer is implemented by stores that can run a function while
// holding the exclusive import lock of a language.
type Serializer interface {
	Serialize(ctx context.Context, language string, fn func() error) error
}

// Report summarizes a batch.
type Report struct {
	// Updated counts units whose target was written.
	Updated int
	// Suggested counts suggestions recorded.
	Suggested int
	// Skipped counts records that changed nothing:
	// NotFound + Conflicts + Invalid.
	Skipped int
	// NotFound counts records without a matching unit.
	NotFound int
	// Conflicts counts records skipped because the unit was already
	// translated and overwriting was not allowed.
	Conflicts int
	// Invalid counts malformed records.
	Invalid int
	// Errors holds one *RecordError per invalid record.
	Errors []error
	// Stats are the translation counters after the batch.
	Stats stats.Counts
}

// Engine runs import batches against a Store.
type Engine struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-record decisions.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source used for suggestions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the function that names new suggestions. Stores
// that assign their own ids may ignore it.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine returns an engine writing to store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: log.Logger,
		now:    time.Now,
		newID:  func() string { return "" },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ImportBatch applies records to tr under policy and recomputes the
// translation statistics. Malformed or unmatched records are skipped
// and counted; only storage failures abort the batch.
func (e *Engine) ImportBatch(ctx context.Context, tr *corpus.Translation, records []Record, policy Policy) (Report, error) {
	if policy.Method == "" {
		policy.Method = MethodTranslate
	}
	if _, err := ParseMethod(string(policy.Method)); err != nil {
		return Report{}, err
	}

	var report Report
	run := func() error {
		var err error
		report, err = e.importBatch(ctx, tr, records, policy)
		return err
	}

	if s, ok := e.store.(Serializer); ok {
		err := s.Serialize(ctx, tr.Language, run)
		return report, err
	}
	err := run()
	return report, err
}

func (e *Engine) importBatch(ctx context.Context, tr *corpus.Translation, records []Record, policy Policy) (Report, error) {
	var report Report
	logger := e.logger.With().
		Str("language", tr.Language).
		Str("method", policy.Method.String()).
		Bool("overwrite", policy.Overwrite).
		Logger()

	for i, rec := range records {
		if err := validate(i, rec); err != nil {
			logger.Warn().Err(err).Msg("skipping invalid record")
			report.Invalid++
			report.Errors = append(report.Errors, err)
			continue
		}

		unit, err := e.store.Lookup(ctx, tr, rec.Source, rec.Context)
		if errors.Is(err, ErrNotFound) {
			logger.Debug().Str("source", rec.Source).Str("context", rec.Context).Msg("no matching unit")
			report.NotFound++
			continue
		}
		if err != nil {
			return e.abort(ctx, tr, report, fmt.Errorf("looking up record %d: %w", i, err))
		}

		target := plural.Normalize(rec.Target)
		// Changes are made on a copy so a failed write leaves the stored
		// unit untouched.
		next := *unit

		switch policy.Method {
		case MethodSuggest:
			s := corpus.Suggestion{
				ID:        e.newID(),
				Language:  tr.Language,
				IDHash:    next.IDHash(),
				Target:    target,
				Author:    policy.Author,
				CreatedAt: e.now().UTC(),
			}
			next.SuggestionCount++
			if err := e.store.AddSuggestion(ctx, tr, &next, s); err != nil {
				return e.abort(ctx, tr, report, fmt.Errorf("adding suggestion for record %d: %w", i, err))
			}
			logger.Debug().Str("checksum", next.Checksum()).Msg("suggestion recorded")
			report.Suggested++

		default:
			if next.IsTranslated() && !policy.Overwrite {
				logger.Debug().Str("checksum", next.Checksum()).Msg("already translated, keeping existing target")
				report.Conflicts++
				continue
			}
			next.Target = target
			next.Fuzzy = policy.Method == MethodFuzzy
			if err := e.store.SaveUnit(ctx, tr, &next); err != nil {
				return e.abort(ctx, tr, report, fmt.Errorf("saving record %d: %w", i, err))
			}
			logger.Debug().Str("checksum", next.Checksum()).Bool("fuzzy", next.Fuzzy).Msg("unit updated")
			report.Updated++
		}
	}

	if err := e.refreshStats(ctx, tr); err != nil {
		return summarize(report), err
	}
	report.Stats = tr.Stats
	report = summarize(report)

	logger.Info().
		Int("updated", report.Updated).
		Int("suggested", report.Suggested).
		Int("skipped", report.Skipped).
		Int("translated", report.Stats.Translated).
		Int("fuzzy", report.Stats.Fuzzy).
		Int("total", report.Stats.Total).
		Msg("import finished")
	return report, nil
}

// abort ends a batch after a storage failure. Records written before
// the failure stay applied, so the statistics are still recomputed,
// even when ctx was cancelled.
func (e *Engine) abort(ctx context.Context, tr *corpus.Translation, report Report, cause error) (Report, error) {
	if err := e.refreshStats(context.WithoutCancel(ctx), tr); err != nil {
		cause = errors.Join(cause, err)
	}
	report.Stats = tr.Stats
	e.logger.Error().Err(cause).Str("language", tr.Language).Msg("import aborted")
	return summarize(report), cause
}

// refreshStats recomputes tr.Stats from the stored units and saves them.
func (e *Engine) refreshStats(ctx context.Context, tr *corpus.Translation) error {
	units, err := e.store.Units(ctx, tr)
	if err != nil {
		return fmt.Errorf("loading units: %w", err)
	}
	tr.Stats = stats.Recompute(units)
	if err := e.store.SaveStats(ctx, tr); err != nil {
		return fmt.Errorf("saving stats: %w", err)
	}
	return nil
}

func summarize(r Report) Report {
	r.Skipped = r.NotFound + r.Conflicts + r.Invalid
	return r
}

func validate(i int, rec Record) error {
	fail := func(reason string) error {
		return &RecordError{Index: i, Source: rec.Source, Context: rec.Context, Reason: reason}
	}
	if !utf8.ValidString(rec.Source) || !utf8.ValidString(rec.Context) {
		return fail("source is not valid UTF-8")
	}
	switch v := rec.Target.(type) {
	case plural.Plain:
		if !utf8.ValidString(string(v)) {
			return fail("target is not valid UTF-8")
		}
	case plural.Forms:
		for _, f := range v {
			if !utf8.ValidString(f) {
				return fail("target is not valid UTF-8")
			}
		}
	}
	if !plural.Valid(rec.Target) {
		return fail("target cannot be encoded as plural forms")
	}
	return nil
}
