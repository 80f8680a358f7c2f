// transmerge: translation identity, merge and statistics engine for
// gettext catalogs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/transmerge/collation"
	"github.com/minios-linux/transmerge/config"
	"github.com/minios-linux/transmerge/configerr"
	"github.com/minios-linux/transmerge/corpus"
	"github.com/minios-linux/transmerge/i18n"
	"github.com/minios-linux/transmerge/idhash"
	"github.com/minios-linux/transmerge/langmeta"
	"github.com/minios-linux/transmerge/logging"
	"github.com/minios-linux/transmerge/merge"
	"github.com/minios-linux/transmerge/pofile"
	"github.com/minios-linux/transmerge/stats"
	"github.com/minios-linux/transmerge/store"
	"github.com/minios-linux/transmerge/store/sqlite"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

var (
	rootDir    string
	configPath string
	logLevel   string
)

// ---------------------------------------------------------------------------
// Storage backends
// ---------------------------------------------------------------------------

// corpusStore is what the commands need from a storage backend.
type corpusStore interface {
	merge.Store
	Create(ctx context.Context, language string, units []*corpus.Unit) (*corpus.Translation, error)
	Translation(ctx context.Context, language string) (*corpus.Translation, error)
	Languages(ctx context.Context) ([]string, error)
	Suggestions(ctx context.Context, language string) ([]corpus.Suggestion, error)
	// Commit persists pending changes.
	Commit() error
	Close() error
}

type yamlStore struct{ *store.Memory }

func (s yamlStore) Commit() error { return s.Save() }
func (s yamlStore) Close() error  { return nil }

type sqliteStore struct{ *sqlite.Store }

func (sqliteStore) Commit() error { return nil }

func openStore(cfg *config.Config) (corpusStore, error) {
	path := cfg.StorePath(rootDir)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		return sqliteStore{s}, nil
	default:
		m, err := store.Load(path)
		if err != nil {
			return nil, err
		}
		return yamlStore{m}, nil
	}
}

// app holds what every command shares once configuration is loaded.
type app struct {
	cfg    *config.Config
	sorter collation.Strategy
}

var current *app

func setup(cmd *cobra.Command) error {
	i18n.Init("")

	cfg, err := config.Load(rootDir, configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	logging.Setup(level, cfg.Log.Format, os.Stderr)

	current = &app{
		cfg:    cfg,
		sorter: collation.Select(cfg.Collation.Native, cfg.Collation.Locale),
	}
	log.Debug().
		Str("backend", cfg.Store.Backend).
		Str("collation", current.sorter.Name()).
		Msg("configuration loaded")
	return nil
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transmerge",
		Short: i18n.T("Translation identity, merge and statistics engine"),
		Long: `transmerge keeps a corpus of translations built from gettext templates.

Every source string gets a stable checksum derived from its text and
context. Uploaded PO files are merged into the corpus under a conflict
policy, and completion statistics are kept per language.

Commands:
  init           Create a translation from a POT template
  import         Merge PO files into the corpus
  export         Write a translation as a PO file
  stats          Show translation statistics
  checksum       Compute or decode unit checksums
  config-errors  List configuration problems`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <root>/"+config.FileName+")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	root.AddCommand(
		newInitCmd(),
		newImportCmd(),
		newExportCmd(),
		newStatsCmd(),
		newChecksumCmd(),
		newConfigErrorsCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("transmerge version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// init (create a translation from a template)
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var template string

	cmd := &cobra.Command{
		Use:   "init LANG --template FILE.pot",
		Short: "Create a translation from a POT template",
		Long: `Create an empty translation for LANG with one unit per template entry.

Entries that already carry a translation in the template keep it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), current, args[0], template)
		},
	}

	cmd.Flags().StringVarP(&template, "template", "t", "", "POT template file")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

func runInit(ctx context.Context, a *app, lang, template string) error {
	pot, err := pofile.ParseFile(template)
	if err != nil {
		return err
	}
	units := pot.Units()
	if len(units) == 0 {
		return fmt.Errorf(i18n.T("no translatable entries in %s"), template)
	}

	st, err := openStore(a.cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tr, err := st.Create(ctx, lang, units)
	if err != nil {
		return err
	}
	if err := st.Commit(); err != nil {
		return err
	}
	logSuccess(i18n.N("Created %s with %d unit", "Created %s with %d units", len(tr.Units)), lang, len(tr.Units))
	return nil
}

// ---------------------------------------------------------------------------
// import (merge PO files into the corpus)
// ---------------------------------------------------------------------------

type importArgs struct {
	lang      string
	method    merge.Method
	overwrite bool
	author    string
	fuzzy     bool
	jobs      int
}

type importResult struct {
	file   string
	lang   string
	report merge.Report
}

func newImportCmd() *cobra.Command {
	var a importArgs

	cmd := &cobra.Command{
		Use:   "import FILE.po...",
		Short: "Merge PO files into the corpus",
		Long: `Merge translated PO files into existing translations.

Methods:
  translate  Store imported strings as translations (default)
  fuzzy      Store imported strings as translations needing review
  suggest    Record imported strings as suggestions only

Units that are already translated are kept unless --overwrite is given.
Files for different languages are imported concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := current.cfg.Policy()
			if cmd.Flags().Changed("method") {
				policy.Method = a.method
			}
			if cmd.Flags().Changed("overwrite") {
				policy.Overwrite = a.overwrite
			}
			if cmd.Flags().Changed("author") {
				policy.Author = a.author
			}
			if !cmd.Flags().Changed("fuzzy") {
				a.fuzzy = current.cfg.Import.Fuzzy
			}
			return runImport(cmd.Context(), current, args, a, policy)
		},
	}

	a.method = merge.MethodTranslate
	cmd.Flags().StringVarP(&a.lang, "lang", "l", "", "Target language (default: Language header of each file)")
	cmd.Flags().VarP(&a.method, "method", "m", "Import method: translate, fuzzy, suggest")
	cmd.Flags().BoolVar(&a.overwrite, "overwrite", false, "Replace existing translations")
	cmd.Flags().StringVar(&a.author, "author", "", "Author recorded on suggestions")
	cmd.Flags().BoolVar(&a.fuzzy, "fuzzy", false, "Also import entries marked fuzzy")
	cmd.Flags().IntVarP(&a.jobs, "jobs", "j", runtime.NumCPU(), "Files imported in parallel")

	return cmd
}

func runImport(ctx context.Context, a *app, files []string, args importArgs, policy merge.Policy) error {
	st, err := openStore(a.cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	engine := merge.NewEngine(st, merge.WithLogger(log.Logger))

	var (
		mu      sync.Mutex
		results []importResult
		errs    []error
		touched bool
	)
	// A failing file must not cancel batches that are already running,
	// so only the caller's ctx stops the import.
	var g errgroup.Group
	if args.jobs > 0 {
		g.SetLimit(args.jobs)
	}
	for _, file := range files {
		g.Go(func() error {
			res, started, err := importFile(ctx, st, engine, file, args, policy)
			mu.Lock()
			defer mu.Unlock()
			touched = touched || started
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	// Finished and aborted batches leave consistent units and stats;
	// persist them even when another file failed.
	if touched {
		if err := st.Commit(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range results {
		printImportReport(r)
	}
	return errors.Join(errs...)
}

// importFile runs one batch. started reports whether the store may have
// been written to.
func importFile(ctx context.Context, st corpusStore, engine *merge.Engine, file string, args importArgs, policy merge.Policy) (res importResult, started bool, err error) {
	f, err := pofile.ParseFile(file)
	if err != nil {
		return res, false, err
	}
	lang := args.lang
	if lang == "" {
		lang = f.Language()
	}
	if lang == "" {
		return res, false, fmt.Errorf(i18n.T("%s: no Language header, use --lang"), file)
	}
	tr, err := st.Translation(ctx, lang)
	if err != nil {
		return res, false, fmt.Errorf("%s: %w", file, err)
	}
	report, err := engine.ImportBatch(ctx, tr, f.Records(args.fuzzy), policy)
	if err != nil {
		return res, true, fmt.Errorf("%s: %w", file, err)
	}
	return importResult{file: file, lang: lang, report: report}, true, nil
}

func printImportReport(r importResult) {
	rep := r.report
	logSuccess(i18n.T("%s -> %s: %d updated, %d suggested, %d skipped (%.1f%% translated)"),
		r.file, r.lang, rep.Updated, rep.Suggested, rep.Skipped, rep.Stats.TranslatedPercent())
	if rep.NotFound > 0 {
		logInfo(i18n.N("%d string not found in the translation", "%d strings not found in the translation", rep.NotFound), rep.NotFound)
	}
	if rep.Conflicts > 0 {
		logInfo(i18n.N("%d string already translated, use --overwrite to replace", "%d strings already translated, use --overwrite to replace", rep.Conflicts), rep.Conflicts)
	}
	for _, err := range rep.Errors {
		logWarning("%v", err)
	}
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export LANG",
		Short: "Write a translation as a PO file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), current, args[0], output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")

	return cmd
}

func runExport(ctx context.Context, a *app, lang, output string, stdout io.Writer) error {
	st, err := openStore(a.cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tr, err := st.Translation(ctx, lang)
	if err != nil {
		return err
	}
	f := pofile.FromTranslation(tr, a.cfg.Project)
	if output == "" || output == "-" {
		return f.Write(stdout)
	}
	if err := f.WriteFile(output); err != nil {
		return err
	}
	logSuccess(i18n.T("Exported %s to %s"), lang, output)
	return nil
}

// ---------------------------------------------------------------------------
// stats
// ---------------------------------------------------------------------------

type langStats struct {
	meta        langmeta.Meta
	counts      stats.Counts
	suggestions int
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [LANG...]",
		Short: "Show translation statistics",
		Long: `Show per-language translation progress.

Languages are listed by display name in the configured collation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), current, args)
		},
	}
}

func runStats(ctx context.Context, a *app, langs []string) error {
	st, err := openStore(a.cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(langs) == 0 {
		if langs, err = st.Languages(ctx); err != nil {
			return err
		}
	}
	if len(langs) == 0 {
		logInfo(i18n.T("No translations yet. Run 'transmerge init LANG --template FILE.pot'."))
		return nil
	}

	var rows []langStats
	for _, lang := range langs {
		tr, err := st.Translation(ctx, lang)
		if errors.Is(err, store.ErrNoTranslation) {
			logWarning("%v", err)
			continue
		}
		if err != nil {
			return err
		}
		sgs, err := st.Suggestions(ctx, lang)
		if err != nil {
			return err
		}
		rows = append(rows, langStats{meta: langmeta.Resolve(lang), counts: tr.Stats, suggestions: len(sgs)})
	}
	rows = collation.Sort(a.sorter, rows, func(r langStats) string { return r.meta.Name })

	width := langColumnWidth(rows)
	fmt.Fprintf(os.Stderr, "\n%sTranslation Statistics%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", width+60))
	fmt.Fprintf(os.Stderr, "%-*s %-10s %-8s %-9s %-8s %s\n", width, "Language", "Translated", "Fuzzy", "Untrans.", "Sugg.", "Progress")
	for _, r := range rows {
		c := r.counts
		fmt.Fprintf(os.Stderr, "%s %-10d %-8d %-9d %-8d %s %5.1f%%\n",
			langCell(r.meta, width), c.Translated, c.Fuzzy, c.Untranslated(), r.suggestions,
			progressBar(int(c.TranslatedPercent()), 20), c.TranslatedPercent())
	}
	fmt.Fprintln(os.Stderr, strings.Repeat("─", width+60))
	fmt.Fprintln(os.Stderr)
	return nil
}

func langLabel(m langmeta.Meta) string {
	label := m.Name + " (" + m.Code + ")"
	if m.Flag != "" {
		label = m.Flag + " " + label
	}
	return label
}

func langColumnWidth(rows []langStats) int {
	width := len("Language")
	for _, r := range rows {
		if n := len([]rune(langLabel(r.meta))); n > width {
			width = n
		}
	}
	return width
}

func langCell(m langmeta.Meta, width int) string {
	label := langLabel(m)
	if pad := width - len([]rune(label)); pad > 0 {
		label += strings.Repeat(" ", pad)
	}
	return label
}

func progressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100

	color := colorRed
	switch {
	case percent >= 90:
		color = colorGreen
	case percent >= 50:
		color = colorYellow
	}
	return color + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + colorReset
}

// ---------------------------------------------------------------------------
// checksum
// ---------------------------------------------------------------------------

func newChecksumCmd() *cobra.Command {
	var (
		msgctxt string
		decode  bool
	)

	cmd := &cobra.Command{
		Use:   "checksum SOURCE | --decode HEX",
		Short: "Compute or decode unit checksums",
		Long: `Print the identity hash of a source string and its hex checksum.

With --decode, print the identity hash encoded by a checksum.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if decode {
				return runDecodeChecksum(out, args[0])
			}
			h := idhash.Compute(args[0], msgctxt)
			fmt.Fprintf(out, "%s\t%d\n", h.Checksum(), int64(h))
			return nil
		},
	}

	cmd.Flags().StringVarP(&msgctxt, "context", "c", "", "Message context")
	cmd.Flags().BoolVarP(&decode, "decode", "d", false, "Decode a hex checksum")

	return cmd
}

func runDecodeChecksum(out io.Writer, checksum string) error {
	h, err := idhash.FromChecksum(checksum)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d\n", int64(h))
	return nil
}

// ---------------------------------------------------------------------------
// config-errors
// ---------------------------------------------------------------------------

func newConfigErrorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-errors",
		Short: "List configuration problems",
		Long: `List problems found while loading configuration, such as an unknown
collation locale or log level. Each one was replaced by a default.`,
		Run: func(cmd *cobra.Command, args []string) {
			runConfigErrors(cmd.OutOrStdout())
		},
	}
}

func runConfigErrors(out io.Writer) {
	errs := configerr.List()
	if len(errs) == 0 {
		logSuccess(i18n.T("No configuration errors"))
		return
	}
	for _, e := range errs {
		fmt.Fprintf(out, "%s: %s\n", e.Name, e.Message)
	}
}
