// Package config loads the .transmerge.yaml configuration file.
//
// Settings are resolved in three layers: built-in defaults, the YAML
// file in the project root, then TRANSMERGE_* environment variables.
// Command line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/transmerge/configerr"
	"github.com/minios-linux/transmerge/merge"
)

// FileName is the default config file name.
const FileName = ".transmerge.yaml"

// Store backends.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Config is the top-level .transmerge.yaml structure.
type Config struct {
	// Project is written to the Project-Id-Version header on export.
	Project   string    `yaml:"project,omitempty" env:"TRANSMERGE_PROJECT"`
	Store     Store     `yaml:"store"`
	Collation Collation `yaml:"collation"`
	Import    Import    `yaml:"import"`
	Log       Log       `yaml:"log"`
}

// Store selects where translations are kept.
type Store struct {
	// Backend is "yaml" (corpus.yaml) or "sqlite".
	Backend string `yaml:"backend" env:"TRANSMERGE_STORE_BACKEND"`
	// Path is the corpus directory (yaml) or database file (sqlite),
	// relative to the project root.
	Path string `yaml:"path,omitempty" env:"TRANSMERGE_STORE_PATH"`
}

// Collation configures display ordering.
type Collation struct {
	// Native enables locale-aware collation; otherwise strings are
	// compared by their ASCII-folded form.
	Native bool `yaml:"native" env:"TRANSMERGE_COLLATION_NATIVE"`
	// Locale is the BCP 47 tag of the collation rules.
	Locale string `yaml:"locale,omitempty" env:"TRANSMERGE_COLLATION_LOCALE"`
}

// Import holds the default import policy.
type Import struct {
	Method    string `yaml:"method" env:"TRANSMERGE_IMPORT_METHOD"`
	Overwrite bool   `yaml:"overwrite" env:"TRANSMERGE_IMPORT_OVERWRITE"`
	Author    string `yaml:"author,omitempty" env:"TRANSMERGE_IMPORT_AUTHOR"`
	// Fuzzy also imports entries flagged fuzzy in the uploaded file.
	Fuzzy bool `yaml:"fuzzy" env:"TRANSMERGE_IMPORT_FUZZY"`
}

// Log configures logging.
type Log struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level" env:"TRANSMERGE_LOG_LEVEL"`
	// Format is console or json.
	Format string `yaml:"format" env:"TRANSMERGE_LOG_FORMAT"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Project:   "transmerge",
		Store:     Store{Backend: BackendYAML},
		Collation: Collation{Native: true},
		Import:    Import{Method: string(merge.MethodTranslate)},
		Log:       Log{Level: "info", Format: "console"},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads path (FileName in rootDir when path is empty), applies
// environment overrides and validates the result. A missing file is
// not an error.
func Load(rootDir, path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(rootDir, FileName)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseEnv loads overrides from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate fails on settings that would make every command fail and
// repairs optional ones, reporting them as configuration errors.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case "":
		c.Store.Backend = BackendYAML
	case BackendYAML, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q (valid: yaml, sqlite)", c.Store.Backend)
	}
	if c.Store.Path == "" {
		if c.Store.Backend == BackendSQLite {
			c.Store.Path = "transmerge.db"
		} else {
			c.Store.Path = "."
		}
	}

	if _, err := merge.ParseMethod(c.Import.Method); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		configerr.Report("log.level", fmt.Sprintf("unknown level %q, using info", c.Log.Level))
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		configerr.Report("log.format", fmt.Sprintf("unknown format %q, using console", c.Log.Format))
		c.Log.Format = "console"
	}
	return nil
}

// StorePath resolves the store path against rootDir.
func (c *Config) StorePath(rootDir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(rootDir, c.Store.Path)
}

// Policy returns the default import policy. Validate must have passed.
func (c *Config) Policy() merge.Policy {
	method, _ := merge.ParseMethod(c.Import.Method)
	return merge.Policy{
		Method:    method,
		Overwrite: c.Import.Overwrite,
		Author:    c.Import.Author,
	}
}
