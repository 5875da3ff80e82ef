// Package config provides configuration types, defaults, and persistence for omniedit.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/omniedit/internal/highlight"
	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/output"
	"github.com/zjrosen/omniedit/internal/paths"
	"github.com/zjrosen/omniedit/internal/syntax"
	"github.com/zjrosen/omniedit/internal/tracing"
)

// Config holds all configuration options for omniedit.
type Config struct {
	Run     RunConfig     `mapstructure:"run"`
	Editor  EditorConfig  `mapstructure:"editor"`
	Syntax  SyntaxConfig  `mapstructure:"syntax"`
	History HistoryConfig `mapstructure:"history"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// RunConfig controls program execution.
type RunConfig struct {
	// PumpInterval is how often buffered output is delivered to the display.
	PumpInterval time.Duration `mapstructure:"pump_interval"`
	// History records every finished run in the history store.
	History bool `mapstructure:"history"`
}

// EditorConfig holds document editing behaviour.
type EditorConfig struct {
	// TabWidth is the number of spaces inserted for a tab. 0 disables
	// dynamic tabs and a literal tab is inserted.
	TabWidth     int  `mapstructure:"tab_width"`
	SmartNewline bool `mapstructure:"smart_newline"`
}

// SyntaxConfig selects the highlighting rules and their styles.
type SyntaxConfig struct {
	Builtin  string            `mapstructure:"builtin"`
	File     string            `mapstructure:"file"`
	Patterns []syntax.Rule     `mapstructure:"patterns"`
	Styles   map[string]string `mapstructure:"styles"`
}

// HistoryConfig holds run history storage settings.
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds timeline cache settings.
type CacheConfig struct {
	Expiration      time.Duration `mapstructure:"expiration"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// TracingConfig holds OpenTelemetry tracing settings for program runs.
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Exporter is one of "none", "file", "stdout", "otlp".
	Exporter string `mapstructure:"exporter"`

	// FilePath is the JSONL output for the "file" exporter.
	// Empty means DefaultTracesFilePath().
	FilePath string `mapstructure:"file_path"`

	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// DefaultTracesFilePath returns ~/.config/omniedit/traces/traces.jsonl.
func DefaultTracesFilePath() string {
	return filepath.Join(paths.ConfigDir(), "traces", "traces.jsonl")
}

// DefaultHistoryPath returns ~/.omniedit/history.db.
func DefaultHistoryPath() string {
	return filepath.Join(paths.DataDir(), "history.db")
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Run: RunConfig{
			PumpInterval: output.DefaultInterval,
			History:      true,
		},
		Editor: EditorConfig{
			TabWidth:     4,
			SmartNewline: true,
		},
		Syntax: SyntaxConfig{
			Builtin: "lua",
		},
		History: HistoryConfig{
			Path: DefaultHistoryPath(),
		},
		Cache: CacheConfig{
			Expiration:      10 * time.Minute,
			CleanupInterval: 30 * time.Minute,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Validate checks every section and joins the errors.
func (c Config) Validate() error {
	return errors.Join(
		ValidateRun(c.Run),
		ValidateEditor(c.Editor),
		ValidateSyntax(c.Syntax),
		ValidateCache(c.Cache),
		ValidateTracing(c.Tracing),
	)
}

// ValidateRun checks run configuration for errors.
func ValidateRun(run RunConfig) error {
	if run.PumpInterval < 0 {
		return fmt.Errorf("run.pump_interval must not be negative, got %s", run.PumpInterval)
	}
	return nil
}

// ValidateEditor checks editor configuration for errors.
func ValidateEditor(ed EditorConfig) error {
	if ed.TabWidth < 0 {
		return fmt.Errorf("editor.tab_width must not be negative, got %d", ed.TabWidth)
	}
	return nil
}

// ValidateSyntax checks that the configured rules compile and the style
// overrides are valid colors.
func ValidateSyntax(sc SyntaxConfig) error {
	if _, err := sc.Registry(); err != nil {
		return err
	}
	if _, err := highlight.NewTheme(sc.Styles); err != nil {
		return fmt.Errorf("syntax.styles: %w", err)
	}
	return nil
}

// ValidateCache checks cache configuration for errors.
// Zero values fall back to the cache defaults.
func ValidateCache(cache CacheConfig) error {
	if cache.Expiration < 0 {
		return fmt.Errorf("cache.expiration must not be negative, got %s", cache.Expiration)
	}
	if cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %s", cache.CleanupInterval)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc TracingConfig) error {
	switch tc.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be one of none, file, stdout, otlp, got %q", tc.Exporter)
	}
	if tc.SampleRate < 0 || tc.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}
	if tc.Enabled && tc.Exporter == "otlp" && tc.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required for the otlp exporter")
	}
	return nil
}

// Registry builds a style registry from the builtin definition, then the
// definition file, then the inline patterns, in that order.
func (sc SyntaxConfig) Registry() (*syntax.Registry, error) {
	reg := syntax.NewRegistry()

	if sc.Builtin != "" {
		def, err := syntax.Builtin(sc.Builtin)
		if err != nil {
			return nil, fmt.Errorf("syntax.builtin: %w", err)
		}
		if err := reg.AddDefinition(def); err != nil {
			return nil, fmt.Errorf("syntax.builtin: %w", err)
		}
	}

	if sc.File != "" {
		def, err := syntax.LoadDefinitionFile(paths.ExpandHome(sc.File))
		if err != nil {
			return nil, fmt.Errorf("syntax.file: %w", err)
		}
		if err := reg.AddDefinition(def); err != nil {
			return nil, fmt.Errorf("syntax.file: %w", err)
		}
	}

	for i, rule := range sc.Patterns {
		if err := reg.AddRule(rule); err != nil {
			return nil, fmt.Errorf("syntax.patterns[%d]: %w", i, err)
		}
	}
	return reg, nil
}

// FilePath returns the syntax definition file with "~" expanded, or "".
func (sc SyntaxConfig) FilePath() string {
	return paths.ExpandHome(sc.File)
}

// ResolvedPath returns the history database path with "~" expanded,
// falling back to DefaultHistoryPath.
func (h HistoryConfig) ResolvedPath() string {
	if h.Path == "" {
		return DefaultHistoryPath()
	}
	if h.Path == ":memory:" {
		return h.Path
	}
	return paths.ExpandHome(h.Path)
}

// Provider converts the section into the tracing package's configuration.
func (tc TracingConfig) Provider() tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = tc.Enabled
	if tc.Exporter != "" {
		cfg.Exporter = tc.Exporter
	}
	cfg.FilePath = tc.FilePath
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultTracesFilePath()
	} else {
		cfg.FilePath = paths.ExpandHome(cfg.FilePath)
	}
	if tc.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = tc.OTLPEndpoint
	}
	cfg.SampleRate = tc.SampleRate
	return cfg
}

// DefaultConfigTemplate returns the commented YAML written on first run.
func DefaultConfigTemplate() string {
	var b strings.Builder
	b.WriteString(`# omniedit configuration

run:
  # How often buffered program output is delivered to the display.
  pump_interval: 300ms
  # Record finished runs and their output in the history database.
  history: true

editor:
  # Spaces inserted for a tab. 0 inserts a literal tab.
  tab_width: 4
  # Enter copies the current line's indentation.
  smart_newline: true

syntax:
  # Embedded definition to load first (`)
	b.WriteString(strings.Join(syntax.BuiltinNames(), ", "))
	b.WriteString(`), "" for none.
  builtin: lua
  # Optional YAML definition file loaded after the builtin one.
  file: ""
  # Extra rules, tried after everything above. Earlier rules win ties.
  #   - label: todo
  #     pattern: 'TODO|FIXME'
  #   - label: keyword
  #     tokens: [goto, continue]
  patterns: []
  # Foreground colors per label, "#RRGGBB".
  styles: {}

history:
  path: ~/.omniedit/history.db

cache:
  expiration: 10m
  cleanup_interval: 30m

tracing:
  enabled: false
  # none, file, stdout or otlp
  exporter: file
  # Defaults to ~/.config/omniedit/traces/traces.jsonl
  file_path: ""
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
`)
	return b.String()
}

// WriteDefaultConfig creates a config file with default settings.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
