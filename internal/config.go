package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/packlint/internal/versions"
	"github.com/starford/packlint/internal/visibility"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Default visibility modes.
const (
	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityInternal = "internal"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Lint     LintConfig        `yaml:"lint"`
	Cache    CacheConfig       `yaml:"cache"`
	Versions VersionsConfig    `yaml:"versions"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Lint.Validate(); err != nil {
		return fmt.Errorf("lint: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Versions.Validate(); err != nil {
		return fmt.Errorf("versions: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// LintConfig controls discovery, filtering and reporting.
type LintConfig struct {
	DetectionDepth    int              `yaml:"detection_depth"`
	Include           []string         `yaml:"include"`
	Exclude           []string         `yaml:"exclude"`
	DefaultVisibility VisibilityConfig `yaml:"default_visibility"`
	OutputDefine      []string         `yaml:"output_define"`
	ForcePass         bool             `yaml:"force_pass"`
	GCThreshold       int              `yaml:"gc_threshold"`
	// Concurrency of zero uses one worker per CPU.
	Concurrency      int  `yaml:"concurrency"`
	ReportUnresolved bool `yaml:"report_unresolved"`
}

// Validate validates the lint configuration.
func (c *LintConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DetectionDepth, validation.Min(0)),
		validation.Field(&c.GCThreshold, validation.Min(1)),
		validation.Field(&c.Concurrency, validation.Min(0)),
	); err != nil {
		return err
	}
	return c.DefaultVisibility.Validate()
}

// VisibilityConfig is either a mode name or a list of patterns.
//
//	default_visibility: private
//	default_visibility: ["ns:api/**", "ns:test/**"]
type VisibilityConfig struct {
	Mode     string
	Patterns []string
}

// UnmarshalYAML accepts a scalar mode or a sequence of patterns.
func (v *VisibilityConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v.Patterns = nil
		return node.Decode(&v.Mode)
	case yaml.SequenceNode:
		v.Mode = ""
		return node.Decode(&v.Patterns)
	default:
		return errors.New("default_visibility must be a string or a list of patterns")
	}
}

// Validate checks the mode name and compiles every pattern.
func (v *VisibilityConfig) Validate() error {
	if v.Mode != "" && len(v.Patterns) > 0 {
		return errors.New("default_visibility: mode and patterns are exclusive")
	}
	if err := validation.Validate(v.Mode, validation.In(VisibilityPublic, VisibilityPrivate, VisibilityInternal)); err != nil {
		return fmt.Errorf("default_visibility: %w", err)
	}
	for _, p := range v.Patterns {
		if _, err := visibility.Compile(p); err != nil {
			return fmt.Errorf("default_visibility: %w", err)
		}
	}
	return nil
}

// Default converts the configuration into the matcher default.
func (v VisibilityConfig) Default() visibility.Default {
	return visibility.Default{Mode: v.Mode, Patterns: v.Patterns}
}

// CacheConfig locates persisted state and its archives.
type CacheConfig struct {
	Dir string `yaml:"dir"`
	// ArchiveDir enables archiving of Dir between CI runs when set.
	ArchiveDir string `yaml:"archive_dir"`
	KeyPrefix  string `yaml:"key_prefix"`
	Version    int    `yaml:"version"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.KeyPrefix, validation.When(c.ArchiveDir != "", validation.Required)),
		validation.Field(&c.Version, validation.Min(0)),
	)
}

// ArchiveEnabled reports whether cache archives are saved and restored.
func (c *CacheConfig) ArchiveEnabled() bool {
	return c.ArchiveDir != ""
}

// VersionsConfig controls the game version lookup shown in the report header.
type VersionsConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the versions configuration.
func (c *VersionsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		Lint: LintConfig{
			DetectionDepth:    1,
			DefaultVisibility: VisibilityConfig{Mode: VisibilityPublic},
			GCThreshold:       500,
			ReportUnresolved:  true,
		},
		Cache: CacheConfig{
			Dir:       ".cache",
			KeyPrefix: "packlint",
			Version:   1,
		},
		Versions: VersionsConfig{
			Enabled: true,
			URL:     versions.DefaultURL,
			Timeout: versions.DefaultTimeout,
		},
	}
}
