package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml"
	"github.com/planetaryhealth/phi/pkg/aggregate"
	"github.com/planetaryhealth/phi/pkg/pipeline"
	"github.com/planetaryhealth/phi/pkg/quality"
)

// ErrInvalidConfig wraps every configuration load and validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output formats understood by the CLI.
var Formats = []string{"text", "json", "markdown", "toon"}

// Config holds all configuration options for phi.
type Config struct {
	// Supplementation from external data
	Supplement SupplementConfig `koanf:"supplement" toml:"supplement"`

	// Composite scoring
	Score ScoreConfig `koanf:"score" toml:"score"`

	// Named weight profiles, keyed by profile then pillar
	Weights map[string]map[string]float64 `koanf:"weights" toml:"weights"`

	// DQS confidence cut-offs
	Quality quality.Thresholds `koanf:"quality" toml:"quality"`

	// Batch evaluation
	Batch BatchConfig `koanf:"batch" toml:"batch"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// SupplementConfig controls supplementation.
type SupplementConfig struct {
	Enabled bool `koanf:"enabled" toml:"enabled"`
}

// ScoreConfig controls composite scoring.
type ScoreConfig struct {
	Profile string `koanf:"profile" toml:"profile" validate:"required"`
}

// BatchConfig controls batch evaluation.
type BatchConfig struct {
	Workers int `koanf:"workers" toml:"workers" validate:"gte=0"` // 0 means one per CPU
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format" validate:"oneof=text json markdown toon"`
	Color  bool   `koanf:"color" toml:"color"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	defaults := make(map[string]float64)
	for id, w := range aggregate.DefaultWeights() {
		defaults[string(id)] = w
	}
	return &Config{
		Supplement: SupplementConfig{Enabled: true},
		Score:      ScoreConfig{Profile: aggregate.DefaultProfile},
		Weights:    map[string]map[string]float64{aggregate.DefaultProfile: defaults},
		Quality:    quality.DefaultThresholds(),
		Batch:      BatchConfig{Workers: 0},
		Output:     OutputConfig{Format: "text", Color: true},
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrInvalidConfig, path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find returns the first config file in the standard locations, or "".
func Find() string {
	names := []string{
		"phi.toml",
		"phi.yaml",
		"phi.yml",
		"phi.json",
		".phi.toml",
		".phi.yaml",
		".phi.yml",
		".phi.json",
	}
	for _, dir := range []string{".", ".phi"} {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault loads the config at path, or from the standard locations when
// path is empty. It returns the defaults when no file exists; a file that
// exists but does not load is an error. The second result names the file
// used.
func LoadOrDefault(path string) (*Config, string, error) {
	if path == "" {
		path = Find()
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Validate checks field constraints, that every weight profile parses, and
// that the selected profile exists.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	profiles, err := c.Profiles()
	if err != nil {
		return err
	}
	if _, ok := profiles[c.Score.Profile]; !ok && c.Score.Profile != aggregate.DefaultProfile {
		return fmt.Errorf("%w: score profile %q has no [weights.%s] table", ErrInvalidConfig, c.Score.Profile, c.Score.Profile)
	}
	return nil
}

// Profiles resolves the weight tables into aggregate weights.
func (c *Config) Profiles() (map[string]aggregate.Weights, error) {
	out := make(map[string]aggregate.Weights, len(c.Weights))
	for name, raw := range c.Weights {
		w, err := aggregate.ParseWeights(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: weights.%s: %v", ErrInvalidConfig, name, err)
		}
		for id, v := range w {
			if v < 0 {
				return nil, fmt.Errorf("%w: weights.%s.%s is negative", ErrInvalidConfig, name, id)
			}
		}
		out[name] = w
	}
	return out, nil
}

// ProfileNames returns the configured profile names, sorted.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Weights))
	for name := range c.Weights {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RunnerOptions translates the config into pipeline runner options.
func (c *Config) RunnerOptions(logger *slog.Logger) ([]pipeline.Option, error) {
	profiles, err := c.Profiles()
	if err != nil {
		return nil, err
	}
	return []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithSupplementation(c.Supplement.Enabled),
		pipeline.WithProfiles(profiles),
		pipeline.WithDefaultProfile(c.Score.Profile),
		pipeline.WithWorkers(c.Batch.Workers),
		pipeline.WithAssessor(quality.New(quality.WithThresholds(c.Quality))),
	}, nil
}

// TOML renders the config as a commented TOML document.
func (c *Config) TOML() ([]byte, error) {
	content, err := gotoml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config to TOML: %w", err)
	}
	var buf strings.Builder
	buf.WriteString("# PHI pipeline configuration\n")
	buf.WriteString("# Weights are per profile; pillars may be named or lettered (A-E).\n\n")
	buf.Write(content)
	return []byte(buf.String()), nil
}
