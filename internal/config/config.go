// Package config loads run options from configuration files, environment
// variables and CLI flags, later sources winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	bstoml "github.com/BurntSushi/toml"
	ptoml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pyclean/internal/pypath"
	"pyclean/internal/refactor"
	"pyclean/internal/report"
)

// Config is the complete pyclean run configuration.
type Config struct {
	// All removes any unused import regardless of side-effect verdicts.
	All bool `mapstructure:"all"`
	// Check reports what would change without writing files.
	Check bool `mapstructure:"check"`
	// Diff prints unified diffs instead of rewriting files.
	Diff bool `mapstructure:"diff"`
	// ExpandStarImports rewrites `from m import *` to explicit names.
	ExpandStarImports bool `mapstructure:"expand_star_imports"`
	// NoInitPolicy treats __init__.py files like any other file.
	NoInitPolicy bool `mapstructure:"no_init_policy"`
	// SkipImports lists module names whose imports are always kept.
	SkipImports []string `mapstructure:"skip_imports"`

	// Include and Exclude are regular expressions matched against entry
	// names during discovery.
	Include string `mapstructure:"include"`
	Exclude string `mapstructure:"exclude"`
	// NoGitignore disables .gitignore filtering.
	NoGitignore bool `mapstructure:"no_gitignore"`

	Verbose bool `mapstructure:"verbose"`
	Quiet   bool `mapstructure:"quiet"`
	Silence bool `mapstructure:"silence"`

	// Jobs is the worker count; zero means one worker per CPU.
	Jobs int `mapstructure:"jobs"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// LoggingConfig selects the diagnostic log format and level.
type LoggingConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// DefaultConfig returns the defaults applied before any file or flag.
func DefaultConfig() *Config {
	return &Config{
		Include: pypath.DefaultInclude,
		Exclude: pypath.DefaultExclude,
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// Load reads configuration for a run rooted at dir. Sources, later winning:
// defaults, `[tool.pyclean]` in pyproject.toml, .pyclean.toml,
// .pyclean.yaml, then PYCLEAN_* environment variables. CLI flags are
// applied on top by the command layer.
func Load(dir string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("all", false)
	v.SetDefault("check", false)
	v.SetDefault("diff", false)
	v.SetDefault("expand_star_imports", false)
	v.SetDefault("no_init_policy", false)
	v.SetDefault("skip_imports", []string{})
	v.SetDefault("include", defaults.Include)
	v.SetDefault("exclude", defaults.Exclude)
	v.SetDefault("no_gitignore", false)
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("silence", false)
	v.SetDefault("jobs", 0)
	v.SetDefault("logging.format", defaults.Logging.Format)
	v.SetDefault("logging.level", defaults.Logging.Level)

	if settings, err := pyprojectSettings(filepath.Join(dir, "pyproject.toml")); err != nil {
		return nil, err
	} else if settings != nil {
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, err
		}
	}

	if settings, err := tomlSettings(filepath.Join(dir, ".pyclean.toml")); err != nil {
		return nil, err
	} else if settings != nil {
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, err
		}
	}

	if settings, err := yamlSettings(filepath.Join(dir, ".pyclean.yaml")); err != nil {
		return nil, err
	} else if settings != nil {
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("PYCLEAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// pyprojectSettings extracts the [tool.pyclean] table from a pyproject.toml
// when one exists.
func pyprojectSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc struct {
		Tool map[string]map[string]any `toml:"tool"`
	}
	if err := ptoml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Tool["pyclean"], nil
}

// tomlSettings reads a standalone .pyclean.toml.
func tomlSettings(path string) (map[string]any, error) {
	var settings map[string]any
	if _, err := bstoml.DecodeFile(path, &settings); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return settings, nil
}

// yamlSettings reads a .pyclean.yaml.
func yamlSettings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var settings map[string]any
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return settings, nil
}

// Validate rejects contradictory settings.
func (c *Config) Validate() error {
	if c.Verbose && (c.Quiet || c.Silence) {
		return fmt.Errorf("--verbose cannot be combined with --quiet or --silence")
	}
	if _, err := pypath.CompilePattern(c.Include); err != nil {
		return err
	}
	if _, err := pypath.CompilePattern(c.Exclude); err != nil {
		return err
	}
	return nil
}

// RefactorOptions converts the configuration to the policy record the
// merger consumes.
func (c *Config) RefactorOptions() refactor.Options {
	skip := make(map[string]struct{}, len(c.SkipImports))
	for _, name := range c.SkipImports {
		skip[name] = struct{}{}
	}
	return refactor.Options{
		RemoveAll:         c.All,
		ExpandStars:       c.ExpandStarImports,
		DisableInitPolicy: c.NoInitPolicy,
		SkipModules:       skip,
	}
}

// WalkOptions converts the configuration to discovery options. Validate
// must have accepted the patterns first.
func (c *Config) WalkOptions() pypath.WalkOptions {
	include, _ := pypath.CompilePattern(c.Include)
	exclude, _ := pypath.CompilePattern(c.Exclude)
	return pypath.WalkOptions{
		Include:     include,
		Exclude:     exclude,
		NoGitignore: c.NoGitignore,
	}
}

// Verbosity maps the three flags onto a reporter verbosity.
func (c *Config) Verbosity() report.Verbosity {
	switch {
	case c.Silence:
		return report.Silence
	case c.Quiet:
		return report.Quiet
	case c.Verbose:
		return report.Verbose
	default:
		return report.Normal
	}
}
