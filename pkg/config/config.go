// Package config loads pluginlint settings from an optional YAML file and
// PLUGINLINT_* environment variables.
//
// Precedence, lowest first: defaults, pluginlint.yaml, environment (including a
// .env file in the working directory), command line flags. Flags are applied by
// the caller after Load.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/bpe-tools/pluginlint/pkg/bundle"
	"github.com/bpe-tools/pluginlint/pkg/classpath"
	"github.com/bpe-tools/pluginlint/pkg/constants"
	"github.com/bpe-tools/pluginlint/pkg/finding"
	"github.com/bpe-tools/pluginlint/pkg/logger"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

var log = logger.New("config:config")

// FailOn values.
const (
	FailOnError = "error"
	FailOnWarn  = "warn"
	FailOnNever = "never"
)

// FailOnValues lists the accepted fail-on values.
var FailOnValues = []string{FailOnError, FailOnWarn, FailOnNever}

// Environment variable names.
const (
	EnvWorkers   = constants.EnvPrefix + "WORKERS"
	EnvCacheSize = constants.EnvPrefix + "CACHE_SIZE"
	EnvFailOn    = constants.EnvPrefix + "FAIL_ON"
)

// MaxWorkers bounds the number of bundles inspected at once.
const MaxWorkers = 256

// Config holds every setting.
type Config struct {
	Workers              int      `yaml:"workers"`
	CacheSize            int      `yaml:"cache-size"`
	FailOn               string   `yaml:"fail-on"`
	ShowSuccess          bool     `yaml:"show-success"`
	ClassRoots           []string `yaml:"class-roots"`
	ResourceRoots        []string `yaml:"resource-roots"`
	ExtraFieldInjections []string `yaml:"extra-field-injections"`
	MaxClassSize         int64    `yaml:"max-class-size"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Workers:      min(runtime.NumCPU(), 8),
		CacheSize:    classpath.DefaultCacheSize,
		FailOn:       FailOnError,
		MaxClassSize: classpath.DefaultMaxEntrySize,
	}
}

// Load returns the defaults overlaid with the config file and environment. An
// empty path means pluginlint.yaml in the working directory, which may be absent;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = constants.ConfigFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.parse(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		log.Printf("Loaded config file: %s", path)
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		log.Printf("No config file at %s", path)
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) parse(data []byte) error {
	if err := yaml.UnmarshalWithOptions(data, c, yaml.DisallowUnknownField()); err != nil {
		return errors.New(yaml.FormatError(err, false, true))
	}
	return nil
}

// ApplyEnv overlays PLUGINLINT_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvWorkers); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return NewValidationError(EnvWorkers, v, "not an integer", "Set "+EnvWorkers+" to a number such as 4")
		}
		c.Workers = n
	}
	if v, ok := lookup(EnvCacheSize); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return NewValidationError(EnvCacheSize, v, "not an integer", "Set "+EnvCacheSize+" to a number such as 4096")
		}
		c.CacheSize = n
	}
	if v, ok := lookup(EnvFailOn); ok {
		c.FailOn = strings.ToLower(strings.TrimSpace(v))
	}
	log.Printf("Applied environment: workers=%d cache_size=%d fail_on=%s", c.Workers, c.CacheSize, c.FailOn)
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := validateIntRange("workers", c.Workers, 1, MaxWorkers); err != nil {
		return err
	}
	if err := ValidatePositiveInt("cache-size", int64(c.CacheSize)); err != nil {
		return err
	}
	if err := ValidateInList("fail-on", c.FailOn, FailOnValues); err != nil {
		return err
	}
	if err := ValidatePositiveInt("max-class-size", c.MaxClassSize); err != nil {
		return err
	}
	for _, f := range c.ExtraFieldInjections {
		if err := ValidateRequired("extra-field-injections", f); err != nil {
			return err
		}
	}
	return nil
}

// Threshold returns the lowest severity that fails a run, ok=false for never.
func (c *Config) Threshold() (finding.Severity, bool) {
	switch c.FailOn {
	case FailOnWarn:
		return finding.Warn, true
	case FailOnNever:
		return 0, false
	default:
		return finding.Error, true
	}
}

// BundleOptions returns the bundle settings.
func (c *Config) BundleOptions() bundle.Options {
	return bundle.Options{
		ClassRoots:           c.ClassRoots,
		ResourceRoots:        c.ResourceRoots,
		CacheSize:            c.CacheSize,
		MaxEntrySize:         c.MaxClassSize,
		ExtraFieldInjections: c.ExtraFieldInjections,
	}
}
