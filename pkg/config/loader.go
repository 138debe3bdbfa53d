package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix starts the names of environment overrides.
const EnvPrefix = "TUNESET_"

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOption adjusts where Load reads overrides from.
type LoadOption func(*loadOptions)

type loadOptions struct {
	envFile string
	lookup  func(string) (string, bool)
}

// WithEnvFile names a dotenv file whose variables fill in for those missing
// from the environment. A file that does not exist is ignored.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) { o.envFile = path }
}

// WithLookup replaces os.LookupEnv as the source of environment variables.
func WithLookup(lookup func(string) (string, bool)) LoadOption {
	return func(o *loadOptions) { o.lookup = lookup }
}

// Load reads path, or starts from Default when path is empty, then applies
// TUNESET_* overrides from the environment and the optional dotenv file.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}
	lookup, err := withDotEnv(o.envFile, o.lookup)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDotEnv returns a lookup that falls back to the variables in path.
// Variables already set keep their values, as with godotenv.Load.
func withDotEnv(path string, lookup func(string) (string, bool)) (func(string) (string, bool), error) {
	if path == "" {
		return lookup, nil
	}
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return lookup, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return func(name string) (string, bool) {
		if v, ok := lookup(name); ok {
			return v, true
		}
		v, ok := vars[name]
		return v, ok
	}, nil
}

// ApplyEnv overrides cfg with TUNESET_* variables found by lookup and
// validates the result.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	cfg.fill()
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v, ok := get("ENGINE"); ok {
		cfg.Engine = v
	}
	if v, ok := get("MEASURE"); ok {
		cfg.Tuning.Measure = strings.ToLower(v)
	}
	if v, ok := get("TIME_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sTIME_LIMIT %q: %w", EnvPrefix, v, err)
		}
		cfg.Tuning.TimeLimit = &f
	}
	if v, ok := get("DET_TIME_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sDET_TIME_LIMIT %q: %w", EnvPrefix, v, err)
		}
		cfg.Tuning.DetTimeLimit = &f
	}
	if v, ok := get("THREADS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sTHREADS %q: %w", EnvPrefix, v, err)
		}
		cfg.Tuning.Threads = &n
	}
	if v, ok := get("METRICS_FILE"); ok {
		cfg.Output.MetricsFile = v
	}
	if v, ok := get("REPORT_FILE"); ok {
		cfg.Output.ReportFile = v
	}
	return validateConfig(cfg)
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}
	if cfg.Engine != "" && cfg.Engine != "builtin" && cfg.Engine != "cplex" {
		return fmt.Errorf("invalid engine: %s (must be builtin or cplex)", cfg.Engine)
	}

	if cfg.Tuning != nil {
		if err := validateTuning(cfg.Tuning); err != nil {
			return fmt.Errorf("tuning validation failed: %w", err)
		}
	}
	if cfg.Output != nil && cfg.Output.MetricsFile != "" && cfg.Output.MetricsFile == cfg.Output.ReportFile {
		return fmt.Errorf("metrics_file and report_file must differ")
	}
	return nil
}

// validateTuning validates the tuning controls
func validateTuning(t *Tuning) error {
	switch t.Measure {
	case "", "average", "minmax":
	default:
		return fmt.Errorf("invalid measure: %s (must be average or minmax)", t.Measure)
	}
	if t.TimeLimit != nil && *t.TimeLimit < 0 {
		return fmt.Errorf("time_limit cannot be negative, got %g", *t.TimeLimit)
	}
	if t.DetTimeLimit != nil && *t.DetTimeLimit < 0 {
		return fmt.Errorf("det_time_limit cannot be negative, got %g", *t.DetTimeLimit)
	}
	if t.Repeat != nil && *t.Repeat < 1 {
		return fmt.Errorf("repeat must be positive, got %d", *t.Repeat)
	}
	if t.Threads != nil && *t.Threads < 0 {
		return fmt.Errorf("threads cannot be negative, got %d", *t.Threads)
	}
	if t.Display != nil && (*t.Display < 0 || *t.Display > 3) {
		return fmt.Errorf("display must be between 0 and 3, got %d", *t.Display)
	}
	if t.FixedFile != "" && t.FixedFile == t.TunedFile {
		return fmt.Errorf("fixed_file and tuned_file must differ")
	}
	return nil
}
