// Package config builds the immutable monitor configuration from defaults, an
// optional config file, and the GitHub Actions environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	checkerr "github.com/kyleking/gh-checkstatus/internal/errors"
	"github.com/kyleking/gh-checkstatus/internal/github"
	"github.com/kyleking/gh-checkstatus/internal/match"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultTimeout      = 30 * time.Minute
	DefaultInitialWait  = 10 * time.Second
	DefaultPollInterval = 5 * time.Second
)

// Environment variables read by Load.
const (
	EnvToken                = "INPUT_GITHUB_TOKEN"
	EnvRepository           = "GITHUB_REPOSITORY"
	EnvRunID                = "GITHUB_RUN_ID"
	EnvJob                  = "GITHUB_JOB"
	EnvCurrentJobName       = "INPUT_CURRENT_JOB_NAME"
	EnvExcludedJobs         = "INPUT_EXCLUDED_JOBS"
	EnvTimeoutMinutes       = "INPUT_TIMEOUT_MINUTES"
	EnvInitialWaitSeconds   = "INPUT_INITIAL_WAIT_SECONDS"
	EnvPollIntervalSeconds  = "INPUT_POLL_INTERVAL_SECONDS"
	EnvSkippedJobsSucceed   = "INPUT_SKIPPED_JOBS_SUCCEED"
	EnvJobs                 = "INPUT_JOBS"
	EnvRequiresFilesChanged = "INPUT_REQUIRES_FILES_CHANGED"
	EnvEventName            = "GITHUB_EVENT_NAME"
	EnvEventPath            = "GITHUB_EVENT_PATH"
	EnvServerURL            = "GITHUB_SERVER_URL"
	EnvOTLPEndpoint         = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPInsecure         = "OTEL_EXPORTER_OTLP_INSECURE"
)

// Config is the monitor configuration. It is built once and never mutated.
type Config struct {
	Token      string
	Repository string
	Host       string
	RunID      int64

	// CurrentJob is the caller's own job name, never monitored.
	CurrentJob string

	ExcludedJobs       match.Patterns
	Timeout            time.Duration
	InitialWait        time.Duration
	PollInterval       time.Duration
	SkippedJobsSucceed bool

	// Jobs selects fixed-list mode when non-empty.
	Jobs                 []string
	RequiresFilesChanged match.Patterns
	EventName            string
	EventPath            string

	Telemetry Telemetry
}

// Telemetry configures optional OTLP metric export.
type Telemetry struct {
	Endpoint string
	Insecure bool
}

// FixedList reports whether an explicit job list was configured.
func (c Config) FixedList() bool {
	return len(c.Jobs) > 0
}

// File is the on-disk configuration shape. Secrets are only read from the environment.
type File struct {
	CurrentJobName       string   `yaml:"current_job_name" toml:"current_job_name"`
	ExcludedJobs         []string `yaml:"excluded_jobs" toml:"excluded_jobs"`
	TimeoutMinutes       *int     `yaml:"timeout_minutes" toml:"timeout_minutes"`
	InitialWaitSeconds   *int     `yaml:"initial_wait_seconds" toml:"initial_wait_seconds"`
	PollIntervalSeconds  *int     `yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`
	SkippedJobsSucceed   *bool    `yaml:"skipped_jobs_succeed" toml:"skipped_jobs_succeed"`
	Jobs                 []string `yaml:"jobs" toml:"jobs"`
	RequiresFilesChanged []string `yaml:"requires_files_changed" toml:"requires_files_changed"`
}

// LookupFunc resolves an environment variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Source describes where Load reads settings from.
type Source struct {
	// Path is an optional .yml, .yaml, or .toml file.
	Path string
	// Lookup defaults to os.LookupEnv.
	Lookup LookupFunc
	// Detector resolves the repository when GITHUB_REPOSITORY is unset.
	// A nil Detector makes the repository required.
	Detector github.RepositoryDetector
}

// LoadFile reads a configuration file, choosing the decoder by extension.
// A missing file is an error since its path was given explicitly.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return File{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return File{}, fmt.Errorf("unsupported config file extension: %q (expected .yml, .yaml or .toml)", filepath.Ext(path))
	}

	return f, nil
}

// Load resolves the configuration. Environment values take precedence over
// file values, which take precedence over defaults. Every failure is a
// *errors.ConfigError.
func Load(src Source) (Config, error) {
	lookup := src.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	var file File

	if src.Path != "" {
		f, err := LoadFile(src.Path)
		if err != nil {
			return Config{}, &checkerr.ConfigError{Setting: "config file", Err: err}
		}

		file = f
	}

	cfg := Config{
		Timeout:            DefaultTimeout,
		InitialWait:        DefaultInitialWait,
		PollInterval:       DefaultPollInterval,
		SkippedJobsSucceed: true,
	}

	if err := applyFile(&cfg, file); err != nil {
		return Config{}, err
	}

	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}

	excluded := file.ExcludedJobs
	if v := env(EnvExcludedJobs); v != "" {
		excluded = match.SplitList(v)
	}

	patterns, err := match.Compile(excluded)
	if err != nil {
		return Config{}, &checkerr.ConfigError{Setting: EnvExcludedJobs, Err: err}
	}

	cfg.ExcludedJobs = patterns

	gates := file.RequiresFilesChanged
	if v := env(EnvRequiresFilesChanged); v != "" {
		gates = match.SplitList(v)
	}

	if cfg.RequiresFilesChanged, err = match.Compile(gates); err != nil {
		return Config{}, &checkerr.ConfigError{Setting: EnvRequiresFilesChanged, Err: err}
	}

	if err := resolveRequired(&cfg, file, env, src.Detector); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyFile(cfg *Config, f File) error {
	durations := []struct {
		key  string
		val  *int
		unit time.Duration
		dst  *time.Duration
	}{
		{"timeout_minutes", f.TimeoutMinutes, time.Minute, &cfg.Timeout},
		{"initial_wait_seconds", f.InitialWaitSeconds, time.Second, &cfg.InitialWait},
		{"poll_interval_seconds", f.PollIntervalSeconds, time.Second, &cfg.PollInterval},
	}

	for _, d := range durations {
		if d.val == nil {
			continue
		}

		v, err := scale(d.key, int64(*d.val), d.unit)
		if err != nil {
			return err
		}

		*d.dst = v
	}

	if f.SkippedJobsSucceed != nil {
		cfg.SkippedJobsSucceed = *f.SkippedJobsSucceed
	}

	cfg.Jobs = trimAll(f.Jobs)

	return nil
}

// scale converts n units to a Duration, rejecting values that overflow.
func scale(key string, n int64, unit time.Duration) (time.Duration, error) {
	if n > math.MaxInt64/int64(unit) || n < math.MinInt64/int64(unit) {
		return 0, &checkerr.ConfigError{Setting: key, Err: fmt.Errorf("value %d out of range", n)}
	}

	return time.Duration(n) * unit, nil
}

func applyEnv(cfg *Config, env func(string) string) error {
	durations := []struct {
		key  string
		unit time.Duration
		dst  *time.Duration
	}{
		{EnvTimeoutMinutes, time.Minute, &cfg.Timeout},
		{EnvInitialWaitSeconds, time.Second, &cfg.InitialWait},
		{EnvPollIntervalSeconds, time.Second, &cfg.PollInterval},
	}

	for _, d := range durations {
		v := env(d.key)
		if v == "" {
			continue
		}

		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &checkerr.ConfigError{Setting: d.key, Err: fmt.Errorf("invalid integer %q", v)}
		}

		if *d.dst, err = scale(d.key, n, d.unit); err != nil {
			return err
		}
	}

	if v := env(EnvSkippedJobsSucceed); v != "" {
		cfg.SkippedJobsSucceed = strings.EqualFold(v, "true")
	}

	if v := env(EnvJobs); v != "" {
		cfg.Jobs = match.SplitList(v)
	}

	cfg.EventName = env(EnvEventName)
	cfg.EventPath = env(EnvEventPath)
	cfg.Host = github.HostFromServerURL(env(EnvServerURL))
	cfg.Telemetry = Telemetry{
		Endpoint: env(EnvOTLPEndpoint),
		Insecure: strings.EqualFold(env(EnvOTLPInsecure), "true"),
	}

	return nil
}

func resolveRequired(cfg *Config, f File, env func(string) string, det github.RepositoryDetector) error {
	cfg.Token = env(EnvToken)
	if cfg.Token == "" {
		return missing(EnvToken)
	}

	cfg.Repository = env(EnvRepository)
	if cfg.Repository == "" {
		if det == nil {
			return missing(EnvRepository)
		}

		repo, err := github.DetectRepo(det)
		if err != nil {
			return &checkerr.ConfigError{Setting: EnvRepository, Err: err}
		}

		cfg.Repository = repo
	}

	if _, err := github.ParseRepository(cfg.Repository); err != nil {
		return &checkerr.ConfigError{Setting: EnvRepository, Err: err}
	}

	runID := env(EnvRunID)
	if runID == "" {
		return missing(EnvRunID)
	}

	id, err := strconv.ParseInt(runID, 10, 64)
	if err != nil || id <= 0 {
		return &checkerr.ConfigError{Setting: EnvRunID, Err: fmt.Errorf("invalid run id %q", runID)}
	}

	cfg.RunID = id

	switch {
	case env(EnvCurrentJobName) != "":
		cfg.CurrentJob = env(EnvCurrentJobName)
	case f.CurrentJobName != "":
		cfg.CurrentJob = f.CurrentJobName
	default:
		cfg.CurrentJob = env(EnvJob)
	}

	if cfg.CurrentJob == "" && !cfg.FixedList() {
		return missing(EnvJob)
	}

	return nil
}

// Validate checks value ranges and cross-field requirements.
func (c Config) Validate() error {
	switch {
	case c.Timeout <= 0:
		return &checkerr.ConfigError{Setting: EnvTimeoutMinutes, Err: errors.New("must be positive")}
	case c.InitialWait < 0:
		return &checkerr.ConfigError{Setting: EnvInitialWaitSeconds, Err: errors.New("must not be negative")}
	case c.PollInterval <= 0:
		return &checkerr.ConfigError{Setting: EnvPollIntervalSeconds, Err: errors.New("must be positive")}
	}

	if c.RequiresFilesChanged.Len() > 0 && match.CarriesDiff(c.EventName) && c.EventPath == "" {
		return &checkerr.ConfigError{Setting: EnvEventPath, Err: errors.New("required to evaluate requires_files_changed on pull requests")}
	}

	return nil
}

func missing(key string) error {
	return &checkerr.ConfigError{Setting: key, Err: errors.New("missing required environment variable")}
}

func trimAll(in []string) []string {
	var out []string

	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}
