package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrNotFound is returned by Load when no configuration file exists.
var ErrNotFound = errors.New("configuration file not found")

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Pipeline contains the work-item state machine knobs.
type Pipeline struct {
	MaxSpawnDepth       int               `toml:"max_spawn_depth"`
	MaxRetries          int               `toml:"max_retries"`
	StageTimeoutSeconds int               `toml:"stage_timeout_seconds"`
	Workers             int               `toml:"workers"`
	QueuePollInterval   int               `toml:"queue_poll_interval"`
	ErrorRetryInterval  int               `toml:"error_retry_interval"`
	HeartbeatInterval   int               `toml:"heartbeat_interval"`
	HeartbeatTimeout    int               `toml:"heartbeat_timeout"`
	Staging             map[string]string `toml:"staging"`
}

// FilterStrikes holds the strike weight each soft rule contributes.
type FilterStrikes struct {
	Seniority        int `toml:"seniority"`
	Experience       int `toml:"experience"`
	Salary           int `toml:"salary"`
	EmploymentType   int `toml:"employment_type"`
	ShortDescription int `toml:"short_description"`
	Commission       int `toml:"commission"`
}

// Filter contains the listing filter policy.
type Filter struct {
	StrikeThreshold        int           `toml:"strike_threshold"`
	ExcludedCompanies      []string      `toml:"excluded_companies"`
	ExcludedDomains        []string      `toml:"excluded_domains"`
	ExcludedKeywords       []string      `toml:"excluded_keywords"`
	AllowedWorkModes       []string      `toml:"allowed_work_modes"`
	RequiredKeywords       []string      `toml:"required_keywords"`
	RejectedSeniority      []string      `toml:"rejected_seniority"`
	MinExperienceYears     int           `toml:"min_experience_years"`
	MaxExperienceYears     int           `toml:"max_experience_years"`
	MinSalary              int           `toml:"min_salary"`
	AllowedEmploymentTypes []string      `toml:"allowed_employment_types"`
	MinDescriptionLength   int           `toml:"min_description_length"`
	Strikes                FilterStrikes `toml:"strikes"`
}

// Analysis contains thresholds for the analysis stages.
type Analysis struct {
	MinScore              float64 `toml:"min_score"`
	OrganizationMinScore  float64 `toml:"organization_min_score"`
	Profile               string  `toml:"profile"`
	ResearchOrganizations bool    `toml:"research_organizations"`
	DiscoverSources       bool    `toml:"discover_sources"`
}

// LLM contains connection settings for the analysis model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Scheduler contains the source rotation policy.
type Scheduler struct {
	Enabled              bool   `toml:"enabled"`
	IntervalSeconds      int    `toml:"interval_seconds"`
	TargetMatches        int    `toml:"target_matches"`
	MaxSourcesPerTick    int    `toml:"max_sources_per_tick"`
	ActiveStart          string `toml:"active_start"`
	ActiveEnd            string `toml:"active_end"`
	Timezone             string `toml:"timezone"`
	DisableAfterFailures int    `toml:"disable_after_failures"`
}

// Fetch contains HTTP settings shared by the scraping adapters.
type Fetch struct {
	UserAgent         string  `toml:"user_agent"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxBodyBytes      int64   `toml:"max_body_bytes"`
}

// Events contains terminal-event fan-out settings.
type Events struct {
	NATSURL     string `toml:"nats_url"`
	NATSSubject string `toml:"nats_subject"`
	Metrics     bool   `toml:"metrics"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	Failures         bool   `toml:"failures"`
	Matches          bool   `toml:"matches"`
	SchedulerSummary bool   `toml:"scheduler_summary"`
}

// API contains the daemon HTTP listener settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Config encapsulates all configuration values for jobsift.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Logging: log format and level
//   - Pipeline: spawn depth, retries, timeouts, workers, staging strategy
//   - Filter: hard exclusions, soft strike weights, strike threshold
//   - Analysis / LLM: scoring thresholds and model connection
//   - Scheduler: source rotation window and targets
//   - Fetch: adapter HTTP settings and rate limits
//   - Events / Notifications: terminal event fan-out
//   - API: daemon HTTP bind address
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Filter        Filter        `toml:"filter"`
	Analysis      Analysis      `toml:"analysis"`
	LLM           LLM           `toml:"llm"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Fetch         Fetch         `toml:"fetch"`
	Events        Events        `toml:"events"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jobsift/config.toml")
}

// Load locates, parses, and validates a configuration file. Unlike tuning
// knobs, policy keys have no defaults, so a missing file is an error.
func Load(path string) (*Config, string, error) {
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}
	if !exists {
		return nil, resolvedPath, fmt.Errorf("%w at %s (create one with 'jobsift config init')", ErrNotFound, resolvedPath)
	}

	data, err := os.ReadFile(resolvedPath)
	if err != nil {
		return nil, "", fmt.Errorf("open config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, resolvedPath, err
	}
	return cfg, resolvedPath, nil
}

// Parse decodes, normalizes, and validates raw TOML.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := checkRequired(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jobsift.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "jobsift.lock")
}

// PIDPath returns the file the running daemon records its PID in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "jobsift.pid")
}

// StageTimeout bounds a single stage execution.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutSeconds) * time.Second
}

// PollInterval is the idle wait between queue polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Pipeline.QueuePollInterval) * time.Second
}

// ErrorRetryInterval is the back-off after a store error.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Pipeline.ErrorRetryInterval) * time.Second
}

// HeartbeatInterval is how often processing items refresh their heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Pipeline.HeartbeatInterval) * time.Second
}

// HeartbeatTimeout is the staleness cutoff for reclaiming processing items.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Pipeline.HeartbeatTimeout) * time.Second
}

// SchedulerInterval is the delay between scheduler ticks.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalSeconds) * time.Second
}

// StagingFor returns the advancement strategy for an item type.
func (c *Config) StagingFor(itemType string) string {
	if mode, ok := c.Pipeline.Staging[itemType]; ok && mode != "" {
		return mode
	}
	return StagingInPlace
}

// ActiveWindow returns the scheduler window as offsets from midnight in the
// configured location.
func (c *Config) ActiveWindow() (time.Duration, time.Duration, *time.Location, error) {
	start, err := parseClock(c.Scheduler.ActiveStart)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("scheduler.active_start: %w", err)
	}
	end, err := parseClock(c.Scheduler.ActiveEnd)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("scheduler.active_end: %w", err)
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return start, end, loc, nil
}

func parseClock(value string) (time.Duration, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return time.Duration(parsed.Hour())*time.Hour + time.Duration(parsed.Minute())*time.Minute, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
