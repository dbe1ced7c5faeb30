package testsupport

import (
	"path/filepath"
	"testing"

	"jobsift/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Policy keys that have no built-in default are filled with permissive test
// values, then any provided options are applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Pipeline.MaxSpawnDepth = 10
	cfgVal.Pipeline.MaxRetries = 3
	cfgVal.Filter.StrikeThreshold = 5
	cfgVal.Analysis.MinScore = 70
	cfgVal.Scheduler.TargetMatches = 5
	cfgVal.Scheduler.MaxSourcesPerTick = 10
	cfgVal.Scheduler.ActiveStart = "00:00"
	cfgVal.Scheduler.ActiveEnd = "00:00"
	cfgVal.Scheduler.Timezone = "UTC"
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxSpawnDepth overrides the lineage depth cap.
func WithMaxSpawnDepth(depth int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxSpawnDepth = depth
	}
}

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(retries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.MaxRetries = retries
	}
}

// WithStaging sets the advancement strategy for an item type.
func WithStaging(itemType, mode string) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Pipeline.Staging == nil {
			b.cfg.Pipeline.Staging = map[string]string{}
		}
		b.cfg.Pipeline.Staging[itemType] = mode
	}
}

// WithActiveWindow overrides the scheduler window.
func WithActiveWindow(start, end, timezone string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scheduler.ActiveStart = start
		b.cfg.Scheduler.ActiveEnd = end
		b.cfg.Scheduler.Timezone = timezone
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
