package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobsift/internal/config"
)

const minimalConfig = `
[pipeline]
max_spawn_depth = 10
max_retries = 3

[filter]
strike_threshold = 5

[analysis]
min_score = 70

[scheduler]
target_matches = 5
max_sources_per_tick = 10
active_start = "08:00"
active_end = "20:00"
`

func TestLoadMissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	_, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if !errors.Is(err, config.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestParseMissingRequiredKeyFails(t *testing.T) {
	cases := []string{
		"pipeline.max_spawn_depth",
		"pipeline.max_retries",
		"filter.strike_threshold",
		"analysis.min_score",
		"scheduler.target_matches",
		"scheduler.max_sources_per_tick",
		"scheduler.active_start",
		"scheduler.active_end",
	}
	for _, key := range cases {
		t.Run(key, func(t *testing.T) {
			name := key[strings.LastIndex(key, ".")+1:]
			var kept []string
			for _, line := range strings.Split(minimalConfig, "\n") {
				if strings.HasPrefix(strings.TrimSpace(line), name+" =") {
					continue
				}
				kept = append(kept, line)
			}
			_, err := config.Parse([]byte(strings.Join(kept, "\n")))
			var missing *config.MissingKeyError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingKeyError, got %v", err)
			}
			if missing.Key != key {
				t.Fatalf("missing key = %q, want %q", missing.Key, key)
			}
		})
	}
}

func TestParseMinimalAppliesKnobDefaults(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	cfg, err := config.Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.Pipeline.MaxSpawnDepth != 10 || cfg.Pipeline.MaxRetries != 3 {
		t.Fatalf("unexpected pipeline policy: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.Workers != config.Default().Pipeline.Workers {
		t.Fatalf("expected default workers, got %d", cfg.Pipeline.Workers)
	}
	wantData := filepath.Join(tempHome, ".local", "share", "jobsift")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if got := cfg.StagingFor("listing"); got != config.StagingInPlace {
		t.Fatalf("expected in_place default staging, got %q", got)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"depth":    strings.Replace(minimalConfig, "max_spawn_depth = 10", "max_spawn_depth = 0", 1),
		"window":   strings.Replace(minimalConfig, `active_start = "08:00"`, `active_start = "8am"`, 1),
		"staging":  minimalConfig + "\n[pipeline.staging]\nlisting = \"sideways\"\n",
		"score":    strings.Replace(minimalConfig, "min_score = 70", "min_score = 170", 1),
		"unknown":  minimalConfig + "\n[mystery]\nvalue = 1\n",
		"strikes":  strings.Replace(minimalConfig, "strike_threshold = 5", "strike_threshold = 0", 1),
		"retries":  strings.Replace(minimalConfig, "max_retries = 3", "max_retries = 0", 1),
		"timezone": minimalConfig + "\ntimezone = \"Mars/Olympus\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Parse([]byte(body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Filter.StrikeThreshold != 5 {
		t.Fatalf("unexpected strike threshold %d", cfg.Filter.StrikeThreshold)
	}
	if cfg.Filter.Strikes.Salary != 3 {
		t.Fatalf("unexpected salary strikes %d", cfg.Filter.Strikes.Salary)
	}
	start, end, _, err := cfg.ActiveWindow()
	if err != nil {
		t.Fatalf("ActiveWindow: %v", err)
	}
	if start.Hours() != 8 || end.Hours() != 20 {
		t.Fatalf("unexpected window %v-%v", start, end)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sample file missing: %v", err)
	}
}

func TestParseTokenAndAnalysisToggles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("JOBSIFT_API_TOKEN", " from-env ")

	cfg, err := config.Parse([]byte(minimalConfig))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.API.Token != "from-env" {
		t.Fatalf("expected token from env, got %q", cfg.API.Token)
	}
	if !cfg.Analysis.ResearchOrganizations || !cfg.Analysis.DiscoverSources {
		t.Fatalf("expected follow-up research enabled by default: %+v", cfg.Analysis)
	}

	body := strings.Replace(minimalConfig, "min_score = 70", "min_score = 70\nresearch_organizations = false\ndiscover_sources = false", 1)
	body += "\n[api]\ntoken = \"from-file\"\n"
	cfg, err = config.Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if cfg.API.Token != "from-file" {
		t.Fatalf("file token should win over env, got %q", cfg.API.Token)
	}
	if cfg.Analysis.ResearchOrganizations || cfg.Analysis.DiscoverSources {
		t.Fatalf("expected toggles disabled: %+v", cfg.Analysis)
	}
}
