package config

import (
	"errors"
	"fmt"
)

var stagingTypes = map[string]struct{}{
	"listing":          {},
	"organization":     {},
	"source_discovery": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if p.MaxSpawnDepth < 1 {
		return errors.New("pipeline.max_spawn_depth must be at least 1")
	}
	if p.MaxRetries < 1 {
		return errors.New("pipeline.max_retries must be at least 1")
	}
	if err := ensurePositive(map[string]int{
		"pipeline.stage_timeout_seconds": p.StageTimeoutSeconds,
		"pipeline.workers":               p.Workers,
		"pipeline.queue_poll_interval":   p.QueuePollInterval,
		"pipeline.error_retry_interval":  p.ErrorRetryInterval,
		"pipeline.heartbeat_interval":    p.HeartbeatInterval,
		"pipeline.heartbeat_timeout":     p.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if p.HeartbeatTimeout <= p.HeartbeatInterval {
		return errors.New("pipeline.heartbeat_timeout must be greater than pipeline.heartbeat_interval")
	}
	for itemType, mode := range p.Staging {
		if _, ok := stagingTypes[itemType]; !ok {
			return fmt.Errorf("pipeline.staging: unknown item type %q", itemType)
		}
		if mode != StagingInPlace && mode != StagingSpawn {
			return fmt.Errorf("pipeline.staging.%s must be %q or %q", itemType, StagingInPlace, StagingSpawn)
		}
	}
	return nil
}

func (c *Config) validateFilter() error {
	f := c.Filter
	if f.StrikeThreshold < 1 {
		return errors.New("filter.strike_threshold must be at least 1")
	}
	if f.MinExperienceYears < 0 || f.MaxExperienceYears < 0 {
		return errors.New("filter experience bounds must be zero or positive")
	}
	if f.MaxExperienceYears > 0 && f.MinExperienceYears > f.MaxExperienceYears {
		return errors.New("filter.min_experience_years must not exceed filter.max_experience_years")
	}
	if f.MinSalary < 0 || f.MinDescriptionLength < 0 {
		return errors.New("filter.min_salary and filter.min_description_length must be zero or positive")
	}
	s := f.Strikes
	for key, value := range map[string]int{
		"filter.strikes.seniority":         s.Seniority,
		"filter.strikes.experience":        s.Experience,
		"filter.strikes.salary":            s.Salary,
		"filter.strikes.employment_type":   s.EmploymentType,
		"filter.strikes.short_description": s.ShortDescription,
		"filter.strikes.commission":        s.Commission,
	} {
		if value < 0 {
			return fmt.Errorf("%s must be zero or positive", key)
		}
	}
	for _, mode := range f.AllowedWorkModes {
		switch mode {
		case "remote", "hybrid", "onsite":
		default:
			return fmt.Errorf("filter.allowed_work_modes: unknown mode %q", mode)
		}
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MinScore < 0 || c.Analysis.MinScore > 100 {
		return errors.New("analysis.min_score must be between 0 and 100")
	}
	if c.Analysis.OrganizationMinScore < 0 || c.Analysis.OrganizationMinScore > 100 {
		return errors.New("analysis.organization_min_score must be between 0 and 100")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if s.TargetMatches < 1 {
		return errors.New("scheduler.target_matches must be at least 1")
	}
	if s.MaxSourcesPerTick < 1 {
		return errors.New("scheduler.max_sources_per_tick must be at least 1")
	}
	if s.IntervalSeconds <= 0 {
		return errors.New("scheduler.interval_seconds must be positive")
	}
	if s.DisableAfterFailures < 0 {
		return errors.New("scheduler.disable_after_failures must be zero or positive")
	}
	if _, _, _, err := c.ActiveWindow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.RequestsPerSecond <= 0 {
		return errors.New("fetch.requests_per_second must be positive")
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
