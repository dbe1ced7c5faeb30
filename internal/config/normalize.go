package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizePipeline()
	c.normalizeFilter()
	c.normalizeLLM()
	c.normalizeScheduler()
	c.normalizeFetch()
	c.Events.NATSURL = strings.TrimSpace(c.Events.NATSURL)
	c.Events.NATSSubject = strings.TrimSpace(c.Events.NATSSubject)
	if c.Events.NATSSubject == "" {
		c.Events.NATSSubject = defaultNATSSubject
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("JOBSIFT_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizePipeline() {
	staging := make(map[string]string, len(c.Pipeline.Staging))
	for key, value := range c.Pipeline.Staging {
		staging[strings.ToLower(strings.TrimSpace(key))] = strings.ToLower(strings.TrimSpace(value))
	}
	c.Pipeline.Staging = staging
}

func (c *Config) normalizeFilter() {
	f := &c.Filter
	f.ExcludedCompanies = trimList(f.ExcludedCompanies)
	f.ExcludedDomains = trimList(f.ExcludedDomains)
	f.ExcludedKeywords = trimList(f.ExcludedKeywords)
	f.AllowedWorkModes = lowerList(f.AllowedWorkModes)
	f.RequiredKeywords = trimList(f.RequiredKeywords)
	f.RejectedSeniority = trimList(f.RejectedSeniority)
	f.AllowedEmploymentTypes = lowerList(f.AllowedEmploymentTypes)
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if strings.TrimSpace(c.LLM.Referer) == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	if strings.TrimSpace(c.LLM.Title) == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeScheduler() {
	c.Scheduler.ActiveStart = strings.TrimSpace(c.Scheduler.ActiveStart)
	c.Scheduler.ActiveEnd = strings.TrimSpace(c.Scheduler.ActiveEnd)
	c.Scheduler.Timezone = strings.TrimSpace(c.Scheduler.Timezone)
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = defaultTimezone
	}
}

func (c *Config) normalizeFetch() {
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
	if c.Fetch.Burst <= 0 {
		c.Fetch.Burst = defaultFetchBurst
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = defaultFetchTimeoutSeconds
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		c.Fetch.MaxBodyBytes = defaultFetchMaxBodyBytes
	}
}

func trimList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func lowerList(values []string) []string {
	out := trimList(values)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}
