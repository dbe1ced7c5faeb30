package config

const (
	defaultDataDir                 = "~/.local/share/jobsift"
	defaultLogDir                  = "~/.local/share/jobsift/logs"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultStageTimeoutSeconds     = 120
	defaultWorkers                 = 2
	defaultQueuePollInterval       = 5
	defaultErrorRetryInterval      = 10
	defaultHeartbeatInterval       = 15
	defaultHeartbeatTimeout        = 120
	defaultSchedulerInterval       = 900
	defaultTimezone                = "Local"
	defaultLLMBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel                = "google/gemini-3-flash-preview"
	defaultLLMReferer              = "https://github.com/jobsift/jobsift"
	defaultLLMTitle                = "jobsift"
	defaultLLMTimeoutSeconds       = 60
	defaultFetchUserAgent          = "jobsift/dev (+https://github.com/jobsift/jobsift)"
	defaultFetchRequestsPerSecond  = 1.0
	defaultFetchBurst              = 2
	defaultFetchTimeoutSeconds     = 30
	defaultFetchMaxBodyBytes       = 4 << 20
	defaultNATSSubject             = "jobsift.items.terminal"
	defaultAPIBind                 = "127.0.0.1:7497"
	defaultNotifyRequestTimeout    = 10
	defaultOrganizationMinScore    = 0
	defaultFilterStrikeSeniority   = 2
	defaultFilterStrikeExperience  = 2
	defaultFilterStrikeSalary      = 3
	defaultFilterStrikeEmployment  = 2
	defaultFilterStrikeShortDesc   = 1
	defaultFilterStrikeCommission  = 3
	defaultFilterMinDescriptionLen = 200
)

// Staging strategies for advancing an item to its next sub-stage.
const (
	StagingInPlace = "in_place"
	StagingSpawn   = "spawn"
)

// Default returns a Config populated with repository defaults for tuning
// knobs. Policy keys (see requiredKeys) are left zero and must come from the
// configuration file.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Pipeline: Pipeline{
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			Workers:             defaultWorkers,
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
			Staging:             map[string]string{},
		},
		Filter: Filter{
			MinDescriptionLength: defaultFilterMinDescriptionLen,
			Strikes: FilterStrikes{
				Seniority:        defaultFilterStrikeSeniority,
				Experience:       defaultFilterStrikeExperience,
				Salary:           defaultFilterStrikeSalary,
				EmploymentType:   defaultFilterStrikeEmployment,
				ShortDescription: defaultFilterStrikeShortDesc,
				Commission:       defaultFilterStrikeCommission,
			},
		},
		Analysis: Analysis{
			OrganizationMinScore:  defaultOrganizationMinScore,
			ResearchOrganizations: true,
			DiscoverSources:       true,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Scheduler: Scheduler{
			Enabled:         true,
			IntervalSeconds: defaultSchedulerInterval,
			Timezone:        defaultTimezone,
		},
		Fetch: Fetch{
			UserAgent:         defaultFetchUserAgent,
			RequestsPerSecond: defaultFetchRequestsPerSecond,
			Burst:             defaultFetchBurst,
			TimeoutSeconds:    defaultFetchTimeoutSeconds,
			MaxBodyBytes:      defaultFetchMaxBodyBytes,
		},
		Events: Events{
			NATSSubject: defaultNATSSubject,
			Metrics:     true,
		},
		Notifications: Notifications{
			RequestTimeout:   defaultNotifyRequestTimeout,
			Failures:         true,
			Matches:          true,
			SchedulerSummary: false,
		},
		API: API{
			Bind: defaultAPIBind,
		},
	}
}
