package config

const (
	defaultDownloadDir        = "~/.local/share/grabarr/downloads"
	defaultLibraryDir         = "~/library"
	defaultLogDir             = "~/.local/share/grabarr/logs"
	defaultMoviesDir          = "movies"
	defaultTVDir              = "tv"
	defaultGamesDir           = "games"
	defaultAPIBind            = "127.0.0.1:7861"
	defaultEngineHost         = "127.0.0.1"
	defaultEnginePort         = 6800
	defaultEngineTimeout      = 10
	defaultVPNHealthPort      = 9999
	defaultDockerBinary       = "docker"
	defaultInspectTimeout     = 5
	defaultWorkers            = 2
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultSearchIntervalMins = 30
	defaultMaxSearchAttempts  = 8
	defaultStatusPollInterval = 15
	defaultOrganizeScanCron   = "*/5 * * * *"
	defaultAPIRateLimit       = 60
	defaultAPIRateWindow      = 60
	defaultIndexerLimiterCall = 10
	defaultIndexerLimiterSecs = 10
	defaultIndexerTimeout     = 10
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			LibraryDir:  defaultLibraryDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Library: Library{
			MoviesDir: defaultMoviesDir,
			TVDir:     defaultTVDir,
			GamesDir:  defaultGamesDir,
		},
		Engine: Engine{
			Host:           defaultEngineHost,
			Port:           defaultEnginePort,
			TimeoutSeconds: defaultEngineTimeout,
		},
		VPN: VPN{
			HealthPort:     defaultVPNHealthPort,
			DockerBinary:   defaultDockerBinary,
			InspectTimeout: defaultInspectTimeout,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			SearchIntervalMins: defaultSearchIntervalMins,
			MaxSearchAttempts:  defaultMaxSearchAttempts,
			StatusPollInterval: defaultStatusPollInterval,
			OrganizeScanCron:   defaultOrganizeScanCron,
		},
		API: API{
			RateLimit:       defaultAPIRateLimit,
			RateLimitWindow: defaultAPIRateWindow,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
