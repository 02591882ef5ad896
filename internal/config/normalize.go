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
	c.normalizeEngine()
	c.normalizeVPN()
	c.normalizeIndexers()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("GRABARR_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeEngine() {
	c.Engine.Host = strings.TrimSpace(c.Engine.Host)
	if c.Engine.Host == "" {
		c.Engine.Host = defaultEngineHost
	}
	if c.Engine.Port <= 0 {
		c.Engine.Port = defaultEnginePort
	}
	if c.Engine.Secret == "" {
		if value, ok := os.LookupEnv("ARIA2_RPC_SECRET"); ok {
			c.Engine.Secret = strings.TrimSpace(value)
		}
	}
	if c.Engine.TimeoutSeconds <= 0 {
		c.Engine.TimeoutSeconds = defaultEngineTimeout
	}
}

func (c *Config) normalizeVPN() {
	c.VPN.ContainerName = strings.TrimSpace(c.VPN.ContainerName)
	c.VPN.NetworkMode = strings.TrimSpace(c.VPN.NetworkMode)
	if c.VPN.HealthPort <= 0 {
		c.VPN.HealthPort = defaultVPNHealthPort
	}
	c.VPN.DockerBinary = strings.TrimSpace(c.VPN.DockerBinary)
	if c.VPN.DockerBinary == "" {
		c.VPN.DockerBinary = defaultDockerBinary
	}
	if c.VPN.InspectTimeout <= 0 {
		c.VPN.InspectTimeout = defaultInspectTimeout
	}
}

func (c *Config) normalizeIndexers() {
	for i := range c.Indexers {
		idx := &c.Indexers[i]
		idx.Name = strings.TrimSpace(idx.Name)
		idx.URL = strings.TrimRight(strings.TrimSpace(idx.URL), "/")
		if idx.LimiterCalls <= 0 {
			idx.LimiterCalls = defaultIndexerLimiterCall
		}
		if idx.LimiterSeconds <= 0 {
			idx.LimiterSeconds = defaultIndexerLimiterSecs
		}
		if idx.TimeoutSeconds <= 0 {
			idx.TimeoutSeconds = defaultIndexerTimeout
		}
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.SearchIntervalMins <= 0 {
		c.Workflow.SearchIntervalMins = defaultSearchIntervalMins
	}
	if c.Workflow.MaxSearchAttempts <= 0 {
		c.Workflow.MaxSearchAttempts = defaultMaxSearchAttempts
	}
	if c.Workflow.StatusPollInterval <= 0 {
		c.Workflow.StatusPollInterval = defaultStatusPollInterval
	}
	if strings.TrimSpace(c.Workflow.OrganizeScanCron) == "" {
		c.Workflow.OrganizeScanCron = defaultOrganizeScanCron
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = defaultAPIRateLimit
	}
	if c.API.RateLimitWindow <= 0 {
		c.API.RateLimitWindow = defaultAPIRateWindow
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
