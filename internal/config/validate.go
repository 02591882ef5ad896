package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateIndexers(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateVPN(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if c.Library.MoviesDir == "" {
		return errors.New("library.movies_dir must be set")
	}
	if c.Library.TVDir == "" {
		return errors.New("library.tv_dir must be set")
	}
	if c.Library.GamesDir == "" {
		return errors.New("library.games_dir must be set")
	}
	return nil
}

func (c *Config) validateIndexers() error {
	seen := make(map[string]struct{}, len(c.Indexers))
	for i, idx := range c.Indexers {
		if idx.Name == "" {
			return fmt.Errorf("indexers[%d].name must be set", i)
		}
		if idx.URL == "" {
			return fmt.Errorf("indexers[%d].url must be set", i)
		}
		if !strings.HasPrefix(idx.URL, "http://") && !strings.HasPrefix(idx.URL, "https://") {
			return fmt.Errorf("indexers[%d].url must be an http(s) URL", i)
		}
		key := strings.ToLower(idx.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("indexers[%d].name %q is duplicated", i, idx.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.Port <= 0 || c.Engine.Port > 65535 {
		return errors.New("engine.port must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateVPN() error {
	if mode := c.VPN.NetworkMode; mode != "" && !strings.HasPrefix(mode, "container:") {
		return fmt.Errorf("vpn.network_mode must be empty or \"container:<name>\", got %q", mode)
	}
	if c.VPN.HealthPort <= 0 || c.VPN.HealthPort > 65535 {
		return errors.New("vpn.health_port must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.search_interval_mins": c.Workflow.SearchIntervalMins,
		"workflow.max_search_attempts":  c.Workflow.MaxSearchAttempts,
		"workflow.status_poll_interval": c.Workflow.StatusPollInterval,
		"api.rate_limit":                c.API.RateLimit,
		"api.rate_limit_window":         c.API.RateLimitWindow,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
