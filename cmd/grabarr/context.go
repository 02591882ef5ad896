package main

import (
	"strings"
	"sync"

	"grabarr/internal/config"
)

type commandContext struct {
	serverFlag *string
	tokenFlag  *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(serverFlag, tokenFlag, configFlag *string) *commandContext {
	return &commandContext{
		serverFlag: serverFlag,
		tokenFlag:  tokenFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// serverURL resolves the daemon address, preferring the --server flag over
// the configured bind address.
func (c *commandContext) serverURL() string {
	if c.serverFlag != nil {
		if url := strings.TrimSpace(*c.serverFlag); url != "" {
			return strings.TrimSuffix(url, "/")
		}
	}
	bind := "127.0.0.1:7861"
	if cfg, err := c.ensureConfig(); err == nil && strings.TrimSpace(cfg.Paths.APIBind) != "" {
		bind = strings.TrimSpace(cfg.Paths.APIBind)
	}
	return "http://" + bind
}

func (c *commandContext) token() string {
	if c.tokenFlag != nil {
		if token := strings.TrimSpace(*c.tokenFlag); token != "" {
			return token
		}
	}
	if cfg, err := c.ensureConfig(); err == nil {
		return cfg.Paths.APIToken
	}
	return ""
}

func (c *commandContext) client() *apiClient {
	return newAPIClient(c.serverURL(), c.token())
}
