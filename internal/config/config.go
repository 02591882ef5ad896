package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DownloadDir string `toml:"download_dir"`
	LibraryDir  string `toml:"library_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Library contains configuration for the media library structure.
type Library struct {
	MoviesDir         string `toml:"movies_dir"`
	TVDir             string `toml:"tv_dir"`
	GamesDir          string `toml:"games_dir"`
	OverwriteExisting bool   `toml:"overwrite_existing"`
}

// Indexer describes one torrent search provider.
type Indexer struct {
	Name           string `toml:"name"`
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	Categories     []int  `toml:"categories"`
	LimiterCalls   int    `toml:"limiter_calls"`
	LimiterSeconds int    `toml:"limiter_seconds"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Engine contains configuration for the aria2 download engine.
type Engine struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Secret         string `toml:"secret"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// VPN contains configuration for the optional routing container.
type VPN struct {
	ContainerName  string `toml:"container_name"`
	HealthPort     int    `toml:"health_port"`
	NetworkMode    string `toml:"network_mode"`
	DockerBinary   string `toml:"docker_binary"`
	InspectTimeout int    `toml:"inspect_timeout"`
}

// Workflow contains daemon timing and retry settings.
type Workflow struct {
	Workers            int    `toml:"workers"`
	QueuePollInterval  int    `toml:"queue_poll_interval"`
	ErrorRetryInterval int    `toml:"error_retry_interval"`
	SearchIntervalMins int    `toml:"search_interval_mins"`
	MaxSearchAttempts  int    `toml:"max_search_attempts"`
	StatusPollInterval int    `toml:"status_poll_interval"`
	OrganizeScanCron   string `toml:"organize_scan_cron"`
}

// API contains rate-limit settings for the control surface.
type API struct {
	RateLimit       int `toml:"rate_limit"`
	RateLimitWindow int `toml:"rate_limit_window"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging controls log output format, verbosity, and file retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config is the root configuration for the grabarr daemon and CLI.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Library       Library       `toml:"library"`
	Indexers      []Indexer     `toml:"indexers"`
	Engine        Engine        `toml:"engine"`
	VPN           VPN           `toml:"vpn"`
	Workflow      Workflow      `toml:"workflow"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/grabarr/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
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

	projectPath, err := filepath.Abs("grabarr.toml")
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
// LibraryDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DownloadDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// EngineAddr returns the host:port of the download engine's RPC endpoint.
func (c *Config) EngineAddr() string {
	return net.JoinHostPort(c.Engine.Host, strconv.Itoa(c.Engine.Port))
}

// RoutingConfigured reports whether a routing container is part of the
// deployment, by explicit network mode or by container name convention.
func (c *Config) RoutingConfigured() bool {
	if strings.TrimSpace(c.VPN.ContainerName) != "" {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(c.VPN.NetworkMode), "container:")
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
