// Package testsupport provides shared fixtures for grabarr tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"grabarr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The directories exist by the time it returns.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := &config.Config{
		Paths: config.Paths{
			DownloadDir: filepath.Join(base, "downloads"),
			LibraryDir:  filepath.Join(base, "library"),
			LogDir:      filepath.Join(base, "logs"),
			APIBind:     "127.0.0.1:0",
		},
		Library: config.Library{
			MoviesDir: "movies",
			TVDir:     "tv",
			GamesDir:  "games",
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	for _, dir := range []string{cfg.Paths.DownloadDir, cfg.Paths.LibraryDir, cfg.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return cfg
}

// WithAPIToken sets the bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}
