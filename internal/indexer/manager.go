package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"grabarr/internal/config"
	"grabarr/internal/services"
)

// Searcher is the search surface the orchestrator depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
}

// Manager fans a query out to every configured indexer and merges the
// results. A single failing indexer degrades the result set instead of
// failing the search; the query errors only when every indexer fails.
type Manager struct {
	clients []*Client
	logger  *slog.Logger

	mu     sync.Mutex
	failed map[string]string
}

func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	clients := make([]*Client, 0, len(cfg.Indexers))
	for _, ic := range cfg.Indexers {
		clients = append(clients, NewClient(ic))
	}
	return &Manager{
		clients: clients,
		logger:  logger,
		failed:  make(map[string]string),
	}
}

// Clients exposes the configured clients so tests can inject fake HTTP doers.
func (m *Manager) Clients() []*Client { return m.clients }

// Search queries all indexers concurrently and returns the merged candidate
// list. Indexers that error are recorded and skipped; their last error is
// visible through FailedIndexers until the next successful query.
func (m *Manager) Search(ctx context.Context, query string) ([]Candidate, error) {
	if len(m.clients) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "indexer", "search", "no indexers configured", nil)
	}

	type outcome struct {
		name       string
		candidates []Candidate
		err        error
	}

	results := make(chan outcome, len(m.clients))
	for _, client := range m.clients {
		go func(c *Client) {
			candidates, err := c.Search(ctx, query)
			results <- outcome{name: c.Name(), candidates: candidates, err: err}
		}(client)
	}

	var merged []Candidate
	var errs []string
	for range m.clients {
		out := <-results
		if out.err != nil {
			m.recordFailure(out.name, out.err)
			m.logger.Warn("indexer query failed",
				"component", "indexer",
				"indexer", out.name,
				"query", query,
				"error", out.err)
			errs = append(errs, fmt.Sprintf("%s: %v", out.name, out.err))
			continue
		}
		m.clearFailure(out.name)
		merged = append(merged, out.candidates...)
	}

	if len(merged) == 0 && len(errs) == len(m.clients) {
		return nil, services.Wrap(services.ErrUnavailable, "indexer", "search",
			"all indexers failed: "+strings.Join(errs, "; "), nil)
	}
	return merged, nil
}

// FailedIndexers returns the names of indexers whose last query errored,
// mapped to the error text.
func (m *Manager) FailedIndexers() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]string, len(m.failed))
	for name, msg := range m.failed {
		snapshot[name] = msg
	}
	return snapshot
}

func (m *Manager) recordFailure(name string, err error) {
	m.mu.Lock()
	m.failed[name] = err.Error()
	m.mu.Unlock()
}

func (m *Manager) clearFailure(name string) {
	m.mu.Lock()
	delete(m.failed, name)
	m.mu.Unlock()
}
