// Package vpn reports whether the download engine is reachable and through
// which network path. Checks never fail with an error; every outcome is a
// Health value so callers can keep operating in degraded mode.
package vpn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"grabarr/internal/config"
	"grabarr/internal/ratelimit"
)

// Status is the overall verdict of a health check.
type Status string

const (
	StatusHealthy       Status = "healthy"
	StatusUnhealthy     Status = "unhealthy"
	StatusNotApplicable Status = "not_applicable"
)

// Path identifies which network path a verdict applies to.
const (
	PathDirect = "direct"
	PathRouted = "routed"
)

// Health is the result of one check. It is always a value, never an error.
type Health struct {
	Status    Status    `json:"status"`
	Connected bool      `json:"connected"`
	Path      string    `json:"path"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

// Usable reports whether the path can carry a download submission.
func (h Health) Usable() bool {
	return h.Status == StatusHealthy || h.Status == StatusNotApplicable
}

// HTTPDoer describes the HTTP client used for probes.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	endpointTimeout = 5 * time.Second
	probeTimeout    = 3 * time.Second

	// Outbound probes are throttled so a tight orchestration loop cannot
	// hammer the routing container; within the window the cached verdict
	// is reused.
	checkLimit  = 6
	checkWindow = 30 * time.Second
)

// Monitor checks engine reachability with a three-tier fallback: the routing
// container's health endpoint, a local control-port probe, then a control-port
// probe through the container hostname.
type Monitor struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  HTTPDoer
	runner  commandRunner
	limiter *ratelimit.Limiter

	mu   sync.Mutex
	last *Health
}

func NewMonitor(cfg *config.Config, logger *slog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		logger:  logger,
		client:  &http.Client{Timeout: endpointTimeout},
		runner:  execRunner{},
		limiter: ratelimit.New(),
	}
}

// WithClient swaps the probe HTTP client, used by tests.
func (m *Monitor) WithClient(client HTTPDoer) *Monitor {
	m.client = client
	return m
}

// WithRunner swaps the container-inspect runner, used by tests.
func (m *Monitor) WithRunner(runner commandRunner) *Monitor {
	m.runner = runner
	return m
}

// Check evaluates the current network path. When no routing container is
// configured it short-circuits to not_applicable without any network call.
func (m *Monitor) Check(ctx context.Context) Health {
	if !m.cfg.RoutingConfigured() {
		return m.remember(Health{
			Status:    StatusNotApplicable,
			Connected: true,
			Path:      PathDirect,
			Message:   "no routing container configured",
			CheckedAt: time.Now(),
		})
	}

	if !m.limiter.Allow("vpn:check", checkLimit, checkWindow).Allowed {
		if cached := m.cached(); cached != nil {
			return *cached
		}
	}

	var failures []string

	if verdict, ok := m.checkHealthEndpoint(ctx, &failures); ok {
		return m.remember(verdict)
	}
	if verdict, ok := m.probeLocalEngine(ctx, &failures); ok {
		return m.remember(verdict)
	}
	if verdict, ok := m.probeThroughContainer(ctx, &failures); ok {
		return m.remember(verdict)
	}

	return m.remember(Health{
		Status:    StatusUnhealthy,
		Connected: false,
		Path:      PathRouted,
		Message:   "all probes failed: " + strings.Join(failures, "; "),
		CheckedAt: time.Now(),
	})
}

type endpointReport struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}

// checkHealthEndpoint queries the routing container's dedicated health
// endpoint. When the endpoint answers, its self-reported status is trusted
// verbatim, connected or not.
func (m *Monitor) checkHealthEndpoint(ctx context.Context, failures *[]string) (Health, bool) {
	if m.cfg.VPN.ContainerName == "" || m.cfg.VPN.HealthPort <= 0 {
		*failures = append(*failures, "health endpoint not configured")
		return Health{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	target := fmt.Sprintf("http://%s:%d/", m.cfg.VPN.ContainerName, m.cfg.VPN.HealthPort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		*failures = append(*failures, fmt.Sprintf("health endpoint: %v", err))
		return Health{}, false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		*failures = append(*failures, fmt.Sprintf("health endpoint: %v", err))
		return Health{}, false
	}
	defer resp.Body.Close()

	var report endpointReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		*failures = append(*failures, fmt.Sprintf("health endpoint: decode: %v", err))
		return Health{}, false
	}

	status := StatusHealthy
	message := report.Message
	if !report.Connected {
		status = StatusUnhealthy
		if message == "" {
			message = "routing container reports disconnected"
		}
	} else if message == "" {
		message = "routing container reports connected"
	}
	return Health{
		Status:    status,
		Connected: report.Connected,
		Path:      PathRouted,
		Message:   message,
		CheckedAt: time.Now(),
	}, true
}

// probeLocalEngine applies only when this process shares the routing
// container's network namespace. Any response, including an HTTP error
// status, counts as up: the probe tests reachability, not correctness.
func (m *Monitor) probeLocalEngine(ctx context.Context, failures *[]string) (Health, bool) {
	if !strings.HasPrefix(m.cfg.VPN.NetworkMode, "container:") {
		*failures = append(*failures, "not sharing container network namespace")
		return Health{}, false
	}
	target := fmt.Sprintf("http://127.0.0.1:%d/jsonrpc", m.cfg.Engine.Port)
	if err := m.probe(ctx, target); err != nil {
		*failures = append(*failures, fmt.Sprintf("local engine probe: %v", err))
		return Health{}, false
	}
	return Health{
		Status:    StatusHealthy,
		Connected: true,
		Path:      PathRouted,
		Message:   "engine control port reachable in shared network namespace",
		CheckedAt: time.Now(),
	}, true
}

func (m *Monitor) probeThroughContainer(ctx context.Context, failures *[]string) (Health, bool) {
	host := m.cfg.VPN.ContainerName
	if host == "" {
		host = strings.TrimPrefix(m.cfg.VPN.NetworkMode, "container:")
	}
	if host == "" {
		*failures = append(*failures, "no container hostname to probe")
		return Health{}, false
	}
	target := fmt.Sprintf("http://%s:%d/jsonrpc", host, m.cfg.Engine.Port)
	if err := m.probe(ctx, target); err != nil {
		*failures = append(*failures, fmt.Sprintf("container probe: %v", err))
		return Health{}, false
	}
	return Health{
		Status:    StatusHealthy,
		Connected: true,
		Path:      PathRouted,
		Message:   "engine control port reachable through " + host,
		CheckedAt: time.Now(),
	}, true
}

func (m *Monitor) probe(ctx context.Context, target string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (m *Monitor) remember(h Health) Health {
	m.mu.Lock()
	m.last = &h
	m.mu.Unlock()
	return h
}

func (m *Monitor) cached() *Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return nil
	}
	copied := *m.last
	return &copied
}
