package vpn

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ContainerStatus is a best-effort snapshot of the routing container taken
// through the container runtime's inspect facility. Known is false whenever
// the inspect call failed or produced output that could not be parsed.
type ContainerStatus struct {
	Name     string `json:"name"`
	Known    bool   `json:"known"`
	Running  bool   `json:"running"`
	State    string `json:"state"`
	Health   string `json:"health"`
	ExitCode int    `json:"exit_code"`
}

const (
	inspectTimeout      = 5 * time.Second
	availabilityTimeout = 3 * time.Second

	inspectFormat = "{{.State.Status}}|{{.State.Running}}|{{if .State.Health}}{{.State.Health.Status}}{{else}}none{{end}}|{{.State.ExitCode}}"
)

type commandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ContainerState inspects the routing container with a hard timeout. Inspect
// failures and parse failures both come back as an unknown status rather than
// an error.
func (m *Monitor) ContainerState(ctx context.Context) ContainerStatus {
	name := m.containerName()
	status := ContainerStatus{Name: name, State: "unknown", Health: "unknown"}
	if name == "" {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, m.inspectTimeout())
	defer cancel()

	out, err := m.runner.Output(ctx, m.dockerBinary(), "inspect", "--format", inspectFormat, name)
	if err != nil {
		m.logger.Debug("container inspect failed",
			"component", "vpn",
			"container", name,
			"error", err)
		return status
	}

	fields := strings.Split(strings.TrimSpace(string(out)), "|")
	if len(fields) != 4 {
		return status
	}
	exitCode, err := strconv.Atoi(fields[3])
	if err != nil {
		return status
	}

	status.Known = true
	status.State = fields[0]
	status.Running = fields[1] == "true"
	status.Health = fields[2]
	status.ExitCode = exitCode
	return status
}

// ContainerRunning is the lighter availability check with a tighter timeout.
func (m *Monitor) ContainerRunning(ctx context.Context) bool {
	name := m.containerName()
	if name == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	out, err := m.runner.Output(ctx, m.dockerBinary(), "inspect", "--format", "{{.State.Running}}", name)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

func (m *Monitor) containerName() string {
	if m.cfg.VPN.ContainerName != "" {
		return m.cfg.VPN.ContainerName
	}
	mode := strings.TrimSpace(m.cfg.VPN.NetworkMode)
	if strings.HasPrefix(mode, "container:") {
		return strings.TrimPrefix(mode, "container:")
	}
	return ""
}

func (m *Monitor) dockerBinary() string {
	if m.cfg.VPN.DockerBinary != "" {
		return m.cfg.VPN.DockerBinary
	}
	return "docker"
}

func (m *Monitor) inspectTimeout() time.Duration {
	if m.cfg.VPN.InspectTimeout > 0 {
		return time.Duration(m.cfg.VPN.InspectTimeout) * time.Second
	}
	return inspectTimeout
}
