package aria2

import (
	"context"
	"strings"

	"grabarr/internal/config"
	"grabarr/internal/vpn"
)

// PathReporter reports which network path engine traffic currently takes.
type PathReporter interface {
	Check(ctx context.Context) vpn.Health
}

// Switch sends each RPC call over the endpoint matching the network path the
// monitor currently reports: the routed container hostname while traffic is
// routed, the configured direct endpoint otherwise.
type Switch struct {
	direct *Client
	routed *Client
	paths  PathReporter
}

// NewSwitch builds a switch from the configured engine endpoint plus, when a
// routing container is configured, its hostname alternative.
func NewSwitch(cfg *config.Config, paths PathReporter) *Switch {
	var routed *Client
	host := cfg.VPN.ContainerName
	if host == "" {
		host = strings.TrimPrefix(cfg.VPN.NetworkMode, "container:")
	}
	if host != "" {
		routed = NewForHost(cfg, host)
	}
	return NewSwitchWithClients(NewFromConfig(cfg), routed, paths)
}

// NewSwitchWithClients wires explicit clients, used by tests.
func NewSwitchWithClients(direct, routed *Client, paths PathReporter) *Switch {
	return &Switch{direct: direct, routed: routed, paths: paths}
}

func (s *Switch) pick(ctx context.Context) *Client {
	if s.routed == nil || s.paths == nil {
		return s.direct
	}
	if s.paths.Check(ctx).Path == vpn.PathRouted {
		return s.routed
	}
	return s.direct
}

// AddURI submits a download over the currently reported path.
func (s *Switch) AddURI(ctx context.Context, uri, downloadDir string) (string, error) {
	return s.pick(ctx).AddURI(ctx, uri, downloadDir)
}

// TellStatus fetches transfer state over the currently reported path.
func (s *Switch) TellStatus(ctx context.Context, gid string) (TransferStatus, error) {
	return s.pick(ctx).TellStatus(ctx, gid)
}

// Remove cancels a transfer over the currently reported path.
func (s *Switch) Remove(ctx context.Context, gid string) error {
	return s.pick(ctx).Remove(ctx, gid)
}
