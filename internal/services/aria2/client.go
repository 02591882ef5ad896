// Package aria2 implements the JSON-RPC client for the aria2 download
// engine's control channel.
package aria2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"grabarr/internal/config"
	"grabarr/internal/services"
)

// HTTPDoer describes the HTTP client used to reach the RPC endpoint.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client speaks JSON-RPC 2.0 to a single aria2 endpoint. The endpoint may be
// a direct host or the routing container's hostname; callers decide which to
// construct based on health results.
type Client struct {
	endpoint string
	secret   string
	client   HTTPDoer
	nextID   atomic.Int64
}

// New builds a client for the given RPC endpoint, e.g.
// "http://127.0.0.1:6800/jsonrpc".
func New(endpoint, secret string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{endpoint: endpoint, secret: secret, client: doer}
}

// NewFromConfig builds a client for the configured engine host and port.
func NewFromConfig(cfg *config.Config) *Client {
	endpoint := fmt.Sprintf("http://%s/jsonrpc", cfg.EngineAddr())
	timeout := time.Duration(cfg.Engine.TimeoutSeconds) * time.Second
	return New(endpoint, cfg.Engine.Secret, &http.Client{Timeout: timeout})
}

// NewForHost builds a client that reaches the engine through an alternate
// hostname, used when traffic is routed through the VPN container.
func NewForHost(cfg *config.Config, host string) *Client {
	endpoint := fmt.Sprintf("http://%s:%d/jsonrpc", host, cfg.Engine.Port)
	timeout := time.Duration(cfg.Engine.TimeoutSeconds) * time.Second
	return New(endpoint, cfg.Engine.Secret, &http.Client{Timeout: timeout})
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// ErrGIDNotFound indicates the engine no longer knows the transfer. Callers
// treat this as "already gone" during cancellation.
var ErrGIDNotFound = errors.New("aria2: gid not found")

// aria2 reports unknown GIDs with code 1 and a message naming the gid.
func (e *rpcError) isGIDNotFound() bool {
	return e != nil && e.Code == 1 && bytes.Contains([]byte(e.Message), []byte("not found"))
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	if c.secret != "" {
		params = append([]any{"token:" + c.secret}, params...)
	}
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "grabarr-" + strconv.FormatInt(c.nextID.Add(1), 10),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "aria2", method, "rpc call failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "aria2", method, "read rpc response", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return services.Wrap(services.ErrAuthentication, "aria2", method, "rpc secret rejected", nil)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return services.Wrap(services.ErrUnavailable, "aria2", method, "decode rpc response", err)
	}
	if decoded.Error != nil {
		if decoded.Error.isGIDNotFound() {
			return fmt.Errorf("%w: %s", ErrGIDNotFound, decoded.Error.Message)
		}
		return services.Wrap(services.ErrTransient, "aria2", method,
			fmt.Sprintf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message), nil)
	}
	if result != nil {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return services.Wrap(services.ErrTransient, "aria2", method, "decode rpc result", err)
		}
	}
	return nil
}

// AddURI submits a magnet or torrent URI for download and returns the engine
// transfer identifier (gid).
func (c *Client) AddURI(ctx context.Context, uri, downloadDir string) (string, error) {
	options := map[string]string{}
	if downloadDir != "" {
		options["dir"] = downloadDir
	}
	var gid string
	if err := c.call(ctx, "aria2.addUri", []any{[]string{uri}, options}, &gid); err != nil {
		return "", err
	}
	return gid, nil
}

// TransferStatus is the subset of aria2.tellStatus fields the workflow needs.
type TransferStatus struct {
	GID             string   `json:"gid"`
	Status          string   `json:"status"`
	TotalLength     string   `json:"totalLength"`
	CompletedLength string   `json:"completedLength"`
	DownloadSpeed   string   `json:"downloadSpeed"`
	ErrorMessage    string   `json:"errorMessage"`
	Dir             string   `json:"dir"`
	FollowedBy      []string `json:"followedBy"`
	Files           []struct {
		Path string `json:"path"`
	} `json:"files"`
}

// Complete reports whether the transfer finished successfully.
func (s TransferStatus) Complete() bool { return s.Status == "complete" }

// Failed reports whether the engine gave up on the transfer.
func (s TransferStatus) Failed() bool { return s.Status == "error" || s.Status == "removed" }

// Progress returns completed/total as a percentage, zero when unknown.
func (s TransferStatus) Progress() float64 {
	total, err := strconv.ParseFloat(s.TotalLength, 64)
	if err != nil || total <= 0 {
		return 0
	}
	done, err := strconv.ParseFloat(s.CompletedLength, 64)
	if err != nil {
		return 0
	}
	return done / total * 100
}

// TellStatus fetches the current state of a transfer.
func (c *Client) TellStatus(ctx context.Context, gid string) (TransferStatus, error) {
	var status TransferStatus
	if err := c.call(ctx, "aria2.tellStatus", []any{gid}, &status); err != nil {
		return TransferStatus{}, err
	}
	return status, nil
}

// Remove cancels a transfer. A gid the engine no longer knows returns
// ErrGIDNotFound, which callers may ignore.
func (c *Client) Remove(ctx context.Context, gid string) error {
	return c.call(ctx, "aria2.remove", []any{gid}, nil)
}

// Pause suspends a transfer in place.
func (c *Client) Pause(ctx context.Context, gid string) error {
	return c.call(ctx, "aria2.pause", []any{gid}, nil)
}

// Unpause resumes a paused transfer.
func (c *Client) Unpause(ctx context.Context, gid string) error {
	return c.call(ctx, "aria2.unpause", []any{gid}, nil)
}

// Version checks engine reachability and returns the version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var result struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "aria2.getVersion", nil, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}
