package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"grabarr/internal/config"
	"grabarr/internal/logging"
	"grabarr/internal/ratelimit"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	limiter    *ratelimit.Limiter
	rateLimit  int
	rateWindow time.Duration
	handler    http.Handler
	listener   net.Listener
	server     *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:       bind,
		logger:     logger,
		daemon:     d,
		limiter:    ratelimit.New(),
		rateLimit:  cfg.API.RateLimit,
		rateWindow: time.Duration(cfg.API.RateLimitWindow) * time.Second,
	}
	if srv.rateLimit <= 0 {
		srv.rateLimit = 60
	}
	if srv.rateWindow <= 0 {
		srv.rateWindow = time.Minute
	}

	srv.handler = srv.routes(cfg.Paths.APIToken)
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	guard := func(route string, next http.HandlerFunc) http.HandlerFunc {
		return s.throttle(route, authMiddleware(token, next))
	}

	mux.HandleFunc("/api/health", s.throttle("health", s.handleHealth))
	mux.HandleFunc("/api/status", guard("status", s.handleStatus))
	mux.HandleFunc("/api/requests", guard("requests", s.handleRequests))
	mux.HandleFunc("/api/requests/", guard("requests", s.handleRequestAction))
	mux.HandleFunc("/api/organize", guard("organize", s.handleOrganize))
	mux.HandleFunc("/api/organize/", guard("organize", s.handleOrganizeAction))
	mux.HandleFunc("/api/preferences", guard("preferences", s.handlePreferences))
	return mux
}

// throttle applies the fixed-window limit per client identity and route so a
// noisy client on one endpoint cannot starve the rest of the surface.
func (s *apiServer) throttle(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientAddr(r) + ":" + r.UserAgent() + ":" + r.Method + ":" + route
		result := s.limiter.Allow(key, s.rateLimit, s.rateWindow)
		if !result.Allowed {
			retry := result.RetryAfter(time.Now())
			seconds := int(retry.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	// A fresh http.Server per start; a shut-down server cannot serve again.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
