// Package healthcheck serves a small liveness endpoint alongside the bot.
package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Status is the /healthz payload. Snapshot callbacks fill the dynamic fields
// on every request.
type Status struct {
	Mode         string           `json:"mode"`
	StreamState  string           `json:"stream_state,omitempty"`
	GatewayReady bool             `json:"gateway_ready"`
	BreakerState string           `json:"breaker_state,omitempty"`
	Counters     map[string]int64 `json:"counters,omitempty"`
}

// Snapshot reports the current process health. Nil is allowed; the endpoint
// then only reports liveness.
type Snapshot func() Status

// NormalizeListen turns a bare port into a listen address. Empty input stays
// empty, which disables the server.
func NormalizeListen(listen string) string {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return ""
	}
	if !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}

// StartServer binds the listen address and serves GET /healthz until the
// context ends or Shutdown is called.
func StartServer(ctx context.Context, logger *slog.Logger, listen, mode string, snapshot Snapshot) (*http.Server, error) {
	listen = NormalizeListen(listen)
	if listen == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("bind health listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := Status{Mode: mode}
		if snapshot != nil {
			status = snapshot()
			status.Mode = mode
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})

	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Warn("health_server_error", "addr", listen, "error", err.Error())
		}
	}()
	logger.Info("health_server_started", "addr", ln.Addr().String(), "mode", mode)
	return server, nil
}
