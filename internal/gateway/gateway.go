// ABOUTME: HTTP server wiring for the lantern dashboard API
// ABOUTME: Owns the mux, lifecycle (Run/Shutdown), and component handles

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/lantern/internal/hub"
	"github.com/2389/lantern/internal/store"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// CommandHandler routes raw observer command envelopes. Implemented by the
// session manager.
type CommandHandler interface {
	HandleCommand(ctx context.Context, raw []byte)
}

// Gateway serves the dashboard API: chat history queries, the SSE observer
// stream, and the command intake.
type Gateway struct {
	addr     string
	store    store.Store
	hub      *hub.Hub
	commands CommandHandler
	logger   *slog.Logger
	server   *http.Server
}

// New creates a gateway listening on addr once Run is called.
func New(addr string, st store.Store, h *hub.Hub, commands CommandHandler, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		addr:     addr,
		store:    st,
		hub:      h,
		commands: commands,
		logger:   logger.With("component", "gateway"),
	}
	g.server = &http.Server{
		Addr:    addr,
		Handler: g.Handler(),
	}
	return g
}

// Handler returns the routed HTTP handler.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chats", g.handleListChats)
	mux.HandleFunc("GET /api/chats/{id}/messages", g.handleListMessages)
	mux.HandleFunc("GET /api/events", g.handleEvents)
	mux.HandleFunc("POST /api/command", g.handleCommand)
	mux.HandleFunc("GET /healthz", g.handleHealth)
	return mux
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("dashboard API listening", "addr", g.addr)
		if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutting down dashboard API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := g.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
