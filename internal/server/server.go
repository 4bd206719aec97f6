package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/mwest/chatrelay/internal/hub"
	"github.com/mwest/chatrelay/internal/model"
	"github.com/mwest/chatrelay/internal/registry"
)

// Relay is the hub surface the server drives.
type Relay interface {
	Connect(t registry.Transport) string
	Receive(id string, data []byte)
	MarkAlive(id string)
	Disconnect(id string)
	PostChat(user, text, cid string) bool
	Stats() hub.Stats
}

// HistoryStore reads persisted chat messages for the REST endpoint.
type HistoryStore interface {
	Recent(ctx context.Context, room string, limit int) ([]model.ChatMessage, error)
}

// Pinger checks a backing service for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds HTTP server settings.
type Config struct {
	Host              string
	Port              int
	SendBuffer        int
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	HeartbeatInterval time.Duration

	// MaxFrameBytes caps a single inbound WebSocket frame. SDP offers
	// run a few KB; anything bigger than this is abuse.
	MaxFrameBytes int64

	Room                string
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// Server serves the WebSocket endpoint and the REST API.
type Server struct {
	cfg     Config
	hub     Relay
	history HistoryStore
	pinger  Pinger
	logger  *slog.Logger

	httpServer *http.Server
}

// New creates a Server. pinger may be nil when no database is
// configured; the health endpoint then reports hub stats only.
func New(cfg Config, h Relay, history HistoryStore, pinger Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFrameBytes == 0 {
		cfg.MaxFrameBytes = 64 * 1024
	}

	s := &Server{
		cfg:     cfg,
		hub:     h,
		history: history,
		pinger:  pinger,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/send", s.handleSend)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler: mux,
	}

	return s
}

// Handler returns the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It returns once the listener is bound;
// serve errors after that surface through the returned channel.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return errCh, nil
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
