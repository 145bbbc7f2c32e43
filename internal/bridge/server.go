package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/powerview-ble/internal/logging"
	"github.com/muurk/powerview-ble/internal/protocol"
	"github.com/muurk/powerview-ble/internal/shade"
)

// DefaultCommandTimeout bounds one HTTP or NATS command, including any
// queued command ahead of it
const DefaultCommandTimeout = 30 * time.Second

// Config holds the bridge configuration
type Config struct {
	Host           string
	Port           int
	NATSURL        string        // empty disables NATS
	CommandTimeout time.Duration // per-request bound for shade commands
}

// Event is pushed to WebSocket clients and NATS for every decoded advertisement
type Event struct {
	Type  string      `json:"type"`
	Time  time.Time   `json:"time"`
	Shade shade.State `json:"shade"`
}

// Server exposes a shade.Manager over HTTP, WebSocket and NATS
type Server struct {
	config  *Config
	manager *shade.Manager
	hub     *Hub
	nats    *NATSBridge
	http    *http.Server
	started time.Time
}

// New creates a bridge for manager and subscribes to its telemetry
func New(config *Config, manager *shade.Manager) *Server {
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}
	s := &Server{
		config:  config,
		manager: manager,
		hub:     NewHub(),
		started: time.Now(),
	}
	manager.OnTelemetry(s.publishTelemetry)
	return s
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))

	if s.config.NATSURL != "" {
		nb, err := ConnectNATS(s.config.NATSURL, s.manager, s.config.CommandTimeout)
		if err != nil {
			return err
		}
		s.nats = nb
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		if s.nats != nil {
			s.nats.Close()
		}
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.http = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Starting PowerView BLE bridge",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("nats", s.nats != nil),
		zap.Bool("home_key", s.manager.HasHomeKey()),
	)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping bridge...")
	case <-ctx.Done():
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server, disconnects clients and NATS
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down bridge...")

	var err error
	if s.http != nil {
		if err = s.http.Shutdown(ctx); err != nil {
			logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		}
	}
	s.hub.Close()
	if s.nats != nil {
		s.nats.Close()
	}

	logging.Sync()
	return err
}

// Hub returns the WebSocket hub
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) commandContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.config.CommandTimeout)
}

func (s *Server) publishTelemetry(sh *shade.Shade, _ *protocol.Telemetry) {
	event := Event{Type: "telemetry", Time: time.Now(), Shade: sh.State()}
	data, err := json.Marshal(event)
	if err != nil {
		logging.Error("Failed to marshal telemetry event", zap.Error(err))
		return
	}

	s.hub.Broadcast(data)
	if s.nats != nil {
		s.nats.Publish(sh.Address(), data)
	}
}
