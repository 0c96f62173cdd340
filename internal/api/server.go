// Package api provides the HTTP REST API and WebSocket server for heatpump-sync.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/heatpump-sync/internal/attribute"
	"github.com/nerrad567/heatpump-sync/internal/bridges/heatpump"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/config"
	"github.com/nerrad567/heatpump-sync/internal/infrastructure/logging"
	"github.com/nerrad567/heatpump-sync/internal/settings"
	"github.com/nerrad567/heatpump-sync/internal/writelog"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the device surface the API drives.
// Satisfied by *heatpump.Bridge.
type Bridge interface {
	Session(deviceID string) (*heatpump.Session, error)
	Sessions() []*heatpump.Session
	Healthy() (bool, string)
	OnAttributeChange(fn heatpump.ChangeObserver)
}

// SettingsStore reads and updates device settings.
// Satisfied by *settings.Store.
type SettingsStore interface {
	Get(deviceID string) (settings.Values, error)
	Put(deviceID string, updates settings.Values) ([]string, error)
}

// HistoryReader queries attribute history.
// Satisfied by *attribute.SQLiteHistoryRepository.
type HistoryReader interface {
	GetHistory(ctx context.Context, deviceID, attribute string, limit int) ([]attribute.HistoryEntry, error)
}

// WriteLogReader lists settled writes.
// Satisfied by *writelog.SQLiteRepository.
type WriteLogReader interface {
	List(ctx context.Context, filter writelog.Filter) (*writelog.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Bridge   Bridge
	Settings SettingsStore
	History  HistoryReader  // optional
	Writes   WriteLogReader // optional
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	bridge   Bridge
	settings SettingsStore
	history  HistoryReader
	writes   WriteLogReader
	version  string
	tickets  *ticketStore
	server   *http.Server
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, bridge, settings store)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		bridge:   deps.Bridge,
		settings: deps.Settings,
		history:  deps.History,
		writes:   deps.Writes,
		version:  deps.Version,
		tickets:  newTicketStore(),
	}
	s.hub = NewHub(s.logger)
	deps.Bridge.OnAttributeChange(s.broadcastChange)

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, builds the router and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}
