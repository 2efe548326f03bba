package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/config"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/logging"
	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/metrics"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// AccessPoints is the identification surface used by access-point devices.
type AccessPoints interface {
	IdentifyItem(ctx context.Context, deviceExternalID string, image []byte) error
	ListScanHistory(ctx context.Context, deviceID string, page, size int) (inventory.Page[inventory.ScanHistory], error)
}

// ShelfControllers is the shelf feedback surface used by rack controllers
// and by users changing item status.
type ShelfControllers interface {
	SetShelfLightStatus(ctx context.Context, deviceExternalID string, position int, isLitUp bool) error
	HandleMotion(ctx context.Context, deviceExternalID string, position int) error
	SetShelfLight(ctx context.Context, shelfID, itemID string, isLitUp bool) (*inventory.Shelf, error)
	UpdateItemStatus(ctx context.Context, itemID string, isTaken bool, comment string) (*inventory.ItemHistory, error)
	ListItemHistory(ctx context.Context, itemID string, page, size int) (inventory.Page[inventory.ItemHistory], error)
}

// HealthChecker is implemented by infrastructure clients reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config           config.APIConfig
	WS               config.WebSocketConfig
	Security         config.SecurityConfig
	Metrics          config.MetricsConfig
	Logger           *logging.Logger
	AccessPoints     AccessPoints
	ShelfControllers ShelfControllers
	Collector        *metrics.Metrics         // optional; enables /metrics and request metrics
	HealthChecks     map[string]HealthChecker // optional; reported by /health
	ExternalHub      *Hub                     // If set, the server uses this hub instead of creating its own
	Version          string
}

// Server is the HTTP API server for the inventory core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	metricsCfg   config.MetricsConfig
	logger       *logging.Logger
	accessPoints AccessPoints
	shelves      ShelfControllers
	collector    *metrics.Metrics
	healthChecks map[string]HealthChecker
	version      string
	tickets      *ticketStore
	server       *http.Server
	hub          *Hub
	cancel       context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.AccessPoints == nil {
		return nil, fmt.Errorf("access point service is required")
	}
	if deps.ShelfControllers == nil {
		return nil, fmt.Errorf("shelf controller service is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		metricsCfg:   deps.Metrics,
		logger:       deps.Logger,
		accessPoints: deps.AccessPoints,
		shelves:      deps.ShelfControllers,
		collector:    deps.Collector,
		healthChecks: deps.HealthChecks,
		version:      deps.Version,
		tickets:      newTicketStore(),
		hub:          deps.ExternalHub,
	}
	return s, nil
}

// Hub returns the WebSocket hub, or nil before Start when none was injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless one was injected), the ticket
// cleanup loop, and the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

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
