package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/auditdbio/eventgate/internal/event"
	"github.com/auditdbio/eventgate/internal/platform/config"
)

// EventPublisher is the dispatcher contract the ingestion handler needs.
type EventPublisher interface {
	Publish(ev event.Event) error
}

// ConnectionHandler is the gateway contract: upgrade the request and run the
// session until the connection closes.
type ConnectionHandler interface {
	Handle(c echo.Context) error
}

// Server terminates client connections and producer requests and hands both
// to the broker.
type Server struct {
	echo   *echo.Echo
	config *config.Config

	publisher EventPublisher
	gateway   ConnectionHandler

	globalLimiter *GlobalConnectionLimiter
	ipLimiter     *IPConnectionLimiter

	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires routes and middleware. healthChecks gate the readiness
// probes; pass nil when nothing external needs checking.
func NewServer(cfg *config.Config, publisher EventPublisher, gateway ConnectionHandler, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:          e,
		config:        cfg,
		publisher:     publisher,
		gateway:       gateway,
		globalLimiter: NewGlobalConnectionLimiter(int64(cfg.MaxWebSocketConnections)),
		ipLimiter:     NewIPConnectionLimiter(cfg.MaxConnectionsPerIP),
		healthChecks:  healthChecks,
		startTime:     time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
