package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/auditdbio/eventgate/internal/errors"
	"github.com/auditdbio/eventgate/internal/platform/correlation"
)

const (
	connectRatePerSecond = 5
	connectBurst         = 10
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware())
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(apperrors.Middleware())

	s.registerHealthRoutes()

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Client connection endpoint. The rate limiter throttles connect storms
	// per IP; the connection limits cap concurrently held sockets.
	s.echo.GET("/api/notifications/:user_id", s.gateway.Handle,
		newRateLimiter(connectRatePerSecond, connectBurst),
		s.connectionLimits,
	)

	// Producer ingestion endpoint (server-to-server trust).
	s.echo.POST("/api/event", s.handleEvent)
}

func correlationMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := correlation.WithID(c.Request().Context(), correlation.NewID())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
