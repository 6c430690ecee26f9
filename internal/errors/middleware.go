package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPErrorsTotal tracks HTTP errors by type
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total HTTP errors by error type",
		},
		[]string{"type"},
	)
)

// Middleware returns an Echo middleware that handles structured errors.
// It catches errors returned by handlers and converts them to appropriate HTTP responses.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// Echo HTTPErrors (404 routing, method not allowed) pass through
			// unchanged so the status code survives; still counted.
			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				HTTPErrorsTotal.WithLabelValues(string(typeForStatus(httpErr.Code))).Inc()
				return err
			}

			structuredErr := AsStructuredError(err)
			HTTPErrorsTotal.WithLabelValues(string(structuredErr.Type)).Inc()
			logError(c, structuredErr)

			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func typeForStatus(status int) ErrorType {
	switch status {
	case http.StatusBadRequest:
		return TypeValidation
	case http.StatusNotFound:
		return TypeNotFound
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return TypeExternal
	default:
		return TypeInternal
	}
}

// logError logs an error with request context.
func logError(c echo.Context, err *Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	switch err.Type {
	case TypeValidation:
		slog.Info("Validation error", attrs...)
	case TypeNotFound:
		slog.Info("Not found", attrs...)
	case TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.Error("Internal error", attrs...)
	case TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.Error("External service error", attrs...)
	default:
		slog.Error("Unknown error type", attrs...)
	}
}
