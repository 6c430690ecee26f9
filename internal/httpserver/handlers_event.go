package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/auditdbio/eventgate/internal/errors"
	"github.com/auditdbio/eventgate/internal/event"
)

// handleEvent accepts one event from a producer and hands it to the
// dispatcher. The 200 acknowledges the hand-off, not delivery to any client.
func (s *Server) handleEvent(c echo.Context) error {
	var ev event.Event
	if err := c.Bind(&ev); err != nil {
		return apperrors.ValidationError("malformed event body")
	}

	if err := s.publisher.Publish(ev); err != nil {
		if errors.Is(err, event.ErrMissingTarget) || errors.Is(err, event.ErrMissingKind) {
			return apperrors.ValidationError(err.Error())
		}
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := c.JSON(http.StatusOK, map[string]string{"status": "accepted"}); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
