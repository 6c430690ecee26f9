package broker

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/auditdbio/eventgate/internal/auth"
	apperrors "github.com/auditdbio/eventgate/internal/errors"
	"github.com/auditdbio/eventgate/internal/event"
	"github.com/auditdbio/eventgate/internal/metrics"
)

// Gateway upgrades inbound requests into sessions and drives their read
// loops. Its one correctness obligation: every accepted connection results
// in exactly one unregister, on every exit path.
type Gateway struct {
	registry *Registry
	verifier auth.Verifier
	clock    clockwork.Clock
	opts     Options
	upgrader websocket.Upgrader
}

// NewGateway creates the WebSocket entry point for client connections.
func NewGateway(registry *Registry, verifier auth.Verifier, opts Options, clock clockwork.Clock) *Gateway {
	return &Gateway{
		registry: registry,
		verifier: verifier,
		clock:    clock,
		opts:     opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Identity is proven in-band after connect, so any origin may open
			// a socket; it just won't receive anything without a credential.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handle accepts a connection claiming the user id in the path, registers a
// session for it, and blocks on the read loop until the connection closes.
func (g *Gateway) Handle(c echo.Context) error {
	claimedUser := c.Param("user_id")
	if claimedUser == "" || claimedUser == event.TargetAll {
		metrics.SessionsOpenedTotal.WithLabelValues("rejected").Inc()
		return apperrors.ValidationError("invalid user id")
	}

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		metrics.SessionsOpenedTotal.WithLabelValues("upgrade_error").Inc()
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	sess := NewSession(conn, claimedUser, g.verifier, g.opts, g.clock)
	conn.SetPongHandler(func(string) error {
		sess.Touch()
		return nil
	})

	g.registry.Register(sess)
	metrics.SessionsOpenedTotal.WithLabelValues("accepted").Inc()
	opened := g.clock.Now()
	slog.Info("Session opened", "session_id", sess.ID.String(), "user_id", claimedUser)

	// Read pump, blocks until the connection closes. Text frames are
	// credential attempts; pongs are handled above; everything else is
	// ignored, matching the protocol contract.
	for {
		msgType, data, readErr := conn.ReadMessage()
		if readErr != nil {
			break
		}
		if msgType == websocket.TextMessage {
			sess.HandleCredential(string(data))
		}
	}

	g.registry.Unregister(claimedUser, sess.ID)
	sess.Close()
	metrics.SessionDuration.Observe(g.clock.Since(opened).Seconds())
	slog.Info("Session closed", "session_id", sess.ID.String(), "user_id", claimedUser)

	return nil
}
