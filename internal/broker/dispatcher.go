package broker

import (
	"fmt"
	"log/slog"

	"github.com/auditdbio/eventgate/internal/event"
	"github.com/auditdbio/eventgate/internal/metrics"
)

// Dispatcher fans inbound events out to the target user's live sessions.
// Delivery is independent per session: one dead client never blocks or fails
// the others, and the publisher only ever sees validation errors.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Publish hands one event to every matching live, authenticated session.
// Zero live sessions is a normal outcome, not an error: the broker keeps no
// queue and no replay log, so an event nobody is connected to hear is simply
// dropped.
//
// Sequential Publish calls from one producer reach each session in order;
// frames are enqueued to each session's FIFO buffer under this call.
func (d *Dispatcher) Publish(ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	frame, err := ev.EncodeFrame()
	if err != nil {
		return fmt.Errorf("failed to encode push frame: %w", err)
	}

	var sessions []*Session
	outcome := "delivered"
	if ev.ForAll() {
		sessions = d.registry.AllSessions()
		outcome = "broadcast"
	} else {
		sessions = d.registry.SessionsFor(ev.UserID)
	}

	if len(sessions) == 0 {
		slog.Debug("No live sessions for event", "kind", ev.Kind, "user_id", ev.UserID)
		metrics.EventsPublishedTotal.WithLabelValues(ev.Kind, "no_sessions").Inc()
		return nil
	}

	for _, s := range sessions {
		s.Deliver(frame)
	}
	metrics.EventsPublishedTotal.WithLabelValues(ev.Kind, outcome).Inc()
	return nil
}
