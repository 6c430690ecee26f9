package broker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/auditdbio/eventgate/internal/auth"
	"github.com/auditdbio/eventgate/internal/metrics"
)

// Options tunes the per-session heartbeat and outbound buffering. Values are
// process-wide configuration, never per-session.
type Options struct {
	// HeartbeatInterval is how often the session pings its client.
	HeartbeatInterval time.Duration
	// HeartbeatTimeout is how long pong silence is tolerated before the
	// session is force-closed.
	HeartbeatTimeout time.Duration
	// SendBufferSize is the outbound frame buffer; a full buffer on delivery
	// means the client is too slow and the session is closed.
	SendBufferSize int
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 5 * time.Second
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = 10 * time.Second
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 16
	}
	return o
}

// Session is one live client connection. It registers under the user id the
// client claimed at connect time and stays reachable from that moment, but
// no event is delivered until a bearer credential proving that identity
// arrives in-band.
type Session struct {
	ID uuid.UUID
	// UserID is the claimed identity from the connect path. Unverified until
	// authenticated reports true.
	UserID string

	clock    clockwork.Clock
	verifier auth.Verifier
	timeout  time.Duration
	logger   *slog.Logger

	authenticated atomic.Bool

	beatMutex sync.Mutex
	lastBeat  time.Time

	writer *sessionWriter
}

// NewSession wraps an accepted connection. The write pump and heartbeat
// timer start immediately; the caller runs the read loop and must eventually
// call Close.
func NewSession(conn Conn, claimedUser string, verifier auth.Verifier, opts Options, clock clockwork.Clock) *Session {
	opts = opts.withDefaults()
	s := &Session{
		ID:       uuid.New(),
		UserID:   claimedUser,
		clock:    clock,
		verifier: verifier,
		timeout:  opts.HeartbeatTimeout,
		lastBeat: clock.Now(),
	}
	s.logger = slog.With("session_id", s.ID.String(), "user_id", claimedUser)
	s.writer = newSessionWriter(conn, clock, opts.HeartbeatInterval, opts.SendBufferSize, s.expired)
	return s
}

// Touch records a heartbeat response from the client.
func (s *Session) Touch() {
	s.beatMutex.Lock()
	defer s.beatMutex.Unlock()
	s.lastBeat = s.clock.Now()
}

// expired reports whether pong silence has exceeded the heartbeat timeout.
func (s *Session) expired() bool {
	s.beatMutex.Lock()
	defer s.beatMutex.Unlock()
	return s.clock.Since(s.lastBeat) > s.timeout
}

// Authenticated reports whether the session has proven its claimed identity.
func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

// HandleCredential processes a bearer credential received on the connection.
// A bad credential is ignored without any response to the peer: an
// unauthenticated channel learns nothing about why verification failed.
func (s *Session) HandleCredential(token string) {
	identity, err := s.verifier.Verify(token)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("invalid_token").Inc()
		s.logger.Warn("Unsuccessful auth")
		return
	}
	if identity.UserID != s.UserID {
		metrics.AuthAttemptsTotal.WithLabelValues("identity_mismatch").Inc()
		s.logger.Warn("Unsuccessful auth")
		return
	}

	if s.authenticated.CompareAndSwap(false, true) {
		metrics.AuthAttemptsTotal.WithLabelValues("ok").Inc()
		metrics.RegistryUnauthenticatedSessions.Dec()
		s.logger.Info("Session authenticated")
	}
}

// Deliver pushes one serialized frame to the client. No-op while
// unauthenticated. A frame the write pump cannot accept means the client is
// dead or hopelessly slow, and the session is closed rather than retried.
func (s *Session) Deliver(frame []byte) bool {
	if !s.authenticated.Load() {
		metrics.DeliveryAttemptsTotal.WithLabelValues("unauthenticated").Inc()
		return false
	}

	if !s.writer.enqueue(frame) {
		metrics.DeliveryAttemptsTotal.WithLabelValues("dropped").Inc()
		metrics.SlowSessionsClosedTotal.Inc()
		s.logger.Warn("Closing slow session")
		s.Close()
		return false
	}

	metrics.DeliveryAttemptsTotal.WithLabelValues("sent").Inc()
	return true
}

// Close stops the write pump and closes the connection. Idempotent.
func (s *Session) Close() {
	s.writer.stop()
}

// CloseGraceful sends a close frame with reason first, for server shutdown.
func (s *Session) CloseGraceful(reason string) {
	s.writer.stopGraceful(reason)
}
