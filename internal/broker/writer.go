package broker

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/auditdbio/eventgate/internal/metrics"
)

const writeDeadline = 5 * time.Second

// Conn is the subset of *websocket.Conn the write pump touches. Narrowing
// the surface lets tests drive the heartbeat with a stub connection and a
// fake clock.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// sessionWriter owns all writes to one connection: delivered frames, pings,
// and the close frame. It is the only goroutine that writes, so frames and
// control messages never interleave.
type sessionWriter struct {
	conn         Conn
	clock        clockwork.Clock
	pingInterval time.Duration
	sendChannel  chan []byte
	doneChannel  chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	// expired is consulted on every ping tick; when it reports true the
	// writer force-closes the connection (heartbeat reap).
	expired func() bool
}

func newSessionWriter(conn Conn, clock clockwork.Clock, pingInterval time.Duration, bufferSize int, expired func() bool) *sessionWriter {
	w := &sessionWriter{
		conn:         conn,
		clock:        clock,
		pingInterval: pingInterval,
		sendChannel:  make(chan []byte, bufferSize),
		doneChannel:  make(chan struct{}),
		expired:      expired,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *sessionWriter) run() {
	ticker := w.clock.NewTicker(w.pingInterval)
	defer ticker.Stop()
	defer w.wg.Done()

	for {
		select {
		case msg, ok := <-w.sendChannel:
			if !ok {
				return
			}
			start := w.clock.Now()
			w.updateWriteDeadline()
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Broken pipe. Close so the read loop unblocks and tears
				// the session down.
				_ = w.conn.Close()
				return
			}
			metrics.SessionSendDuration.Observe(w.clock.Since(start).Seconds())
		case <-ticker.Chan():
			if w.expired() {
				metrics.HeartbeatReapsTotal.Inc()
				_ = w.conn.Close()
				return
			}
			w.updateWriteDeadline()
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.HeartbeatPingFailures.Inc()
				_ = w.conn.Close()
				return
			}
		case <-w.doneChannel:
			return
		}
	}
}

// enqueue hands a frame to the write pump without blocking. Returns false if
// the writer is stopped or the buffer is full; the caller decides what a
// refused frame means.
func (w *sessionWriter) enqueue(msg []byte) bool {
	select {
	case <-w.doneChannel:
		return false
	default:
	}
	select {
	case w.sendChannel <- msg:
		return true
	default:
		return false
	}
}

// stop terminates the write pump and closes the connection. Safe to call
// more than once and concurrently with enqueue.
func (w *sessionWriter) stop() {
	w.stopOnce.Do(func() {
		close(w.doneChannel)
		_ = w.conn.Close()
	})
	w.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing, used during
// server shutdown. The pump is stopped first so the close frame cannot race
// a concurrent write.
func (w *sessionWriter) stopGraceful(reason string) {
	w.stopOnce.Do(func() {
		close(w.doneChannel)
		w.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		w.updateWriteDeadline()
		_ = w.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = w.conn.Close()
	})
	w.wg.Wait()
}

func (w *sessionWriter) updateWriteDeadline() {
	deadline := w.clock.Now().Add(writeDeadline)
	_ = w.conn.SetWriteDeadline(deadline)
}
