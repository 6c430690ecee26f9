package broker

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditdbio/eventgate/internal/auth"
	"github.com/auditdbio/eventgate/internal/event"
)

func newAuthedSession(t *testing.T, registry *Registry, userID string) (*Session, *stubConn) {
	t.Helper()
	conn := &stubConn{}
	sess := NewSession(conn, userID, testVerifier(), Options{SendBufferSize: 32}, clockwork.NewRealClock())
	t.Cleanup(sess.Close)
	sess.HandleCredential(signedToken(t, userID, auth.RoleUser))
	require.True(t, sess.Authenticated())
	registry.Register(sess)
	return sess, conn
}

func waitForFrames(t *testing.T, conn *stubConn, n int) [][]byte {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(conn.written(websocket.TextMessage)) >= n
	}, time.Second, 5*time.Millisecond)
	return conn.written(websocket.TextMessage)
}

func TestDispatcher_RejectsInvalidEvents(t *testing.T) {
	d := NewDispatcher(NewRegistry())

	err := d.Publish(event.Event{Kind: event.KindNotification})
	assert.ErrorIs(t, err, event.ErrMissingTarget)

	err = d.Publish(event.Event{UserID: "alice"})
	assert.ErrorIs(t, err, event.ErrMissingKind)
}

func TestDispatcher_NoSessionsIsNotAnError(t *testing.T) {
	d := NewDispatcher(NewRegistry())

	err := d.Publish(event.Event{UserID: "alice", Kind: event.KindNotification})

	assert.NoError(t, err)
}

func TestDispatcher_DeliversToEverySessionOfTargetUser(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry)
	_, first := newAuthedSession(t, registry, "alice")
	_, second := newAuthedSession(t, registry, "alice")
	_, bystander := newAuthedSession(t, registry, "bob")

	payload := json.RawMessage(`{"text":"hello"}`)
	require.NoError(t, d.Publish(event.Event{UserID: "alice", Kind: event.KindChatMessage, Payload: payload}))

	for _, conn := range []*stubConn{first, second} {
		frames := waitForFrames(t, conn, 1)
		var frame event.Frame
		require.NoError(t, json.Unmarshal(frames[0], &frame))
		assert.Equal(t, event.KindChatMessage, frame.Kind)
		assert.JSONEq(t, string(payload), string(frame.Payload))
	}

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, bystander.written(websocket.TextMessage), "other users must not see the event")
}

func TestDispatcher_SkipsUnauthenticatedSessions(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry)

	conn := &stubConn{}
	sess := NewSession(conn, "alice", testVerifier(), Options{}, clockwork.NewRealClock())
	t.Cleanup(sess.Close)
	registry.Register(sess)

	require.NoError(t, d.Publish(event.Event{UserID: "alice", Kind: event.KindNotification}))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, conn.written(websocket.TextMessage))
	assert.False(t, conn.isClosed())
}

func TestDispatcher_BroadcastReachesAllUsers(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry)
	_, alice := newAuthedSession(t, registry, "alice")
	_, bob := newAuthedSession(t, registry, "bob")

	require.NoError(t, d.Publish(event.Event{
		UserID:  event.TargetAll,
		Kind:    event.KindNotification,
		Payload: json.RawMessage(`{"maintenance":true}`),
	}))

	waitForFrames(t, alice, 1)
	waitForFrames(t, bob, 1)
}

func TestDispatcher_VersionUpdateIsAlwaysBroadcast(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry)
	_, alice := newAuthedSession(t, registry, "alice")
	_, bob := newAuthedSession(t, registry, "bob")

	// Addressed to one user, but the kind forces fan-out to everyone.
	require.NoError(t, d.Publish(event.Event{
		UserID:  "alice",
		Kind:    event.KindVersionUpdate,
		Payload: json.RawMessage(`{"version":"1.4.0"}`),
	}))

	waitForFrames(t, alice, 1)
	waitForFrames(t, bob, 1)
}

func TestDispatcher_PreservesPerUserOrdering(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry)
	_, conn := newAuthedSession(t, registry, "alice")

	const total = 10
	for i := 0; i < total; i++ {
		payload := json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))
		require.NoError(t, d.Publish(event.Event{UserID: "alice", Kind: event.KindNotification, Payload: payload}))
	}

	frames := waitForFrames(t, conn, total)
	for i, raw := range frames {
		var frame event.Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(frame.Payload))
	}
}

func TestDispatcher_DeadSessionDoesNotBlockOthers(t *testing.T) {
	registry := NewRegistry()
	d := NewDispatcher(registry)

	// The dead client never drains its buffer of one.
	deadConn := &stubConn{block: make(chan struct{})}
	dead := NewSession(deadConn, "alice", testVerifier(), Options{SendBufferSize: 1}, clockwork.NewRealClock())
	dead.HandleCredential(signedToken(t, "alice", auth.RoleUser))
	registry.Register(dead)
	t.Cleanup(dead.Close)

	_, healthy := newAuthedSession(t, registry, "alice")

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Publish(event.Event{UserID: "alice", Kind: event.KindNotification}))
	}

	waitForFrames(t, healthy, 5)
	assert.True(t, deadConn.isClosed(), "the overflowing session is closed, not retried")
}
