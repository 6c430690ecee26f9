package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditdbio/eventgate/internal/event"
	"github.com/auditdbio/eventgate/internal/platform/config"
)

// mockPublisher records published events and can be told to fail.
type mockPublisher struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (m *mockPublisher) Publish(ev event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	// Run the real validation so handler tests see the real error mapping.
	if err := ev.Validate(); err != nil {
		return err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) published() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]event.Event(nil), m.events...)
}

// noopGateway satisfies ConnectionHandler for tests that never dial.
type noopGateway struct{}

func (noopGateway) Handle(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		JWTSecret:               "test-secret",
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     10,
		SendBufferSize:          16,
	}
}

func newTestServer(t *testing.T, publisher EventPublisher, checks []HealthCheck) *Server {
	t.Helper()
	if publisher == nil {
		publisher = &mockPublisher{}
	}
	return NewServer(testConfig(), publisher, noopGateway{}, checks)
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleEvent_Accepted(t *testing.T) {
	publisher := &mockPublisher{}
	s := newTestServer(t, publisher, nil)

	rec := doRequest(s, http.MethodPost, "/api/event",
		`{"user_id":"alice","kind":"Notification","payload":{"text":"hi"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"accepted"}`, rec.Body.String())

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].UserID)
	assert.Equal(t, event.KindNotification, events[0].Kind)
	assert.JSONEq(t, `{"text":"hi"}`, string(events[0].Payload))
}

func TestHandleEvent_MalformedBody(t *testing.T) {
	publisher := &mockPublisher{}
	s := newTestServer(t, publisher, nil)

	rec := doRequest(s, http.MethodPost, "/api/event", `{"user_id":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed event body")
	assert.Empty(t, publisher.published())
}

func TestHandleEvent_MissingTarget(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doRequest(s, http.MethodPost, "/api/event", `{"kind":"Notification"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no target user")
}

func TestHandleEvent_MissingKind(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doRequest(s, http.MethodPost, "/api/event", `{"user_id":"alice"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no kind")
}

func TestHandleEvent_PublisherFailure(t *testing.T) {
	publisher := &mockPublisher{err: errors.New("boom")}
	s := newTestServer(t, publisher, nil)

	rec := doRequest(s, http.MethodPost, "/api/event",
		`{"user_id":"alice","kind":"Notification"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleEvent_BroadcastTarget(t *testing.T) {
	publisher := &mockPublisher{}
	s := newTestServer(t, publisher, nil)

	rec := doRequest(s, http.MethodPost, "/api/event",
		`{"user_id":"all","kind":"Notification","payload":{}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, publisher.published(), 1)
	assert.Equal(t, event.TargetAll, publisher.published()[0].UserID)
}
