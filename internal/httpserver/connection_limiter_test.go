package httpserver

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire(), "third acquire should fail at capacity 2")

	l.Release()
	assert.True(t, l.Acquire())

	assert.Equal(t, int64(2), l.Current())
	assert.Equal(t, float64(100), l.CapacityPct())
}

func TestGlobalConnectionLimiter_Concurrent(t *testing.T) {
	l := NewGlobalConnectionLimiter(50)

	var wg sync.WaitGroup
	var acquired sync.Map
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acquired.Store(i, l.Acquire())
		}(i)
	}
	wg.Wait()

	granted := 0
	acquired.Range(func(_, ok any) bool {
		if ok.(bool) {
			granted++
		}
		return true
	})
	assert.Equal(t, 50, granted)
	assert.Equal(t, int64(50), l.Current())
}

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.1"))
	assert.False(t, l.Acquire("10.0.0.1"))
	assert.True(t, l.Acquire("10.0.0.2"), "a different IP has its own budget")

	assert.Equal(t, 2, l.Count("10.0.0.1"))
	assert.Equal(t, 2, l.UniqueIPs())

	l.Release("10.0.0.1")
	assert.True(t, l.Acquire("10.0.0.1"))
}

func TestIPConnectionLimiter_ReleaseCleansUp(t *testing.T) {
	l := NewIPConnectionLimiter(4)

	l.Acquire("10.0.0.1")
	l.Release("10.0.0.1")
	l.Release("10.0.0.1") // over-release must not go negative

	assert.Equal(t, 0, l.Count("10.0.0.1"))
	assert.Equal(t, 0, l.UniqueIPs())
	assert.True(t, l.Acquire("10.0.0.1"))
}

func TestConnectionLimits_GlobalCapacity(t *testing.T) {
	s := newTestServer(t, nil, nil)

	// Exhaust the global budget directly; the middleware should then refuse.
	for i := int64(0); i < s.globalLimiter.max; i++ {
		require.True(t, s.globalLimiter.Acquire())
	}

	rec := doRequest(s, http.MethodGet, "/api/notifications/alice", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "capacity")
}

func TestConnectionLimits_ReleasedAfterHandler(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := doRequest(s, http.MethodGet, "/api/notifications/alice", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), s.globalLimiter.Current())
	assert.Equal(t, 0, s.ipLimiter.UniqueIPs())
}
