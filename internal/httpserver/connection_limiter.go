package httpserver

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/auditdbio/eventgate/internal/metrics"
)

// GlobalConnectionLimiter caps total concurrent connections per instance.
// Uses atomic operations for lock-free counting.
type GlobalConnectionLimiter struct {
	current atomic.Int64
	max     int64
}

// NewGlobalConnectionLimiter creates a limiter with the specified maximum connections.
func NewGlobalConnectionLimiter(max int64) *GlobalConnectionLimiter {
	return &GlobalConnectionLimiter{max: max}
}

// Acquire attempts to acquire a connection slot.
// Returns true if successful, false if at capacity.
func (l *GlobalConnectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a connection slot.
func (l *GlobalConnectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the current number of connections.
func (l *GlobalConnectionLimiter) Current() int64 {
	return l.current.Load()
}

// CapacityPct returns the current capacity utilization as a percentage.
func (l *GlobalConnectionLimiter) CapacityPct() float64 {
	if l.max == 0 {
		return 0
	}
	return float64(l.Current()) / float64(l.max) * 100
}

// IPConnectionLimiter caps concurrent connections per IP address.
type IPConnectionLimiter struct {
	mu     sync.RWMutex
	ips    map[string]int
	maxPer int
}

// NewIPConnectionLimiter creates a limiter with the specified per-IP maximum.
func NewIPConnectionLimiter(maxPer int) *IPConnectionLimiter {
	return &IPConnectionLimiter{
		ips:    make(map[string]int),
		maxPer: maxPer,
	}
}

// Acquire attempts to acquire a connection slot for the given IP.
// Returns true if successful, false if the IP is at its limit.
func (l *IPConnectionLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

// Release releases a connection slot for the given IP.
func (l *IPConnectionLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 0 {
		l.ips[ip] = count - 1
		if l.ips[ip] == 0 {
			delete(l.ips, ip)
		}
	}
}

// Count returns the current connection count for the given IP.
func (l *IPConnectionLimiter) Count(ip string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ips[ip]
}

// UniqueIPs returns the number of unique IPs with active connections.
func (l *IPConnectionLimiter) UniqueIPs() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.ips)
}

// connectionLimits holds a global and a per-IP slot for the duration of the
// wrapped handler, which for the gateway means the lifetime of the socket.
func (s *Server) connectionLimits(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.globalLimiter.Acquire() {
			metrics.ConnectionsRejectedTotal.WithLabelValues("global_limit").Inc()
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"error": "connection capacity reached",
			})
		}

		ip := c.RealIP()
		if !s.ipLimiter.Acquire(ip) {
			s.globalLimiter.Release()
			metrics.ConnectionsRejectedTotal.WithLabelValues("ip_limit").Inc()
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "too many connections from this address",
			})
		}

		metrics.ConnectionCapacity.Set(s.globalLimiter.CapacityPct())
		metrics.UniqueIPs.Set(float64(s.ipLimiter.UniqueIPs()))

		defer func() {
			s.ipLimiter.Release(ip)
			s.globalLimiter.Release()
			metrics.ConnectionCapacity.Set(s.globalLimiter.CapacityPct())
			metrics.UniqueIPs.Set(float64(s.ipLimiter.UniqueIPs()))
		}()

		return next(c)
	}
}
