// Package broker implements the real-time event delivery core: per-connection
// sessions with an in-band authentication handshake and heartbeat liveness,
// a process-wide registry of each user's live sessions, and a dispatcher that
// fans inbound events out to them.
//
// One goroutine per connection runs the read loop (gateway), one runs the
// write pump with the heartbeat timer (sessionWriter). The registry is the
// only shared mutable state and is guarded by a single lock. Delivery is
// best-effort: a session that cannot accept a frame promptly is treated as
// dead and closed.
package broker
