// Package httpserver is the Echo-based transport layer: the WebSocket
// connection endpoint, the producer ingestion endpoint, health probes, and
// the Prometheus scrape target. It holds no broker state of its own.
package httpserver
