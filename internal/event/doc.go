// Package event defines the wire-level event type producers hand to the
// broker and the push frame clients receive. No implementation code, just
// the contract shared by the ingestion boundary, the dispatcher, and the
// Redis feed.
package event
