// Package redisfeed is the optional Redis Pub/Sub ingestion path: producers
// publish serialized events to a channel and the broker forwards them to the
// dispatcher, with the same validation the HTTP boundary applies.
package redisfeed
