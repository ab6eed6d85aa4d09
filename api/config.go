// Package api is a demonstration SSE producer for trickle. It answers chat
// queries with an escaped, chunked text/event-stream and can inject the
// failures a client has to survive: rejected opens, dropped streams and
// retry hints.
package api

import "time"

// Config is the producer configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3015")
	ListenAddr string

	// ChunkSize is the number of runes per message event (defaults to 8).
	ChunkSize int

	// ChunkDelay is the pause between message events.
	ChunkDelay time.Duration

	// FailFirst rejects the first N chat requests with 503 and a
	// Retry-After header.
	FailFirst int

	// DropAfter breaks the connection of a fresh stream after N message
	// events, before the end event. Resumed streams (those sending Last-Event-ID) always
	// run to completion.
	DropAfter int

	// RetryHint, when set, is sent as the stream's "retry:" field.
	RetryHint time.Duration
}

const defaultChunkSize = 8
