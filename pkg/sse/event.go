// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// decoder for the trickle stream client. It turns an upstream byte stream,
// delivered in arbitrary chunks, into discrete named events.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities; the demo producer lives in package api.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "time"

const (
	// DefaultEventName is the event name used when the wire omits "event:".
	DefaultEventName = "message"

	// EndEventName is the reserved event name the producer uses to signal that
	// the turn is complete.
	EndEventName = "end"

	// ContentType is the media type of an SSE response.
	ContentType = "text/event-stream"
)

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Name is the SSE event type from the "event:" field. Never empty:
	// DefaultEventName is used when the field is absent.
	Name string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID seen on the stream, if any. Per the SSE spec it
	// persists across events until the producer sends a new one.
	ID string

	// Retry is the reconnection delay requested by a "retry:" field inside this
	// event, or zero.
	Retry time.Duration
}

// IsEnd reports whether the event is the terminal "end" event.
func (e Event) IsEnd() bool {
	return e.Name == EndEventName
}

// IsMessage reports whether the event carries incremental content.
func (e Event) IsMessage() bool {
	return e.Name == DefaultEventName
}
