package stream

import (
	"time"

	"github.com/papercomputeco/trickle/pkg/sse"
	"github.com/papercomputeco/trickle/pkg/transport"
)

// Handler receives session callbacks. Every field is optional. Callbacks run
// synchronously on the session goroutine in stream order and are never
// invoked once the session has been aborted.
//
// An error returned from OnChunk or OnEvent is classified like any other
// stream error: wrap it with classify.AsFatal to stop the session, otherwise
// the session reconnects.
type Handler struct {
	// OnState observes every transition except the one into Aborted.
	OnState func(from, to State)

	// OnOpen fires each time a stream is accepted.
	OnOpen func(resp *transport.Response)

	// OnChunk receives each unescaped message payload and the accumulated
	// buffer including it.
	OnChunk func(chunk, buffer string) error

	// OnEvent receives events with names other than message and end.
	OnEvent func(ev sse.Event) error

	// OnEnd fires once when the end event arrives.
	OnEnd func(buffer string, ev sse.Event)

	// OnClose fires when the producer closed the stream without sending end.
	OnClose func(buffer string)

	// OnRetry fires before waiting to reconnect.
	OnRetry func(attempt int, delay time.Duration, err error)

	// OnError fires once when the session fails.
	OnError func(err error)
}
