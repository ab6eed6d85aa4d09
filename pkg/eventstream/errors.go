package eventstream

import "errors"

var (
	// ErrNilTurn is returned by PublishTurn when handed no event.
	ErrNilTurn = errors.New("eventstream: no turn to publish")

	// ErrUnknownProvider wraps a provider name ParseProvider does not know.
	ErrUnknownProvider = errors.New("unknown eventstream provider")
)
