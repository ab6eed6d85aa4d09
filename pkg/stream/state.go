package stream

// State is the lifecycle position of a Session.
type State int

const (
	// Idle is the state of a session that has not been run.
	Idle State = iota

	// Connecting means a request is being opened or a reconnect is pending.
	Connecting

	// Streaming means the stream is open and events are being dispatched.
	Streaming

	// Closed means the stream ended, either with the end event or because
	// the producer closed it.
	Closed

	// Aborted means the caller cancelled the session.
	Aborted

	// Failed means the session stopped on a fatal error or exhausted retries.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	case Aborted:
		return "aborted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can leave s.
func (s State) Terminal() bool {
	return s == Closed || s == Aborted || s == Failed
}
