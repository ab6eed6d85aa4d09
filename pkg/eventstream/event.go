package eventstream

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/stream"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnFinalized is emitted after an assistant reply is finalized.
	EventTypeTurnFinalized = "trickle.turn.finalized"
)

// Outcomes of a finalized reply.
const (
	OutcomeComplete = "complete"
	OutcomeAborted  = "aborted"
	OutcomeClosed   = "closed"
	OutcomeFailed   = "failed"
)

// TurnFinalizedEvent is a transport-neutral event payload for a finished
// exchange.
type TurnFinalizedEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	RequestMeta   TurnRequestMeta   `json:"request_meta"`
	Query         conversation.Turn `json:"query"`
	Reply         conversation.Turn `json:"reply"`
}

// EventSource identifies where the exchange originated.
type EventSource struct {
	Client   string `json:"client"`
	Endpoint string `json:"endpoint,omitempty"`
	Host     string `json:"host,omitempty"`
}

// TurnRequestMeta captures stream lifecycle metadata for the event.
type TurnRequestMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
}

// NewTurnFinalizedEvent builds the event for a finalized exchange.
func NewTurnFinalizedEvent(f *conversation.Finalized, source EventSource) *TurnFinalizedEvent {
	meta := TurnRequestMeta{
		StartedAt:   f.StartedAt,
		CompletedAt: f.CompletedAt,
		DurationMs:  f.CompletedAt.Sub(f.StartedAt).Milliseconds(),
		Outcome:     Outcome(f.Err),
	}
	if meta.Outcome == OutcomeFailed {
		meta.Error = f.Err.Error()
	}

	return &TurnFinalizedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnFinalized,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		RequestMeta:   meta,
		Query:         f.Query,
		Reply:         f.Reply,
	}
}

// Outcome names the way a session ended.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeComplete
	case errors.Is(err, stream.ErrAborted):
		return OutcomeAborted
	case errors.Is(err, stream.ErrClosed):
		return OutcomeClosed
	default:
		return OutcomeFailed
	}
}
