package eventstream

import (
	"context"
	"fmt"
	"strings"
)

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnFinalizedEvent) error
	Close() error
}

// Provider names a Publisher implementation.
type Provider string

const (
	ProviderNone  Provider = ""
	ProviderNop   Provider = "nop"
	ProviderKafka Provider = "kafka"
)

// ParseProvider validates a configured provider name.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderNone, ProviderNop, ProviderKafka:
		return p, nil
	default:
		return "", fmt.Errorf("%w %q (expected nop or kafka)", ErrUnknownProvider, s)
	}
}
