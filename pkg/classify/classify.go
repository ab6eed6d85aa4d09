// Package classify decides whether a stream failure should be retried.
//
// Classification is returned as a Verdict value rather than signalled by
// panics or special error types thrown from callbacks, so the retry decision
// in the session loop stays linear.
package classify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// EventStreamContentType is the media type an opened stream must carry.
const EventStreamContentType = "text/event-stream"

// Verdict is the outcome of classifying an open response or an error.
type Verdict int

const (
	// Proceed means the response is a usable event stream.
	Proceed Verdict = iota

	// Retriable means the transport should reconnect after a backoff.
	Retriable

	// Fatal means the session must stop without reconnecting.
	Fatal

	// Unknown passes the decision through to the caller, e.g. when the error
	// is the caller's own cancellation.
	Unknown
)

func (v Verdict) String() string {
	switch v {
	case Proceed:
		return "proceed"
	case Retriable:
		return "retriable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Open classifies an opened response from its status code and Content-Type
// header value.
//
// Media type parameters such as charset are ignored when matching the
// content type.
func Open(status int, contentType string) Verdict {
	if status >= 200 && status < 300 {
		if IsEventStream(contentType) {
			return Proceed
		}
		return Retriable
	}

	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return Fatal
	}

	return Retriable
}

// IsEventStream reports whether a Content-Type value names the SSE media type.
func IsEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == EventStreamContentType
}

// Error classifies an error raised while opening or reading a stream.
// Errors wrapped with Fatal are fatal, context cancellation is Unknown and
// everything else is retriable.
func Error(err error) Verdict {
	if err == nil {
		return Proceed
	}

	var fatal *FatalError
	if errors.As(err, &fatal) {
		return Fatal
	}

	var status *StatusError
	if errors.As(err, &status) {
		return status.Verdict
	}

	if errors.Is(err, context.Canceled) {
		return Unknown
	}

	return Retriable
}

// FatalError marks an error as not worth retrying. Handlers return it when
// they detect an invalid application payload.
type FatalError struct {
	Err error
}

// AsFatal wraps err so that Error classifies it as Fatal.
func AsFatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// StatusError describes an open response that was not a usable stream.
type StatusError struct {
	Status      int
	ContentType string
	Body        string
	Verdict     Verdict
	RetryAfter  time.Duration
}

// NewStatusError builds a StatusError for an opened response, capturing the
// Retry-After hint.
func NewStatusError(status int, header http.Header, body string) *StatusError {
	contentType := header.Get("Content-Type")
	return &StatusError{
		Status:      status,
		ContentType: contentType,
		Body:        strings.TrimSpace(body),
		Verdict:     Open(status, contentType),
		RetryAfter:  RetryAfter(header.Get("Retry-After"), time.Now()),
	}
}

func (e *StatusError) Error() string {
	if e.Status >= 200 && e.Status < 300 {
		return fmt.Sprintf("unexpected content type %q (status %d)", e.ContentType, e.Status)
	}
	if e.Body != "" {
		return fmt.Sprintf("server returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// RetryAfter parses a Retry-After header value, either delay-seconds or an
// HTTP date relative to now. It returns zero when the header is absent or
// invalid.
func RetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}

	return 0
}
