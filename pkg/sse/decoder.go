package sse

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// MaxLineSize bounds a single buffered line. A longer line is discarded up to
// its terminator and the stream resumes at the next line.
const MaxLineSize = 1024 * 1024

// Decoder is a push-style SSE parser. Bytes are fed in whatever chunks the
// transport delivers them; chunk boundaries need not align with lines or
// events. Partial lines are buffered until their terminator arrives.
//
// The decoder is permissive: lines that are not "event:", "data:", "id:",
// "retry:", a ":" comment or blank are dropped without error.
type Decoder struct {
	// partial holds the bytes of a line whose terminator has not arrived yet.
	partial []byte

	// skipLF is set when the previous chunk ended with '\r' so that a '\n'
	// opening the next chunk is treated as the second half of a CRLF.
	skipLF bool

	// discarding is set while the rest of an oversized line is skipped.
	discarding bool

	name    string
	data    []string
	retry   time.Duration
	pending bool

	lastID    string
	lastRetry time.Duration
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next fragment of the stream and returns every event that
// fragment completed, in stream order. It never returns an error.
func (d *Decoder) Feed(chunk []byte) []Event {
	var events []Event

	for len(chunk) > 0 {
		if d.skipLF {
			d.skipLF = false
			if chunk[0] == '\n' {
				chunk = chunk[1:]
				continue
			}
		}

		i := bytes.IndexAny(chunk, "\r\n")
		if i < 0 {
			d.buffer(chunk)
			break
		}

		d.buffer(chunk[:i])
		if chunk[i] == '\r' {
			d.skipLF = true
		}
		chunk = chunk[i+1:]

		if d.discarding {
			d.discarding = false
			continue
		}

		line := string(d.partial)
		d.partial = d.partial[:0]

		if ev, ok := d.processLine(line); ok {
			events = append(events, ev)
		}
	}

	return events
}

// buffer appends b to the partial line, switching to discard mode once the
// line outgrows MaxLineSize.
func (d *Decoder) buffer(b []byte) {
	if d.discarding {
		return
	}
	if len(d.partial)+len(b) > MaxLineSize {
		d.partial = nil
		d.discarding = true
		return
	}
	d.partial = append(d.partial, b...)
}

// Flush is called once the source is exhausted. A trailing line without a
// terminator is processed and an event still being accumulated (the stream
// ended without a final blank line) is returned.
func (d *Decoder) Flush() []Event {
	var events []Event

	if len(d.partial) > 0 {
		line := string(d.partial)
		d.partial = d.partial[:0]
		if ev, ok := d.processLine(line); ok {
			events = append(events, ev)
		}
	}

	if d.pending {
		events = append(events, d.dispatch())
	}

	d.skipLF = false
	d.discarding = false
	return events
}

// LastID returns the most recent "id:" value seen on the stream.
func (d *Decoder) LastID() string {
	return d.lastID
}

// Retry returns the most recent "retry:" delay seen on the stream, or zero.
func (d *Decoder) Retry() time.Duration {
	return d.lastRetry
}

// processLine handles one complete line and reports whether it completed an
// event.
func (d *Decoder) processLine(line string) (Event, bool) {
	// A blank line signals the end of the current event.
	if line == "" {
		if !d.pending {
			// Leading blank lines, keep-alive newlines or a retry-only block.
			d.retry = 0
			return Event{}, false
		}
		return d.dispatch(), true
	}

	// Lines starting with ':' are comments.
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		// A single leading space after the colon is not part of the value.
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		d.data = append(d.data, value)
		d.pending = true
	case "event":
		d.name = value
		d.pending = true
	case "id":
		// An id containing NULL is ignored.
		if !strings.ContainsRune(value, 0) {
			d.lastID = value
		}
		d.pending = true
	case "retry":
		ms, err := strconv.ParseUint(value, 10, 32)
		if err == nil {
			d.retry = time.Duration(ms) * time.Millisecond
			d.lastRetry = d.retry
		}
	default:
		// Unknown fields are dropped.
	}

	return Event{}, false
}

// dispatch builds the accumulated event and resets per-event state.
func (d *Decoder) dispatch() Event {
	ev := Event{
		Name:  d.name,
		Data:  strings.Join(d.data, "\n"),
		ID:    d.lastID,
		Retry: d.retry,
	}
	if ev.Name == "" {
		ev.Name = DefaultEventName
	}

	d.name = ""
	d.data = d.data[:0]
	d.retry = 0
	d.pending = false

	return ev
}
