package sse

import (
	"errors"
	"io"
	"time"
)

const defaultReadSize = 4 * 1024

// Reader pulls SSE events from a source io.Reader. Bytes are read in
// whatever sizes the source yields and handed to a Decoder, so an event is
// available as soon as the chunk completing it arrives.
//
// When a tee destination is configured every raw byte read from the source
// is written to it verbatim before being decoded:
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────┐
// │   Reader.Next()  │──▶│ tee io.Writer     │
// └──────────────────┘   └───────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	src     io.Reader
	tee     io.Writer
	decoder *Decoder
	buf     []byte

	// queue holds decoded events not yet returned by Next.
	queue []Event
	done  bool
	err   error
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTee writes every raw byte read from the source to w.
func WithTee(w io.Writer) ReaderOption {
	return func(r *Reader) {
		r.tee = w
	}
}

// WithReadSize sets the size of each read from the source.
func WithReadSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:     src,
		decoder: NewDecoder(),
		buf:     make([]byte, defaultReadSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTeeReader returns a Reader that parses SSE events from src and writes
// all raw bytes through to dest.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return NewReader(src, WithTee(dest))
}

// Next returns the next parsed SSE event. It blocks until a complete event
// is available. Next returns nil, nil when the source is exhausted cleanly;
// any other read error is returned as is, after the events completed by the
// bytes read alongside it.
func (r *Reader) Next() (*Event, error) {
	for len(r.queue) == 0 {
		if r.err != nil {
			return nil, r.err
		}
		if r.done {
			return nil, nil
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			chunk := r.buf[:n]
			if r.tee != nil {
				if _, werr := r.tee.Write(chunk); werr != nil {
					return nil, werr
				}
			}
			r.queue = append(r.queue, r.decoder.Feed(chunk)...)
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
				continue
			}
			// Source exhausted. If there is an in-progress event (stream
			// ended without a trailing blank line), yield it.
			r.queue = append(r.queue, r.decoder.Flush()...)
			r.done = true
		}
	}

	ev := r.queue[0]
	r.queue = r.queue[1:]
	return &ev, nil
}

// LastID returns the most recent event ID seen on the stream.
func (r *Reader) LastID() string {
	return r.decoder.LastID()
}

// Retry returns the most recent reconnection delay requested by the stream.
func (r *Reader) Retry() time.Duration {
	return r.decoder.Retry()
}
