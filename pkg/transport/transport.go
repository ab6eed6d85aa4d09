// Package transport is the stream-capable request primitive the trickle
// session runs on. A Transport opens one long-lived request and hands back
// the response metadata and body; it does not classify or decode anything.
//
// Reconnection timing and retry exhaustion are owned here as well, through
// RetryPolicy, so the session never hard codes a backoff.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
)

// ErrRetriesExhausted is returned when a RetryPolicy refuses another attempt.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Request describes the stream to open.
type Request struct {
	URL    string
	Method string
	Header http.Header
	Body   []byte
}

// Clone returns a copy of the request whose header can be modified freely.
// The body is shared; it is never mutated.
func (r *Request) Clone() *Request {
	return &Request{
		URL:    r.URL,
		Method: r.Method,
		Header: r.Header.Clone(),
		Body:   r.Body,
	}
}

// Response is an opened stream. Status and Header are known before the first
// body byte is read.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Transport opens streams. Implementations must abort an in-flight Open and
// any pending Body read when ctx is cancelled.
type Transport interface {
	Open(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Open calls f(ctx, req).
func (f Func) Open(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

func (r *Request) newHTTPRequest(ctx context.Context) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	httpReq.Header.Set("Cache-Control", "no-cache")

	return httpReq, nil
}
