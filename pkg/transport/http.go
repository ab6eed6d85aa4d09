package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/trickle/pkg/logger"
)

const defaultHeaderTimeout = 30 * time.Second

// HTTPTransport opens streams with net/http.
type HTTPTransport struct {
	client *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient overrides the HTTP client. Its Timeout should be zero:
// an overall client timeout would cut long streams short.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.client = c
	}
}

// WithLogger sets the transport logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(t *HTTPTransport) {
		t.logger = l
	}
}

// NewHTTPTransport returns an HTTPTransport. headerTimeout bounds the wait for
// response headers; zero selects a 30s default. The body itself is never
// subject to a timeout.
func NewHTTPTransport(headerTimeout time.Duration, opts ...HTTPOption) *HTTPTransport {
	if headerTimeout <= 0 {
		headerTimeout = defaultHeaderTimeout
	}

	rt := http.DefaultTransport.(*http.Transport).Clone()
	rt.ResponseHeaderTimeout = headerTimeout

	t := &HTTPTransport{
		client: &http.Client{Transport: rt},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open issues the request and returns as soon as response headers arrive.
func (t *HTTPTransport) Open(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := req.newHTTPRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	t.logger.Debug("opening stream",
		"method", httpReq.Method,
		"url", httpReq.URL.Redacted(),
	)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	t.logger.Debug("stream opened",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   resp.Body,
	}, nil
}
