package conversation_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/papercomputeco/trickle/pkg/transport"
)

type opener func() *transport.Response

// scriptedTransport answers each Open with the next scripted response.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []opener
	requests  []*transport.Request
}

func newScriptedTransport(responses ...opener) *scriptedTransport {
	return &scriptedTransport{responses: responses}
}

func (s *scriptedTransport) Open(_ context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i >= len(s.responses) {
		return nil, errors.New("no scripted response")
	}
	return s.responses[i](), nil
}

func (s *scriptedTransport) Requests() []*transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*transport.Request(nil), s.requests...)
}

func sseBody(body io.ReadCloser) opener {
	return func() *transport.Response {
		return &transport.Response{
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:   body,
		}
	}
}

func sseString(body string) opener {
	return sseBody(io.NopCloser(strings.NewReader(body)))
}

func statusResponse(code int) opener {
	return func() *transport.Response {
		return &transport.Response{
			Status: code,
			Header: http.Header{"Content-Type": []string{"text/plain"}},
			Body:   io.NopCloser(strings.NewReader(http.StatusText(code))),
		}
	}
}

// stubbornBody keeps delivering bytes after Close, like a transport that is
// slow to observe cancellation.
type stubbornBody struct {
	io.Reader
}

func (stubbornBody) Close() error { return nil }
