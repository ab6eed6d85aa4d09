package conversation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/trickle/pkg/transport"
)

// RequestBuilder turns a query and the turns preceding it into a stream
// request.
type RequestBuilder func(query string, history []Turn) (*transport.Request, error)

// Message is a prior turn as sent to the producer.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatPayload is the JSON body of a POST chat request.
type ChatPayload struct {
	Query   string    `json:"query"`
	History []Message `json:"history,omitempty"`
}

// NewRequestBuilder returns a builder for endpoint. POST sends a ChatPayload
// as JSON; GET carries the query in the "query" URL parameter and sends no
// history.
func NewRequestBuilder(endpoint, method string) RequestBuilder {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}

	return func(query string, history []Turn) (*transport.Request, error) {
		switch method {
		case http.MethodGet:
			u, err := url.Parse(endpoint)
			if err != nil {
				return nil, fmt.Errorf("parsing endpoint: %w", err)
			}
			q := u.Query()
			q.Set("query", query)
			u.RawQuery = q.Encode()
			return &transport.Request{URL: u.String(), Method: method}, nil

		case http.MethodPost:
			payload := ChatPayload{Query: query}
			for _, t := range history {
				if t.Content == "" {
					continue
				}
				payload.History = append(payload.History, Message{Role: t.Role, Content: t.Content})
			}
			body, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encoding chat payload: %w", err)
			}
			return &transport.Request{
				URL:    endpoint,
				Method: method,
				Header: http.Header{"Content-Type": []string{"application/json"}},
				Body:   body,
			}, nil

		default:
			return nil, fmt.Errorf("unsupported method %q", method)
		}
	}
}
