package api

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/trickle/pkg/conversation"
)

// Responder produces the full reply text for a query. The server chunks and
// escapes it.
type Responder interface {
	Respond(query string, history []conversation.Message) string
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(query string, history []conversation.Message) string

// Respond calls fn(query, history).
func (fn ResponderFunc) Respond(query string, history []conversation.Message) string {
	return fn(query, history)
}

// EchoResponder answers with a short markdown document quoting the query.
// Its output deliberately contains newlines, colons and leading spaces so a
// client's unescaping is exercised.
var EchoResponder = ResponderFunc(func(query string, history []conversation.Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## You said\n\n> %s\n\n", strings.ReplaceAll(query, "\n", "\n> "))
	fmt.Fprintf(&b, "Details:\n- runes: %d\n- prior turns: %d\n", len([]rune(query)), len(history))
	if n := len(history); n > 0 {
		fmt.Fprintf(&b, "- last turn: %s\n", history[n-1].Role)
	}
	return b.String()
})

// chunkText splits s into pieces of at most size runes.
func chunkText(s string, size int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}

	runes := []rune(s)
	chunks := make([]string, 0, len(runes)/size+1)
	for len(runes) > 0 {
		n := min(size, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
