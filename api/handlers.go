package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/trickle/pkg/conversation"
	"github.com/papercomputeco/trickle/pkg/escape"
	"github.com/papercomputeco/trickle/pkg/sse"
)

// errInjectedDrop aborts a stream mid-body so the client sees a broken
// connection rather than a clean end of stream.
var errInjectedDrop = errors.New("injected stream drop")

// ErrorResponse is the JSON body of a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChat streams a reply. POST carries a conversation.ChatPayload; GET
// carries the query in the "query" parameter.
func (s *Server) handleChat(c *fiber.Ctx) error {
	payload := conversation.ChatPayload{}
	if c.Method() == fiber.MethodPost {
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid chat payload"})
		}
	} else {
		payload.Query = c.Query("query")
	}

	if strings.TrimSpace(payload.Query) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "query is required"})
	}

	if s.failures.Add(-1) >= 0 {
		s.logger.Warn("rejecting chat request (injected failure)")
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "producer warming up"})
	}

	resume := -1
	if id := c.Get("Last-Event-ID"); id != "" {
		n, err := strconv.Atoi(id)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid Last-Event-ID"})
		}
		resume = n
	}

	chunks := chunkText(s.responder.Respond(payload.Query, payload.History), s.config.ChunkSize)

	s.logger.Debug("streaming reply",
		"method", c.Method(),
		"chunks", len(chunks),
		"resume_after", resume,
	)

	c.Set(fiber.HeaderContentType, sse.ContentType+"; charset=utf-8")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe gives per-chunk flushing: fasthttp writes the body with
	// chunked encoding and flushes after every read from the pipe.
	pr, pw := io.Pipe()
	go s.writeStream(pw, chunks, resume)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// writeStream writes the events for chunks after index resume. Each message
// event carries its chunk index as its id.
func (s *Server) writeStream(pw *io.PipeWriter, chunks []string, resume int) {
	defer pw.Close()

	if s.config.RetryHint > 0 {
		if _, err := fmt.Fprintf(pw, "retry: %d\n\n", s.config.RetryHint.Milliseconds()); err != nil {
			return
		}
	}

	sent := 0
	for i, chunk := range chunks {
		if i <= resume {
			continue
		}
		if resume < 0 && s.config.DropAfter > 0 && sent == s.config.DropAfter {
			s.logger.Warn("dropping stream (injected failure)", "after", sent)
			pw.CloseWithError(errInjectedDrop)
			return
		}
		if sent > 0 && s.config.ChunkDelay > 0 {
			time.Sleep(s.config.ChunkDelay)
		}

		if _, err := fmt.Fprintf(pw, "id: %d\ndata: %s\n\n", i, escape.Escape(chunk)); err != nil {
			s.logger.Debug("client went away", "error", err)
			return
		}
		sent++
	}

	if _, err := fmt.Fprintf(pw, "event: %s\ndata: %d\n\n", sse.EndEventName, len(chunks)); err != nil {
		s.logger.Debug("client went away", "error", err)
	}
}
