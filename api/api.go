package api

import (
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
)

// Server is the demo SSE producer.
type Server struct {
	config    Config
	responder Responder
	logger    *slog.Logger
	app       *fiber.App

	// failures counts the injected open failures still to serve.
	failures atomic.Int64
}

// NewServer creates a new producer. A nil responder selects EchoResponder.
func NewServer(config Config, responder Responder, logger *slog.Logger) *Server {
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}
	if responder == nil {
		responder = EchoResponder
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:    config,
		responder: responder,
		logger:    logger,
		app:       app,
	}
	s.failures.Store(int64(config.FailFirst))

	app.Get("/ping", s.handlePing)
	app.Get("/chat", s.handleChat)
	app.Post("/chat", s.handleChat)

	return s
}

// Run starts the producer on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting producer",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Serve runs the producer on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting producer",
		"listen", ln.Addr().String(),
	)
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the producer.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
