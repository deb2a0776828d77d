// Package server exposes the agent pipeline over a streaming HTTP endpoint.
package server

import (
	"bufio"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/jaaabir/tim-ai/agent"
	"github.com/jaaabir/tim-ai/pkg/chat"
	"github.com/jaaabir/tim-ai/pkg/history"
)

//go:embed static/index.html
var indexHTML []byte

// Config is the server configuration.
type Config struct {
	// Address to listen on (e.g. ":8000")
	ListenAddr string

	// Shared secret every POST must carry in X-SECRET-KEY
	SecretKey string

	// ChunkBytes is the size of each streamed write. The model reply is
	// fully buffered before streaming starts; chunking replays it so the
	// browser renders progressively. Boundaries may split multi-byte
	// characters; clients reassemble.
	ChunkBytes int

	// ChunkDelay is the pause between streamed writes.
	ChunkDelay time.Duration
}

// Server wires the agent pipeline to the HTTP transport.
type Server struct {
	config Config
	agent  *agent.Agent
	store  history.Store
	logger *zap.Logger
	app    *fiber.App
}

// New creates a Server and registers its routes.
func New(config Config, ag *agent.Agent, store history.Store, logger *zap.Logger) *Server {
	if config.ChunkBytes <= 0 {
		config.ChunkBytes = 32
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	s := &Server{
		config: config,
		agent:  ag,
		store:  store,
		logger: logger,
		app:    app,
	}

	app.Use(s.requireSecret)

	app.Get("/", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(indexHTML)
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	app.Post("/chat/stream", s.handleChatStream)

	return s
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting chat server", zap.String("listen", s.config.ListenAddr))
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requireSecret rejects POSTs without the shared secret before any
// pipeline work runs. Reads (the page, health) pass through.
func (s *Server) requireSecret(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return c.Next()
	}

	provided := c.Get("X-SECRET-KEY")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.config.SecretKey)) != 1 {
		s.logger.Warn("rejected request with invalid secret", zap.String("path", c.Path()))
		return c.Status(fiber.StatusForbidden).
			JSON(chat.ErrorResponse{Detail: "Forbidden: Invalid secret key"})
	}

	return c.Next()
}

// handleChatStream runs one turn and streams the cleaned answer back as
// text/plain chunks.
func (s *Server) handleChatStream(c *fiber.Ctx) error {
	var req chat.TurnRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Error("failed to parse turn request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).
			JSON(chat.ErrorResponse{Detail: "invalid request body"})
	}

	// A turn without a thread id cannot address any history; fail fast
	// instead of streaming an empty body.
	if strings.TrimSpace(req.ThreadID) == "" {
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(chat.ErrorResponse{Detail: "thread_id is required"})
	}

	start := time.Now()

	// Hold the thread's turn lock for the whole pipeline so concurrent
	// requests on one thread queue instead of interleaving stages.
	unlock := s.store.Lock(req.ThreadID)
	answer, err := s.agent.Run(c.Context(), req.ThreadID, req.UserInput)
	unlock()

	if err != nil {
		s.logger.Error("pipeline failed",
			zap.String("thread_id", req.ThreadID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).
			JSON(chat.ErrorResponse{Detail: "upstream failure"})
	}

	s.logger.Debug("turn complete",
		zap.String("thread_id", req.ThreadID),
		zap.Int("answer_bytes", len(answer)),
		zap.Duration("duration", time.Since(start)),
	)

	chunkBytes := s.config.ChunkBytes
	chunkDelay := s.config.ChunkDelay

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for off := 0; off < len(answer); off += chunkBytes {
			end := off + chunkBytes
			if end > len(answer) {
				end = len(answer)
			}
			if _, err := w.WriteString(answer[off:end]); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
			if chunkDelay > 0 {
				time.Sleep(chunkDelay)
			}
		}
	}))

	return nil
}
