// Package httpapi exposes the council over HTTP: conversation CRUD, message
// submission (which starts an exchange workflow), a quote preview endpoint,
// and live stage-event streaming over SSE and WebSocket.
package httpapi

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/ahrav/go-council/internal/auction"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/internal/store"
	"github.com/ahrav/go-council/internal/workflow"
	"github.com/ahrav/go-council/pkg/events"
)

// WorkflowStarter launches exchange workflows. The Temporal client satisfies
// it in production; tests substitute a stub.
type WorkflowStarter interface {
	StartExchange(ctx context.Context, req workflow.ExchangeRequest) (workflowID string, err error)
}

// Config carries the server's council parameters.
type Config struct {
	CouncilSize   int
	ChairmanModel string
	TitleModel    string
	PenaltyRate   float64
	ValueBasisUSD float64
}

// Server is the fiber application plus its collaborators.
type Server struct {
	app     *fiber.App
	store   store.Store
	starter WorkflowStarter
	broker  *events.Broker
	invoker llm.Invoker
	auction *auction.Activities
	cfg     Config
	logger  *slog.Logger
}

// NewServer builds the HTTP server and mounts all routes.
func NewServer(
	st store.Store,
	starter WorkflowStarter,
	broker *events.Broker,
	invoker llm.Invoker,
	auctionActivities *auction.Activities,
	cfg Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		app:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		store:   st,
		starter: starter,
		broker:  broker,
		invoker: invoker,
		auction: auctionActivities,
		cfg:     cfg,
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(recover.New())
	s.app.Use(fiberlogger.New())
	s.app.Use(cors.New())

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "council"})
	})

	api := s.app.Group("/api")
	api.Get("/conversations", s.listConversations)
	api.Post("/conversations", s.createConversation)
	api.Get("/conversations/:id", s.getConversation)
	api.Post("/conversations/:id/message", s.sendMessage)
	api.Get("/conversations/:id/events", s.streamEvents)
	api.Post("/quotes/preview", s.previewQuotes)

	s.app.Get("/ws/conversations/:id", s.websocketUpgrade, websocket.New(s.handleWebSocket))
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }
