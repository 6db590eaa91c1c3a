package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/workflow"
)

// sendMessageRequest is the body for message submission and quote preview.
type sendMessageRequest struct {
	Content string `json:"content"`
}

type previewRequest struct {
	Content     string `json:"content"`
	CouncilSize int    `json:"council_size"`
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	conversations, err := s.store.ListConversations(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	type summary struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		Status       string    `json:"status"`
		MessageCount int       `json:"message_count"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}
	out := make([]summary, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, summary{
			ID:           conv.ID,
			Title:        conv.Title,
			Status:       string(conv.Status),
			MessageCount: len(conv.Messages),
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}
	return c.JSON(out)
}

func (s *Server) createConversation(c *fiber.Ctx) error {
	conv, err := s.store.CreateConversation(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (s *Server) getConversation(c *fiber.Ctx) error {
	conv, err := s.store.GetConversation(c.Context(), c.Params("id"))
	if errors.Is(err, domain.ErrConversationNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "conversation not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(conv)
}

// sendMessage starts an exchange workflow for the conversation. The
// conversation status check here is a fast path for a friendly 409; the
// authoritative admission is the conversation-keyed workflow ID, which
// makes Temporal reject a second live run for the same conversation.
func (s *Server) sendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if req.Content == "" {
		return fiber.NewError(fiber.StatusBadRequest, "content is required")
	}

	conversationID := c.Params("id")
	conv, err := s.store.GetConversation(c.Context(), conversationID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "conversation not found")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if conv.Status == domain.StatusProcessing {
		return fiber.NewError(fiber.StatusConflict, "conversation already processing")
	}

	isFirstMessage := len(conv.Messages) == 0

	workflowID, err := s.starter.StartExchange(c.Context(), workflow.ExchangeRequest{
		ConversationID: conversationID,
		Query:          req.Content,
		CouncilSize:    s.cfg.CouncilSize,
		ChairmanModel:  s.cfg.ChairmanModel,
		PenaltyRate:    s.cfg.PenaltyRate,
		ValueBasisUSD:  s.cfg.ValueBasisUSD,
	})
	if errors.Is(err, domain.ErrConversationBusy) {
		return fiber.NewError(fiber.StatusConflict, "conversation already processing")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if isFirstMessage {
		go s.generateTitle(context.Background(), conversationID, req.Content)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"conversation_id": conversationID,
		"workflow_id":     workflowID,
	})
}

// previewQuotes runs the quote auction without starting an exchange. Useful
// for showing users what a question would cost before committing to it.
func (s *Server) previewQuotes(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}

	result, failed, err := s.auction.PreviewQuotes(c.Context(), req.Content, req.CouncilSize)
	if errors.Is(err, domain.ErrEmptyQuery) {
		return fiber.NewError(fiber.StatusBadRequest, "content is required")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.JSON(fiber.Map{
		"quotes":          result.Quotes,
		"bidders":         result.Bidders,
		"value_basis_usd": domain.RoundUSD(result.ValueBasisUSD),
		"failed":          failed,
	})
}
