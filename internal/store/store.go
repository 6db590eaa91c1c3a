// Package store persists conversations and exchanges. Two implementations
// exist: a MongoDB-backed store for deployments and an in-memory store for
// tests and single-process development. Both enforce the same contract,
// notably the compare-and-set status transition that admits at most one
// exchange per conversation at a time.
package store

import (
	"context"

	"github.com/ahrav/go-council/internal/domain"
)

// Store is the persistence contract for the council engine.
//
// Checkpointing goes through PatchExchange: one stage, one field, one
// atomic advance of the stage marker. An exchange interrupted mid-pipeline
// is found again via FindOpenExchange and resumed from its recorded stage.
type Store interface {
	// CreateConversation persists a new idle conversation and returns it.
	CreateConversation(ctx context.Context) (*domain.Conversation, error)

	// GetConversation returns the conversation or ErrConversationNotFound.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// ListConversations returns all conversations, most recently
	// updated first.
	ListConversations(ctx context.Context) ([]domain.Conversation, error)

	// SetTitle sets a conversation's display title.
	SetTitle(ctx context.Context, id, title string) error

	// AppendMessage appends one message and bumps UpdatedAt.
	AppendMessage(ctx context.Context, id string, msg domain.Message) error

	// CompareAndSetStatus transitions the conversation's status from one
	// value to another atomically. A conversation not currently in the
	// from state yields ErrConversationBusy.
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status) error

	// SaveExchange upserts a full exchange document.
	SaveExchange(ctx context.Context, ex *domain.Exchange) error

	// GetExchange returns the exchange or ErrExchangeNotFound.
	GetExchange(ctx context.Context, id string) (*domain.Exchange, error)

	// FindOpenExchange returns the conversation's most recent unsettled
	// exchange, or ErrExchangeNotFound when every exchange is done.
	FindOpenExchange(ctx context.Context, conversationID string) (*domain.Exchange, error)

	// PatchExchange applies one stage's output to the stored exchange,
	// advancing its stage marker, and returns the updated document.
	PatchExchange(ctx context.Context, id string, field domain.StageField, patch *domain.StagePatch) (*domain.Exchange, error)
}
