package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is a conversation's processing lock state. A conversation accepts
// a new exchange only while idle; the transition to processing is a
// compare-and-set at the store.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
)

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single conversation turn. Assistant messages carry the
// exchange that produced them so clients can replay the full council record.
type Message struct {
	Role       MessageRole `json:"role" bson:"role" validate:"required,oneof=user assistant"`
	Content    string      `json:"content" bson:"content" validate:"required"`
	ExchangeID string      `json:"exchange_id,omitempty" bson:"exchange_id,omitempty"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
}

// Conversation is a titled thread of messages with at most one exchange
// in flight at a time.
type Conversation struct {
	ID        string    `json:"id" bson:"_id" validate:"required,uuid4"`
	Title     string    `json:"title" bson:"title"`
	Status    Status    `json:"status" bson:"status" validate:"required,oneof=idle processing"`
	Messages  []Message `json:"messages" bson:"messages"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewConversation returns an empty idle conversation.
func NewConversation() *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        uuid.NewString(),
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the conversation against its structural constraints.
func (c *Conversation) Validate() error { return validate.Struct(c) }
