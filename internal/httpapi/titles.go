package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/pkg/events"
)

const (
	titleTimeout   = 30 * time.Second
	titleMaxLength = 50
)

// generateTitle asks a cheap model for a short conversation title and stores
// it. Runs fire-and-forget off the first message; any failure just leaves
// the conversation untitled.
func (s *Server) generateTitle(ctx context.Context, conversationID, query string) {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	prompt := fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, query)

	resp, err := s.invoker.Invoke(ctx, &llm.Request{
		Model:     s.cfg.TitleModel,
		Prompt:    prompt,
		MaxTokens: 20,
	})
	if err != nil {
		s.logger.Warn("Title generation failed",
			"conversation_id", conversationID, "error", err)
		return
	}

	title := cleanTitle(resp.Content)
	if title == "" {
		return
	}
	if err := s.store.SetTitle(ctx, conversationID, title); err != nil {
		s.logger.Warn("Title persistence failed",
			"conversation_id", conversationID, "error", err)
		return
	}

	payload, _ := json.Marshal(map[string]string{"title": title})
	_ = s.broker.Append(ctx, events.Envelope{
		ID:             uuid.NewString(),
		Type:           "title_complete",
		Source:         "httpapi",
		Version:        "1.0.0",
		Timestamp:      time.Now().UTC(),
		ConversationID: conversationID,
		Payload:        payload,
	})
}

// cleanTitle strips quotes and bounds the length.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	if len(title) > titleMaxLength {
		title = title[:titleMaxLength-3] + "..."
	}
	return title
}
