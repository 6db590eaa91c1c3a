package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces the pub/sub channels used for stage events.
const channelPrefix = "council:events:"

// RedisSink publishes events to a Redis pub/sub channel per conversation,
// letting API replicas other than the one hosting the worker stream stage
// progress to their clients.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink creates a sink publishing through the given client.
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// Channel returns the pub/sub channel name for a conversation.
func Channel(conversationID string) string {
	return channelPrefix + conversationID
}

// Append implements EventSink by publishing the JSON-encoded envelope.
// Publish failures surface as errors but carry no subscribers' fate with
// them; callers treat emission as best effort.
func (s *RedisSink) Append(ctx context.Context, envelope Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.client.Publish(ctx, Channel(envelope.ConversationID), data).Err(); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}
	return nil
}

// MultiSink fans one Append out to several sinks, collecting the first
// error while still attempting every sink.
type MultiSink []EventSink

// Append implements EventSink.
func (m MultiSink) Append(ctx context.Context, envelope Envelope) error {
	var first error
	for _, sink := range m {
		if err := sink.Append(ctx, envelope); err != nil && first == nil {
			first = err
		}
	}
	return first
}
