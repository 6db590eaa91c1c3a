package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/go-council/internal/domain"
)

// MemoryStore is a mutex-guarded in-process Store. It backs tests and
// single-node development runs; nothing survives a restart.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	exchanges     map[string]*domain.Exchange
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*domain.Conversation),
		exchanges:     make(map[string]*domain.Exchange),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateConversation(_ context.Context) (*domain.Conversation, error) {
	conv := domain.NewConversation()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv

	out := *conv
	return &out, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	out := *conv
	out.Messages = append([]domain.Message(nil), conv.Messages...)
	return &out, nil
}

func (s *MemoryStore) ListConversations(_ context.Context) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		c := *conv
		c.Messages = append([]domain.Message(nil), conv.Messages...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SetTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, id string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CompareAndSetStatus(_ context.Context, id string, from, to domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	if conv.Status != from {
		return domain.ErrConversationBusy
	}
	conv.Status = to
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) SaveExchange(_ context.Context, ex *domain.Exchange) error {
	if err := ex.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *ex
	s.exchanges[ex.ID] = &stored
	return nil
}

func (s *MemoryStore) GetExchange(_ context.Context, id string) (*domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ex, ok := s.exchanges[id]
	if !ok {
		return nil, domain.ErrExchangeNotFound
	}
	out := *ex
	return &out, nil
}

func (s *MemoryStore) FindOpenExchange(_ context.Context, conversationID string) (*domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Exchange
	for _, ex := range s.exchanges {
		if ex.ConversationID != conversationID || ex.Stage.Terminal() {
			continue
		}
		if latest == nil || ex.CreatedAt.After(latest.CreatedAt) {
			latest = ex
		}
	}
	if latest == nil {
		return nil, domain.ErrExchangeNotFound
	}
	out := *latest
	return &out, nil
}

func (s *MemoryStore) PatchExchange(
	_ context.Context,
	id string,
	field domain.StageField,
	patch *domain.StagePatch,
) (*domain.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.exchanges[id]
	if !ok {
		return nil, domain.ErrExchangeNotFound
	}

	updated := *ex
	if err := updated.Apply(field, patch); err != nil {
		return nil, err
	}
	s.exchanges[id] = &updated

	out := updated
	return &out, nil
}
