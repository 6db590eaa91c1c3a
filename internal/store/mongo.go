package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ahrav/go-council/internal/domain"
)

const (
	conversationsCollection = "conversations"
	exchangesCollection     = "exchanges"

	mongoOpTimeout = 5 * time.Second
)

// MongoStore persists conversations and exchanges in MongoDB. The status
// compare-and-set rides on a filtered UpdateOne so two replicas racing to
// start an exchange on the same conversation cannot both win.
type MongoStore struct {
	conversations *mongo.Collection
	exchanges     *mongo.Collection
}

// NewMongoStore creates a MongoStore over the named database.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		conversations: db.Collection(conversationsCollection),
		exchanges:     db.Collection(exchangesCollection),
	}
}

var _ Store = (*MongoStore)(nil)

// EnsureIndexes creates the indexes resume and listing depend on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.exchanges.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		return err
	}
	_, err = s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	})
	return err
}

func (s *MongoStore) CreateConversation(ctx context.Context) (*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	conv := domain.NewConversation()
	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *MongoStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var conv domain.Conversation
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (s *MongoStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	cursor, err := s.conversations.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domain.Conversation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) SetTitle(ctx context.Context, id, title string) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"title": title, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, id string, msg domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"messages": msg},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (s *MongoStore) CompareAndSetStatus(ctx context.Context, id string, from, to domain.Status) error {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// Filter missed: either the conversation does not exist or it is not
	// in the expected state. Distinguish the two for callers.
	count, err := s.conversations.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrConversationNotFound
	}
	return domain.ErrConversationBusy
}

func (s *MongoStore) SaveExchange(ctx context.Context, ex *domain.Exchange) error {
	if err := ex.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err := s.exchanges.ReplaceOne(ctx,
		bson.M{"_id": ex.ID}, ex, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetExchange(ctx context.Context, id string) (*domain.Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var ex domain.Exchange
	err := s.exchanges.FindOne(ctx, bson.M{"_id": id}).Decode(&ex)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrExchangeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

func (s *MongoStore) FindOpenExchange(ctx context.Context, conversationID string) (*domain.Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var ex domain.Exchange
	err := s.exchanges.FindOne(ctx,
		bson.M{
			"conversation_id": conversationID,
			"stage":           bson.M{"$ne": string(domain.StageDone)},
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&ex)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrExchangeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ex, nil
}

// PatchExchange loads, applies, and replaces. Exactly one pipeline run owns
// an exchange at a time (the conversation status CAS guarantees it), so
// read-modify-write is safe here.
func (s *MongoStore) PatchExchange(
	ctx context.Context,
	id string,
	field domain.StageField,
	patch *domain.StagePatch,
) (*domain.Exchange, error) {
	ex, err := s.GetExchange(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ex.Apply(field, patch); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	res, err := s.exchanges.ReplaceOne(ctx, bson.M{"_id": id}, ex)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrExchangeNotFound
	}
	return ex, nil
}
