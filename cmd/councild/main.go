// The councild binary serves the HTTP API: conversation management, message
// submission (dispatched to Temporal), quote previews, and live stage-event
// streaming. Stage events published by workers arrive over Redis pub/sub and
// are bridged into the in-process broker feeding SSE and WebSocket clients.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-council/internal/auction"
	"github.com/ahrav/go-council/internal/catalog"
	"github.com/ahrav/go-council/internal/configuration"
	"github.com/ahrav/go-council/internal/domain"
	"github.com/ahrav/go-council/internal/httpapi"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/internal/store"
	"github.com/ahrav/go-council/internal/workflow"
	"github.com/ahrav/go-council/pkg/activity"
	"github.com/ahrav/go-council/pkg/events"
)

// temporalStarter adapts the Temporal client to httpapi.WorkflowStarter.
// Workflow IDs are keyed by conversation so Temporal itself enforces the
// one-live-run-per-conversation invariant: two racing submissions collide
// on the ID and the loser gets a conflict instead of a second pipeline.
type temporalStarter struct {
	client    client.Client
	taskQueue string
}

func (s *temporalStarter) StartExchange(
	ctx context.Context,
	req workflow.ExchangeRequest,
) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("exchange-%s", req.ConversationID),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, workflow.ExchangeWorkflow, req)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return "", fmt.Errorf("%w: exchange already running", domain.ErrConversationBusy)
		}
		return "", fmt.Errorf("start exchange workflow: %w", err)
	}
	return run.GetID(), nil
}

// bridgeEvents relays worker-published stage events from Redis pub/sub into
// the local broker so every API replica can stream them. Runs until the
// context is cancelled.
func bridgeEvents(ctx context.Context, rdb *redis.Client, broker *events.Broker, logger *slog.Logger) {
	sub := rdb.PSubscribe(ctx, events.Channel("*"))
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			var envelope events.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				logger.Warn("Discarding undecodable stage event",
					"channel", msg.Channel, "error", err)
				continue
			}
			_ = broker.Append(ctx, envelope)
		}
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := configuration.Load()
	if err != nil {
		logger.Error("Configuration failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error("Mongo connection failed", "uri", cfg.MongoURI, "error", err)
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, nil); err != nil {
		logger.Error("Mongo ping failed", "uri", cfg.MongoURI, "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Error("Mongo disconnect failed", "error", err)
		}
	}()

	st := store.NewMongoStore(mongoClient, cfg.MongoDatabase)
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Warn("Index creation failed", "error", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	temporalClient, err := client.Dial(client.Options{HostPort: cfg.TemporalHostPort})
	if err != nil {
		logger.Error("Temporal connection failed",
			"host", cfg.TemporalHostPort, "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	invoker, err := llm.NewClient(cfg.LLMConfig(), redisClient, logger)
	if err != nil {
		logger.Error("Provider client construction failed", "error", err)
		os.Exit(1)
	}

	broker := events.NewBroker()
	defer broker.Close()

	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	go bridgeEvents(bridgeCtx, redisClient, broker, logger)

	auctionActivities := auction.NewActivities(
		activity.NewBaseActivities(events.NewNoOpEventSink()),
		invoker,
		catalog.NewDefaultRegistry(),
		cfg.QuoteTimeout,
	)

	starter := &temporalStarter{client: temporalClient, taskQueue: cfg.TaskQueue}
	srv := httpapi.NewServer(st, starter, broker, invoker, auctionActivities, httpapi.Config{
		CouncilSize:   cfg.CouncilSize,
		ChairmanModel: cfg.ChairmanModel,
		TitleModel:    cfg.TitleModel,
		PenaltyRate:   cfg.PenaltyRate,
		ValueBasisUSD: cfg.ValueBasisUSD,
	}, logger)

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	if err := srv.Shutdown(); err != nil {
		logger.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
}
