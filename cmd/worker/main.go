// The worker binary hosts the exchange workflow and its activities on a
// Temporal task queue. It owns every external effect of a council run:
// OpenRouter calls, Mongo writes, and stage-event publication to Redis.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/go-council/internal/configuration"
	"github.com/ahrav/go-council/internal/llm"
	"github.com/ahrav/go-council/internal/store"
	"github.com/ahrav/go-council/internal/worker"
	"github.com/ahrav/go-council/pkg/events"
)

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

	invoker, err := llm.NewClient(cfg.LLMConfig(), redisClient, logger)
	if err != nil {
		logger.Error("Provider client construction failed", "error", err)
		os.Exit(1)
	}

	temporalClient, err := client.Dial(client.Options{HostPort: cfg.TemporalHostPort})
	if err != nil {
		logger.Error("Temporal connection failed",
			"host", cfg.TemporalHostPort, "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := sdkworker.New(temporalClient, cfg.TaskQueue, sdkworker.Options{})
	worker.RegisterAll(w, worker.Dependencies{
		Config:  cfg,
		Invoker: invoker,
		Store:   st,
		Sink:    events.NewRedisSink(redisClient),
	})

	logger.Info("Worker starting",
		"task_queue", cfg.TaskQueue,
		"temporal", cfg.TemporalHostPort,
		"chairman", cfg.ChairmanModel,
		"council_size", cfg.CouncilSize)

	if err := w.Run(sdkworker.InterruptCh()); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
}
