package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lineageconsolidator/src/helper/env"
	"lineageconsolidator/src/infra/graphstore"
	"lineageconsolidator/src/infra/kafka"
	"lineageconsolidator/src/infra/redis"
	"lineageconsolidator/src/repositories"
	"lineageconsolidator/src/services/consolidation"
	"lineageconsolidator/src/services/events"

	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting Lineage Consolidator with Uber Fx...")

	app := fx.New(
		fx.Provide(
			newLogger,
			newTwinGraph,
			newKafkaClient,
			newRedisClient,
			newEventPublisher,
			newCacheInvalidator,
			newConsolidationService,
			newScheduler,
		),

		fx.Invoke(startScheduler),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start consolidator application: %v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down consolidator...")

	// Um sweep em andamento é cancelado; o próximo processo retoma de onde parou.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
	}

	log.Println("Consolidator shutdown complete")
}

func newLogger() *slog.Logger {
	var level slog.Level

	switch env.GetString("LOG_LEVEL", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func newTwinGraph(lc fx.Lifecycle, logger *slog.Logger) (*graphstore.TwinGraph, error) {
	twinGraph, err := graphstore.NewTwinGraphFromEnv(context.Background(), logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(twinGraph.Close))
	return twinGraph, nil
}

// newKafkaClient cria só o producer: o consolidator não consome tópicos.
func newKafkaClient(lc fx.Lifecycle, logger *slog.Logger) (*kafka.KafkaClient, error) {
	brokers := env.MustGetString("KAFKA_BROKERS")
	batchSize := env.GetInt("KAFKA_BATCH_SIZE", 100)

	client, err := kafka.NewKafkaClient(logger, brokers, "", batchSize)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.StopHook(client.Close))
	return client, nil
}

func newRedisClient(lc fx.Lifecycle) *redis.RedisClient {
	redisHosts := env.MustGetString("REDIS_HOSTS")
	redisPoolSize := env.GetInt("REDIS_POOL_SIZE", 50)
	redisDefaultTTL := time.Duration(env.GetInt("REDIS_DEFAULT_TTL_SECONDS", 120)) * time.Second

	client := redis.NewRedisClient(redisHosts, redisPoolSize, redisDefaultTTL)
	lc.Append(fx.StopHook(client.Close))
	return client
}

func newEventPublisher(logger *slog.Logger, kafkaClient *kafka.KafkaClient) consolidation.EventPublisher {
	topic := env.GetString("KAFKA_LINEAGE_CONSOLIDATED_TOPIC", "lineage.consolidated")
	return events.NewConsolidationEventPublisher(logger, kafkaClient, topic)
}

func newCacheInvalidator(
	logger *slog.Logger,
	twinGraph *graphstore.TwinGraph,
	redisClient *redis.RedisClient,
) consolidation.CacheInvalidator {
	return repositories.NewCachedLineageQueryRepository(
		logger,
		repositories.NewLineageQueryRepository(twinGraph.Main),
		redisClient,
	)
}

func newConsolidationService(
	logger *slog.Logger,
	twinGraph *graphstore.TwinGraph,
	publisher consolidation.EventPublisher,
	invalidator consolidation.CacheInvalidator,
) *consolidation.ConsolidationService {
	config := consolidation.Config{
		MaxHops:      env.GetInt("CONSOLIDATION_MAX_HOPS", consolidation.DefaultMaxHops),
		Workers:      env.GetInt("CONSOLIDATION_WORKERS", 1),
		SweepTimeout: env.GetDuration("CONSOLIDATION_SWEEP_TIMEOUT", 10*time.Minute),
	}

	return consolidation.NewConsolidationService(logger, twinGraph.Buffer, twinGraph.Main, config, publisher, invalidator)
}

func newScheduler(logger *slog.Logger, service *consolidation.ConsolidationService) *consolidation.Scheduler {
	schedule := env.GetString("CONSOLIDATION_SCHEDULE", consolidation.DefaultSchedule)
	return consolidation.NewScheduler(logger, service, schedule)
}

func startScheduler(lc fx.Lifecycle, scheduler *consolidation.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
