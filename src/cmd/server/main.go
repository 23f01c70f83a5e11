package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	httpadapter "lineageconsolidator/src/adapters/http"
	"lineageconsolidator/src/helper/env"
	"lineageconsolidator/src/infra/graphstore"
	"lineageconsolidator/src/infra/kafka"
	"lineageconsolidator/src/infra/redis"
	"lineageconsolidator/src/repositories"
	"lineageconsolidator/src/services/buffer"
	"lineageconsolidator/src/services/consolidation"
	"lineageconsolidator/src/services/events"
	"lineageconsolidator/src/services/lineage"

	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting API server with Uber Fx...")

	app := fx.New(
		fx.Provide(
			newLogger,
			newTwinGraph,
			newLineageQuerier,
			newLineageService,
			newBufferService,
			newEventPublisher,
			newConsolidationService,
			newServer,
		),

		fx.Invoke(registerServerHooks, registerSchedulerHooks),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
	}
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

// lineageQuerierOut expõe o mesmo repositório como leitor e como invalidador de cache.
type lineageQuerierOut struct {
	fx.Out

	Querier     repositories.LineageQuerier
	Invalidator consolidation.CacheInvalidator
}

// newLineageQuerier usa o cache redis quando REDIS_HOSTS está configurado.
func newLineageQuerier(lc fx.Lifecycle, logger *slog.Logger, twinGraph *graphstore.TwinGraph) lineageQuerierOut {
	repository := repositories.NewLineageQueryRepository(twinGraph.Main)

	redisHosts := env.GetString("REDIS_HOSTS")
	if redisHosts == "" {
		logger.Info("REDIS_HOSTS not set, lineage queries are not cached")
		return lineageQuerierOut{Querier: repository}
	}

	redisPoolSize := env.GetInt("REDIS_POOL_SIZE", 50)
	redisDefaultTTL := time.Duration(env.GetInt("REDIS_DEFAULT_TTL_SECONDS", 120)) * time.Second
	redisClient := redis.NewRedisClient(redisHosts, redisPoolSize, redisDefaultTTL)
	lc.Append(fx.StopHook(redisClient.Close))

	cached := repositories.NewCachedLineageQueryRepository(logger, repository, redisClient)
	return lineageQuerierOut{Querier: cached, Invalidator: cached}
}

func newLineageService(querier repositories.LineageQuerier) *lineage.LineageService {
	return lineage.NewLineageService(querier)
}

func newBufferService(logger *slog.Logger, twinGraph *graphstore.TwinGraph) *buffer.BufferService {
	return buffer.NewBufferService(logger, twinGraph.Buffer)
}

// newEventPublisher devolve nil quando KAFKA_BROKERS não está configurado.
func newEventPublisher(lc fx.Lifecycle, logger *slog.Logger) (consolidation.EventPublisher, error) {
	brokers := env.GetString("KAFKA_BROKERS")
	if brokers == "" {
		return nil, nil
	}

	client, err := kafka.NewKafkaClient(logger, brokers, "", env.GetInt("KAFKA_BATCH_SIZE", 100))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(client.Close))

	topic := env.GetString("KAFKA_LINEAGE_CONSOLIDATED_TOPIC", "lineage.consolidated")
	return events.NewConsolidationEventPublisher(logger, client, topic), nil
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

func newServer(
	logger *slog.Logger,
	lineageService *lineage.LineageService,
	bufferService *buffer.BufferService,
	consolidationService *consolidation.ConsolidationService,
) *httpadapter.Server {
	addr := env.GetString("SERVER_ADDR", ":8888")
	return httpadapter.NewServer(logger, addr, lineageService, bufferService, consolidationService)
}

// registerServerHooks registers lifecycle hooks for the HTTP server
func registerServerHooks(lc fx.Lifecycle, shutdowner fx.Shutdowner, logger *slog.Logger, srv *httpadapter.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("Server failed", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// registerSchedulerHooks liga o sweep periódico só quando CONSOLIDATION_SCHEDULE é informado.
func registerSchedulerHooks(lc fx.Lifecycle, logger *slog.Logger, service *consolidation.ConsolidationService) {
	schedule := env.GetString("CONSOLIDATION_SCHEDULE")
	if schedule == "" {
		return
	}

	scheduler := consolidation.NewScheduler(logger, service, schedule)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
