package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lineageconsolidator/src/adapters/kafka/consumers"
	"lineageconsolidator/src/helper/env"
	"lineageconsolidator/src/infra/graphstore"
	"lineageconsolidator/src/infra/kafka"
	"lineageconsolidator/src/services/buffer"

	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting Lineage Events Consumer with Uber Fx...")

	app := fx.New(
		fx.Provide(
			newLogger,
			newTwinGraph,
			newKafkaClient,
			newBufferService,
			newLineageEventsConsumer,
		),

		fx.Invoke(startConsumer),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start consumer application: %v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down lineage events consumer...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
	}

	log.Println("Lineage events consumer shutdown complete")
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

func newKafkaClient(logger *slog.Logger) (*kafka.KafkaClient, error) {
	brokers := env.MustGetString("KAFKA_BROKERS")
	groupID := env.MustGetString("KAFKA_LINEAGE_CONSUMER_GROUP_ID")
	batchSize := env.GetInt("KAFKA_BATCH_SIZE", 100)

	return kafka.NewKafkaClient(logger, brokers, groupID, batchSize)
}

func newBufferService(logger *slog.Logger, twinGraph *graphstore.TwinGraph) *buffer.BufferService {
	return buffer.NewBufferService(logger, twinGraph.Buffer)
}

func newLineageEventsConsumer(logger *slog.Logger, bufferService *buffer.BufferService) *consumers.LineageEventsConsumer {
	return consumers.NewLineageEventsConsumer(logger, bufferService)
}

func startConsumer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	lineageConsumer *consumers.LineageEventsConsumer,
) {
	// O contexto do OnStart expira junto com o start do fx; o consumer precisa do seu.
	consumerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			topic := env.GetString("KAFKA_LINEAGE_EVENTS_TOPIC", "lineage.events")

			go func() {
				defer close(done)
				if err := lineageConsumer.Start(consumerCtx, kafkaClient, topic); err != nil {
					logger.Error("Consumer failed", "error", err)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()

			select {
			case <-done:
			case <-ctx.Done():
				logger.Warn("Consumer did not stop in time")
			}

			logger.Info("Shutting down Kafka client...")
			if err := kafkaClient.Close(); err != nil {
				logger.Error("Failed to close Kafka client", "error", err)
				return err
			}
			logger.Info("Kafka client shut down gracefully")
			return nil
		},
	})
}
