package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/infra/kafka"
	"lineageconsolidator/src/services/buffer"
)

// LineageIngester é satisfeito por *buffer.BufferService.
type LineageIngester interface {
	Ingest(ctx context.Context, event entities.LineageEvent) (buffer.IngestReport, error)
}

type LineageEventsConsumer struct {
	logger   *slog.Logger
	ingester LineageIngester
}

func NewLineageEventsConsumer(logger *slog.Logger, ingester LineageIngester) *LineageEventsConsumer {
	return &LineageEventsConsumer{
		logger:   logger,
		ingester: ingester,
	}
}

func (c *LineageEventsConsumer) Start(ctx context.Context, kafkaClient *kafka.KafkaClient, topic string) error {
	c.logger.Info("Starting lineage events consumer", "topic", topic)
	return kafkaClient.Consumer(ctx, c.HandleMessages, topic)
}

// HandleMessages grava cada evento do lote no grafo buffer.
// Mensagens mal formadas são descartadas; falha do store ou prazo vencido devolve erro para o
// lote ser reentregue.
func (c *LineageEventsConsumer) HandleMessages(ctx context.Context, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}

	var total buffer.IngestReport
	discarded := 0

	for _, msg := range messages {
		var event entities.LineageEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("Failed to unmarshal lineage event", "key", msg.Key, "error", err)
			discarded++
			continue
		}

		if event.EventID == "" {
			event.EventID = msg.Key
		}

		report, err := c.ingester.Ingest(ctx, event)
		if isRetryable(err) {
			return fmt.Errorf("failed to ingest lineage event %s: %w", event.EventID, err)
		}
		if err != nil {
			c.logger.Warn("Discarding lineage event", "event_id", event.EventID, "error", err)
			discarded++
			continue
		}

		total.Facts += report.Facts
		total.VerticesCreated += report.VerticesCreated
		total.VerticesUpdated += report.VerticesUpdated
		total.EdgesCreated += report.EdgesCreated
		total.Duplicates += report.Duplicates
		total.Rejected += report.Rejected
		total.Failures += report.Failures
	}

	c.logger.Info("Processed lineage events batch",
		"count", len(messages),
		"discarded", discarded,
		"facts", total.Facts,
		"vertices_created", total.VerticesCreated,
		"vertices_updated", total.VerticesUpdated,
		"edges_created", total.EdgesCreated,
		"duplicates", total.Duplicates,
		"rejected", total.Rejected,
		"failures", total.Failures)

	return nil
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrStoreTransactionFailure) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
