package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/infra/kafka"
)

const (
	EventTypeLineageConsolidated = "lineage.consolidated"
	sourceService                = "lineage-consolidator"
	schemaVersion                = "v1"
)

// MessageProducer é satisfeito por *kafka.KafkaClient.
type MessageProducer interface {
	Producer(messages []kafka.Message, topic string) error
}

type ConsolidationEventPublisher struct {
	logger   *slog.Logger
	producer MessageProducer
	topic    string
}

func NewConsolidationEventPublisher(
	logger *slog.Logger,
	producer MessageProducer,
	topic string,
) *ConsolidationEventPublisher {
	return &ConsolidationEventPublisher{
		logger:   logger,
		producer: producer,
		topic:    topic,
	}
}

// PublishConsolidated publica um evento por SubProcess criado, particionado pelo guid do processo.
func (p *ConsolidationEventPublisher) PublishConsolidated(ctx context.Context, events []domain.ConsolidatedEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		eventBytes, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal consolidated event", "event_id", event.EventID, "error", err)
			continue
		}

		messages = append(messages, kafka.Message{
			Key:     event.ProcessGUID,
			Value:   eventBytes,
			Headers: p.createEventHeaders(event),
		})
	}

	if err := p.producer.Producer(messages, p.topic); err != nil {
		return fmt.Errorf("failed to publish consolidated events to topic %s: %w", p.topic, err)
	}

	p.logger.Info("Published consolidated events", "topic", p.topic, "events_count", len(messages))
	return nil
}

func (p *ConsolidationEventPublisher) createEventHeaders(event domain.ConsolidatedEvent) map[string]string {
	tablesResolved := "false"
	if event.TablesResolved {
		tablesResolved = "true"
	}

	return map[string]string{
		"event_type":      EventTypeLineageConsolidated,
		"source_service":  sourceService,
		"schema_version":  schemaVersion,
		"event_id":        event.EventID,
		"process_guid":    event.ProcessGUID,
		"tables_resolved": tablesResolved,
	}
}
