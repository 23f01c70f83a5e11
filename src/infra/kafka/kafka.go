package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

const batchTimeout = 2 * time.Second

type KafkaClient struct {
	logger    *slog.Logger
	consumer  sarama.ConsumerGroup
	producer  sarama.SyncProducer
	brokers   []string
	batchSize int
}

type Message struct {
	Key      string
	Value    []byte
	Headers  map[string]string
	internal *sarama.ConsumerMessage
}

type Handler func(ctx context.Context, messages []Message) error

// NewKafkaClient cria o producer e, quando groupID não é vazio, o consumer group.
func NewKafkaClient(logger *slog.Logger, brokers string, groupID string, batchSize int) (*KafkaClient, error) {
	brokerList := strings.Split(brokers, ",")
	if batchSize <= 0 {
		batchSize = 100
	}

	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0

	// Consumer: lotes grandes, commit só depois do handler
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 30 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 10 * time.Second
	config.Consumer.MaxProcessingTime = 60 * time.Second
	config.Consumer.MaxWaitTime = 100 * time.Millisecond
	config.ChannelBufferSize = batchSize * 2

	// Producer: mensagens pequenas, latência baixa
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 50 * time.Millisecond
	config.Producer.Flush.Messages = 50
	config.Producer.MaxMessageBytes = 1024 * 1024

	client := &KafkaClient{
		logger:    logger,
		brokers:   brokerList,
		batchSize: batchSize,
	}

	if groupID != "" {
		consumer, err := sarama.NewConsumerGroup(brokerList, groupID, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer group: %w", err)
		}
		client.consumer = consumer
	}

	producer, err := sarama.NewSyncProducer(brokerList, config)
	if err != nil {
		if client.consumer != nil {
			client.consumer.Close()
		}
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	client.producer = producer

	logger.Info("Kafka client initialized", "brokers", brokerList, "group_id", groupID, "batch_size", batchSize)
	return client, nil
}

// Consumer bloqueia consumindo o tópico até ctx ser cancelado.
func (k *KafkaClient) Consumer(ctx context.Context, handler Handler, topic string) error {
	if k.consumer == nil {
		return errors.New("kafka client created without consumer group")
	}

	consumerHandler := &consumerGroupHandler{
		logger:    k.logger,
		handler:   handler,
		batchSize: k.batchSize,
	}

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("Kafka consumer context cancelled", "topic", topic)
			return nil
		default:
			if err := k.consumer.Consume(ctx, []string{topic}, consumerHandler); err != nil {
				k.logger.Error("Error consuming from topic", "topic", topic, "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(5 * time.Second):
				}
			}
		}
	}
}

func (k *KafkaClient) Producer(messages []Message, topic string) error {
	if len(messages) == 0 {
		return nil
	}

	producerMessages := make([]*sarama.ProducerMessage, len(messages))
	for i, msg := range messages {
		producerMessages[i] = &sarama.ProducerMessage{
			Topic:   topic,
			Key:     sarama.StringEncoder(msg.Key),
			Value:   sarama.ByteEncoder(msg.Value),
			Headers: toRecordHeaders(msg.Headers),
		}
	}

	if err := k.producer.SendMessages(producerMessages); err != nil {
		var producerErrors sarama.ProducerErrors
		if errors.As(err, &producerErrors) {
			k.logger.Error("Batch completed with errors", "topic", topic, "failed", len(producerErrors), "total", len(messages))
			return fmt.Errorf("batch send failed: %d/%d messages failed: %w", len(producerErrors), len(messages), err)
		}
		return fmt.Errorf("batch send failed: %w", err)
	}

	k.logger.Debug("Batch sent", "topic", topic, "messages", len(messages))
	return nil
}

func (k *KafkaClient) Close() error {
	var errs []error

	if k.consumer != nil {
		if err := k.consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
		}
	}

	if err := k.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}

	return errors.Join(errs...)
}

func toRecordHeaders(headers map[string]string) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}

	records := make([]sarama.RecordHeader, 0, len(headers))
	for key, value := range headers {
		records = append(records, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}
	return records
}

func fromRecordHeaders(headers []*sarama.RecordHeader) map[string]string {
	if len(headers) == 0 {
		return nil
	}

	result := make(map[string]string, len(headers))
	for _, header := range headers {
		if header == nil {
			continue
		}
		result[string(header.Key)] = string(header.Value)
	}
	return result
}

// consumerGroupHandler implementa sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	logger    *slog.Logger
	handler   Handler
	batchSize int
}

func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session setup", "member_id", session.MemberID())
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session cleanup")
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	h.logger.Debug("Starting partition consumer", "topic", claim.Topic(), "partition", claim.Partition())

	messages := make([]Message, 0, h.batchSize)
	timer := time.NewTimer(batchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(messages) > 0 {
			h.processBatch(session, messages)
			messages = messages[:0]
		}
	}

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				flush()
				return nil
			}

			messages = append(messages, Message{
				Key:      string(message.Key),
				Value:    message.Value,
				Headers:  fromRecordHeaders(message.Headers),
				internal: message,
			})

			if len(messages) >= h.batchSize {
				flush()
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(batchTimeout)

		case <-session.Context().Done():
			flush()
			return nil
		}
	}
}

func (h *consumerGroupHandler) processBatch(session sarama.ConsumerGroupSession, messages []Message) {
	if err := h.handler(session.Context(), messages); err != nil {
		// Sem MarkMessage: o lote volta no próximo rebalance.
		h.logger.Error("Handler error for batch", "messages", len(messages), "error", err)
		return
	}

	for _, msg := range messages {
		if msg.internal != nil {
			session.MarkMessage(msg.internal, "")
		}
	}

	h.logger.Debug("Processed batch", "messages", len(messages))
}
