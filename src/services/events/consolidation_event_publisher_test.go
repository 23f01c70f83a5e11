package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/infra/kafka"
	"lineageconsolidator/src/services/events"
)

type fakeProducer struct {
	topic    string
	messages []kafka.Message
	err      error
}

func (f *fakeProducer) Producer(messages []kafka.Message, topic string) error {
	f.topic = topic
	f.messages = append(f.messages, messages...)
	return f.err
}

var _ = Describe("ConsolidationEventPublisher", func() {
	var (
		producer  *fakeProducer
		publisher *events.ConsolidationEventPublisher
	)

	BeforeEach(func() {
		producer = &fakeProducer{}
		publisher = events.NewConsolidationEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)), producer, "lineage.consolidated")
	})

	It("publishes one message per event keyed by the process guid", func() {
		// ARRANGE
		consolidated := []domain.ConsolidatedEvent{
			{EventID: "e1", ProcessGUID: "p1", SubProcessID: "s1", ColumnInGUID: "c1", ColumnOutGUID: "c2", TablesResolved: true},
			{EventID: "e2", ProcessGUID: "p1", SubProcessID: "s2", ColumnInGUID: "c3", ColumnOutGUID: "c4"},
		}

		// ACT
		err := publisher.PublishConsolidated(context.Background(), consolidated)

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(producer.topic).To(Equal("lineage.consolidated"))
		Expect(producer.messages).To(HaveLen(2))

		first := producer.messages[0]
		Expect(first.Key).To(Equal("p1"))
		Expect(first.Headers).To(HaveKeyWithValue("event_type", events.EventTypeLineageConsolidated))
		Expect(first.Headers).To(HaveKeyWithValue("event_id", "e1"))
		Expect(first.Headers).To(HaveKeyWithValue("tables_resolved", "true"))
		Expect(producer.messages[1].Headers).To(HaveKeyWithValue("tables_resolved", "false"))

		var decoded domain.ConsolidatedEvent
		Expect(json.Unmarshal(first.Value, &decoded)).To(Succeed())
		Expect(decoded).To(Equal(consolidated[0]))
	})

	It("does not call the producer without events", func() {
		Expect(publisher.PublishConsolidated(context.Background(), nil)).To(Succeed())

		Expect(producer.messages).To(BeEmpty())
	})

	It("returns the producer error", func() {
		producer.err = errors.New("leader not available")

		err := publisher.PublishConsolidated(context.Background(), []domain.ConsolidatedEvent{{EventID: "e1", ProcessGUID: "p1"}})

		Expect(err).To(MatchError(ContainSubstring("leader not available")))
	})
})
