package consumers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lineageconsolidator/src/adapters/kafka/consumers"
	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/infra/kafka"
	"lineageconsolidator/src/services/buffer"
	"lineageconsolidator/src/test_artefacts/stubs"
)

type recordingIngester struct {
	events []entities.LineageEvent
	err    error
}

func (r *recordingIngester) Ingest(ctx context.Context, event entities.LineageEvent) (buffer.IngestReport, error) {
	r.events = append(r.events, event)
	return buffer.IngestReport{Facts: len(event.Contexts)}, r.err
}

var _ = Describe("LineageEventsConsumer", func() {
	var (
		ctx      context.Context
		ingester *recordingIngester
		consumer *consumers.LineageEventsConsumer
	)

	message := func(key string, event entities.LineageEvent) kafka.Message {
		value, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())
		return kafka.Message{Key: key, Value: value}
	}

	BeforeEach(func() {
		ctx = context.Background()
		ingester = &recordingIngester{}
		consumer = consumers.NewLineageEventsConsumer(slog.New(slog.NewTextHandler(io.Discard, nil)), ingester)
	})

	It("ingests every event of the batch", func() {
		// ARRANGE
		first := stubs.NewLineageScenarioStub().Get().Event()
		second := stubs.NewLineageScenarioStub().Get().Event()

		// ACT
		err := consumer.HandleMessages(ctx, []kafka.Message{message("k1", first), message("k2", second)})

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(ingester.events).To(HaveLen(2))
		Expect(ingester.events[0].EventID).To(Equal(first.EventID))
		Expect(ingester.events[1].Contexts).To(HaveLen(len(second.Contexts)))
	})

	It("uses the message key when the event has no id", func() {
		event := stubs.NewLineageScenarioStub().Get().Event()
		event.EventID = ""

		Expect(consumer.HandleMessages(ctx, []kafka.Message{message("message-key", event)})).To(Succeed())

		Expect(ingester.events[0].EventID).To(Equal("message-key"))
	})

	It("discards malformed messages and keeps going", func() {
		// ARRANGE
		valid := message("k2", stubs.NewLineageScenarioStub().Get().Event())

		// ACT
		err := consumer.HandleMessages(ctx, []kafka.Message{{Key: "k1", Value: []byte("not json")}, valid})

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(ingester.events).To(HaveLen(1))
	})

	It("discards events the ingester refuses", func() {
		ingester.err = errors.New("lineage event must contain at least one graph context")

		err := consumer.HandleMessages(ctx, []kafka.Message{message("k1", entities.LineageEvent{})})

		Expect(err).NotTo(HaveOccurred())
	})

	It("fails the batch when the store is unavailable so it is delivered again", func() {
		ingester.err = domain.StoreError("BufferService.Ingest", errors.New("connection refused"))

		err := consumer.HandleMessages(ctx, []kafka.Message{message("k1", stubs.NewLineageScenarioStub().Get().Event())})

		Expect(err).To(MatchError(domain.ErrStoreTransactionFailure))
	})

	It("fails the batch when the ingestion deadline expires", func() {
		// ARRANGE
		ingester.err = fmt.Errorf("BufferService.Ingest - begin: %w", context.DeadlineExceeded)
		first := message("k1", stubs.NewLineageScenarioStub().Get().Event())
		second := message("k2", stubs.NewLineageScenarioStub().Get().Event())

		// ACT
		err := consumer.HandleMessages(ctx, []kafka.Message{first, second})

		// ASSERT
		Expect(err).To(MatchError(context.DeadlineExceeded))
		Expect(ingester.events).To(HaveLen(1))
	})
})
