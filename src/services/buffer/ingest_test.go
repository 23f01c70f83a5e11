package buffer_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/infra/memgraph"
	"lineageconsolidator/src/services/buffer"
	"lineageconsolidator/src/test_artefacts/stubs"
)

var _ = Describe("BufferService", func() {
	var (
		ctx     context.Context
		graph   *memgraph.Graph
		service *buffer.BufferService
	)

	findVertex := func(key string) *entities.Vertex {
		tx, err := graph.Begin(ctx)
		Expect(err).NotTo(HaveOccurred())
		defer tx.Rollback(ctx)

		vertex, err := tx.FindVertex(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		return vertex
	}

	BeforeEach(func() {
		ctx = context.Background()
		graph = memgraph.New("buffer")
		service = buffer.NewBufferService(slog.New(slog.NewTextHandler(io.Discard, nil)), graph)
	})

	Context("Ingest", func() {
		It("mirrors every vertex and edge of the event", func() {
			// ARRANGE
			scenario := stubs.NewLineageScenarioStub().Get()

			// ACT
			report, err := service.Ingest(ctx, scenario.Event())

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Facts).To(Equal(len(scenario.Contexts)))
			Expect(report.EdgesCreated).To(Equal(len(scenario.Contexts)))
			Expect(report.VerticesCreated).To(Equal(17))
			Expect(report.Rejected).To(BeZero())
			Expect(report.Failures).To(BeZero())

			Expect(graph.VertexCount()).To(Equal(17))
			Expect(graph.EdgeCount()).To(Equal(18))

			column := findVertex(scenario.SourceColumns[0].GUID)
			Expect(column.Label).To(Equal(domain.LabelRelationalColumn))
			Expect(column.Properties).To(HaveKeyWithValue(domain.PropGUID, scenario.SourceColumns[0].GUID))
			Expect(column.Properties).To(HaveKeyWithValue(domain.PropDisplayName, "source-column-0"))
		})

		It("is idempotent when the same event arrives twice", func() {
			// ARRANGE
			event := stubs.NewLineageScenarioStub().WithColumns(2).Get().Event()
			_, err := service.Ingest(ctx, event)
			Expect(err).NotTo(HaveOccurred())
			vertices, edges := graph.VertexCount(), graph.EdgeCount()

			// ACT
			report, err := service.Ingest(ctx, event)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.VerticesCreated).To(BeZero())
			Expect(report.VerticesUpdated).To(BeZero())
			Expect(report.EdgesCreated).To(BeZero())
			Expect(graph.VertexCount()).To(Equal(vertices))
			Expect(graph.EdgeCount()).To(Equal(edges))
		})

		It("keeps only the first fact per pair of endpoints", func() {
			// ARRANGE
			first := stubs.NewGraphContextStub().Get()
			second := stubs.NewGraphContextStub().
				WithFrom(first.FromVertex).
				WithTo(first.ToVertex).
				WithRelationshipType(domain.EdgeSemanticAssignment).
				Get()

			// ACT
			report, err := service.Ingest(ctx, entities.LineageEvent{Contexts: []entities.GraphContext{first, second}})

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Facts).To(Equal(1))
			Expect(graph.Edges()).To(HaveLen(1))
			Expect(graph.Edges()[0].Label).To(Equal(domain.EdgeLineageMapping))
		})

		It("rejects facts with missing mandatory attributes without aborting the others", func() {
			// ARRANGE
			valid := stubs.NewGraphContextStub().Get()
			withoutGUID := stubs.NewGraphContextStub().WithFrom(stubs.NewLineageEntityStub().WithGUID("").Get()).Get()
			withoutType := stubs.NewGraphContextStub().WithTo(stubs.NewLineageEntityStub().WithType("").Get()).Get()
			withoutRelationship := stubs.NewGraphContextStub().WithRelationshipGUID("").Get()

			// ACT
			report, err := service.Ingest(ctx, entities.LineageEvent{
				Contexts: []entities.GraphContext{withoutGUID, valid, withoutType, withoutRelationship},
			})

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Facts).To(Equal(4))
			Expect(report.EdgesCreated).To(Equal(1))
			Expect(report.Failures).To(BeZero())
			// guid ausente e tipo ausente: vértice rejeitado + aresta pulada
			Expect(report.Rejected).To(Equal(5))

			Expect(graph.Edges()).To(HaveLen(1))
			Expect(graph.Edges()[0].Key).To(Equal(valid.RelationshipGUID))
		})

		It("fails the event when some facts could not be stored", func() {
			// ARRANGE
			failing := buffer.NewBufferService(slog.New(slog.NewTextHandler(io.Discard, nil)), edgeFailingGraph{Graph: graph})
			scenario := stubs.NewLineageScenarioStub().Get()

			// ACT
			report, err := failing.Ingest(ctx, scenario.Event())

			// ASSERT
			Expect(err).To(MatchError(domain.ErrStoreTransactionFailure))
			Expect(report.VerticesCreated).To(Equal(17))
			Expect(report.EdgesCreated).To(BeZero())
			Expect(report.Failures).To(Equal(len(scenario.Contexts)))

			// a reentrega completa o que faltou
			report, err = service.Ingest(ctx, scenario.Event())
			Expect(err).NotTo(HaveOccurred())
			Expect(report.EdgesCreated).To(Equal(len(scenario.Contexts)))
			Expect(graph.VertexCount()).To(Equal(17))
			Expect(graph.EdgeCount()).To(Equal(18))
		})

		It("refuses an event without graph contexts", func() {
			_, err := service.Ingest(ctx, entities.LineageEvent{})

			Expect(err).To(HaveOccurred())
		})

		It("stops when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := service.Ingest(cancelled, stubs.NewLineageScenarioStub().Get().Event())

			Expect(err).To(MatchError(context.Canceled))
			Expect(graph.VertexCount()).To(BeZero())
		})
	})

	Context("UpsertVertex", func() {
		var (
			entity    entities.LineageEntity
			updatedBy string
		)

		BeforeEach(func() {
			updatedBy = "etl-user"
			entity = stubs.NewLineageEntityStub().WithVersion(2).WithUpdatedBy(&updatedBy).Get()

			outcome, err := service.UpsertVertex(ctx, entity)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(buffer.UpsertCreated))
		})

		It("clears an audit field that arrives null in a newer version", func() {
			// ARRANGE
			newer := stubs.NewLineageEntityStub().WithGUID(entity.GUID).WithVersion(3).WithUpdatedBy(nil).Get()

			// ACT
			outcome, err := service.UpsertVertex(ctx, newer)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(buffer.UpsertUpdated))
			vertex := findVertex(entity.GUID)
			Expect(vertex.Properties).NotTo(HaveKey(domain.PropUpdatedBy))
			Expect(vertex.Properties).To(HaveKeyWithValue(domain.PropVersion, "3"))
		})

		It("clears an audit field that arrives null in the same version", func() {
			// ARRANGE
			same := entity
			same.UpdatedBy = nil

			// ACT
			outcome, err := service.UpsertVertex(ctx, same)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(buffer.UpsertUpdated))
			Expect(findVertex(entity.GUID).Properties).NotTo(HaveKey(domain.PropUpdatedBy))
		})

		It("ignores an older version", func() {
			// ARRANGE
			older := stubs.NewLineageEntityStub().WithGUID(entity.GUID).WithVersion(1).WithType(domain.LabelRelationalTable).Get()

			// ACT
			outcome, err := service.UpsertVertex(ctx, older)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(buffer.UpsertUnchanged))
			vertex := findVertex(entity.GUID)
			Expect(vertex.Label).To(Equal(domain.LabelRelationalColumn))
			Expect(vertex.Properties).To(HaveKeyWithValue(domain.PropUpdatedBy, "etl-user"))
		})

		It("reports identical content as unchanged", func() {
			outcome, err := service.UpsertVertex(ctx, entity)

			Expect(err).NotTo(HaveOccurred())
			Expect(outcome).To(Equal(buffer.UpsertUnchanged))
		})
	})

	Context("UpsertEdge", func() {
		It("rejects an edge without relationshipGuid", func() {
			graphContext := stubs.NewGraphContextStub().WithRelationshipGUID("").Get()

			_, err := service.UpsertEdge(ctx, graphContext)

			Expect(err).To(MatchError(domain.ErrMissingMandatoryAttribute))
		})

		It("does not create an edge whose endpoints are not stored", func() {
			_, err := service.UpsertEdge(ctx, stubs.NewGraphContextStub().Get())

			Expect(err).To(MatchError(domain.ErrVertexNotFound))
			Expect(graph.EdgeCount()).To(BeZero())
		})
	})
})
