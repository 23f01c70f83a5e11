package repositories_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/infra/memgraph"
	"lineageconsolidator/src/repositories"
)

// seedMainGraph monta a cadeia a -> sp1 -> b -> sp2 -> c, com a na tabela t e b com o termo g.
func seedMainGraph(ctx context.Context, graph *memgraph.Graph) {
	tx, err := graph.Begin(ctx)
	Expect(err).NotTo(HaveOccurred())

	vertices := []*entities.Vertex{
		entities.NewVertex("a", domain.MainLabelColumn),
		entities.NewVertex("sp1", domain.MainLabelSubProcess),
		entities.NewVertex("b", domain.MainLabelColumn),
		entities.NewVertex("sp2", domain.MainLabelSubProcess),
		entities.NewVertex("c", domain.MainLabelColumn),
		entities.NewVertex("t", domain.MainLabelTable),
		entities.NewVertex("g", domain.MainLabelGlossaryTerm),
	}
	for _, vertex := range vertices {
		_, err := tx.CreateVertex(ctx, vertex)
		Expect(err).NotTo(HaveOccurred())
	}

	link := func(from string, label string, to string) {
		key := entities.MainEdgeKey(entities.NodeID(from), label, entities.NodeID(to))
		_, err := tx.CreateEdge(ctx, entities.NewEdge(key, label, from, to))
		Expect(err).NotTo(HaveOccurred())
	}
	link("a", domain.MainEdgeDataFlowWithProcess, "sp1")
	link("sp1", domain.MainEdgeDataFlowWithProcess, "b")
	link("b", domain.MainEdgeDataFlowWithProcess, "sp2")
	link("sp2", domain.MainEdgeDataFlowWithProcess, "c")
	link("a", domain.MainEdgeIncludedIn, "t")
	link("b", domain.MainEdgeSemanticAssignment, "g")

	Expect(tx.Commit(ctx)).To(Succeed())
}

func vertexKeys(lineage *domain.LineageGraph) []string {
	keys := make([]string, len(lineage.Vertices))
	for i, vertex := range lineage.Vertices {
		keys[i] = vertex.Key
	}
	return keys
}

var _ = Describe("LineageQueryRepository", func() {
	var (
		ctx        context.Context
		repository *repositories.LineageQueryRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		graph := memgraph.New("main")
		seedMainGraph(ctx, graph)
		repository = repositories.NewLineageQueryRepository(graph)
	})

	It("walks downstream with the containers and terms of each node", func() {
		// ACT
		lineage, err := repository.QueryLineage(ctx, "a", domain.DirectionDownstream, repositories.DefaultLineageDepth)

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(lineage.RootID).To(Equal("a"))
		Expect(vertexKeys(lineage)).To(ConsistOf("a", "sp1", "b", "sp2", "c", "t", "g"))
		Expect(lineage.Edges).To(HaveLen(6))
	})

	It("walks upstream only against the data flow", func() {
		// ACT
		lineage, err := repository.QueryLineage(ctx, "b", domain.DirectionUpstream, repositories.DefaultLineageDepth)

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(vertexKeys(lineage)).To(ConsistOf("b", "g", "sp1", "a", "t"))
	})

	It("walks both ways from the middle of the chain", func() {
		lineage, err := repository.QueryLineage(ctx, "sp2", domain.DirectionBoth, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(vertexKeys(lineage)).To(ConsistOf("a", "sp1", "b", "sp2", "c", "t", "g"))
	})

	It("stops at the requested depth", func() {
		// ACT
		lineage, err := repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 1)

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(vertexKeys(lineage)).To(ConsistOf("a", "t", "sp1"))
	})

	It("reports a missing root as not found", func() {
		_, err := repository.QueryLineage(ctx, "missing", domain.DirectionBoth, 1)

		Expect(err).To(MatchError(domain.ErrEntityNotFound))
	})
})
