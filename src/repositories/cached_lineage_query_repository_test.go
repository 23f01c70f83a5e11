package repositories_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/repositories"
)

type fakeLineageCache struct {
	mu      sync.Mutex
	values  map[string]string
	members map[string][]string
	getErr  error
}

func newFakeLineageCache() *fakeLineageCache {
	return &fakeLineageCache{values: make(map[string]string), members: make(map[string][]string)}
}

func (f *fakeLineageCache) GetKey(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	value, ok := f.values[key]
	return value, ok, nil
}

func (f *fakeLineageCache) SetWithRegistry(ctx context.Context, cacheKey string, cacheValue string, registryKeys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[cacheKey] = cacheValue
	for _, registryKey := range registryKeys {
		f.members[registryKey] = append(f.members[registryKey], cacheKey)
	}
	return nil
}

func (f *fakeLineageCache) GetMultipleSetMembers(ctx context.Context, keys []string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string][]string, len(keys))
	for _, key := range keys {
		result[key] = f.members[key]
	}
	return result, nil
}

func (f *fakeLineageCache) InvalidateKeys(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
		delete(f.members, key)
	}
	return nil
}

func (f *fakeLineageCache) size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values)
}

type countingQuerier struct {
	calls int
	graph *domain.LineageGraph
	err   error
}

func (q *countingQuerier) QueryLineage(ctx context.Context, rootID string, direction domain.LineageDirection, depth int) (*domain.LineageGraph, error) {
	q.calls++
	return q.graph, q.err
}

var _ = Describe("CachedLineageQueryRepository", func() {
	var (
		ctx        context.Context
		cache      *fakeLineageCache
		querier    *countingQuerier
		repository *repositories.CachedLineageQueryRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		cache = newFakeLineageCache()
		querier = &countingQuerier{graph: &domain.LineageGraph{
			RootID: "a",
			Vertices: []entities.Vertex{
				*entities.NewVertex("a", domain.MainLabelColumn),
				*entities.NewVertex("sp1", domain.MainLabelSubProcess),
			},
			Edges: []entities.Edge{
				*entities.NewEdge("a|data-flows-with-process|sp1", domain.MainEdgeDataFlowWithProcess, "a", "sp1"),
			},
		}}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		repository = repositories.NewCachedLineageQueryRepository(logger, querier, cache).WithSyncWrites()
	})

	It("serves the second read from the cache", func() {
		// ACT
		first, err := repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)
		Expect(err).NotTo(HaveOccurred())
		second, err := repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)
		Expect(err).NotTo(HaveOccurred())

		// ASSERT
		Expect(querier.calls).To(Equal(1))
		Expect(second.RootID).To(Equal(first.RootID))
		Expect(vertexKeys(second)).To(Equal(vertexKeys(first)))
		Expect(second.Edges).To(HaveLen(1))
	})

	It("keeps direction and depth apart in the cache key", func() {
		_, _ = repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)
		_, _ = repository.QueryLineage(ctx, "a", domain.DirectionUpstream, 3)
		_, _ = repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 4)

		Expect(querier.calls).To(Equal(3))
		Expect(cache.size()).To(Equal(3))
	})

	It("falls back to the store when the cache fails", func() {
		cache.getErr = errors.New("connection refused")

		lineage, err := repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)

		Expect(err).NotTo(HaveOccurred())
		Expect(lineage.RootID).To(Equal("a"))
	})

	It("does not cache errors", func() {
		querier.err = domain.ErrEntityNotFound

		_, err := repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)

		Expect(err).To(MatchError(domain.ErrEntityNotFound))
		Expect(cache.size()).To(BeZero())
	})

	Context("InvalidateNodes", func() {
		It("drops every cached read that contains one of the nodes", func() {
			// ARRANGE
			_, _ = repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)
			_, _ = repository.QueryLineage(ctx, "a", domain.DirectionBoth, 3)
			Expect(cache.size()).To(Equal(2))

			// ACT
			err := repository.InvalidateNodes(ctx, []string{"sp1"})

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(cache.size()).To(BeZero())

			_, _ = repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)
			Expect(querier.calls).To(Equal(3))
		})

		It("ignores nodes that were never cached", func() {
			_, _ = repository.QueryLineage(ctx, "a", domain.DirectionDownstream, 3)

			Expect(repository.InvalidateNodes(ctx, []string{"unknown"})).To(Succeed())
			Expect(cache.size()).To(Equal(1))
		})
	})
})
