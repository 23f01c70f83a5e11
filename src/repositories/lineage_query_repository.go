package repositories

import (
	"context"
	"errors"
	"fmt"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
)

const (
	DefaultLineageDepth = 5
	MaxLineageDepth     = 50
)

// LineageQuerier é implementado pelo repositório direto e pelo cacheado.
type LineageQuerier interface {
	QueryLineage(ctx context.Context, rootID string, direction domain.LineageDirection, depth int) (*domain.LineageGraph, error)
}

// LineageQueryRepository lê o grafo main a partir de um nó, seguindo data-flows-with-process
// na direção pedida. Contêineres (included-in) e termos de glossário dos nós visitados vêm junto,
// sem expandir a busca.
type LineageQueryRepository struct {
	graph domain.PropertyGraph
}

func NewLineageQueryRepository(graph domain.PropertyGraph) *LineageQueryRepository {
	return &LineageQueryRepository{graph: graph}
}

type lineageCollector struct {
	graph    *domain.LineageGraph
	vertices map[string]bool
	edges    map[string]bool
}

func (c *lineageCollector) addVertex(vertex *entities.Vertex) bool {
	if c.vertices[vertex.Key] {
		return false
	}
	c.vertices[vertex.Key] = true
	c.graph.Vertices = append(c.graph.Vertices, *vertex)
	return true
}

func (c *lineageCollector) addEdge(edge *entities.Edge) {
	if c.edges[edge.Key] {
		return
	}
	c.edges[edge.Key] = true
	c.graph.Edges = append(c.graph.Edges, *edge)
}

func (r *LineageQueryRepository) QueryLineage(ctx context.Context, rootID string, direction domain.LineageDirection, depth int) (*domain.LineageGraph, error) {
	if depth <= 0 {
		depth = DefaultLineageDepth
	}
	if depth > MaxLineageDepth {
		depth = MaxLineageDepth
	}

	tx, err := r.graph.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	root, err := tx.FindVertex(ctx, rootID)
	if errors.Is(err, domain.ErrVertexNotFound) {
		return nil, fmt.Errorf("LineageQueryRepository.QueryLineage - node %q: %w", rootID, domain.ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}

	collector := &lineageCollector{
		graph:    &domain.LineageGraph{RootID: rootID},
		vertices: make(map[string]bool),
		edges:    make(map[string]bool),
	}
	collector.addVertex(root)

	frontier := []string{root.Key}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string

		for _, key := range frontier {
			if err := r.collectContext(ctx, tx, key, collector); err != nil {
				return nil, err
			}

			for _, edgeDirection := range edgeDirectionsFor(direction) {
				edges, err := tx.Edges(ctx, key, edgeDirection, domain.MainEdgeDataFlowWithProcess)
				if err != nil {
					return nil, err
				}

				for _, edge := range edges {
					collector.addEdge(edge)

					neighborKey := edge.ToKey
					if edgeDirection == domain.In {
						neighborKey = edge.FromKey
					}

					neighbor, err := tx.FindVertex(ctx, neighborKey)
					if err != nil {
						return nil, err
					}
					if collector.addVertex(neighbor) {
						next = append(next, neighbor.Key)
					}
				}
			}
		}

		frontier = next
	}

	// A última camada também ganha seus contêineres.
	for _, key := range frontier {
		if err := r.collectContext(ctx, tx, key, collector); err != nil {
			return nil, err
		}
	}

	return collector.graph, nil
}

func (r *LineageQueryRepository) collectContext(ctx context.Context, tx domain.GraphTx, key string, collector *lineageCollector) error {
	edges, err := tx.Edges(ctx, key, domain.Out, domain.MainEdgeIncludedIn, domain.MainEdgeSemanticAssignment)
	if err != nil {
		return err
	}

	for _, edge := range edges {
		target, err := tx.FindVertex(ctx, edge.ToKey)
		if err != nil {
			return err
		}
		collector.addVertex(target)
		collector.addEdge(edge)
	}
	return nil
}

func edgeDirectionsFor(direction domain.LineageDirection) []domain.Direction {
	switch direction {
	case domain.DirectionUpstream:
		return []domain.Direction{domain.In}
	case domain.DirectionDownstream:
		return []domain.Direction{domain.Out}
	default:
		return []domain.Direction{domain.In, domain.Out}
	}
}
