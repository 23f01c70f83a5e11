package lineage

import (
	"context"
	"fmt"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/repositories"
)

type LineageService struct {
	repository repositories.LineageQuerier
}

func NewLineageService(repository repositories.LineageQuerier) *LineageService {
	return &LineageService{repository: repository}
}

// GetLineage devolve o subgrafo do grafo main alcançável a partir do nó.
func (s *LineageService) GetLineage(ctx context.Context, nodeID string, direction domain.LineageDirection, depth int) (*domain.LineageGraph, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("LineageService.GetLineage - node id is required: %w", domain.ErrEntityNotFound)
	}

	lineage, err := s.repository.QueryLineage(ctx, nodeID, direction, depth)
	if err != nil {
		return nil, fmt.Errorf("LineageService.GetLineage - failed to query lineage of %q: %w", nodeID, err)
	}

	return lineage, nil
}
