package buffer

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/services/mapper"
)

type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota
	UpsertUpdated
	UpsertUnchanged
)

type endpointPair struct {
	from string
	to   string
}

// Ingest grava os fatos de um evento de lineage no grafo buffer.
// Cada vértice e cada aresta é gravado na sua própria transação; falhas de um fato são logadas
// e não impedem os demais, mas o evento volta com erro para a origem reentregar.
func (s *BufferService) Ingest(ctx context.Context, event entities.LineageEvent) (IngestReport, error) {
	if len(event.Contexts) == 0 {
		return IngestReport{}, fmt.Errorf("lineage event must contain at least one graph context")
	}

	contexts := dedupeByEndpoints(event.Contexts)
	report := IngestReport{Facts: len(contexts)}

	for _, graphContext := range contexts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fromOK := s.ingestVertex(ctx, graphContext.FromVertex, &report)
		toOK := s.ingestVertex(ctx, graphContext.ToVertex, &report)

		if !fromOK || !toOK {
			s.logger.Warn("Skipping edge with unavailable endpoint",
				"event_id", event.EventID,
				"relationship_guid", graphContext.RelationshipGUID,
				"from_guid", graphContext.FromVertex.GUID,
				"to_guid", graphContext.ToVertex.GUID)
			report.Rejected++
			continue
		}

		s.ingestEdge(ctx, graphContext, &report)
	}

	s.logger.Debug("Lineage event ingested",
		"event_id", event.EventID,
		"facts", report.Facts,
		"vertices_created", report.VerticesCreated,
		"vertices_updated", report.VerticesUpdated,
		"edges_created", report.EdgesCreated,
		"duplicates", report.Duplicates,
		"rejected", report.Rejected,
		"failures", report.Failures)

	// Qualquer falha do store devolve erro para o evento ser reentregue; os fatos já gravados
	// viram duplicatas na reentrega.
	if report.Failures > 0 {
		return report, fmt.Errorf("BufferService.Ingest - %d of %d facts of event %q could not be stored: %w", report.Failures, report.Facts, event.EventID, domain.ErrStoreTransactionFailure)
	}

	return report, nil
}

// dedupeByEndpoints mantém apenas o primeiro fato por par (from, to) dentro do evento.
func dedupeByEndpoints(contexts []entities.GraphContext) []entities.GraphContext {
	seen := make(map[endpointPair]bool, len(contexts))
	result := make([]entities.GraphContext, 0, len(contexts))

	for _, graphContext := range contexts {
		pair := endpointPair{from: graphContext.FromVertex.GUID, to: graphContext.ToVertex.GUID}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		result = append(result, graphContext)
	}

	return result
}

func (s *BufferService) ingestVertex(ctx context.Context, entity entities.LineageEntity, report *IngestReport) bool {
	outcome, err := s.UpsertVertex(ctx, entity)
	if err != nil {
		if errors.Is(err, domain.ErrMissingMandatoryAttribute) {
			s.logger.Warn("Rejected lineage entity", "guid", entity.GUID, "type", entity.TypeDefName, "error", err)
			report.Rejected++
		} else {
			s.logger.Error("Failed to upsert buffer vertex", "guid", entity.GUID, "type", entity.TypeDefName, "error", err)
			report.Failures++
		}
		return false
	}

	switch outcome {
	case UpsertCreated:
		report.VerticesCreated++
	case UpsertUpdated:
		report.VerticesUpdated++
	default:
		report.Duplicates++
	}
	return true
}

func (s *BufferService) ingestEdge(ctx context.Context, graphContext entities.GraphContext, report *IngestReport) {
	created, err := s.UpsertEdge(ctx, graphContext)
	if err != nil {
		if errors.Is(err, domain.ErrMissingMandatoryAttribute) {
			s.logger.Warn("Rejected lineage relationship",
				"relationship_guid", graphContext.RelationshipGUID,
				"relationship_type", graphContext.RelationshipType,
				"error", err)
			report.Rejected++
			return
		}
		s.logger.Error("Failed to upsert buffer edge",
			"relationship_guid", graphContext.RelationshipGUID,
			"relationship_type", graphContext.RelationshipType,
			"error", err)
		report.Failures++
		return
	}

	if created {
		report.EdgesCreated++
		return
	}
	report.Duplicates++
}

// UpsertVertex cria o vértice do guid ou, quando a versão recebida não é mais velha, remapeia o
// existente. Versão antiga ou conteúdo idêntico é um no-op com rollback.
func (s *BufferService) UpsertVertex(ctx context.Context, entity entities.LineageEntity) (UpsertOutcome, error) {
	if err := mapper.ValidateEntity(entity); err != nil {
		return UpsertUnchanged, err
	}

	unlock := s.locks.Lock("vertex:" + entity.GUID)
	defer unlock()

	tx, err := s.graph.Begin(ctx)
	if err != nil {
		return UpsertUnchanged, err
	}
	defer tx.Rollback(ctx)

	existing, err := tx.FindVertex(ctx, entity.GUID)
	if err != nil && !errors.Is(err, domain.ErrVertexNotFound) {
		return UpsertUnchanged, err
	}

	if existing == nil {
		vertex := entities.NewVertex(entity.GUID, entity.TypeDefName)
		if err := mapper.MapEntity(entity, vertex); err != nil {
			return UpsertUnchanged, err
		}

		created, err := tx.CreateVertex(ctx, vertex)
		if err != nil {
			return UpsertUnchanged, err
		}
		if !created {
			return UpsertUnchanged, nil
		}

		if err := tx.Commit(ctx); err != nil {
			return UpsertUnchanged, err
		}
		return UpsertCreated, nil
	}

	if entity.Version < mapper.StoredVersion(existing) {
		return UpsertUnchanged, nil
	}

	updated := existing.Clone()
	if err := mapper.MapEntity(entity, updated); err != nil {
		return UpsertUnchanged, err
	}

	if updated.Label == existing.Label && maps.Equal(updated.Properties, existing.Properties) {
		return UpsertUnchanged, nil
	}

	if err := tx.UpdateVertex(ctx, updated); err != nil {
		return UpsertUnchanged, err
	}
	if err := tx.Commit(ctx); err != nil {
		return UpsertUnchanged, err
	}

	return UpsertUpdated, nil
}

// UpsertEdge cria a aresta do relationshipGuid; se já existe, é um no-op com rollback.
func (s *BufferService) UpsertEdge(ctx context.Context, graphContext entities.GraphContext) (bool, error) {
	edge, err := mapper.MapEdge(graphContext)
	if err != nil {
		return false, err
	}

	unlock := s.locks.Lock("edge:" + edge.Key)
	defer unlock()

	tx, err := s.graph.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.FindEdge(ctx, edge.Key); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrEdgeNotFound) {
		return false, err
	}

	created, err := tx.CreateEdge(ctx, edge)
	if err != nil || !created {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
