package buffer

import (
	"log/slog"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/helper/keylock"
)

// BufferService mantém o grafo buffer: espelho um-para-um dos fatos de lineage ingeridos.
type BufferService struct {
	logger *slog.Logger
	graph  domain.PropertyGraph
	locks  *keylock.KeyedMutex
}

func NewBufferService(logger *slog.Logger, graph domain.PropertyGraph) *BufferService {
	return &BufferService{
		logger: logger,
		graph:  graph,
		locks:  keylock.New(),
	}
}

// IngestReport resume o efeito de um evento de lineage no grafo buffer.
type IngestReport struct {
	Facts           int `json:"facts"`
	VerticesCreated int `json:"vertices_created"`
	VerticesUpdated int `json:"vertices_updated"`
	EdgesCreated    int `json:"edges_created"`
	Duplicates      int `json:"duplicates"`
	Rejected        int `json:"rejected"`
	Failures        int `json:"failures"`
}
