package http

import (
	"time"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/services/buffer"
)

type LineageNodeDTO struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type LineageEdgeDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type LineageGraphDTO struct {
	RootID string            `json:"root_id"`
	Nodes  []*LineageNodeDTO `json:"nodes"`
	Edges  []*LineageEdgeDTO `json:"edges"`
}

type IngestResponseDTO struct {
	EventID string              `json:"event_id"`
	Report  buffer.IngestReport `json:"report"`
}

type SweepResponseDTO struct {
	Report domain.SweepReport `json:"report"`
}

func MapLineageToResponse(lineage *domain.LineageGraph) *LineageGraphDTO {
	response := &LineageGraphDTO{
		RootID: lineage.RootID,
		Nodes:  make([]*LineageNodeDTO, 0, len(lineage.Vertices)),
		Edges:  make([]*LineageEdgeDTO, 0, len(lineage.Edges)),
	}

	for _, vertex := range lineage.Vertices {
		response.Nodes = append(response.Nodes, &LineageNodeDTO{
			ID:         vertex.Key,
			Label:      vertex.Label,
			Properties: vertex.Properties,
			CreatedAt:  vertex.CreatedAt,
			UpdatedAt:  vertex.UpdatedAt,
		})
	}

	for _, edge := range lineage.Edges {
		response.Edges = append(response.Edges, &LineageEdgeDTO{
			ID:    edge.Key,
			Label: edge.Label,
			From:  edge.FromKey,
			To:    edge.ToKey,
		})
	}

	return response
}
