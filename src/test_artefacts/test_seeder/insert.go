package test_seeder

import (
	"context"
	"encoding/json"
	"fmt"

	"lineageconsolidator/src/domain/entities"
)

// InsertVertex inserts a vertex into the database for testing
func (ts TestSeeder) InsertVertex(ctx context.Context, vertex *entities.Vertex) {
	properties, err := json.Marshal(vertex.Properties)
	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertVertex marshal failed: %v", err))
	}

	query := `
		INSERT INTO vertices (key, label, properties)
		VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`

	err = ts.pool.QueryRow(ctx, query, vertex.Key, vertex.Label, properties).
		Scan(&vertex.ID, &vertex.CreatedAt, &vertex.UpdatedAt)
	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertVertex failed: %v", err))
	}
}

// InsertEdge inserts an edge into the database for testing
func (ts TestSeeder) InsertEdge(ctx context.Context, edge *entities.Edge) {
	properties, err := json.Marshal(edge.Properties)
	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertEdge marshal failed: %v", err))
	}

	query := `
		INSERT INTO edges (key, label, from_key, to_key, properties)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`

	err = ts.pool.QueryRow(ctx, query, edge.Key, edge.Label, edge.FromKey, edge.ToKey, properties).
		Scan(&edge.ID, &edge.CreatedAt, &edge.UpdatedAt)
	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertEdge failed: %v", err))
	}
}
