package test_seeder

import (
	"context"
	"encoding/json"

	"lineageconsolidator/src/domain/entities"
)

func (ts TestSeeder) SelectVerticesByKeys(ctx context.Context, keys []string) ([]entities.Vertex, error) {
	query := `SELECT id, key, label, properties, created_at, updated_at
			  FROM vertices WHERE key = ANY($1) ORDER BY id`

	rows, err := ts.pool.Query(ctx, query, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vertices []entities.Vertex
	for rows.Next() {
		var vertex entities.Vertex
		var properties []byte
		if err := rows.Scan(&vertex.ID, &vertex.Key, &vertex.Label, &properties, &vertex.CreatedAt, &vertex.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(properties, &vertex.Properties); err != nil {
			return nil, err
		}
		vertices = append(vertices, vertex)
	}

	return vertices, rows.Err()
}

// SelectEdgesByLabel retrieves every edge with the given label
func (ts TestSeeder) SelectEdgesByLabel(ctx context.Context, label string) ([]entities.Edge, error) {
	query := `SELECT id, key, label, from_key, to_key, properties, created_at, updated_at
			  FROM edges WHERE label = $1 ORDER BY id`

	rows, err := ts.pool.Query(ctx, query, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []entities.Edge
	for rows.Next() {
		var edge entities.Edge
		var properties []byte
		if err := rows.Scan(&edge.ID, &edge.Key, &edge.Label, &edge.FromKey, &edge.ToKey, &properties, &edge.CreatedAt, &edge.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(properties, &edge.Properties); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}

	return edges, rows.Err()
}

func (ts TestSeeder) CountVertices(ctx context.Context) (int, error) {
	var count int
	err := ts.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vertices`).Scan(&count)
	return count, err
}
