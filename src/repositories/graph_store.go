package repositories

import (
	"context"
	"errors"
	"fmt"
	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/infra/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGraphStore implementa domain.PropertyGraph sobre as tabelas vertices/edges.
// Buffer e main usam uma instância cada, apontando para bancos diferentes.
type PostgresGraphStore struct {
	name string
	pool *pgxpool.Pool
}

func NewPostgresGraphStore(name string, pool *pgxpool.Pool) *PostgresGraphStore {
	return &PostgresGraphStore{name: name, pool: pool}
}

func (s *PostgresGraphStore) Name() string {
	return s.name
}

func (s *PostgresGraphStore) Begin(ctx context.Context) (domain.GraphTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).Begin", s.name), err)
	}

	return &postgresGraphTx{name: s.name, tx: tx}, nil
}

type postgresGraphTx struct {
	name string
	tx   pgx.Tx
}

const vertexColumns = `v.id, v.key, v.label, v.properties, v.created_at, v.updated_at`

func scanVertices(rows pgx.Rows) ([]*entities.Vertex, error) {
	defer rows.Close()

	var vertices []*entities.Vertex
	for rows.Next() {
		var vertex entities.Vertex
		if err := rows.Scan(&vertex.ID, &vertex.Key, &vertex.Label, &vertex.Properties, &vertex.CreatedAt, &vertex.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vertex: %w", err)
		}
		if vertex.Properties == nil {
			vertex.Properties = make(map[string]string)
		}
		vertices = append(vertices, &vertex)
	}

	return vertices, rows.Err()
}

func scanEdges(rows pgx.Rows) ([]*entities.Edge, error) {
	defer rows.Close()

	var edges []*entities.Edge
	for rows.Next() {
		var edge entities.Edge
		if err := rows.Scan(&edge.ID, &edge.Key, &edge.Label, &edge.FromKey, &edge.ToKey, &edge.Properties, &edge.CreatedAt, &edge.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, &edge)
	}

	return edges, rows.Err()
}

func (t *postgresGraphTx) queryVertices(ctx context.Context, operation string, query string, args ...interface{}) ([]*entities.Vertex, error) {
	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).%s", t.name, operation), err)
	}

	vertices, err := scanVertices(rows)
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).%s", t.name, operation), err)
	}
	return vertices, nil
}

func (t *postgresGraphTx) FindVertex(ctx context.Context, key string) (*entities.Vertex, error) {
	query := `SELECT ` + vertexColumns + ` FROM vertices v WHERE v.key = $1`

	vertices, err := t.queryVertices(ctx, "FindVertex", query, key)
	if err != nil {
		return nil, err
	}
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%s vertex %q: %w", t.name, key, domain.ErrVertexNotFound)
	}
	return vertices[0], nil
}

func (t *postgresGraphTx) FindVerticesByLabel(ctx context.Context, label string) ([]*entities.Vertex, error) {
	query := `SELECT ` + vertexColumns + ` FROM vertices v WHERE v.label = $1 ORDER BY v.id`

	return t.queryVertices(ctx, "FindVerticesByLabel", query, label)
}

func (t *postgresGraphTx) FindVerticesByProperty(ctx context.Context, name string, value string) ([]*entities.Vertex, error) {
	searchJSON, err := postgres.BuildSearchJSON(name, value)
	if err != nil {
		return nil, fmt.Errorf("PostgresGraphStore(%s).FindVerticesByProperty - failed to build search JSON: %w", t.name, err)
	}

	query := `SELECT ` + vertexColumns + ` FROM vertices v WHERE v.properties @> $1::jsonb ORDER BY v.id`

	return t.queryVertices(ctx, "FindVerticesByProperty", query, searchJSON)
}

func (t *postgresGraphTx) CreateVertex(ctx context.Context, vertex *entities.Vertex) (bool, error) {
	query := `
		INSERT INTO
			vertices (key, label, properties)
		VALUES
			($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
		RETURNING
			id, created_at, updated_at
	`

	properties := vertex.Properties
	if properties == nil {
		properties = map[string]string{}
	}

	err := t.tx.QueryRow(ctx, query, vertex.Key, vertex.Label, properties).Scan(&vertex.ID, &vertex.CreatedAt, &vertex.UpdatedAt)
	if postgres.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).CreateVertex", t.name), err)
	}

	return true, nil
}

func (t *postgresGraphTx) UpdateVertex(ctx context.Context, vertex *entities.Vertex) error {
	query := `
		UPDATE
			vertices
		SET
			label = $2,
			properties = $3,
			updated_at = NOW()
		WHERE
			key = $1
	`

	properties := vertex.Properties
	if properties == nil {
		properties = map[string]string{}
	}

	tag, err := t.tx.Exec(ctx, query, vertex.Key, vertex.Label, properties)
	if err != nil {
		return domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).UpdateVertex", t.name), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s vertex %q: %w", t.name, vertex.Key, domain.ErrVertexNotFound)
	}

	return nil
}

const edgeColumns = `e.id, e.key, e.label, e.from_key, e.to_key, e.properties, e.created_at, e.updated_at`

func (t *postgresGraphTx) FindEdge(ctx context.Context, key string) (*entities.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM edges e WHERE e.key = $1`

	rows, err := t.tx.Query(ctx, query, key)
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).FindEdge", t.name), err)
	}

	edges, err := scanEdges(rows)
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).FindEdge", t.name), err)
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("%s edge %q: %w", t.name, key, domain.ErrEdgeNotFound)
	}
	return edges[0], nil
}

func (t *postgresGraphTx) CreateEdge(ctx context.Context, edge *entities.Edge) (bool, error) {
	query := `
		INSERT INTO
			edges (key, label, from_key, to_key, properties)
		VALUES
			($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
		RETURNING
			id, created_at, updated_at
	`

	properties := edge.Properties
	if properties == nil {
		properties = map[string]string{}
	}

	err := t.tx.QueryRow(ctx, query, edge.Key, edge.Label, edge.FromKey, edge.ToKey, properties).Scan(&edge.ID, &edge.CreatedAt, &edge.UpdatedAt)
	if postgres.IsNoRows(err) {
		return false, nil
	}
	if postgres.IsForeignKeyViolation(err) {
		return false, fmt.Errorf("%s edge %q endpoint: %w", t.name, edge.Key, domain.ErrVertexNotFound)
	}
	if err != nil {
		return false, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).CreateEdge", t.name), err)
	}

	return true, nil
}

func (t *postgresGraphTx) HasEdge(ctx context.Context, fromKey string, toKey string, label string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM edges WHERE from_key = $1 AND to_key = $2 AND label = $3)`

	var exists bool
	if err := t.tx.QueryRow(ctx, query, fromKey, toKey, label).Scan(&exists); err != nil {
		return false, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).HasEdge", t.name), err)
	}

	return exists, nil
}

func directionName(direction domain.Direction) string {
	switch direction {
	case domain.Out:
		return "out"
	case domain.In:
		return "in"
	default:
		return "both"
	}
}

func labelFilter(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

func (t *postgresGraphTx) Edges(ctx context.Context, key string, direction domain.Direction, labels ...string) ([]*entities.Edge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM
			edges e
		WHERE
			(($2 IN ('out', 'both') AND e.from_key = $1) OR ($2 IN ('in', 'both') AND e.to_key = $1))
			AND (cardinality($3::text[]) = 0 OR e.label = ANY($3::text[]))
		ORDER BY
			e.id
	`

	rows, err := t.tx.Query(ctx, query, key, directionName(direction), labelFilter(labels))
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).Edges", t.name), err)
	}

	edges, err := scanEdges(rows)
	if err != nil {
		return nil, domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).Edges", t.name), err)
	}
	return edges, nil
}

func (t *postgresGraphTx) Neighbors(ctx context.Context, key string, direction domain.Direction, edgeLabels ...string) ([]*entities.Vertex, error) {
	query := `
		SELECT ` + vertexColumns + `
		FROM
			edges e
		JOIN
			vertices v ON v.key = CASE WHEN e.from_key = $1 THEN e.to_key ELSE e.from_key END
		WHERE
			(($2 IN ('out', 'both') AND e.from_key = $1) OR ($2 IN ('in', 'both') AND e.to_key = $1))
			AND (cardinality($3::text[]) = 0 OR e.label = ANY($3::text[]))
		GROUP BY
			v.id
		ORDER BY
			MIN(e.id)
	`

	return t.queryVertices(ctx, "Neighbors", query, key, directionName(direction), labelFilter(edgeLabels))
}

func (t *postgresGraphTx) FindWithin(ctx context.Context, key string, maxHops int, labels ...string) (*entities.Vertex, error) {
	// Caminho simples em ambas as direções, como um repeat(both().simplePath()).times(n).
	query := `
		WITH RECURSIVE walk (key, depth, path) AS (
			SELECT
				$1::text,
				0,
				ARRAY[$1::text]

			UNION ALL

			SELECT
				nxt.key,
				w.depth + 1,
				w.path || nxt.key
			FROM
				walk w
			JOIN
				edges e ON e.from_key = w.key OR e.to_key = w.key
			CROSS JOIN LATERAL (
				SELECT CASE WHEN e.from_key = w.key THEN e.to_key ELSE e.from_key END AS key
			) nxt
			WHERE
				w.depth < $2
				AND NOT (nxt.key = ANY(w.path))
		)
		SELECT ` + vertexColumns + `
		FROM
			walk w
		JOIN
			vertices v ON v.key = w.key
		WHERE
			w.depth > 0
			AND v.label = ANY($3::text[])
		ORDER BY
			w.depth, v.id
		LIMIT 1
	`

	vertices, err := t.queryVertices(ctx, "FindWithin", query, key, maxHops, labelFilter(labels))
	if err != nil {
		return nil, err
	}
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%s no %v within %d hops of %q: %w", t.name, labels, maxHops, key, domain.ErrVertexNotFound)
	}
	return vertices[0], nil
}

func (t *postgresGraphTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).Commit", t.name), err)
	}
	return nil
}

func (t *postgresGraphTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return domain.StoreError(fmt.Sprintf("PostgresGraphStore(%s).Rollback", t.name), err)
	}
	return nil
}

var _ domain.PropertyGraph = (*PostgresGraphStore)(nil)
