package domain

import (
	"context"
	"lineageconsolidator/src/domain/entities"
)

type Direction int

const (
	Out Direction = iota
	In
	Both
)

// PropertyGraph é o handle de um grafo de propriedades (buffer ou main).
// Toda leitura e escrita acontece dentro de uma transação explícita.
type PropertyGraph interface {
	Begin(ctx context.Context) (GraphTx, error)
	Name() string
}

// GraphTx é uma transação sobre um PropertyGraph.
// Métodos Find* retornam ErrVertexNotFound / ErrEdgeNotFound quando nada é encontrado.
type GraphTx interface {
	FindVertex(ctx context.Context, key string) (*entities.Vertex, error)
	FindVerticesByLabel(ctx context.Context, label string) ([]*entities.Vertex, error)
	FindVerticesByProperty(ctx context.Context, name string, value string) ([]*entities.Vertex, error)

	// CreateVertex insere o vértice se a chave ainda não existir. Retorna false quando já existia.
	CreateVertex(ctx context.Context, vertex *entities.Vertex) (bool, error)
	// UpdateVertex substitui label e propriedades de um vértice existente.
	UpdateVertex(ctx context.Context, vertex *entities.Vertex) error

	FindEdge(ctx context.Context, key string) (*entities.Edge, error)
	// CreateEdge insere a aresta se a chave ainda não existir. Retorna false quando já existia.
	CreateEdge(ctx context.Context, edge *entities.Edge) (bool, error)
	HasEdge(ctx context.Context, fromKey string, toKey string, label string) (bool, error)
	// Edges retorna as arestas incidentes ao vértice, filtradas por label quando informado.
	Edges(ctx context.Context, key string, direction Direction, labels ...string) ([]*entities.Edge, error)

	// Neighbors retorna os vértices adjacentes seguindo arestas com os labels informados.
	Neighbors(ctx context.Context, key string, direction Direction, edgeLabels ...string) ([]*entities.Vertex, error)
	// FindWithin percorre o grafo em ambas as direções, sem repetir vértices no caminho,
	// até maxHops saltos e devolve o vértice mais próximo com um dos labels.
	FindWithin(ctx context.Context, key string, maxHops int, labels ...string) (*entities.Vertex, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
