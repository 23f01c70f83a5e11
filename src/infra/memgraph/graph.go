package memgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
)

var errTxClosed = errors.New("memgraph - transaction already closed")

// Graph é um grafo de propriedades em memória. As transações acumulam as escritas e só as aplicam
// no Commit; rollback não deixa rastro.
// Vértices e arestas commitados nunca são alterados no lugar: uma atualização troca o ponteiro,
// então leitores podem clonar fora do lock.
type Graph struct {
	name string

	mu          sync.RWMutex
	nextID      int64
	vertices    map[string]*entities.Vertex
	vertexOrder []string
	edges       map[string]*entities.Edge
	edgeOrder   []string
	out         map[string][]string
	in          map[string][]string
}

// New cria um grafo vazio identificado por name ("buffer", "main").
func New(name string) *Graph {
	return &Graph{
		name:     name,
		vertices: make(map[string]*entities.Vertex),
		edges:    make(map[string]*entities.Edge),
		out:      make(map[string][]string),
		in:       make(map[string][]string),
	}
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) Begin(ctx context.Context) (domain.GraphTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &tx{
		g:        g,
		vertices: make(map[string]*entities.Vertex),
		created:  make(map[string]bool),
		edges:    make(map[string]*entities.Edge),
	}, nil
}

// VertexCount devolve o número de vértices commitados.
func (g *Graph) VertexCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vertices)
}

// EdgeCount devolve o número de arestas commitadas.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Vertices devolve cópias dos vértices commitados na ordem de criação.
func (g *Graph) Vertices() []entities.Vertex {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]entities.Vertex, 0, len(g.vertexOrder))
	for _, key := range g.vertexOrder {
		result = append(result, *g.vertices[key].Clone())
	}
	return result
}

// Edges devolve cópias das arestas commitadas na ordem de criação.
func (g *Graph) Edges() []entities.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	result := make([]entities.Edge, 0, len(g.edgeOrder))
	for _, key := range g.edgeOrder {
		result = append(result, *g.edges[key].Clone())
	}
	return result
}

type tx struct {
	g *Graph

	vertices    map[string]*entities.Vertex
	vertexOrder []string
	created     map[string]bool
	edges       map[string]*entities.Edge
	edgeOrder   []string
	done        bool
}

func (t *tx) check(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	return ctx.Err()
}

func (t *tx) vertex(key string) *entities.Vertex {
	if v, ok := t.vertices[key]; ok {
		return v
	}
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	return t.g.vertices[key]
}

func (t *tx) FindVertex(ctx context.Context, key string) (*entities.Vertex, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	v := t.vertex(key)
	if v == nil {
		return nil, fmt.Errorf("%s vertex %q: %w", t.g.name, key, domain.ErrVertexNotFound)
	}
	return v.Clone(), nil
}

func (t *tx) allVertices() []*entities.Vertex {
	t.g.mu.RLock()
	result := make([]*entities.Vertex, 0, len(t.g.vertexOrder)+len(t.vertexOrder))
	for _, key := range t.g.vertexOrder {
		if staged, ok := t.vertices[key]; ok {
			result = append(result, staged)
			continue
		}
		result = append(result, t.g.vertices[key])
	}
	t.g.mu.RUnlock()

	for _, key := range t.vertexOrder {
		if t.created[key] {
			result = append(result, t.vertices[key])
		}
	}
	return result
}

func (t *tx) FindVerticesByLabel(ctx context.Context, label string) ([]*entities.Vertex, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	var result []*entities.Vertex
	for _, v := range t.allVertices() {
		if v.Label == label {
			result = append(result, v.Clone())
		}
	}
	return result, nil
}

func (t *tx) FindVerticesByProperty(ctx context.Context, name string, value string) ([]*entities.Vertex, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	var result []*entities.Vertex
	for _, v := range t.allVertices() {
		if current, ok := v.Properties[name]; ok && current == value {
			result = append(result, v.Clone())
		}
	}
	return result, nil
}

func (t *tx) CreateVertex(ctx context.Context, vertex *entities.Vertex) (bool, error) {
	if err := t.check(ctx); err != nil {
		return false, err
	}
	if vertex.Key == "" {
		return false, fmt.Errorf("memgraph.CreateVertex - empty key")
	}

	if t.vertex(vertex.Key) != nil {
		return false, nil
	}

	t.vertices[vertex.Key] = vertex.Clone()
	t.created[vertex.Key] = true
	t.vertexOrder = append(t.vertexOrder, vertex.Key)
	return true, nil
}

func (t *tx) UpdateVertex(ctx context.Context, vertex *entities.Vertex) error {
	if err := t.check(ctx); err != nil {
		return err
	}

	current := t.vertex(vertex.Key)
	if current == nil {
		return fmt.Errorf("%s vertex %q: %w", t.g.name, vertex.Key, domain.ErrVertexNotFound)
	}

	updated := vertex.Clone()
	updated.ID = current.ID
	updated.CreatedAt = current.CreatedAt
	if _, staged := t.vertices[vertex.Key]; !staged {
		t.vertexOrder = append(t.vertexOrder, vertex.Key)
	}
	t.vertices[vertex.Key] = updated
	return nil
}

func (t *tx) edge(key string) *entities.Edge {
	if e, ok := t.edges[key]; ok {
		return e
	}
	t.g.mu.RLock()
	defer t.g.mu.RUnlock()
	return t.g.edges[key]
}

func (t *tx) FindEdge(ctx context.Context, key string) (*entities.Edge, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	e := t.edge(key)
	if e == nil {
		return nil, fmt.Errorf("%s edge %q: %w", t.g.name, key, domain.ErrEdgeNotFound)
	}
	return e.Clone(), nil
}

func (t *tx) CreateEdge(ctx context.Context, edge *entities.Edge) (bool, error) {
	if err := t.check(ctx); err != nil {
		return false, err
	}
	if edge.Key == "" {
		return false, fmt.Errorf("memgraph.CreateEdge - empty key")
	}

	if t.edge(edge.Key) != nil {
		return false, nil
	}

	for _, endpoint := range []string{edge.FromKey, edge.ToKey} {
		if t.vertex(endpoint) == nil {
			return false, fmt.Errorf("memgraph.CreateEdge - endpoint %q: %w", endpoint, domain.ErrVertexNotFound)
		}
	}

	t.edges[edge.Key] = edge.Clone()
	t.edgeOrder = append(t.edgeOrder, edge.Key)
	return true, nil
}

func matchesLabel(label string, labels []string) bool {
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func (t *tx) incident(key string, direction domain.Direction, labels []string) []*entities.Edge {
	var result []*entities.Edge

	t.g.mu.RLock()
	if direction == domain.Out || direction == domain.Both {
		for _, edgeKey := range t.g.out[key] {
			if e := t.g.edges[edgeKey]; matchesLabel(e.Label, labels) {
				result = append(result, e)
			}
		}
	}
	if direction == domain.In || direction == domain.Both {
		for _, edgeKey := range t.g.in[key] {
			if e := t.g.edges[edgeKey]; matchesLabel(e.Label, labels) {
				result = append(result, e)
			}
		}
	}
	t.g.mu.RUnlock()

	for _, edgeKey := range t.edgeOrder {
		e := t.edges[edgeKey]
		if !matchesLabel(e.Label, labels) {
			continue
		}
		if (direction == domain.Out || direction == domain.Both) && e.FromKey == key {
			result = append(result, e)
			continue
		}
		if (direction == domain.In || direction == domain.Both) && e.ToKey == key {
			result = append(result, e)
		}
	}
	return result
}

func (t *tx) HasEdge(ctx context.Context, fromKey string, toKey string, label string) (bool, error) {
	if err := t.check(ctx); err != nil {
		return false, err
	}

	for _, e := range t.incident(fromKey, domain.Out, []string{label}) {
		if e.ToKey == toKey {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) Edges(ctx context.Context, key string, direction domain.Direction, labels ...string) ([]*entities.Edge, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	incident := t.incident(key, direction, labels)
	result := make([]*entities.Edge, 0, len(incident))
	for _, e := range incident {
		result = append(result, e.Clone())
	}
	return result, nil
}

func otherEnd(e *entities.Edge, key string) string {
	if e.FromKey == key {
		return e.ToKey
	}
	return e.FromKey
}

func (t *tx) Neighbors(ctx context.Context, key string, direction domain.Direction, edgeLabels ...string) ([]*entities.Vertex, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var result []*entities.Vertex
	for _, e := range t.incident(key, direction, edgeLabels) {
		neighborKey := otherEnd(e, key)
		if seen[neighborKey] {
			continue
		}
		seen[neighborKey] = true

		if v := t.vertex(neighborKey); v != nil {
			result = append(result, v.Clone())
		}
	}
	return result, nil
}

// FindWithin faz uma busca em largura nas duas direções e devolve o vértice mais próximo com
// um dos labels, a no máximo maxHops saltos.
func (t *tx) FindWithin(ctx context.Context, key string, maxHops int, labels ...string) (*entities.Vertex, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	visited := map[string]bool{key: true}
	frontier := []string{key}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, current := range frontier {
			for _, e := range t.incident(current, domain.Both, nil) {
				neighborKey := otherEnd(e, current)
				if visited[neighborKey] {
					continue
				}
				visited[neighborKey] = true

				v := t.vertex(neighborKey)
				if v == nil {
					continue
				}
				if v.HasLabel(labels...) {
					return v.Clone(), nil
				}
				next = append(next, neighborKey)
			}
		}
		frontier = next
	}

	return nil, fmt.Errorf("%s no %v within %d hops of %q: %w", t.g.name, labels, maxHops, key, domain.ErrVertexNotFound)
}

// Commit aplica as escritas sob o lock de escrita. Quando duas transações criam a mesma chave,
// vale a primeira a commitar.
func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxClosed
	}
	t.done = true

	t.g.mu.Lock()
	defer t.g.mu.Unlock()

	now := time.Now().UTC()

	for _, key := range t.vertexOrder {
		staged := t.vertices[key]
		current, exists := t.g.vertices[key]

		if t.created[key] {
			// Outra transação criou a mesma chave antes: mantém a primeira.
			if exists {
				continue
			}
			t.g.nextID++
			staged.ID = t.g.nextID
			staged.CreatedAt = now
			staged.UpdatedAt = now
			t.g.vertices[key] = staged
			t.g.vertexOrder = append(t.g.vertexOrder, key)
			continue
		}

		if exists {
			updated := staged.Clone()
			updated.ID = current.ID
			updated.CreatedAt = current.CreatedAt
			updated.UpdatedAt = now
			t.g.vertices[key] = updated
		}
	}

	for _, key := range t.edgeOrder {
		if _, exists := t.g.edges[key]; exists {
			continue
		}
		staged := t.edges[key]
		t.g.nextID++
		staged.ID = t.g.nextID
		staged.CreatedAt = now
		staged.UpdatedAt = now
		t.g.edges[key] = staged
		t.g.edgeOrder = append(t.g.edgeOrder, key)
		t.g.out[staged.FromKey] = append(t.g.out[staged.FromKey], key)
		t.g.in[staged.ToKey] = append(t.g.in[staged.ToKey], key)
	}

	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

var _ domain.PropertyGraph = (*Graph)(nil)
