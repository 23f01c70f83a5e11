package consolidation

import (
	"context"
	"errors"
	"fmt"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
)

const DefaultMaxHops = 32

// ColumnPathResolver encontra, no grafo buffer, a coluna de saída correspondente a uma
// coluna de entrada do mesmo processo.
type ColumnPathResolver struct {
	maxHops int
}

func NewColumnPathResolver(maxHops int) *ColumnPathResolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &ColumnPathResolver{maxHops: maxHops}
}

// portOwner descreve a qual processo (e a qual tipo de porta) um elemento de schema pertence.
type portOwner struct {
	processKey string
	portType   string
}

func (o portOwner) isOutput() bool {
	return o.portType == domain.PortTypeOutput
}

// searchStep é um item da pilha de busca: vértice atual, vértice de onde viemos e profundidade.
type searchStep struct {
	current  *entities.Vertex
	previous string
	depth    int
	// touched indica que o caminho já passou por um elemento do processo.
	touched bool
}

// InputColumns devolve as colunas de entrada do processo:
// process -> port -> (delegação) -> schema da porta -> atributo -> elemento mapeado por lineage.
func (r *ColumnPathResolver) InputColumns(ctx context.Context, tx domain.GraphTx, process *entities.Vertex) ([]*entities.Vertex, error) {
	attributes, err := r.portAttributes(ctx, tx, process, func(portType string) bool {
		return portType != domain.PortTypeOutput
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var columns []*entities.Vertex
	add := func(v *entities.Vertex) {
		if seen[v.Key] || !domain.IsColumnLabel(v.Label) {
			return
		}
		seen[v.Key] = true
		columns = append(columns, v)
	}

	for _, attribute := range attributes {
		sources, err := r.lineageNeighbors(ctx, tx, attribute, domain.In)
		if err != nil {
			return nil, err
		}

		found := false
		for _, source := range sources {
			if domain.IsColumnLabel(source.Label) {
				add(source)
				found = true
			}
		}

		// Atributo sem mapeamento de entrada: o próprio atributo é a coluna lida pelo processo.
		if !found {
			add(attribute)
		}
	}

	return columns, nil
}

// ResolveOutputColumn segue as arestas de lineage a partir da coluna de entrada até a coluna de
// saída do mesmo processo. Retorna ErrUnresolvedPath quando não há saída ou quando o limite de
// saltos é excedido. Havendo mais de um candidato, vale o primeiro encontrado.
func (r *ColumnPathResolver) ResolveOutputColumn(ctx context.Context, tx domain.GraphTx, inputColumn *entities.Vertex, process *entities.Vertex) (*entities.Vertex, error) {
	startOwner, err := r.ownerOf(ctx, tx, inputColumn)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{inputColumn.Key: true}
	stack := []searchStep{{current: inputColumn, touched: startOwner.processKey == process.Key}}
	exceeded := false
	var fallback *entities.Vertex

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if step.depth >= r.maxHops {
			exceeded = true
			continue
		}

		candidates, err := r.lineageNeighbors(ctx, tx, step.current, domain.Out)
		if err != nil {
			return nil, err
		}

		var next []searchStep
		for _, candidate := range candidates {
			// Não volta para o vértice de onde veio nem revisita vértices (ciclos).
			if candidate.Key == step.previous || visited[candidate.Key] {
				continue
			}

			owner, err := r.ownerOf(ctx, tx, candidate)
			if err != nil {
				return nil, err
			}

			switch {
			case owner.processKey != "" && owner.processKey != process.Key:
				// Pertence a outra invocação de processo.
				continue
			case owner.processKey == process.Key:
				visited[candidate.Key] = true
				if owner.isOutput() && domain.IsColumnLabel(candidate.Label) && fallback == nil {
					fallback = candidate
				}
				next = append(next, searchStep{current: candidate, previous: step.current.Key, depth: step.depth + 1, touched: true})
			case !step.touched:
				// Caminho que ainda não passou pelo processo não produz saída dele.
				continue
			case domain.IsColumnLabel(candidate.Label):
				return candidate, nil
			default:
				visited[candidate.Key] = true
				next = append(next, searchStep{current: candidate, previous: step.current.Key, depth: step.depth + 1, touched: step.touched})
			}
		}

		// Empilha ao contrário para explorar na ordem em que os candidatos foram encontrados.
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}

	if fallback != nil {
		return fallback, nil
	}

	if exceeded {
		return nil, fmt.Errorf("ColumnPathResolver.ResolveOutputColumn - column %q on process %q exceeded %d hops: %w", inputColumn.Key, process.Key, r.maxHops, domain.ErrUnresolvedPath)
	}
	return nil, fmt.Errorf("ColumnPathResolver.ResolveOutputColumn - no output for column %q on process %q: %w", inputColumn.Key, process.Key, domain.ErrUnresolvedPath)
}

// lineageNeighbors segue LineageMapping a partir do elemento e do seu tipo de schema.
// Alvos que são tipos de schema são trocados pelo atributo dono do tipo.
func (r *ColumnPathResolver) lineageNeighbors(ctx context.Context, tx domain.GraphTx, vertex *entities.Vertex, direction domain.Direction) ([]*entities.Vertex, error) {
	sources := []*entities.Vertex{vertex}

	schemaTypes, err := tx.Neighbors(ctx, vertex.Key, domain.Out, domain.EdgeSchemaAttributeType)
	if err != nil {
		return nil, err
	}
	sources = append(sources, schemaTypes...)

	seen := map[string]bool{vertex.Key: true}
	var result []*entities.Vertex
	for _, source := range sources {
		targets, err := tx.Neighbors(ctx, source.Key, direction, domain.EdgeLineageMapping)
		if err != nil {
			return nil, err
		}

		for _, target := range targets {
			resolved, err := r.attributeOf(ctx, tx, target)
			if err != nil {
				return nil, err
			}
			if seen[resolved.Key] {
				continue
			}
			seen[resolved.Key] = true
			result = append(result, resolved)
		}
	}

	return result, nil
}

// attributeOf troca um tipo de schema pelo atributo que o usa, quando houver.
func (r *ColumnPathResolver) attributeOf(ctx context.Context, tx domain.GraphTx, vertex *entities.Vertex) (*entities.Vertex, error) {
	if domain.IsColumnLabel(vertex.Label) {
		return vertex, nil
	}

	owners, err := tx.Neighbors(ctx, vertex.Key, domain.In, domain.EdgeSchemaAttributeType)
	if err != nil {
		return nil, err
	}
	for _, owner := range owners {
		if domain.IsColumnLabel(owner.Label) {
			return owner, nil
		}
	}
	return vertex, nil
}

// ownerOf caminha para trás: atributo -> schema -> porta (implementação/alias) -> processo.
func (r *ColumnPathResolver) ownerOf(ctx context.Context, tx domain.GraphTx, vertex *entities.Vertex) (portOwner, error) {
	schemas, err := tx.Neighbors(ctx, vertex.Key, domain.In, domain.EdgeAttributeForSchema)
	if err != nil {
		return portOwner{}, err
	}

	for _, schema := range schemas {
		implementations, err := tx.Neighbors(ctx, schema.Key, domain.In, domain.EdgePortSchema)
		if err != nil {
			return portOwner{}, err
		}

		for _, implementation := range implementations {
			aliases, err := tx.Neighbors(ctx, implementation.Key, domain.In, domain.EdgePortDelegation)
			if err != nil {
				return portOwner{}, err
			}
			ports := append([]*entities.Vertex{implementation}, aliases...)

			for _, port := range ports {
				processes, err := tx.Neighbors(ctx, port.Key, domain.In, domain.EdgeProcessPort)
				if err != nil {
					return portOwner{}, err
				}
				for _, process := range processes {
					if process.Label != domain.LabelProcess {
						continue
					}
					return portOwner{processKey: process.Key, portType: portTypeOf(implementation, port)}, nil
				}
			}
		}
	}

	return portOwner{}, nil
}

// portAttributes devolve os atributos dos schemas das portas do processo aceitas pelo filtro.
func (r *ColumnPathResolver) portAttributes(ctx context.Context, tx domain.GraphTx, process *entities.Vertex, accept func(portType string) bool) ([]*entities.Vertex, error) {
	ports, err := tx.Neighbors(ctx, process.Key, domain.Out, domain.EdgeProcessPort)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var attributes []*entities.Vertex
	for _, port := range ports {
		delegated, err := tx.Neighbors(ctx, port.Key, domain.Out, domain.EdgePortDelegation)
		if err != nil {
			return nil, err
		}
		implementations := append([]*entities.Vertex{port}, delegated...)

		for _, implementation := range implementations {
			if !accept(portTypeOf(implementation, port)) {
				continue
			}

			schemas, err := tx.Neighbors(ctx, implementation.Key, domain.Out, domain.EdgePortSchema)
			if err != nil {
				return nil, err
			}
			for _, schema := range schemas {
				found, err := tx.Neighbors(ctx, schema.Key, domain.Out, domain.EdgeAttributeForSchema)
				if err != nil {
					return nil, err
				}
				for _, attribute := range found {
					if seen[attribute.Key] {
						continue
					}
					seen[attribute.Key] = true
					attributes = append(attributes, attribute)
				}
			}
		}
	}

	return attributes, nil
}

func portTypeOf(implementation *entities.Vertex, port *entities.Vertex) string {
	if portType, ok := implementation.Property(domain.PropPortType); ok {
		return portType
	}
	portType, _ := port.Property(domain.PropPortType)
	return portType
}

// IsUnresolvedPath facilita o teste do tipo de erro pelos chamadores.
func IsUnresolvedPath(err error) bool {
	return errors.Is(err, domain.ErrUnresolvedPath)
}
