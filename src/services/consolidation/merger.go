package consolidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
	"lineageconsolidator/src/helper/keylock"

	"github.com/google/uuid"
)

// Saltos fixos pelo formato conhecido da hierarquia de tipos de metadados.
const (
	tableHops         = 2
	schemaTypeHops    = 1
	schemaHops        = 3
	databaseHops      = 4
	tableSchemaHops   = 1
	tableDatabaseHops = 2
)

var (
	tableLabels      = []string{domain.LabelRelationalTable, domain.LabelDataFile}
	schemaTypeLabels = []string{domain.LabelTabularSchemaType, domain.LabelRelationalTableType}
	schemaLabels     = []string{domain.LabelDeployedDatabaseSchema, domain.LabelFileFolder}
	databaseLabels   = []string{domain.LabelDatabase, domain.LabelFileFolder}
)

// MainGraphMerger materializa no grafo main processos, subprocessos, tabelas, colunas e termos de
// glossário a partir de uma tripla (columnIn, columnOut, process) resolvida no grafo buffer.
type MainGraphMerger struct {
	logger *slog.Logger
	main   domain.PropertyGraph
	locks  *keylock.KeyedMutex
	newID  func() string
}

func NewMainGraphMerger(logger *slog.Logger, main domain.PropertyGraph) *MainGraphMerger {
	return &MainGraphMerger{
		logger: logger,
		main:   main,
		locks:  keylock.New(),
		newID:  uuid.NewString,
	}
}

// mergeState acumula os vértices main tocados durante um merge.
type mergeState struct {
	bufferTx domain.GraphTx
	mainTx   domain.GraphTx
	touched  []entities.NodeID
	seen     map[entities.NodeID]bool
}

func (s *mergeState) touch(id entities.NodeID) {
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.touched = append(s.touched, id)
}

// Merge garante, de forma idempotente, que as duas colunas, suas tabelas, o processo e uma
// ocorrência de subprocesso estejam representados e ligados no grafo main.
// As leituras do buffer usam bufferTx, aberta por quem chama; a transação main é própria.
func (m *MainGraphMerger) Merge(ctx context.Context, bufferTx domain.GraphTx, columnIn, columnOut, process *entities.Vertex) (domain.MergeResult, error) {
	// Um subprocesso por tripla, e nenhum nó main disputado por dois merges ao mesmo tempo:
	// todos os guids que o merge pode materializar são travados antes da transação main.
	keys, err := m.lockKeys(ctx, bufferTx, columnIn, columnOut, process)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("MainGraphMerger.Merge - lock keys: %w", err)
	}
	unlock := m.locks.LockAll(keys...)
	defer unlock()

	mainTx, err := m.main.Begin(ctx)
	if err != nil {
		return domain.MergeResult{}, err
	}
	defer mainTx.Rollback(ctx)

	state := &mergeState{bufferTx: bufferTx, mainTx: mainTx, seen: make(map[entities.NodeID]bool)}

	inNode, err := m.upsertColumn(ctx, state, columnIn)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("MainGraphMerger.Merge - column in %q: %w", columnIn.Key, err)
	}

	outNode, err := m.upsertColumn(ctx, state, columnOut)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("MainGraphMerger.Merge - column out %q: %w", columnOut.Key, err)
	}

	merged, err := m.alreadyMerged(ctx, mainTx, inNode, outNode, process.Key)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("MainGraphMerger.Merge - idempotency check: %w", err)
	}
	if merged {
		// Só podem ter mudado os links de glossário das colunas.
		if err := mainTx.Commit(ctx); err != nil {
			return domain.MergeResult{}, err
		}
		return domain.MergeResult{Outcome: domain.MergeAlreadyMerged, TouchedNodeIDs: state.touched}, nil
	}

	processNode, err := m.upsertProcess(ctx, state, process)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("MainGraphMerger.Merge - process %q: %w", process.Key, err)
	}

	subProcessID, err := m.createSubProcess(ctx, state, inNode, outNode, processNode, process)
	if err != nil {
		return domain.MergeResult{}, fmt.Errorf("MainGraphMerger.Merge - sub process of %q: %w", process.Key, err)
	}

	result := domain.MergeResult{Outcome: domain.MergeCreated, SubProcessID: subProcessID}

	if err := m.linkTables(ctx, state, columnIn, columnOut, processNode); err != nil {
		if !errors.Is(err, domain.ErrUnresolvedTable) {
			return domain.MergeResult{}, fmt.Errorf("MainGraphMerger.Merge - tables: %w", err)
		}

		// Sem tabela não há lineage de tabela; os links de coluna continuam valendo.
		m.logger.Warn("Skipping table level lineage",
			"process_guid", process.Key,
			"column_in_guid", columnIn.Key,
			"column_out_guid", columnOut.Key,
			"error", err)
		result.Outcome = domain.MergeCreatedWithoutTables
	}

	if err := mainTx.Commit(ctx); err != nil {
		return domain.MergeResult{}, err
	}

	result.TouchedNodeIDs = state.touched
	return result, nil
}

// lockKeys lista os guids buffer cujos nós main o merge pode criar ou ligar: processo, colunas,
// tabelas, colunas irmãs e termos de glossário de todos eles.
func (m *MainGraphMerger) lockKeys(ctx context.Context, bufferTx domain.GraphTx, columnIn, columnOut, process *entities.Vertex) ([]string, error) {
	keys := []string{process.Key}

	for _, column := range []*entities.Vertex{columnIn, columnOut} {
		related := []*entities.Vertex{column}

		table, err := m.findAncestor(ctx, bufferTx, column, tableHops, tableLabels)
		if err != nil {
			return nil, err
		}
		if table != nil {
			siblings, err := columnsOfTable(ctx, bufferTx, table)
			if err != nil {
				return nil, err
			}
			related = append(related, table)
			related = append(related, siblings...)
		}

		for _, vertex := range related {
			keys = append(keys, vertex.Key)

			terms, err := bufferTx.Neighbors(ctx, vertex.Key, domain.Out, domain.EdgeSemanticAssignment)
			if err != nil {
				return nil, err
			}
			for _, term := range terms {
				keys = append(keys, term.Key)
			}
		}
	}

	return keys, nil
}

// alreadyMerged procura um subprocesso deste processo já ligado a columnIn e a columnOut.
func (m *MainGraphMerger) alreadyMerged(ctx context.Context, mainTx domain.GraphTx, inNode, outNode *entities.Vertex, processGUID string) (bool, error) {
	targets, err := mainTx.Neighbors(ctx, inNode.Key, domain.Out, domain.MainEdgeDataFlowWithProcess)
	if err != nil {
		return false, err
	}

	for _, target := range targets {
		if guid, ok := target.Property(domain.PropProcessGUID); !ok || guid != processGUID {
			continue
		}

		linked, err := mainTx.HasEdge(ctx, target.Key, outNode.Key, domain.MainEdgeDataFlowWithProcess)
		if err != nil {
			return false, err
		}
		if linked {
			return true, nil
		}
	}

	return false, nil
}

func (m *MainGraphMerger) createSubProcess(ctx context.Context, state *mergeState, inNode, outNode, processNode, process *entities.Vertex) (string, error) {
	subProcess := entities.NewVertex(m.newID(), domain.MainLabelSubProcess)
	subProcess.SetProperty(domain.PropNodeID, subProcess.Key)
	subProcess.SetProperty(domain.PropProcessGUID, process.Key)
	subProcess.SetProperty(domain.PropMainDisplayName, displayNameOf(process))
	subProcess.SetProperty(domain.PropColumnInGUID, inNode.Key)
	subProcess.SetProperty(domain.PropColumnOutGUID, outNode.Key)

	if _, err := state.mainTx.CreateVertex(ctx, subProcess); err != nil {
		return "", err
	}
	state.touch(entities.NodeID(subProcess.Key))

	if err := m.ensureEdge(ctx, state.mainTx, inNode.Key, domain.MainEdgeDataFlowWithProcess, subProcess.Key); err != nil {
		return "", err
	}
	if err := m.ensureEdge(ctx, state.mainTx, subProcess.Key, domain.MainEdgeDataFlowWithProcess, outNode.Key); err != nil {
		return "", err
	}
	if err := m.ensureEdge(ctx, state.mainTx, subProcess.Key, domain.MainEdgeIncludedIn, processNode.Key); err != nil {
		return "", err
	}

	return subProcess.Key, nil
}

// linkTables liga as tabelas ao processo e todas as colunas de cada tabela à tabela.
func (m *MainGraphMerger) linkTables(ctx context.Context, state *mergeState, columnIn, columnOut, processNode *entities.Vertex) error {
	tableIn, err := m.findAncestor(ctx, state.bufferTx, columnIn, tableHops, tableLabels)
	if err != nil {
		return err
	}
	tableOut, err := m.findAncestor(ctx, state.bufferTx, columnOut, tableHops, tableLabels)
	if err != nil {
		return err
	}
	if tableIn == nil || tableOut == nil {
		return fmt.Errorf("MainGraphMerger.linkTables - table of column %q or %q: %w", columnIn.Key, columnOut.Key, domain.ErrUnresolvedTable)
	}

	tableInNode, err := m.upsertTable(ctx, state, tableIn)
	if err != nil {
		return err
	}
	tableOutNode, err := m.upsertTable(ctx, state, tableOut)
	if err != nil {
		return err
	}

	if err := m.ensureEdge(ctx, state.mainTx, tableInNode.Key, domain.MainEdgeDataFlowWithProcess, processNode.Key); err != nil {
		return err
	}
	if err := m.ensureEdge(ctx, state.mainTx, processNode.Key, domain.MainEdgeDataFlowWithProcess, tableOutNode.Key); err != nil {
		return err
	}

	if err := m.linkTableColumns(ctx, state, tableIn, tableInNode); err != nil {
		return err
	}
	if tableOut.Key != tableIn.Key {
		if err := m.linkTableColumns(ctx, state, tableOut, tableOutNode); err != nil {
			return err
		}
	}

	return nil
}

// linkTableColumns completa a relação tabela -> colunas com todas as colunas irmãs.
func (m *MainGraphMerger) linkTableColumns(ctx context.Context, state *mergeState, table, tableNode *entities.Vertex) error {
	columns, err := columnsOfTable(ctx, state.bufferTx, table)
	if err != nil {
		return err
	}

	for _, column := range columns {
		columnNode, err := m.upsertColumn(ctx, state, column)
		if err != nil {
			return err
		}
		if err := m.ensureEdge(ctx, state.mainTx, columnNode.Key, domain.MainEdgeIncludedIn, tableNode.Key); err != nil {
			return err
		}
	}

	return nil
}

// columnsOfTable: tabela -> (tipo do schema) -> atributos do tipo coluna.
func columnsOfTable(ctx context.Context, bufferTx domain.GraphTx, table *entities.Vertex) ([]*entities.Vertex, error) {
	schemaTypes, err := bufferTx.Neighbors(ctx, table.Key, domain.Out, domain.EdgeSchemaAttributeType, domain.EdgeAssetSchemaType)
	if err != nil {
		return nil, err
	}

	owners := append([]*entities.Vertex{table}, schemaTypes...)
	seen := make(map[string]bool)
	var columns []*entities.Vertex
	for _, owner := range owners {
		attributes, err := bufferTx.Neighbors(ctx, owner.Key, domain.Out, domain.EdgeAttributeForSchema)
		if err != nil {
			return nil, err
		}
		for _, attribute := range attributes {
			if seen[attribute.Key] || !domain.IsColumnLabel(attribute.Label) {
				continue
			}
			seen[attribute.Key] = true
			columns = append(columns, attribute)
		}
	}

	return columns, nil
}

func (m *MainGraphMerger) upsertColumn(ctx context.Context, state *mergeState, column *entities.Vertex) (*entities.Vertex, error) {
	node, err := m.upsertNode(ctx, state, column, domain.MainLabelColumn, func(node *entities.Vertex) error {
		return m.enrich(ctx, state.bufferTx, column, node, []enrichment{
			{property: domain.PropTableDisplayName, hops: tableHops, labels: tableLabels},
			{property: domain.PropSchemaTypeDisplayName, hops: schemaTypeHops, labels: schemaTypeLabels},
			{property: domain.PropSchemaDisplayName, hops: schemaHops, labels: schemaLabels},
			{property: domain.PropDatabaseDisplayName, hops: databaseHops, labels: databaseLabels},
		})
	})
	if err != nil {
		return nil, err
	}

	if err := m.linkGlossaryTerms(ctx, state, column, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (m *MainGraphMerger) upsertTable(ctx context.Context, state *mergeState, table *entities.Vertex) (*entities.Vertex, error) {
	node, err := m.upsertNode(ctx, state, table, domain.MainLabelTable, func(node *entities.Vertex) error {
		return m.enrich(ctx, state.bufferTx, table, node, []enrichment{
			{property: domain.PropSchemaDisplayName, hops: tableSchemaHops, labels: schemaLabels},
			{property: domain.PropDatabaseDisplayName, hops: tableDatabaseHops, labels: databaseLabels},
		})
	})
	if err != nil {
		return nil, err
	}

	if err := m.linkGlossaryTerms(ctx, state, table, node); err != nil {
		return nil, err
	}
	return node, nil
}

func (m *MainGraphMerger) upsertProcess(ctx context.Context, state *mergeState, process *entities.Vertex) (*entities.Vertex, error) {
	return m.upsertNode(ctx, state, process, domain.MainLabelProcess, nil)
}

// upsertNode procura o vértice main pelo node-id do vértice buffer e, se ausente, cria uma cópia
// das propriedades do buffer, enriquecida por enrichFn.
func (m *MainGraphMerger) upsertNode(ctx context.Context, state *mergeState, source *entities.Vertex, label string, enrichFn func(node *entities.Vertex) error) (*entities.Vertex, error) {
	nodeID := entities.NodeIDFor(source.Key)
	state.touch(nodeID)

	existing, err := state.mainTx.FindVertex(ctx, nodeID.String())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrVertexNotFound) {
		return nil, err
	}

	node := entities.NewVertex(nodeID.String(), label)
	for name, value := range source.Properties {
		node.SetProperty(name, value)
	}
	node.SetProperty(domain.PropNodeID, nodeID.String())
	node.SetProperty(domain.PropMainDisplayName, displayNameOf(source))

	if enrichFn != nil {
		if err := enrichFn(node); err != nil {
			return nil, err
		}
	}

	if _, err := state.mainTx.CreateVertex(ctx, node); err != nil {
		return nil, err
	}

	m.logger.Debug("Created main graph vertex", "node_id", nodeID, "label", label)
	return node, nil
}

type enrichment struct {
	property string
	hops     int
	labels   []string
}

// enrich copia display names de ancestrais encontrados por caminhadas de profundidade fixa.
func (m *MainGraphMerger) enrich(ctx context.Context, bufferTx domain.GraphTx, source, node *entities.Vertex, enrichments []enrichment) error {
	for _, e := range enrichments {
		ancestor, err := m.findAncestor(ctx, bufferTx, source, e.hops, e.labels)
		if err != nil {
			return err
		}
		if ancestor == nil {
			continue
		}
		if name := displayNameOf(ancestor); name != "" {
			node.SetProperty(e.property, name)
		}
	}
	return nil
}

// findAncestor devolve nil quando não há vértice com os labels dentro do limite de saltos.
func (m *MainGraphMerger) findAncestor(ctx context.Context, bufferTx domain.GraphTx, source *entities.Vertex, hops int, labels []string) (*entities.Vertex, error) {
	ancestor, err := bufferTx.FindWithin(ctx, source.Key, hops, labels...)
	if errors.Is(err, domain.ErrVertexNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ancestor, nil
}

// linkGlossaryTerms materializa os termos atribuídos ao vértice buffer e liga o nó main a eles.
func (m *MainGraphMerger) linkGlossaryTerms(ctx context.Context, state *mergeState, source, node *entities.Vertex) error {
	terms, err := state.bufferTx.Neighbors(ctx, source.Key, domain.Out, domain.EdgeSemanticAssignment)
	if err != nil {
		return err
	}

	for _, term := range terms {
		if term.Label != domain.LabelGlossaryTerm {
			continue
		}

		termNode, err := m.upsertNode(ctx, state, term, domain.MainLabelGlossaryTerm, nil)
		if err != nil {
			return err
		}
		if err := m.ensureEdge(ctx, state.mainTx, node.Key, domain.MainEdgeSemanticAssignment, termNode.Key); err != nil {
			return err
		}
	}

	return nil
}

// ensureEdge cria a aresta só se ainda não existir uma com o mesmo label entre os dois vértices.
func (m *MainGraphMerger) ensureEdge(ctx context.Context, mainTx domain.GraphTx, fromKey string, label string, toKey string) error {
	exists, err := mainTx.HasEdge(ctx, fromKey, toKey, label)
	if err != nil || exists {
		return err
	}

	edge := entities.NewEdge(entities.MainEdgeKey(entities.NodeID(fromKey), label, entities.NodeID(toKey)), label, fromKey, toKey)
	_, err = mainTx.CreateEdge(ctx, edge)
	return err
}

func displayNameOf(vertex *entities.Vertex) string {
	for _, name := range []string{domain.PropDisplayName, domain.PropName, domain.PropQualifiedName} {
		if value, ok := vertex.Property(name); ok && value != "" {
			return value
		}
	}
	return ""
}
