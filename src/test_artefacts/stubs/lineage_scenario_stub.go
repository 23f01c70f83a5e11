package stubs

import (
	"fmt"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
)

// LineageScenario é um processo completo no formato do grafo buffer:
//
//	Database -> DeployedDatabaseSchema -> RelationalTable -> RelationalTableType -> RelationalColumn
//	Process -> PortAlias -> PortImplementation -> TabularSchemaType -> TabularColumn
//
// com LineageMapping coluna de origem -> atributo de entrada -> atributo de saída -> coluna de destino.
type LineageScenario struct {
	Process          entities.LineageEntity
	Database         entities.LineageEntity
	Schema           entities.LineageEntity
	SourceTable      entities.LineageEntity
	TargetTable      entities.LineageEntity
	SourceColumns    []entities.LineageEntity
	TargetColumns    []entities.LineageEntity
	InputAttributes  []entities.LineageEntity
	OutputAttributes []entities.LineageEntity
	GlossaryTerm     *entities.LineageEntity
	Contexts         []entities.GraphContext
}

func (s LineageScenario) Event() entities.LineageEvent {
	return entities.LineageEvent{
		EventID:  gofakeit.UUID(),
		Contexts: s.Contexts,
	}
}

type LineageScenarioStub struct {
	columns      int
	withTables   bool
	withGlossary bool
	process      *entities.LineageEntity
	sourceTable  *scenarioTable
}

type scenarioTable struct {
	table     entities.LineageEntity
	tableType entities.LineageEntity
	columns   []entities.LineageEntity
}

func NewLineageScenarioStub() LineageScenarioStub {
	return LineageScenarioStub{columns: 1, withTables: true}
}

func (s LineageScenarioStub) WithColumns(columns int) LineageScenarioStub {
	s.columns = columns
	return s
}

// WithoutTables gera colunas soltas, sem tabela nem schema.
func (s LineageScenarioStub) WithoutTables() LineageScenarioStub {
	s.withTables = false
	return s
}

// WithGlossaryTerm atribui um termo de glossário à primeira coluna de origem.
func (s LineageScenarioStub) WithGlossaryTerm() LineageScenarioStub {
	s.withGlossary = true
	return s
}

func (s LineageScenarioStub) WithProcess(process entities.LineageEntity) LineageScenarioStub {
	s.process = &process
	return s
}

// WithSourceOf reaproveita a tabela de destino de outro cenário como origem (processos encadeados).
func (s LineageScenarioStub) WithSourceOf(previous LineageScenario) LineageScenarioStub {
	s.sourceTable = &scenarioTable{
		table:   previous.TargetTable,
		columns: previous.TargetColumns,
	}
	s.columns = len(previous.TargetColumns)
	return s
}

func (s LineageScenarioStub) Get() LineageScenario {
	b := &scenarioBuilder{}
	scenario := LineageScenario{}

	if s.process != nil {
		scenario.Process = *s.process
	} else {
		scenario.Process = NewLineageEntityStub().WithType(domain.LabelProcess).WithDisplayName("process-" + gofakeit.Word()).Get()
	}

	if s.withTables {
		scenario.Database = NewLineageEntityStub().WithType(domain.LabelDatabase).WithDisplayName("db-" + gofakeit.Word()).Get()
		scenario.Schema = NewLineageEntityStub().WithType(domain.LabelDeployedDatabaseSchema).WithDisplayName("schema-" + gofakeit.Word()).Get()
		b.link(scenario.Database, scenario.Schema, domain.EdgeDataContentForAsset)
	}

	source := s.sourceTable
	if source == nil {
		source = s.buildTable(b, scenario.Schema, "source", domain.LabelRelationalColumn)
		scenario.SourceTable = source.table
	} else {
		scenario.SourceTable = source.table
	}
	scenario.SourceColumns = source.columns

	target := s.buildTable(b, scenario.Schema, "target", domain.LabelRelationalColumn)
	scenario.TargetTable = target.table
	scenario.TargetColumns = target.columns

	scenario.InputAttributes = s.buildPort(b, scenario.Process, domain.PortTypeInput)
	scenario.OutputAttributes = s.buildPort(b, scenario.Process, domain.PortTypeOutput)

	for i := 0; i < s.columns; i++ {
		b.link(scenario.SourceColumns[i], scenario.InputAttributes[i], domain.EdgeLineageMapping)
		b.link(scenario.InputAttributes[i], scenario.OutputAttributes[i], domain.EdgeLineageMapping)
		b.link(scenario.OutputAttributes[i], scenario.TargetColumns[i], domain.EdgeLineageMapping)
	}

	if s.withGlossary {
		term := NewLineageEntityStub().WithType(domain.LabelGlossaryTerm).WithDisplayName("term-" + gofakeit.Word()).Get()
		scenario.GlossaryTerm = &term
		b.link(scenario.SourceColumns[0], term, domain.EdgeSemanticAssignment)
	}

	scenario.Contexts = b.contexts
	return scenario
}

func (s LineageScenarioStub) buildTable(b *scenarioBuilder, schema entities.LineageEntity, role string, columnType string) *scenarioTable {
	result := &scenarioTable{}

	if s.withTables {
		result.table = NewLineageEntityStub().WithType(domain.LabelRelationalTable).WithDisplayName(role + "-table-" + gofakeit.Word()).Get()
		result.tableType = NewLineageEntityStub().WithType(domain.LabelRelationalTableType).WithDisplayName(role + "-table-type").Get()
		b.link(schema, result.table, domain.EdgeAttributeForSchema)
		b.link(result.table, result.tableType, domain.EdgeSchemaAttributeType)
	}

	for i := 0; i < s.columns; i++ {
		column := NewLineageEntityStub().WithType(columnType).WithDisplayName(fmt.Sprintf("%s-column-%d", role, i)).Get()
		result.columns = append(result.columns, column)
		if s.withTables {
			b.link(result.tableType, column, domain.EdgeAttributeForSchema)
		}
	}

	return result
}

func (s LineageScenarioStub) buildPort(b *scenarioBuilder, process entities.LineageEntity, portType string) []entities.LineageEntity {
	alias := NewLineageEntityStub().WithType(domain.LabelPortAlias).WithProperty("portType", portType).Get()
	implementation := NewLineageEntityStub().WithType(domain.LabelPortImplementation).WithProperty("portType", portType).Get()
	schemaType := NewLineageEntityStub().WithType(domain.LabelTabularSchemaType).Get()

	b.link(process, alias, domain.EdgeProcessPort)
	b.link(alias, implementation, domain.EdgePortDelegation)
	b.link(implementation, schemaType, domain.EdgePortSchema)

	attributes := make([]entities.LineageEntity, 0, s.columns)
	for i := 0; i < s.columns; i++ {
		attribute := NewLineageEntityStub().WithType(domain.LabelTabularColumn).WithDisplayName(fmt.Sprintf("%s-attribute-%d", portType, i)).Get()
		attributes = append(attributes, attribute)
		b.link(schemaType, attribute, domain.EdgeAttributeForSchema)
	}
	return attributes
}

type scenarioBuilder struct {
	contexts []entities.GraphContext
}

func (b *scenarioBuilder) link(from entities.LineageEntity, to entities.LineageEntity, relationshipType string) {
	b.contexts = append(b.contexts, NewGraphContextStub().
		WithFrom(from).
		WithTo(to).
		WithRelationshipType(relationshipType).
		Get())
}
