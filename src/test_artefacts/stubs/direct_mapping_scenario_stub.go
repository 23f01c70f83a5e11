package stubs

import (
	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
)

// DirectMappingScenario é o menor processo consolidável:
//
//	Process -> PortImplementation -> TabularSchemaType -> InputColumn
//	InputColumn -(LineageMapping)-> OutputSchemaType <-(SchemaAttributeType)- OutputColumn
//
// A coluna de entrada não tem mapeamento de origem e a de saída não pertence a porta nem a tabela.
type DirectMappingScenario struct {
	Process          entities.LineageEntity
	Port             entities.LineageEntity
	PortSchema       entities.LineageEntity
	InputColumn      entities.LineageEntity
	OutputColumn     entities.LineageEntity
	OutputSchemaType entities.LineageEntity
	Contexts         []entities.GraphContext
}

func NewDirectMappingScenario() DirectMappingScenario {
	b := &scenarioBuilder{}
	scenario := DirectMappingScenario{
		Process:          NewLineageEntityStub().WithType(domain.LabelProcess).WithDisplayName("p1").Get(),
		Port:             NewLineageEntityStub().WithType(domain.LabelPortImplementation).Get(),
		PortSchema:       NewLineageEntityStub().WithType(domain.LabelTabularSchemaType).Get(),
		InputColumn:      NewLineageEntityStub().WithType(domain.LabelRelationalColumn).WithDisplayName("c1").Get(),
		OutputColumn:     NewLineageEntityStub().WithType(domain.LabelRelationalColumn).WithDisplayName("c2").Get(),
		OutputSchemaType: NewLineageEntityStub().WithType(domain.LabelTabularSchemaType).Get(),
	}

	b.link(scenario.Process, scenario.Port, domain.EdgeProcessPort)
	b.link(scenario.Port, scenario.PortSchema, domain.EdgePortSchema)
	b.link(scenario.PortSchema, scenario.InputColumn, domain.EdgeAttributeForSchema)
	b.link(scenario.OutputColumn, scenario.OutputSchemaType, domain.EdgeSchemaAttributeType)
	b.link(scenario.InputColumn, scenario.OutputSchemaType, domain.EdgeLineageMapping)

	scenario.Contexts = b.contexts
	return scenario
}

// AsLineageScenario permite gravar o cenário pelos mesmos helpers dos cenários completos.
func (s DirectMappingScenario) AsLineageScenario() LineageScenario {
	return LineageScenario{Process: s.Process, Contexts: s.Contexts}
}
