package stubs

import (
	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
)

type GraphContextStub struct {
	graphContext entities.GraphContext
}

func NewGraphContextStub() GraphContextStub {
	return GraphContextStub{
		graphContext: entities.GraphContext{
			FromVertex:       NewLineageEntityStub().Get(),
			ToVertex:         NewLineageEntityStub().Get(),
			RelationshipGUID: gofakeit.UUID(),
			RelationshipType: domain.EdgeLineageMapping,
		},
	}
}

func (s GraphContextStub) WithFrom(from entities.LineageEntity) GraphContextStub {
	s.graphContext.FromVertex = from
	return s
}

func (s GraphContextStub) WithTo(to entities.LineageEntity) GraphContextStub {
	s.graphContext.ToVertex = to
	return s
}

func (s GraphContextStub) WithRelationshipGUID(guid string) GraphContextStub {
	s.graphContext.RelationshipGUID = guid
	return s
}

func (s GraphContextStub) WithRelationshipType(relationshipType string) GraphContextStub {
	s.graphContext.RelationshipType = relationshipType
	return s
}

func (s GraphContextStub) Get() entities.GraphContext {
	return s.graphContext
}
