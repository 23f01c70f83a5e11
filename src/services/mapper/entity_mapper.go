package mapper

import (
	"fmt"
	"strconv"
	"time"

	"lineageconsolidator/src/domain"
	"lineageconsolidator/src/domain/entities"
)

// MapEntity escreve os atributos da entidade no vértice buffer de destino.
// Não abre nem gerencia transação: isso é responsabilidade de quem chama.
func MapEntity(entity entities.LineageEntity, target *entities.Vertex) error {
	if err := ValidateEntity(entity); err != nil {
		return err
	}

	target.Label = entity.TypeDefName
	target.SetProperty(domain.PropGUID, entity.GUID)
	target.SetProperty(domain.PropTypeDefName, entity.TypeDefName)
	target.SetProperty(domain.PropVersion, strconv.FormatInt(entity.Version, 10))

	// Valor nulo upstream precisa limpar o valor gravado, não deixá-lo obsoleto.
	setOrRemove(target, domain.PropCreatedBy, entity.CreatedBy)
	setOrRemoveTime(target, domain.PropCreateTime, entity.CreateTime)
	setOrRemove(target, domain.PropUpdatedBy, entity.UpdatedBy)
	setOrRemoveTime(target, domain.PropUpdateTime, entity.UpdateTime)

	for name, value := range entity.Properties {
		target.SetProperty(domain.PropertyNamespace+name, value)
	}

	return nil
}

// ValidateEntity verifica os atributos obrigatórios (guid e typeDefName).
func ValidateEntity(entity entities.LineageEntity) error {
	if entity.GUID == "" {
		return &domain.MissingAttributeError{Attribute: domain.PropGUID, Subject: entity.TypeDefName}
	}
	if entity.TypeDefName == "" {
		return &domain.MissingAttributeError{Attribute: domain.PropTypeDefName, Subject: entity.GUID}
	}
	return nil
}

// MapEdge traduz um GraphContext em uma aresta rotulada do grafo buffer.
func MapEdge(graphContext entities.GraphContext) (*entities.Edge, error) {
	if graphContext.RelationshipGUID == "" {
		return nil, &domain.MissingAttributeError{Attribute: "relationshipGuid", Subject: graphContext.RelationshipType}
	}
	if graphContext.RelationshipType == "" {
		return nil, &domain.MissingAttributeError{Attribute: "relationshipType", Subject: graphContext.RelationshipGUID}
	}
	if graphContext.FromVertex.GUID == "" || graphContext.ToVertex.GUID == "" {
		return nil, &domain.MissingAttributeError{
			Attribute: domain.PropGUID,
			Subject:   fmt.Sprintf("endpoint of relationship %s", graphContext.RelationshipGUID),
		}
	}

	edge := entities.NewEdge(
		graphContext.RelationshipGUID,
		graphContext.RelationshipType,
		graphContext.FromVertex.GUID,
		graphContext.ToVertex.GUID,
	)
	edge.Properties[domain.PropGUID] = graphContext.RelationshipGUID

	return edge, nil
}

// StoredVersion lê a versão gravada no vértice; ausente ou inválida vale -1.
func StoredVersion(vertex *entities.Vertex) int64 {
	value, ok := vertex.Property(domain.PropVersion)
	if !ok {
		return -1
	}
	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return -1
	}
	return version
}

func setOrRemove(target *entities.Vertex, name string, value *string) {
	if value == nil {
		target.RemoveProperty(name)
		return
	}
	target.SetProperty(name, *value)
}

func setOrRemoveTime(target *entities.Vertex, name string, value *time.Time) {
	if value == nil {
		target.RemoveProperty(name)
		return
	}
	target.SetProperty(name, value.UTC().Format(time.RFC3339Nano))
}
