package entities

import "time"

// LineageEntity é um elemento de metadados descoberto (tabela, coluna, processo, ...).
// Campos de auditoria nulos significam "não definido" e limpam o valor já gravado.
type LineageEntity struct {
	GUID        string            `json:"guid"`
	TypeDefName string            `json:"typeDefName"`
	Version     int64             `json:"version"`
	CreatedBy   *string           `json:"createdBy,omitempty"`
	CreateTime  *time.Time        `json:"createTime,omitempty"`
	UpdatedBy   *string           `json:"updatedBy,omitempty"`
	UpdateTime  *time.Time        `json:"updateTime,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// GraphContext é um fato de aresta: dois endpoints e o relacionamento entre eles.
type GraphContext struct {
	FromVertex       LineageEntity `json:"fromVertex"`
	ToVertex         LineageEntity `json:"toVertex"`
	RelationshipGUID string        `json:"relationshipGuid"`
	RelationshipType string        `json:"relationshipType"`
}

// LineageEvent carrega o contexto transitivo necessário para posicionar um asset no grafo buffer.
type LineageEvent struct {
	EventID  string         `json:"eventId,omitempty"`
	Contexts []GraphContext `json:"contexts"`
}
