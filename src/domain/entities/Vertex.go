package entities

import (
	"maps"
	"time"
)

// É o "nó" de um grafo de propriedades (buffer ou main).
type Vertex struct {
	ID         int64             `json:"id"`
	Key        string            `json:"key"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func NewVertex(key string, label string) *Vertex {
	return &Vertex{
		Key:        key,
		Label:      label,
		Properties: make(map[string]string),
	}
}

// Property retorna o valor da propriedade e se ela existe.
func (v *Vertex) Property(name string) (string, bool) {
	if v == nil || v.Properties == nil {
		return "", false
	}
	value, ok := v.Properties[name]
	return value, ok
}

func (v *Vertex) SetProperty(name string, value string) {
	if v.Properties == nil {
		v.Properties = make(map[string]string)
	}
	v.Properties[name] = value
}

func (v *Vertex) RemoveProperty(name string) {
	delete(v.Properties, name)
}

// Clone devolve uma cópia independente do vértice, inclusive do mapa de propriedades.
func (v *Vertex) Clone() *Vertex {
	if v == nil {
		return nil
	}
	clone := *v
	clone.Properties = maps.Clone(v.Properties)
	if clone.Properties == nil {
		clone.Properties = make(map[string]string)
	}
	return &clone
}

// HasLabel informa se o vértice possui algum dos labels informados.
func (v *Vertex) HasLabel(labels ...string) bool {
	if v == nil {
		return false
	}
	for _, label := range labels {
		if v.Label == label {
			return true
		}
	}
	return false
}
