package entities

import (
	"maps"
	"time"
)

// É a "aresta" rotulada entre dois vértices, referenciados pelas suas chaves.
type Edge struct {
	ID         int64             `json:"id"`
	Key        string            `json:"key"`
	Label      string            `json:"label"`
	FromKey    string            `json:"from_key"`
	ToKey      string            `json:"to_key"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func NewEdge(key string, label string, fromKey string, toKey string) *Edge {
	return &Edge{
		Key:        key,
		Label:      label,
		FromKey:    fromKey,
		ToKey:      toKey,
		Properties: make(map[string]string),
	}
}

func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Properties = maps.Clone(e.Properties)
	return &clone
}
