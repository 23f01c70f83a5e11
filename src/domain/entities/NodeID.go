package entities

import "fmt"

// NodeID é a identidade de um vértice do grafo main. É uma cópia do guid do vértice buffer
// de origem, nunca uma referência a ele: os dois stores não compartilham identificadores.
type NodeID string

func NodeIDFor(bufferGUID string) NodeID {
	return NodeID(bufferGUID)
}

func (n NodeID) String() string {
	return string(n)
}

// MainEdgeKey gera a chave determinística de uma aresta do grafo main.
func MainEdgeKey(from NodeID, label string, to NodeID) string {
	return fmt.Sprintf("%s|%s|%s", from, label, to)
}
