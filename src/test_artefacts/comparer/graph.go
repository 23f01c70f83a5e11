package comparer

import (
	"time"

	"lineageconsolidator/src/domain/entities"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TimeWithinTolerance(toleranceMs int) cmp.Option {
	tolerance := time.Duration(toleranceMs) * time.Millisecond

	return cmp.Comparer(func(x, y time.Time) bool {
		diff := x.Sub(y)
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	})
}

func IgnoreFieldsFor[T any](fields ...string) cmp.Option {
	var t T
	return cmpopts.IgnoreFields(t, fields...)
}

// IgnoreStorageFields ignora o que só o store preenche (id e timestamps) em vértices e arestas.
func IgnoreStorageFields() cmp.Option {
	return cmp.Options{
		IgnoreFieldsFor[entities.Vertex]("ID", "CreatedAt", "UpdatedAt"),
		IgnoreFieldsFor[entities.Edge]("ID", "CreatedAt", "UpdatedAt"),
		cmpopts.EquateEmpty(),
	}
}

// UnorderedGraph compara listas de vértices e arestas sem depender da ordem de criação.
func UnorderedGraph() cmp.Option {
	return cmp.Options{
		IgnoreStorageFields(),
		cmpopts.SortSlices(func(a, b entities.Vertex) bool { return a.Key < b.Key }),
		cmpopts.SortSlices(func(a, b entities.Edge) bool { return a.Key < b.Key }),
	}
}
