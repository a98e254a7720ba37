package engine

import (
	"sort"

	"github.com/soyunomas/deduplicator/internal/entities"
)

// sortStats ordena los resultados por ruta. Los workers terminan en
// cualquier orden; el reporte tiene que ser determinista.
func sortStats(s *Stats) {
	sort.Slice(s.Actions, func(i, j int) bool {
		return s.Actions[i].Path < s.Actions[j].Path
	})

	sort.Slice(s.Failures, func(i, j int) bool {
		f1, f2 := s.Failures[i], s.Failures[j]
		if f1.Path != f2.Path {
			return f1.Path < f2.Path
		}
		// Desempate por tipo de fallo
		return kindOrder(f1.Kind) < kindOrder(f2.Kind)
	})

	sort.Strings(s.Pruned)
}

func kindOrder(k entities.FailureKind) int {
	switch k {
	case entities.FailureWalk:
		return 0
	case entities.FailureHash:
		return 1
	case entities.FailureCollision:
		return 2
	case entities.FailureMove:
		return 3
	default:
		return 4
	}
}
