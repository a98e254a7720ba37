// Package index agrupa los archivos de referencia por nombre base.
//
// Un duplicado exige el mismo nombre base (el Fingerprint mezcla el nombre),
// así que el índice es un pre-filtro barato antes de leer contenido.
package index

import (
	"context"
	"iter"
	"path/filepath"

	"github.com/soyunomas/deduplicator/internal/entities"
	"github.com/soyunomas/deduplicator/internal/scanner"
)

// NameIndex es de solo lectura una vez construido.
type NameIndex struct {
	buckets map[string][]string
	paths   map[string]struct{}
}

// Build coloca cada ruta en el bucket de su nombre base, en orden de
// llegada. Rutas repetidas se ignoran.
func Build(paths iter.Seq[string]) *NameIndex {
	idx := &NameIndex{
		buckets: make(map[string][]string),
		paths:   make(map[string]struct{}),
	}
	for p := range paths {
		p = filepath.Clean(p)
		if _, seen := idx.paths[p]; seen {
			continue
		}
		idx.paths[p] = struct{}{}
		name := filepath.Base(p)
		idx.buckets[name] = append(idx.buckets[name], p)
	}
	return idx
}

// FromRoots enumera todas las raíces de referencia y construye el índice.
// Los errores de recorrido se devuelven como fallos; la cancelación del
// contexto aborta.
func FromRoots(ctx context.Context, sc *scanner.FileScanner, roots []string) (*NameIndex, []entities.Failure, error) {
	var failures []entities.Failure
	var walkErr error

	seq := func(yield func(string) bool) {
		for _, root := range roots {
			for p, err := range sc.Walk(ctx, root) {
				if err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						walkErr = ctxErr
						return
					}
					failures = append(failures, entities.Failure{Path: p, Kind: entities.FailureWalk, Err: err})
					continue
				}
				if !yield(p) {
					return
				}
			}
		}
	}

	idx := Build(seq)
	if walkErr != nil {
		return nil, failures, walkErr
	}
	return idx, failures, nil
}

// Lookup devuelve los archivos de referencia con ese nombre base.
// El slice no debe modificarse.
func (idx *NameIndex) Lookup(name string) []string {
	return idx.buckets[name]
}

// Contains indica si path es en sí mismo un archivo de referencia.
func (idx *NameIndex) Contains(path string) bool {
	_, ok := idx.paths[filepath.Clean(path)]
	return ok
}

// Len es el total de archivos de referencia.
func (idx *NameIndex) Len() int { return len(idx.paths) }

// Buckets es el número de nombres distintos.
func (idx *NameIndex) Buckets() int { return len(idx.buckets) }
