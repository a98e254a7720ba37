package scanner

import (
	"context"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
)

// Config define las reglas para el escaneo.
type Config struct {
	Excludes []string // Carpetas que nunca se recorren (ej: la papelera)
}

// FileScanner encapsula la lógica de recorrido del sistema de archivos.
type FileScanner struct {
	cfg        Config
	excludeMap map[string]struct{} // Optimización O(1)
}

// New crea una nueva instancia del escáner con configuración.
func New(cfg Config) *FileScanner {
	// Pre-procesamos excludes a un mapa para búsquedas instantáneas
	exMap := make(map[string]struct{}, len(cfg.Excludes))
	for _, e := range cfg.Excludes {
		exMap[e] = struct{}{}
	}

	return &FileScanner{
		cfg:        cfg,
		excludeMap: exMap,
	}
}

// IsHidden indica si el nombre base sigue la convención de oculto (dotfile).
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Walk recorre rootDir de forma perezosa y produce solo archivos regulares.
// Directorios, symlinks y entradas ocultas quedan fuera. Un directorio
// ilegible se produce como (path, err) y el recorrido sigue.
// Cortar la iteración detiene el recorrido.
func (s *FileScanner) Walk(ctx context.Context, rootDir string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false

		err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			// 1. Errores de acceso: se informan y se sigue
			if err != nil {
				if path == rootDir {
					return err
				}
				if !yield(path, err) {
					stopped = true
					return filepath.SkipAll
				}
				return nil
			}

			// 2. Directorios: excluidos u ocultos no se recorren
			if d.IsDir() {
				if path == rootDir {
					return nil
				}
				if _, ok := s.excludeMap[d.Name()]; ok {
					return filepath.SkipDir
				}
				if IsHidden(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}

			// 3. Solo archivos regulares (fuera symlinks, sockets, etc.)
			if !d.Type().IsRegular() || IsHidden(d.Name()) {
				return nil
			}

			if !yield(path, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})

		if err != nil && !stopped {
			yield(rootDir, err)
		}
	}
}
