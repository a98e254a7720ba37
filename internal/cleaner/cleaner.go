// Package cleaner elimina los directorios que quedaron vacíos tras mover
// duplicados a la papelera.
package cleaner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// DefaultMarkers son archivos que no cuentan como contenido.
var DefaultMarkers = []string{".DS_Store", "Thumbs.db", "desktop.ini"}

type Cleaner struct {
	markers   map[string]struct{}
	protected map[string]struct{}
}

// New crea un limpiador. Las rutas protegidas (papelera, raíces de
// referencia) nunca se borran ni se recorren, y cuentan como contenido.
func New(markers []string, protected ...string) *Cleaner {
	c := &Cleaner{
		markers:   make(map[string]struct{}, len(markers)),
		protected: make(map[string]struct{}, len(protected)),
	}
	for _, m := range markers {
		c.markers[m] = struct{}{}
	}
	for _, p := range protected {
		c.protected[filepath.Clean(p)] = struct{}{}
	}
	return c
}

// PruneEmpty borra cada subárbol máximo de root que no contiene más que
// marcadores y directorios vacíos. root nunca se borra. Devuelve las rutas
// borradas en orden; los errores se acumulan sin detener la pasada.
func (c *Cleaner) PruneEmpty(root string) ([]string, error) {
	root = filepath.Clean(root)
	var removed []string
	var errs *multierror.Error

	var visit func(dir string) bool
	// visit devuelve true si dir está vacío. Los hijos vacíos de un
	// directorio con contenido se borran ahí mismo; si el directorio entero
	// está vacío se deja la decisión al padre.
	visit = func(dir string) bool {
		entries, err := os.ReadDir(dir)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("leer %s: %w", dir, err))
			return false
		}

		empty := true
		var emptyChildren []string
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			switch {
			case e.IsDir():
				if _, ok := c.protected[path]; ok {
					empty = false
					continue
				}
				if visit(path) {
					emptyChildren = append(emptyChildren, path)
				} else {
					empty = false
				}
			case e.Type().IsRegular():
				if _, ok := c.markers[e.Name()]; !ok {
					empty = false
				}
			default:
				// symlinks, sockets... no son nuestros
				empty = false
			}
		}

		if empty && dir != root {
			return true
		}
		for _, child := range emptyChildren {
			if err := os.RemoveAll(child); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("borrar %s: %w", child, err))
				continue
			}
			removed = append(removed, child)
		}
		return false
	}

	if _, ok := c.protected[root]; !ok {
		visit(root)
	}
	sort.Strings(removed)
	return removed, errs.ErrorOrNil()
}
