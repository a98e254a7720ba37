package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

var ErrNoIndex = errors.New("el índice de referencia no está construido")

// PreconditionError aborta la ejecución antes de tocar nada.
type PreconditionError struct {
	Roots []string
	Err   error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondición fallida: %v", e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// absRoots valida las raíces y las devuelve absolutas y sin symlinks.
// Informa de todas las raíces inválidas a la vez.
func absRoots(kind string, roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, &PreconditionError{Err: fmt.Errorf("se necesita al menos una raíz %s", kind)}
	}

	var errs *multierror.Error
	var bad []string
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			bad = append(bad, root)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", root, err))
			continue
		}
		// WalkDir no sigue una raíz que sea symlink: trabajamos con la
		// ruta real, que además hace comparables objetivos y referencias
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			bad = append(bad, root)
			errs = multierror.Append(errs, fmt.Errorf("raíz %s %q no existe: %w", kind, root, err))
			continue
		}
		info, err := os.Stat(resolved)
		switch {
		case err != nil:
			bad = append(bad, root)
			errs = multierror.Append(errs, fmt.Errorf("raíz %s %q no existe: %w", kind, root, err))
		case !info.IsDir():
			bad = append(bad, root)
			errs = multierror.Append(errs, fmt.Errorf("raíz %s %q no es un directorio", kind, root))
		default:
			out = append(out, resolved)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, &PreconditionError{Roots: bad, Err: err}
	}
	return out, nil
}
