// Package trash mueve duplicados a <raíz>/deduplicator_trash conservando la
// ruta relativa. Nunca sobrescribe.
package trash

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DirName es el nombre de la papelera bajo cada raíz objetivo.
const DirName = "deduplicator_trash"

var ErrOutsideRoot = errors.New("la ruta no está dentro de la raíz")

// CollisionError: el destino ya existe y el origen no se tocó.
type CollisionError struct {
	Destination string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("el destino ya existe: %s", e.Destination)
}

// Is permite errors.Is(err, fs.ErrExist).
func (e *CollisionError) Is(target error) bool {
	return target == fs.ErrExist
}

type Manager struct {
	name  string
	locks keyedMutex
}

func New() *Manager {
	return &Manager{name: DirName, locks: keyedMutex{m: make(map[string]*lockEntry)}}
}

// Dir devuelve la papelera de root.
func (m *Manager) Dir(root string) string {
	return filepath.Join(root, m.name)
}

// Destination calcula dónde terminaría path sin tocar el disco.
func (m *Manager) Destination(path, root string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrOutsideRoot, path, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return filepath.Join(m.Dir(root), rel), nil
}

// Quarantine mueve path a la papelera de root y devuelve el destino.
// Si el destino existe devuelve *CollisionError y path queda intacto.
func (m *Manager) Quarantine(path, root string) (string, error) {
	dest, err := m.Destination(path, root)
	if err != nil {
		return "", err
	}

	// Comprobación y movimiento son atómicos para un mismo destino
	unlock := m.locks.Lock(dest)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("crear %s: %w", filepath.Dir(dest), err)
	}

	err = renameNoReplace(path, dest)
	switch {
	case err == nil:
		return dest, nil
	case errors.Is(err, fs.ErrExist):
		return "", &CollisionError{Destination: dest}
	case isCrossDeviceError(err):
		// Rename falla entre discos distintos: Copy + Remove
		if err := moveCrossDevice(path, dest); err != nil {
			return "", err
		}
		return dest, nil
	default:
		return "", fmt.Errorf("mover %s: %w", path, err)
	}
}

// keyedMutex serializa operaciones por clave (destino).
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = &lockEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
