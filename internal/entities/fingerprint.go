package entities

import (
	"encoding/hex"
	"fmt"
)

// FingerprintSize es la longitud fija del digest.
const FingerprintSize = 32

// Fingerprint identifica un archivo por contenido y nombre base.
// Dos archivos con el mismo Fingerprint se consideran duplicados.
type Fingerprint [FingerprintSize]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short devuelve los primeros 12 caracteres hex (para logs).
func (f Fingerprint) Short() string {
	return f.String()[:12]
}

// HashFailure indica que el contenido de Path no se pudo leer.
// Nunca se guarda en caché.
type HashFailure struct {
	Path string
	Err  error
}

func (e *HashFailure) Error() string {
	return fmt.Sprintf("no se pudo calcular el fingerprint de %s: %v", e.Path, e.Err)
}

func (e *HashFailure) Unwrap() error { return e.Err }
