package hasher

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/soyunomas/deduplicator/internal/entities"
)

// BlockSize optimiza la lectura del disco (32KB es un buen estándar)
const BlockSize = 32 * 1024

// bufferPool para las lecturas completas
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, BlockSize)
		return &b
	},
}

// hashPool para reutilizar el estado del digest
var hashPool = sync.Pool{
	New: func() any {
		return xxhash.New()
	},
}

// FileStats es lo que el caché persistente usa para validar una entrada.
type FileStats struct {
	Size    int64
	ModTime time.Time
}

// HashFile calcula el xxhash64 del contenido completo.
// Cualquier error de lectura se propaga: nunca devolvemos un hash parcial.
func HashFile(path string) (uint64, FileStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, FileStats{}, err
	}
	defer file.Close()

	// Obtener stats del descriptor abierto (Rápido)
	info, err := file.Stat()
	if err != nil {
		return 0, FileStats{}, err
	}
	if !info.Mode().IsRegular() {
		return 0, FileStats{}, fmt.Errorf("%s no es un archivo regular", path)
	}

	stats := FileStats{Size: info.Size(), ModTime: info.ModTime()}

	// Pooling
	h := hashPool.Get().(*xxhash.Digest)
	h.Reset()
	defer hashPool.Put(h)

	bufPtr := bufferPool.Get().(*[]byte)
	buf := *bufPtr
	defer bufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return 0, stats, err
	}

	return h.Sum64(), stats, nil
}

// Mix combina el hash de contenido con el nombre base y vuelve a hashear.
// El nombre forma parte de la identidad: mismos bytes con otro nombre
// producen otro Fingerprint.
func Mix(contentHash uint64, name string) entities.Fingerprint {
	return sha256.Sum256([]byte(fmt.Sprintf("%016x", contentHash) + name))
}

// Fingerprint lee el archivo completo y devuelve su Fingerprint.
func Fingerprint(path string) (entities.Fingerprint, FileStats, error) {
	h, stats, err := HashFile(path)
	if err != nil {
		return entities.Fingerprint{}, stats, err
	}
	return Mix(h, filepath.Base(path)), stats, nil
}
