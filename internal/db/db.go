// Package db persiste fingerprints entre ejecuciones en un archivo bbolt.
package db

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/soyunomas/deduplicator/internal/entities"
)

const (
	FingerprintsBucket = "fingerprints"
)

type record struct {
	Size        int64
	ModTime     int64 // UnixNano
	Fingerprint entities.Fingerprint
}

// FingerprintDB implementa cache.Store sobre bbolt.
type FingerprintDB struct {
	db *bbolt.DB
	mu sync.RWMutex
}

type Config struct {
	Path     string
	FileMode os.FileMode
	Timeout  time.Duration
}

// Open abre (o crea) la base de datos. Timeout limita la espera por el
// lock de archivo de bbolt si otro proceso la tiene abierta.
func Open(cfg Config) (*FingerprintDB, error) {
	if cfg.Path == "" {
		return nil, ErrEmptyPath
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o600
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	db, err := bbolt.Open(cfg.Path, cfg.FileMode, &bbolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("abrir %s: %w", cfg.Path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(FingerprintsBucket))
		if err != nil {
			return fmt.Errorf("crear bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("inicializar base de datos: %w", err)
	}

	return &FingerprintDB{db: db}, nil
}

func (f *FingerprintDB) Close() error {
	if f.db == nil {
		return ErrNilDB
	}
	return f.db.Close()
}

// Lookup devuelve el fingerprint guardado si size y modTime coinciden.
func (f *FingerprintDB) Lookup(path string, size int64, modTime time.Time) (entities.Fingerprint, bool, error) {
	if f.db == nil {
		return entities.Fingerprint{}, false, ErrNilDB
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var rec record
	found := false
	err := f.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(FingerprintsBucket)).Get([]byte(path))
		if data == nil {
			return nil
		}
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptEntry, path, err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return entities.Fingerprint{}, false, err
	}
	if rec.Size != size || rec.ModTime != modTime.UnixNano() {
		return entities.Fingerprint{}, false, nil
	}
	return rec.Fingerprint, true, nil
}

func (f *FingerprintDB) Save(path string, size int64, modTime time.Time, fp entities.Fingerprint) error {
	if f.db == nil {
		return ErrNilDB
	}
	if path == "" {
		return ErrEmptyPath
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(record{Size: size, ModTime: modTime.UnixNano(), Fingerprint: fp}); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(FingerprintsBucket)).Put([]byte(path), buf.Bytes())
	})
}

// Len cuenta las entradas guardadas.
func (f *FingerprintDB) Len() (int, error) {
	if f.db == nil {
		return 0, ErrNilDB
	}
	n := 0
	err := f.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(FingerprintsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
