// Package cache memoiza el Fingerprint de cada ruta durante una ejecución.
package cache

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/soyunomas/deduplicator/internal/entities"
	"github.com/soyunomas/deduplicator/internal/hasher"
	"github.com/soyunomas/deduplicator/internal/lib/logger/sl"
)

// HashFunc calcula el Fingerprint de una ruta. hasher.Fingerprint por defecto.
type HashFunc func(path string) (entities.Fingerprint, hasher.FileStats, error)

// Store es una capa persistente opcional entre ejecuciones.
// Una entrada solo es válida si tamaño y mtime coinciden.
type Store interface {
	Lookup(path string, size int64, modTime time.Time) (entities.Fingerprint, bool, error)
	Save(path string, size int64, modTime time.Time, fp entities.Fingerprint) error
}

type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Stored   int64 `json:"store_hits"`
	Failures int64 `json:"failures"`
}

// Cache no tiene desalojo: vive lo que vive el Runner que la posee.
type Cache struct {
	hash  HashFunc
	store Store
	log   *slog.Logger

	mu      sync.RWMutex
	entries map[string]entities.Fingerprint
	group   singleflight.Group

	hits, misses, stored, failures atomic.Int64
}

type Option func(*Cache)

// WithStore activa la persistencia en disco.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

func WithHashFunc(fn HashFunc) Option {
	return func(c *Cache) { c.hash = fn }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		hash:    hasher.Fingerprint,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		entries: make(map[string]entities.Fingerprint),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fingerprint devuelve el Fingerprint memoizado de path, calculándolo una
// sola vez aunque varias goroutines lo pidan a la vez. Los fallos no se
// memoizan: un reintento posterior vuelve a leer el archivo.
func (c *Cache) Fingerprint(path string) (entities.Fingerprint, error) {
	c.mu.RLock()
	fp, ok := c.entries[path]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return fp, nil
	}

	v, err, _ := c.group.Do(path, func() (any, error) {
		// Otra goroutine pudo terminar entre el RUnlock y el Do
		c.mu.RLock()
		fp, ok := c.entries[path]
		c.mu.RUnlock()
		if ok {
			c.hits.Add(1)
			return fp, nil
		}

		fp, err := c.compute(path)
		if err != nil {
			c.failures.Add(1)
			return nil, &entities.HashFailure{Path: path, Err: err}
		}

		c.mu.Lock()
		c.entries[path] = fp
		c.mu.Unlock()
		return fp, nil
	})
	if err != nil {
		return entities.Fingerprint{}, err
	}
	return v.(entities.Fingerprint), nil
}

func (c *Cache) compute(path string) (entities.Fingerprint, error) {
	const op = "cache.compute"

	var info os.FileInfo
	if c.store != nil {
		if st, err := os.Stat(path); err == nil {
			info = st
			fp, ok, err := c.store.Lookup(path, st.Size(), st.ModTime())
			if err != nil {
				c.log.Warn("lectura del store fallida", slog.String("op", op), slog.String("path", path), sl.Err(err))
			} else if ok {
				c.stored.Add(1)
				return fp, nil
			}
		}
	}

	c.misses.Add(1)
	fp, stats, err := c.hash(path)
	if err != nil {
		return entities.Fingerprint{}, err
	}

	if c.store != nil {
		modTime := stats.ModTime
		if modTime.IsZero() && info != nil {
			modTime = info.ModTime()
		}
		if err := c.store.Save(path, stats.Size, modTime, fp); err != nil {
			c.log.Warn("escritura del store fallida", slog.String("op", op), slog.String("path", path), sl.Err(err))
		}
	}
	return fp, nil
}

// Len es el número de rutas memoizadas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Stored:   c.stored.Load(),
		Failures: c.failures.Load(),
	}
}
