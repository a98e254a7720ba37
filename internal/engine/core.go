package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soyunomas/deduplicator/internal/cache"
	"github.com/soyunomas/deduplicator/internal/cleaner"
	"github.com/soyunomas/deduplicator/internal/entities"
	"github.com/soyunomas/deduplicator/internal/index"
	"github.com/soyunomas/deduplicator/internal/lib/logger/sl"
	"github.com/soyunomas/deduplicator/internal/scanner"
	"github.com/soyunomas/deduplicator/internal/trash"
)

type Options struct {
	DryRun   bool
	Workers  int      // 0 = runtime.NumCPU()
	Markers  []string // nil = cleaner.DefaultMarkers
	Observer Observer
	Logger   *slog.Logger
	Cache    *cache.Cache // nil = caché en memoria nueva
}

// Stats es el resultado de reconciliar una raíz objetivo.
type Stats struct {
	Root              string
	TotalFilesScanned int64
	Candidates        int64 // archivos con nombre presente en la referencia
	DuplicatesCount   int64
	Bytes             int64 // movidos, o que se moverían en dry-run
	Actions           []entities.Action
	Failures          []entities.Failure
	Pruned            []string
	Duration          time.Duration
}

// Summary agrupa una ejecución completa.
type Summary struct {
	StartedAt         time.Time
	DryRun            bool
	References        []string
	ReferenceFiles    int
	ReferenceFailures []entities.Failure
	Targets           []*Stats
	Cache             cache.CacheStats
	Duration          time.Duration
}

func (s *Summary) Duplicates() int64 {
	var n int64
	for _, t := range s.Targets {
		n += t.DuplicatesCount
	}
	return n
}

func (s *Summary) Failures() int {
	n := len(s.ReferenceFailures)
	for _, t := range s.Targets {
		n += len(t.Failures)
	}
	return n
}

func (s *Summary) Bytes() int64 {
	var n int64
	for _, t := range s.Targets {
		n += t.Bytes
	}
	return n
}

// Runner posee la caché y el índice de una ejecución. No hay estado global.
type Runner struct {
	opts    Options
	log     *slog.Logger
	cache   *cache.Cache
	scanner *scanner.FileScanner
	trash   *trash.Manager

	index      *index.NameIndex
	references []string

	obsMu sync.Mutex
}

func New(opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Markers == nil {
		opts.Markers = cleaner.DefaultMarkers
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.WithLogger(opts.Logger))
	}

	return &Runner{
		opts:  opts,
		log:   opts.Logger,
		cache: opts.Cache,
		// La papelera nunca se enumera, ni en objetivos ni en referencias
		scanner: scanner.New(scanner.Config{Excludes: []string{trash.DirName}}),
		trash:   trash.New(),
	}
}

// Run valida todas las raíces, construye el índice una vez y reconcilia
// cada objetivo en orden. Un *PreconditionError significa que no se hizo
// nada.
func (r *Runner) Run(ctx context.Context, targets, references []string) (*Summary, error) {
	start := time.Now()

	absTargets, tErr := absRoots("objetivo", targets)
	absRefs, rErr := absRoots("de referencia", references)
	if tErr != nil || rErr != nil {
		return nil, joinPrecondition(tErr, rErr)
	}

	summary := &Summary{
		StartedAt:  start,
		DryRun:     r.opts.DryRun,
		References: absRefs,
	}

	failures, err := r.BuildIndex(ctx, absRefs)
	summary.ReferenceFailures = failures
	if err != nil {
		return summary, err
	}
	summary.ReferenceFiles = r.index.Len()

	for _, root := range absTargets {
		stats, err := r.Reconcile(ctx, root)
		if stats != nil {
			summary.Targets = append(summary.Targets, stats)
		}
		if err != nil {
			summary.Cache = r.cache.Stats()
			summary.Duration = time.Since(start)
			return summary, err
		}
	}

	summary.Cache = r.cache.Stats()
	summary.Duration = time.Since(start)
	r.log.Info("ejecución terminada",
		slog.Int("targets", len(summary.Targets)),
		slog.Int64("duplicates", summary.Duplicates()),
		slog.Int("cached_paths", r.cache.Len()),
		slog.Int64("cache_hits", summary.Cache.Hits),
		slog.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func joinPrecondition(errs ...error) error {
	var roots []string
	var msgs []string
	for _, err := range errs {
		var pe *PreconditionError
		if errors.As(err, &pe) {
			roots = append(roots, pe.Roots...)
			msgs = append(msgs, pe.Err.Error())
		}
	}
	return &PreconditionError{Roots: roots, Err: errors.New(strings.Join(msgs, "; "))}
}

// BuildIndex enumera las raíces de referencia y deja el índice listo.
func (r *Runner) BuildIndex(ctx context.Context, references []string) ([]entities.Failure, error) {
	const op = "engine.BuildIndex"
	log := r.log.With(slog.String("op", op))

	idx, failures, err := index.FromRoots(ctx, r.scanner, references)
	for _, f := range failures {
		log.Warn("entrada de referencia ilegible", slog.String("path", f.Path), sl.Err(f.Err))
		r.notify(entities.Event{Kind: entities.EventFailure, Path: f.Path, Failure: &f})
	}
	if err != nil {
		return failures, fmt.Errorf("construir índice: %w", err)
	}

	r.index = idx
	r.references = references
	log.Info("índice de referencia construido",
		slog.Int("files", idx.Len()),
		slog.Int("names", idx.Buckets()),
	)
	return failures, nil
}

// outcome es lo que un worker devuelve por archivo.
type outcome struct {
	path      string
	candidate bool
	action    *entities.Action
	failure   *entities.Failure
}

// Reconcile aplica la pasada de deduplicación a una raíz objetivo.
func (r *Runner) Reconcile(ctx context.Context, targetRoot string) (*Stats, error) {
	const op = "engine.Reconcile"
	start := time.Now()

	if r.index == nil {
		return nil, ErrNoIndex
	}

	root := filepath.Clean(targetRoot)
	trashDir := r.trash.Dir(root)
	log := r.log.With(slog.String("op", op), slog.String("root", root))
	stats := &Stats{Root: root}

	log.Info("reconciliando", slog.Bool("dry_run", r.opts.DryRun))
	r.notify(entities.Event{Kind: entities.EventRootStarted, Root: root})

	jobs := make(chan string, r.opts.Workers*4)
	results := make(chan outcome, r.opts.Workers*4)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				// Cancelado: vaciamos la cola sin procesar
				if ctx.Err() != nil {
					continue
				}
				results <- r.process(root, trashDir, path)
			}
		}()
	}

	// Productor: el enumerador alimenta la cola de forma perezosa
	var scanned atomic.Int64
	var walkErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		for path, err := range r.scanner.Walk(ctx, root) {
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					walkErr = ctxErr
					return
				}
				results <- outcome{path: path, failure: &entities.Failure{Path: path, Kind: entities.FailureWalk, Err: err}}
				continue
			}
			scanned.Add(1)
			r.notify(entities.Event{Kind: entities.EventScanned, Root: root, Path: path})
			select {
			case jobs <- path:
			case <-ctx.Done():
				walkErr = ctx.Err()
				return
			}
		}
	}()

	// Monitor de cierre
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.candidate {
			stats.Candidates++
		}
		switch {
		case res.failure != nil:
			stats.Failures = append(stats.Failures, *res.failure)
			log.Warn("archivo omitido",
				slog.String("path", res.failure.Path),
				slog.String("kind", string(res.failure.Kind)),
				sl.Err(res.failure.Err),
			)
			r.notify(entities.Event{Kind: entities.EventFailure, Root: root, Path: res.path, Failure: res.failure})
		case res.action != nil:
			stats.Actions = append(stats.Actions, *res.action)
			stats.DuplicatesCount++
			stats.Bytes += res.action.Size
			log.Info("duplicado",
				slog.String("path", res.action.Path),
				slog.String("destination", res.action.Destination),
				slog.String("reference", res.action.Reference),
				slog.Bool("dry_run", res.action.DryRun),
			)
			r.notify(entities.Event{Kind: entities.EventDuplicate, Root: root, Path: res.path, Action: res.action})
		}
	}
	stats.TotalFilesScanned = scanned.Load()

	if walkErr == nil {
		walkErr = ctx.Err()
	}
	if walkErr != nil {
		sortStats(stats)
		stats.Duration = time.Since(start)
		log.Warn("raíz interrumpida", sl.Err(walkErr))
		r.notify(entities.Event{Kind: entities.EventRootFinished, Root: root})
		return stats, walkErr
	}

	// Sin cambios estructurales en dry-run: no hay nada que podar
	if !r.opts.DryRun {
		r.prune(root, trashDir, stats, log)
	}

	sortStats(stats)
	stats.Duration = time.Since(start)
	log.Info("raíz terminada",
		slog.Int64("scanned", stats.TotalFilesScanned),
		slog.Int64("duplicates", stats.DuplicatesCount),
		slog.Int("failures", len(stats.Failures)),
		slog.Int("pruned", len(stats.Pruned)),
	)
	r.notify(entities.Event{Kind: entities.EventRootFinished, Root: root})
	return stats, nil
}

func (r *Runner) prune(root, trashDir string, stats *Stats, log *slog.Logger) {
	// Un objetivo dentro de una referencia: sus directorios son de la referencia
	for _, ref := range r.references {
		if isWithin(ref, root) {
			log.Debug("poda omitida: objetivo dentro de una referencia", slog.String("reference", ref))
			return
		}
	}

	protected := append([]string{trashDir}, r.references...)
	removed, err := cleaner.New(r.opts.Markers, protected...).PruneEmpty(root)
	stats.Pruned = removed
	for _, dir := range removed {
		r.notify(entities.Event{Kind: entities.EventPruned, Root: root, Path: dir})
	}
	if err != nil {
		log.Warn("limpieza incompleta", sl.Err(err))
		f := entities.Failure{Path: root, Kind: entities.FailurePrune, Err: err}
		stats.Failures = append(stats.Failures, f)
		r.notify(entities.Event{Kind: entities.EventFailure, Root: root, Path: root, Failure: &f})
	}
}

// process decide y ejecuta la acción para un archivo. Cualquier fallo
// abandona solo este archivo.
func (r *Runner) process(root, trashDir, path string) outcome {
	res := outcome{path: path}

	// a. Nunca tratamos lo que ya está en la papelera
	if isWithin(trashDir, path) {
		return res
	}

	// b. Ocultos: ni se comparan ni se mueven
	name := filepath.Base(path)
	if scanner.IsHidden(name) {
		return res
	}

	// c. Negativo barato: ningún archivo de referencia con ese nombre
	candidates := r.index.Lookup(name)
	if len(candidates) == 0 {
		return res
	}
	// Un objetivo que solapa una referencia nunca pierde sus archivos
	if r.index.Contains(path) {
		return res
	}
	res.candidate = true

	// d. Fingerprint del objetivo y de cada candidato (misma caché)
	fp, err := r.cache.Fingerprint(path)
	r.notify(entities.Event{Kind: entities.EventHashed, Root: root, Path: path})
	if err != nil {
		res.failure = &entities.Failure{Path: path, Kind: entities.FailureHash, Err: err}
		return res
	}

	reference := ""
	for _, c := range candidates {
		cfp, err := r.cache.Fingerprint(c)
		if err != nil {
			res.failure = &entities.Failure{Path: path, Kind: entities.FailureHash, Err: fmt.Errorf("candidato: %w", err)}
			return res
		}
		if cfp == fp {
			reference = c
			break
		}
	}
	if reference == "" {
		return res
	}

	// e. Duplicado confirmado
	action := &entities.Action{Path: path, Reference: reference, Fingerprint: fp, DryRun: r.opts.DryRun}
	if info, err := os.Lstat(path); err == nil {
		action.Size = info.Size()
	}

	if r.opts.DryRun {
		dest, err := r.trash.Destination(path, root)
		if err != nil {
			res.failure = &entities.Failure{Path: path, Kind: entities.FailureMove, Err: err}
			return res
		}
		action.Destination = dest
		res.action = action
		return res
	}

	dest, err := r.trash.Quarantine(path, root)
	if err != nil {
		kind := entities.FailureMove
		var collision *trash.CollisionError
		if errors.As(err, &collision) {
			kind = entities.FailureCollision
		}
		res.failure = &entities.Failure{Path: path, Kind: kind, Err: err}
		return res
	}
	action.Destination = dest
	res.action = action
	return res
}

func (r *Runner) notify(ev entities.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.opts.Observer.Notify(ev)
}

// isWithin indica si path está dentro de dir (o es dir).
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
