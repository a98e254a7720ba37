package engine

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyunomas/deduplicator/internal/cache"
	"github.com/soyunomas/deduplicator/internal/entities"
	"github.com/soyunomas/deduplicator/internal/hasher"
	"github.com/soyunomas/deduplicator/internal/trash"
)

// tempDir resuelve symlinks (p. ej. /tmp -> /private/tmp) igual que Run.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func put(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func read(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func exists(root, rel string) bool {
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel)))
	return !errors.Is(err, fs.ErrNotExist)
}

// snapshot captura rutas (archivos y directorios) y contenido.
func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			out[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func run(t *testing.T, opts Options, targets, refs []string) *Summary {
	t.Helper()
	summary, err := New(opts).Run(context.Background(), targets, refs)
	require.NoError(t, err)
	return summary
}

func TestRun_PhotoScenario(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "photo.jpg", "X")
	put(t, target, "sub/photo.jpg", "X")
	put(t, target, "sub/photo2.jpg", "X")

	summary := run(t, Options{}, []string{target}, []string{ref})

	assert.False(t, exists(target, "sub/photo.jpg"))
	assert.Equal(t, "X", read(t, target, trash.DirName+"/sub/photo.jpg"))
	assert.Equal(t, "X", read(t, target, "sub/photo2.jpg"))
	assert.Equal(t, "X", read(t, ref, "photo.jpg"))

	require.Len(t, summary.Targets, 1)
	stats := summary.Targets[0]
	assert.Equal(t, int64(2), stats.TotalFilesScanned)
	assert.Equal(t, int64(1), stats.DuplicatesCount)
	require.Len(t, stats.Actions, 1)
	assert.Equal(t, filepath.Join(target, "sub", "photo.jpg"), stats.Actions[0].Path)
	assert.Equal(t, filepath.Join(target, trash.DirName, "sub", "photo.jpg"), stats.Actions[0].Destination)
	assert.Equal(t, filepath.Join(ref, "photo.jpg"), stats.Actions[0].Reference)
	assert.Equal(t, int64(1), stats.Actions[0].Size)
	assert.Empty(t, stats.Failures)
	assert.Equal(t, 1, summary.ReferenceFiles)
}

func TestRun_PrunesEmptiedDirectoriesButKeepsTrash(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, ref, "b.txt", "B")
	put(t, target, "one/a.txt", "A")
	put(t, target, "one/two/b.txt", "B")
	put(t, target, "one/two/.DS_Store", "meta")

	summary := run(t, Options{}, []string{target}, []string{ref})

	assert.False(t, exists(target, "one"))
	assert.Equal(t, "A", read(t, target, trash.DirName+"/one/a.txt"))
	assert.Equal(t, "B", read(t, target, trash.DirName+"/one/two/b.txt"))
	assert.True(t, exists(target, ""))
	assert.Equal(t, []string{filepath.Join(target, "one")}, summary.Targets[0].Pruned)
}

func TestRun_UnmatchedFilesUntouched(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "photo.jpg", "X")
	put(t, target, "other.jpg", "X")       // mismo contenido, otro nombre
	put(t, target, "dir/photo.jpg", "Y")   // mismo nombre, otro contenido
	put(t, target, "notes/readme.md", "Z") // sin relación

	before := snapshot(t, target)
	summary := run(t, Options{}, []string{target}, []string{ref})

	assert.Equal(t, before, snapshot(t, target))
	assert.Equal(t, int64(0), summary.Duplicates())
	assert.Equal(t, int64(1), summary.Targets[0].Candidates)
}

func TestRun_DryRunNeverMutates(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "photo.jpg", "X")
	put(t, target, "sub/photo.jpg", "X")
	put(t, target, "sub/photo2.jpg", "X")
	put(t, target, "lonely/photo.jpg", "X")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "empty", "dir"), 0o755))

	before := snapshot(t, target)
	refBefore := snapshot(t, ref)
	summary := run(t, Options{DryRun: true}, []string{target}, []string{ref})

	assert.Equal(t, before, snapshot(t, target))
	assert.Equal(t, refBefore, snapshot(t, ref))
	assert.False(t, exists(target, trash.DirName))

	stats := summary.Targets[0]
	require.Len(t, stats.Actions, 2)
	assert.True(t, summary.DryRun)
	for _, a := range stats.Actions {
		assert.True(t, a.DryRun)
	}
	// Ordenado por ruta
	assert.Equal(t, filepath.Join(target, "lonely", "photo.jpg"), stats.Actions[0].Path)
	assert.Equal(t, filepath.Join(target, trash.DirName, "sub", "photo.jpg"), stats.Actions[1].Destination)
	assert.Empty(t, stats.Pruned)
}

func TestRun_Idempotent(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "photo.jpg", "X")
	put(t, target, "sub/photo.jpg", "X")
	put(t, target, "keep.txt", "K")

	first := run(t, Options{}, []string{target}, []string{ref})
	assert.Equal(t, int64(1), first.Duplicates())
	after := snapshot(t, target)

	second := run(t, Options{}, []string{target}, []string{ref})
	assert.Equal(t, int64(0), second.Duplicates())
	assert.Equal(t, 0, second.Failures())
	assert.Equal(t, after, snapshot(t, target))
}

func TestRun_CollisionLeavesSourceInPlace(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "photo.jpg", "X")
	put(t, target, "sub/photo.jpg", "X")
	put(t, target, trash.DirName+"/sub/photo.jpg", "restos de una ejecución anterior")

	summary := run(t, Options{}, []string{target}, []string{ref})

	assert.Equal(t, "X", read(t, target, "sub/photo.jpg"))
	assert.Equal(t, "restos de una ejecución anterior", read(t, target, trash.DirName+"/sub/photo.jpg"))

	stats := summary.Targets[0]
	assert.Empty(t, stats.Actions)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, entities.FailureCollision, stats.Failures[0].Kind)
	var collision *trash.CollisionError
	assert.True(t, errors.As(stats.Failures[0].Err, &collision))
}

func TestRun_HashFailureIsPerFile(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, ref, "b.txt", "B")
	bad := put(t, target, "a.txt", "A")
	put(t, target, "b.txt", "B")

	boom := errors.New("disco ilegible")
	c := cache.New(cache.WithHashFunc(func(path string) (entities.Fingerprint, hasher.FileStats, error) {
		if path == bad {
			return entities.Fingerprint{}, hasher.FileStats{}, boom
		}
		return hasher.Fingerprint(path)
	}))

	summary := run(t, Options{Cache: c, Workers: 1}, []string{target}, []string{ref})

	stats := summary.Targets[0]
	assert.Equal(t, "A", read(t, target, "a.txt"))
	assert.False(t, exists(target, "b.txt"))
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, bad, stats.Failures[0].Path)
	assert.Equal(t, entities.FailureHash, stats.Failures[0].Kind)
	assert.ErrorIs(t, stats.Failures[0].Err, boom)
	assert.Equal(t, int64(1), stats.DuplicatesCount)
}

func TestRun_CandidateHashFailureReportedForTarget(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	refFile := put(t, ref, "a.txt", "A")
	put(t, target, "a.txt", "A")

	c := cache.New(cache.WithHashFunc(func(path string) (entities.Fingerprint, hasher.FileStats, error) {
		if path == refFile {
			return entities.Fingerprint{}, hasher.FileStats{}, fs.ErrPermission
		}
		return hasher.Fingerprint(path)
	}))

	summary := run(t, Options{Cache: c}, []string{target}, []string{ref})

	stats := summary.Targets[0]
	assert.True(t, exists(target, "a.txt"))
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, filepath.Join(target, "a.txt"), stats.Failures[0].Path)
	assert.ErrorIs(t, stats.Failures[0].Err, fs.ErrPermission)
}

func TestRun_SecondCandidateMatches(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "a/photo.jpg", "Y")
	put(t, ref, "b/photo.jpg", "X")
	put(t, target, "photo.jpg", "X")

	summary := run(t, Options{}, []string{target}, []string{ref})

	require.Len(t, summary.Targets[0].Actions, 1)
	assert.Equal(t, filepath.Join(ref, "b", "photo.jpg"), summary.Targets[0].Actions[0].Reference)
}

func TestRun_ReferenceFilesNeverMoved(t *testing.T) {
	root := tempDir(t)
	put(t, root, "ref/photo.jpg", "X")
	put(t, root, "copy/photo.jpg", "X")
	refDir := filepath.Join(root, "ref")

	// El objetivo contiene a la referencia, y también se usa la misma raíz
	summary := run(t, Options{}, []string{root, refDir}, []string{refDir})

	assert.Equal(t, "X", read(t, root, "ref/photo.jpg"))
	assert.False(t, exists(root, "copy/photo.jpg"))
	assert.Equal(t, "X", read(t, root, trash.DirName+"/copy/photo.jpg"))
	assert.False(t, exists(refDir, trash.DirName))
	assert.Equal(t, int64(1), summary.Duplicates())
}

func TestRun_HiddenFilesIgnored(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, ".photo.jpg", "X")
	put(t, target, ".photo.jpg", "X")

	summary := run(t, Options{}, []string{target}, []string{ref})
	assert.True(t, exists(target, ".photo.jpg"))
	assert.Equal(t, int64(0), summary.Duplicates())
}

func TestRun_MultipleTargets(t *testing.T) {
	ref, t1, t2 := tempDir(t), tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, t1, "a.txt", "A")
	put(t, t2, "x/a.txt", "A")

	summary := run(t, Options{}, []string{t1, t2}, []string{ref})

	require.Len(t, summary.Targets, 2)
	assert.Equal(t, "A", read(t, t1, trash.DirName+"/a.txt"))
	assert.Equal(t, "A", read(t, t2, trash.DirName+"/x/a.txt"))
	assert.Equal(t, int64(2), summary.Duplicates())
	assert.Equal(t, int64(2), summary.Bytes())
}

func TestRun_PreconditionFailsBeforeAnyWork(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "photo.jpg", "X")
	put(t, target, "photo.jpg", "X")
	missing := filepath.Join(tempDir(t), "missing")
	file := put(t, tempDir(t), "file", "")

	before := snapshot(t, target)
	_, err := New(Options{}).Run(context.Background(), []string{target, missing}, []string{ref, file})

	var pe *PreconditionError
	require.True(t, errors.As(err, &pe))
	assert.ElementsMatch(t, []string{missing, file}, pe.Roots)
	assert.Equal(t, before, snapshot(t, target))
}

func TestRun_RequiresRoots(t *testing.T) {
	_, err := New(Options{}).Run(context.Background(), nil, []string{tempDir(t)})
	var pe *PreconditionError
	assert.True(t, errors.As(err, &pe))
}

func TestReconcile_WithoutIndex(t *testing.T) {
	_, err := New(Options{}).Reconcile(context.Background(), tempDir(t))
	assert.ErrorIs(t, err, ErrNoIndex)
}

func TestRun_Cancelled(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, target, "a.txt", "A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Run(ctx, []string{target}, []string{ref})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "A", read(t, target, "a.txt"))
}

func TestReconcile_CancelledFinishesRoot(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, target, "a.txt", "A")

	var kinds []entities.EventKind
	r := New(Options{Observer: ObserverFunc(func(ev entities.Event) {
		kinds = append(kinds, ev.Kind)
	})})
	_, err := r.BuildIndex(context.Background(), []string{ref})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := r.Reconcile(ctx, target)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)

	assert.Contains(t, kinds, entities.EventRootStarted)
	require.NotEmpty(t, kinds)
	assert.Equal(t, entities.EventRootFinished, kinds[len(kinds)-1])
	assert.Equal(t, "A", read(t, target, "a.txt"))
}

func TestRun_SymlinkedRootsAreFollowed(t *testing.T) {
	realRef, realTarget, links := tempDir(t), tempDir(t), tempDir(t)
	put(t, realRef, "photo.jpg", "X")
	put(t, realTarget, "sub/photo.jpg", "X")
	refLink := filepath.Join(links, "ref")
	targetLink := filepath.Join(links, "target")
	require.NoError(t, os.Symlink(realRef, refLink))
	require.NoError(t, os.Symlink(realTarget, targetLink))

	summary := run(t, Options{}, []string{targetLink}, []string{refLink})

	assert.Equal(t, 1, summary.ReferenceFiles)
	assert.Equal(t, []string{realRef}, summary.References)
	require.Len(t, summary.Targets, 1)
	assert.Equal(t, realTarget, summary.Targets[0].Root)
	assert.Equal(t, int64(1), summary.Targets[0].TotalFilesScanned)
	assert.Equal(t, int64(1), summary.Duplicates())
	assert.False(t, exists(realTarget, "sub/photo.jpg"))
	assert.Equal(t, "X", read(t, realTarget, trash.DirName+"/sub/photo.jpg"))
	assert.Equal(t, "X", read(t, realRef, "photo.jpg"))
	// Los symlinks siguen ahí, intactos
	fi, err := os.Lstat(targetLink)
	require.NoError(t, err)
	assert.NotZero(t, fi.Mode()&os.ModeSymlink)
}

func TestRun_TargetInsideReferenceIsNotPruned(t *testing.T) {
	ref := tempDir(t)
	put(t, ref, "photo.jpg", "X")
	put(t, ref, "inbox/photo.jpg", "X")
	require.NoError(t, os.MkdirAll(filepath.Join(ref, "inbox", "empty", "deep"), 0o755))
	target := filepath.Join(ref, "inbox")

	summary := run(t, Options{}, []string{target}, []string{ref})

	// Todo lo que hay bajo el objetivo es también referencia
	assert.Equal(t, int64(0), summary.Duplicates())
	assert.Empty(t, summary.Targets[0].Pruned)
	assert.True(t, exists(ref, "inbox/empty/deep"))
	assert.Equal(t, "X", read(t, ref, "inbox/photo.jpg"))
}

func TestRun_ObserverEvents(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, target, "a.txt", "A")
	put(t, target, "sub/b.txt", "B")

	var mu sync.Mutex
	counts := map[entities.EventKind]int{}
	obs := ObserverFunc(func(ev entities.Event) {
		mu.Lock()
		defer mu.Unlock()
		counts[ev.Kind]++
		assert.False(t, ev.At.IsZero())
	})

	run(t, Options{Observer: obs}, []string{target}, []string{ref})

	assert.Equal(t, 2, counts[entities.EventScanned])
	assert.Equal(t, 1, counts[entities.EventHashed])
	assert.Equal(t, 1, counts[entities.EventDuplicate])
	assert.Equal(t, 1, counts[entities.EventRootStarted])
	assert.Equal(t, 1, counts[entities.EventRootFinished])
	assert.Equal(t, 0, counts[entities.EventFailure])
}

func TestRun_CacheReusedAcrossTargets(t *testing.T) {
	ref, t1, t2 := tempDir(t), tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, t1, "a.txt", "A")
	put(t, t2, "a.txt", "A")

	summary := run(t, Options{}, []string{t1, t2}, []string{ref})

	// La referencia se hashea una sola vez
	assert.Equal(t, int64(3), summary.Cache.Misses)
	assert.Equal(t, int64(1), summary.Cache.Hits)
}

func TestRun_LogsRunSummary(t *testing.T) {
	ref, target := tempDir(t), tempDir(t)
	put(t, ref, "a.txt", "A")
	put(t, target, "a.txt", "A")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	run(t, Options{Logger: log}, []string{target}, []string{ref})

	out := buf.String()
	assert.Contains(t, out, `"msg":"ejecución terminada"`)
	assert.Contains(t, out, `"cached_paths":2`)
	assert.Contains(t, out, `"duplicates":1`)
}

func TestIsWithin(t *testing.T) {
	dir := filepath.Join("/t", trash.DirName)
	assert.True(t, isWithin(dir, dir))
	assert.True(t, isWithin(dir, filepath.Join(dir, "a", "b")))
	assert.False(t, isWithin(dir, filepath.Join("/t", "a")))
	assert.False(t, isWithin(dir, filepath.Join("/t", trash.DirName+"x", "a")))
}
