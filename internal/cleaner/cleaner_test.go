package cleaner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkfile(t *testing.T, root, rel string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(rel), 0o644))
}

func mkdir(t *testing.T, root, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0o755))
}

func exists(root, rel string) bool {
	_, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel)))
	return !errors.Is(err, fs.ErrNotExist)
}

func TestPruneEmpty(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "a/b/c")               // vacío anidado
	mkfile(t, root, "marker/x/.DS_Store") // solo marcadores
	mkfile(t, root, "keep/file.txt")      // contenido
	mkdir(t, root, "keep/empty")          // vacío bajo un dir con contenido
	mkfile(t, root, "hidden/.secret")     // un oculto no marcador es contenido
	mkfile(t, root, "deduplicator_trash/sub/photo.jpg")
	mkdir(t, root, "deduplicator_trash/void")

	c := New(DefaultMarkers, filepath.Join(root, "deduplicator_trash"))
	removed, err := c.PruneEmpty(root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "keep", "empty"),
		filepath.Join(root, "marker"),
	}, removed)

	assert.False(t, exists(root, "a"))
	assert.False(t, exists(root, "marker"))
	assert.False(t, exists(root, "keep/empty"))
	assert.True(t, exists(root, "keep/file.txt"))
	assert.True(t, exists(root, "hidden/.secret"))
	assert.True(t, exists(root, "deduplicator_trash/sub/photo.jpg"))
	assert.True(t, exists(root, "deduplicator_trash/void"))
}

func TestPruneEmpty_NeverRemovesRoot(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "x/y")
	mkfile(t, root, ".DS_Store")

	removed, err := New(DefaultMarkers).PruneEmpty(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "x")}, removed)
	assert.True(t, exists(root, ""))
}

func TestPruneEmpty_EmptyTrashSurvives(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "deduplicator_trash")

	removed, err := New(DefaultMarkers, filepath.Join(root, "deduplicator_trash")).PruneEmpty(root)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.True(t, exists(root, "deduplicator_trash"))
}

func TestPruneEmpty_ProtectedReferenceInsideRoot(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "ref/empty")

	removed, err := New(nil, filepath.Join(root, "ref")).PruneEmpty(root)
	require.NoError(t, err)
	assert.Empty(t, removed)
	assert.True(t, exists(root, "ref/empty"))
}

func TestPruneEmpty_SymlinkCountsAsContent(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "links")
	require.NoError(t, os.Symlink("/nonexistent", filepath.Join(root, "links", "l")))

	removed, err := New(DefaultMarkers).PruneEmpty(root)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPruneEmpty_Idempotent(t *testing.T) {
	root := t.TempDir()
	mkdir(t, root, "a/b")
	c := New(DefaultMarkers)

	first, err := c.PruneEmpty(root)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := c.PruneEmpty(root)
	require.NoError(t, err)
	assert.Empty(t, second)
}
