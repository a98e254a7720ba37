package report

import (
	"path/filepath"
	"strings"

	"github.com/disiqueira/gotree/v3"
)

type visualFileTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func newVisualFileTree(rootLabel string) visualFileTree {
	return visualFileTree{tree: gotree.New(rootLabel), dirs: make(map[string]gotree.Tree)}
}

func (t visualFileTree) getDir(dirPath string) (dir gotree.Tree) {
	if dirPath == "." {
		return t.tree
	}
	dir = t.dirs[dirPath]
	if dir == nil {
		parentDir := t.getDir(filepath.Dir(dirPath))
		dir = parentDir.Add(filepath.Base(dirPath))
		t.dirs[dirPath] = dir
	}
	return
}

func (t visualFileTree) insertPath(filePath string) {
	dir := t.getDir(filepath.Dir(filePath))
	dir.Add(filepath.Base(filePath))
}

// RenderTree dibuja, por raíz, los archivos que están (o estarían, en
// dry-run) en la papelera.
func RenderTree(r Report) string {
	var b strings.Builder
	for _, tr := range r.Targets {
		if len(tr.Duplicates) == 0 {
			continue
		}
		vt := newVisualFileTree(tr.TrashDir)
		for _, a := range tr.Duplicates {
			rel, err := filepath.Rel(tr.TrashDir, a.Destination)
			if err != nil {
				continue
			}
			vt.insertPath(rel)
		}
		b.WriteString(vt.tree.Print())
	}
	return b.String()
}
