// Package walkwalk provides the deterministic filesystem walker used by the
// fingerprinter to enumerate the files under a directory target.
package walkwalk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"override-validator/internal/sortutil"
)

// FileInfo is a minimal, deterministic descriptor of a collected file.
type FileInfo struct {
	RelPath string // root-relative path with forward slashes
	AbsPath string // absolute filesystem path
	Size    int64  // size in bytes
}

// Options tunes the walk.
type Options struct {
	// FollowSymlinks descends into symlinked directories and collects
	// symlinked files. Cycles are broken by tracking resolved directories.
	FollowSymlinks bool
}

type walkState struct {
	opts    Options
	root    string
	files   []FileInfo
	visited map[string]struct{}
}

// CollectFiles walks src and returns every regular file below it. Entries of
// each directory are visited in lexicographic byte order, so the result is
// stable across hosts and runs.
func CollectFiles(src string, opts Options) ([]FileInfo, error) {
	root, err := filepath.Abs(src)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("walk %s: not a directory", root)
	}
	ws := &walkState{opts: opts, root: root, visited: make(map[string]struct{})}
	if err := ws.scanDir(root, ""); err != nil {
		return nil, err
	}
	return ws.files, nil
}

func (ws *walkState) scanDir(dir, rel string) error {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if _, seen := ws.visited[real]; seen {
		return nil
	}
	ws.visited[real] = struct{}{}
	defer delete(ws.visited, real)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	byName := make(map[string]fs.DirEntry, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		byName[e.Name()] = e
		names = append(names, e.Name())
	}
	for _, name := range sortutil.StablePathSort(names) {
		if err := ws.visit(filepath.Join(dir, name), joinRel(rel, name), byName[name]); err != nil {
			return err
		}
	}
	return nil
}

func (ws *walkState) visit(path, rel string, d fs.DirEntry) error {
	if isSymlink(d) {
		if !ws.opts.FollowSymlinks {
			return nil
		}
		st, err := os.Stat(path)
		if err != nil {
			return err
		}
		if st.IsDir() {
			return ws.scanDir(path, rel)
		}
		return ws.handleFile(path, rel, st)
	}
	if d.IsDir() {
		return ws.scanDir(path, rel)
	}
	info, err := d.Info()
	if err != nil {
		return err
	}
	return ws.handleFile(path, rel, info)
}

func (ws *walkState) handleFile(path, rel string, info fs.FileInfo) error {
	if !info.Mode().IsRegular() {
		return nil
	}
	ws.files = append(ws.files, FileInfo{
		RelPath: rel,
		AbsPath: path,
		Size:    info.Size(),
	})
	return nil
}

func joinRel(rel, name string) string {
	if rel == "" {
		return name
	}
	return rel + "/" + name
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}
