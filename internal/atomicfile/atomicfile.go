// Package atomicfile writes files through a temporary sibling followed by a
// rename, so readers never observe a partially written file.
//
// Conventions:
//   - The temporary file lives in the destination directory, named
//     ".tmp-<base>-<random>", so the final rename stays on one filesystem.
//   - On any failure the temporary file is removed and the destination is
//     left untouched.
package atomicfile

import (
	"io"
	"os"
	"path/filepath"
)

// WriteFile atomically replaces path with data. If path already exists its
// permission bits are preserved; otherwise perm is used.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return Write(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Write atomically replaces path with whatever fill writes.
func Write(path string, perm os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if st, err := os.Stat(path); err == nil {
		perm = st.Mode().Perm()
	}
	tmp, f, err := createTempFile(dir, filepath.Base(path))
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp) // best-effort cleanup
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// createTempFile creates a temporary file in the target directory with a
// name derived from base, returning its path and an *os.File ready for
// writing. Caller is responsible for closing it.
func createTempFile(dir, base string) (string, *os.File, error) {
	prefix := ".tmp-" + base + "-"
	f, err := os.CreateTemp(dir, prefix)
	if err != nil {
		return "", nil, err
	}
	return f.Name(), f, nil
}
