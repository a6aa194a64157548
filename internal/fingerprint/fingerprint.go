// Package fingerprint computes the content hash recorded in override and
// track tags.
//
// The digest is MD5 over a deterministic byte stream:
//   - INF file: the INF itself, then each [Sources] entry, both with CRLF
//     folded to LF, then each [Binaries] entry as raw bytes.
//   - Directory: every regular file below it, raw, in per-level
//     lexicographic order.
//   - Any other file: its raw bytes.
//
// Hashing an INF and hashing its directory therefore give different results
// for the same tree; existing tags depend on that, so it stays.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"
	"strings"

	"override-validator/internal/edk2path"
	"override-validator/internal/inf"
	"override-validator/internal/textutil"
	"override-validator/internal/walkwalk"
)

// Size is the digest length in hex characters.
const Size = md5.Size * 2

// Module fingerprints path, dispatching on whether it is a directory, an INF
// or a plain file. Symbolic links are followed. A file referenced by an INF
// that cannot be read is an error; it is never hashed as empty.
func Module(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	switch {
	case st.IsDir():
		return Directory(path)
	case IsINF(path):
		return INF(path)
	default:
		return File(path)
	}
}

// INF fingerprints a module descriptor and the files it lists.
func INF(path string) (string, error) {
	h := md5.New()
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint inf: %w", err)
	}
	h.Write(textutil.CRLFToLF(content))

	m, err := inf.Parse(content)
	if err != nil {
		return "", fmt.Errorf("fingerprint inf %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for _, src := range m.Sources {
		if err := feed(h, entryPath(dir, src), true); err != nil {
			return "", fmt.Errorf("fingerprint %s source: %w", path, err)
		}
	}
	for _, bin := range m.Binaries {
		if err := feed(h, entryPath(dir, bin), false); err != nil {
			return "", fmt.Errorf("fingerprint %s binary: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Directory fingerprints every regular file below dir.
func Directory(dir string) (string, error) {
	files, err := walkwalk.CollectFiles(dir, walkwalk.Options{FollowSymlinks: true})
	if err != nil {
		return "", fmt.Errorf("fingerprint dir: %w", err)
	}
	h := md5.New()
	for _, f := range files {
		if err := feed(h, f.AbsPath, false); err != nil {
			return "", fmt.Errorf("fingerprint dir %s: %w", dir, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File fingerprints a single file's raw bytes.
func File(path string) (string, error) {
	h := md5.New()
	if err := feed(h, path, false); err != nil {
		return "", fmt.Errorf("fingerprint file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsINF reports whether path names a module descriptor.
func IsINF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".inf")
}

// entryPath locates an INF file entry below dir. Entries may use either
// separator.
func entryPath(dir, entry string) string {
	return filepath.Join(dir, filepath.FromSlash(edk2path.Canonical(entry)))
}

func feed(h hash.Hash, path string, normalize bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if normalize {
		b = textutil.CRLFToLF(b)
	}
	h.Write(b)
	return nil
}
