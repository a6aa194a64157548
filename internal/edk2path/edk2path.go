// Package edk2path converts between EDK II workspace-relative paths and
// absolute host paths, using the workspace root plus an ordered list of
// package paths, and locates the package that owns a given file.
//
// Workspace-relative paths always use forward slashes and carry no leading
// separator. Host separators only appear in the absolute paths handed to
// filesystem calls.
package edk2path

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

// Resolver maps paths for one workspace. It holds no mutable state after
// construction and is safe to reuse across walks.
type Resolver struct {
	workspace    string
	packagePaths []string
	foldCase     bool
	logger       *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger routes debug output to l.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCaseFolding overrides the host default for case-insensitive
// comparisons (on for windows and darwin).
func WithCaseFolding(fold bool) Option {
	return func(r *Resolver) { r.foldCase = fold }
}

// New builds a Resolver. The workspace may be relative to the current
// directory. Each package path may be absolute, workspace-relative (when that
// directory exists) or relative to the current directory. Every entry must be
// an existing directory.
func New(workspace string, packagePaths []string, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		foldCase: runtime.GOOS == "windows" || runtime.GOOS == "darwin",
		logger:   log.New(io.Discard),
	}
	for _, o := range opts {
		o(r)
	}

	ws, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("workspace %q: %w", workspace, err)
	}
	if !isDir(ws) {
		return nil, fmt.Errorf("workspace path invalid: %s", workspace)
	}
	r.workspace = filepath.Clean(ws)

	var bad []string
	for _, p := range packagePaths {
		if p == "" {
			continue
		}
		abs := p
		if !filepath.IsAbs(p) {
			if wsr := filepath.Join(r.workspace, p); isDir(wsr) {
				abs = wsr
			} else if abs, err = filepath.Abs(p); err != nil {
				return nil, fmt.Errorf("package path %q: %w", p, err)
			}
		}
		abs = filepath.Clean(abs)
		if !isDir(abs) {
			bad = append(bad, abs)
			continue
		}
		r.packagePaths = append(r.packagePaths, abs)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("invalid package path directory(s): %s", strings.Join(bad, ", "))
	}
	return r, nil
}

// Workspace returns the absolute workspace root.
func (r *Resolver) Workspace() string { return r.workspace }

// PackagePaths returns a copy of the absolute package path roots in
// resolution order.
func (r *Resolver) PackagePaths() []string {
	return append([]string(nil), r.packagePaths...)
}

// ToAbsolute resolves a workspace-relative path against the workspace root and
// then each package path, returning the first candidate that exists. It
// returns "" when nothing exists; it never returns a missing path.
func (r *Resolver) ToAbsolute(rel string) string {
	rel = Canonical(rel)
	if rel == "" {
		return ""
	}
	native := filepath.FromSlash(rel)
	for _, root := range r.roots() {
		p := filepath.Join(root, native)
		if exists(p) {
			return p
		}
	}
	r.logger.Debug("unable to resolve workspace path", "path", rel)
	return ""
}

// ToRelative converts an absolute path to its workspace-relative form. The
// prefix match is case-insensitive; package paths are tried longest first,
// then the workspace. It returns "" when no root contains abs.
func (r *Resolver) ToRelative(abs string) string {
	if abs == "" {
		return ""
	}
	abs = filepath.Clean(abs)
	pps := r.PackagePaths()
	sort.SliceStable(pps, func(i, j int) bool { return len(pps[i]) > len(pps[j]) })
	for _, root := range append(pps, r.workspace) {
		if rest, ok := trimRoot(abs, root); ok {
			return Canonical(rest)
		}
	}
	r.logger.Debug("path is outside workspace and package paths", "path", abs)
	return ""
}

// ContainingPackage names the package holding abs: the first ancestor
// directory carrying a .dec file, or, when a package path root or the
// workspace root is reached first, the directory just below that root.
func (r *Resolver) ContainingPackage(abs string) string {
	abs = filepath.Clean(abs)
	dir := filepath.Dir(abs)
	prev := dir
	for {
		if r.isRoot(dir) {
			return filepath.Base(prev)
		}
		if hasDec(dir) {
			return filepath.Base(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			r.logger.Debug("no containing package", "path", abs)
			return ""
		}
		prev, dir = dir, parent
	}
}

// Key returns the form of abs used to compare paths for identity: cleaned,
// and lower-cased on case-insensitive hosts.
func (r *Resolver) Key(abs string) string {
	k := filepath.Clean(abs)
	if r.foldCase {
		k = strings.ToLower(k)
	}
	return k
}

func (r *Resolver) roots() []string {
	return append([]string{r.workspace}, r.packagePaths...)
}

func (r *Resolver) isRoot(dir string) bool {
	for _, root := range r.roots() {
		if r.Key(dir) == r.Key(root) {
			return true
		}
	}
	return false
}

// Canonical rewrites p with forward slashes, drops "." segments and any
// leading separators.
func Canonical(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, s := range parts {
		if s == "" || s == "." {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, "/")
}

// trimRoot strips root from abs when root is a case-insensitive prefix that
// ends on a path component boundary.
func trimRoot(abs, root string) (string, bool) {
	if len(abs) < len(root) || !strings.EqualFold(abs[:len(root)], root) {
		return "", false
	}
	rest := abs[len(root):]
	if rest == "" {
		return "", false
	}
	if !os.IsPathSeparator(rest[0]) && !strings.HasSuffix(root, string(filepath.Separator)) {
		return "", false
	}
	return rest, true
}

func hasDec(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dec") {
			return true
		}
	}
	return false
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}
