// Package regen rewrites the override and track tags of an INF so that they
// record the current fingerprint of their targets, and builds fresh tag lines
// for maintainers to paste into a new overriding module.
//
// Tags that already match are left byte-identical, so running the
// regenerator twice in a row changes nothing the second time.
package regen

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"override-validator/internal/atomicfile"
	"override-validator/internal/diff"
	"override-validator/internal/edk2path"
	"override-validator/internal/fingerprint"
	"override-validator/internal/gitrev"
	"override-validator/internal/tag"
	"override-validator/internal/textutil"
)

// Options controls one regeneration.
type Options struct {
	// Version selects the format of rewritten lines; 0 keeps each line's
	// own version.
	Version int
	// DryRun computes the changes and returns a unified diff without
	// touching the file.
	DryRun bool
}

// Result counts what happened to the tag lines of one INF.
type Result struct {
	Updated    int
	Unchanged  int
	Unresolved int
}

// Regenerator rewrites tags against one workspace.
type Regenerator struct {
	resolver *edk2path.Resolver
	logger   *log.Logger
	now      func() time.Time
	commit   func(dir string) string
}

// Option configures a Regenerator.
type Option func(*Regenerator)

// WithLogger routes warnings about unresolvable targets to l.
func WithLogger(l *log.Logger) Option {
	return func(g *Regenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock replaces time.Now for new timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Regenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithCommitLookup replaces the repository commit lookup used by version 2.
func WithCommitLookup(fn func(dir string) string) Option {
	return func(g *Regenerator) {
		if fn != nil {
			g.commit = fn
		}
	}
}

// New returns a Regenerator resolving targets through r.
func New(r *edk2path.Resolver, opts ...Option) *Regenerator {
	g := &Regenerator{
		resolver: r,
		logger:   log.New(io.Discard),
		now:      time.Now,
		commit:   gitrev.Lookup,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Regenerate refreshes every stale tag in the INF at path. In dry-run mode
// the returned string is a unified diff of the pending change; otherwise the
// file is replaced atomically when at least one line changed.
func (g *Regenerator) Regenerate(path string, opt Options) (Result, string, error) {
	var res Result
	if opt.Version != 0 && !tag.Supported(opt.Version) {
		return res, "", fmt.Errorf("regenerate: %w: %d", tag.ErrVersionUnrecognized, opt.Version)
	}
	old, err := os.ReadFile(path)
	if err != nil {
		return res, "", fmt.Errorf("regenerate: %w", err)
	}

	lines := textutil.SplitLinesKeepEOL(old)
	for i, raw := range lines {
		body, eol := textutil.TrimEOL(raw)
		m, ok := tag.MatchLine(body)
		if !ok {
			continue
		}
		updated, changed, err := g.refresh(m, opt.Version)
		switch {
		case err != nil:
			res.Unresolved++
			g.logger.Warn("tag left untouched", "file", path, "line", i+1, "target", m.TargetPath, "err", err)
		case !changed:
			res.Unchanged++
		default:
			res.Updated++
			lines[i] = updated + eol
			g.logger.Info("tag updated", "file", path, "line", i+1, "target", m.TargetPath)
		}
	}
	if res.Updated == 0 {
		return res, "", nil
	}

	next := []byte(strings.Join(lines, ""))
	if opt.DryRun {
		name := filepath.ToSlash(path)
		if rel := g.resolver.ToRelative(path); rel != "" {
			name = rel
		}
		d, err := diff.Unified(name, old, next, diff.Options{})
		return res, d, err
	}
	if err := atomicfile.WriteFile(path, next, 0o644); err != nil {
		return res, "", fmt.Errorf("regenerate %s: %w", path, err)
	}
	return res, "", nil
}

// refresh computes the replacement for one tag line. changed is false when
// the recorded fingerprint is still current.
func (g *Regenerator) refresh(m tag.LineMatch, version int) (line string, changed bool, err error) {
	target := g.resolver.ToAbsolute(m.TargetPath)
	if target == "" {
		return "", false, errors.New("target not found in workspace or package paths")
	}
	fp, err := fingerprint.Module(target)
	if err != nil {
		return "", false, err
	}
	if strings.EqualFold(fp, m.Fingerprint) {
		return "", false, nil
	}
	if version == 0 {
		version = m.Version
	}
	t := tag.Tag{Kind: m.Kind, TargetPath: m.TargetPath, Fingerprint: fp, Timestamp: g.now().UTC()}
	if version >= 2 {
		t.Commit = g.commit(commitDir(target))
	}
	s, err := tag.Format(t, version)
	if err != nil {
		return "", false, err
	}
	line = m.Indent + s
	if m.Comment != "" {
		line += " " + m.Comment
	}
	return line, true, nil
}

// TagLine builds a tag for target, an absolute or cwd-relative file or
// directory. The recorded path is workspace-relative when the target lies in
// the workspace or a package path, otherwise it starts at the target's
// containing package.
func (g *Regenerator) TagLine(target string, kind tag.Kind, version int) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	fp, err := fingerprint.Module(abs)
	if err != nil {
		return "", err
	}
	rel := g.resolver.ToRelative(abs)
	if rel == "" {
		rel = packageRelative(abs, g.resolver.ContainingPackage(abs))
	}
	if rel == "" {
		return "", fmt.Errorf("%s is outside the workspace and no containing package was found", target)
	}
	t := tag.Tag{Kind: kind, TargetPath: rel, Fingerprint: fp, Timestamp: g.now().UTC()}
	if version >= 2 {
		t.Commit = g.commit(commitDir(abs))
	}
	return tag.Format(t, version)
}

// packageRelative cuts abs down to the path starting at the last component
// named pkg.
func packageRelative(abs, pkg string) string {
	if pkg == "" {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(abs), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if parts[i] == pkg {
			return strings.Join(parts[i:], "/")
		}
	}
	return ""
}

func commitDir(target string) string {
	if st, err := os.Stat(target); err == nil && st.IsDir() {
		return target
	}
	return filepath.Dir(target)
}
