// Package override walks the override and track tags reachable from a set of
// root INFs and validates each recorded fingerprint against the workspace.
//
// The walk is depth-first in source-line order. Every root gets its own
// visited stack, so two branches may both reach the same module while a
// cycle within one chain is cut short (the repeat visit returns OK).
//
// Status rules per file:
//   - A failing override tag fails the file.
//   - Track tags only fail the file when every track tag in it points at a
//     missing target, or when a changed target is not matched by a sibling
//     track tag naming the same target.
package override

import (
	"errors"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"override-validator/internal/edk2path"
	"override-validator/internal/fingerprint"
	"override-validator/internal/tag"
	"override-validator/internal/textutil"
)

// ModuleNode is one module in the realized override tree. A root node stands
// for an INF named by the platform; every other node stands for one tag line
// of its parent.
type ModuleNode struct {
	Path                string // workspace-relative
	Status              Status
	AgeDays             int
	ExpectedFingerprint string // freshly computed
	RecordedFingerprint string // as written in the tag
	Kind                tag.Kind
	Line                int // tag line in the parent INF; 0 for roots
	Children            []*ModuleNode
}

// Result is the outcome of one walk.
type Result struct {
	Nodes    []*ModuleNode // one per root, in input order
	Total    int           // tags processed
	OK       int           // tags whose fingerprint matched
	Failures int           // roots whose status is not OK
}

// Walker validates tags against one workspace.
type Walker struct {
	resolver *edk2path.Resolver
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Walker.
type Option func(*Walker)

// WithLogger routes per-tag status lines to l.
func WithLogger(l *log.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock replaces time.Now for age computation.
func WithClock(now func() time.Time) Option {
	return func(w *Walker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWalker returns a Walker resolving targets through r.
func NewWalker(r *edk2path.Resolver, opts ...Option) *Walker {
	w := &Walker{
		resolver: r,
		logger:   log.New(io.Discard),
		now:      time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// walk holds the state of one Walk call.
type walk struct {
	*Walker
	now   time.Time
	total int
	ok    int
}

// outcome is what one tag line contributes to its file.
type outcome struct {
	kind      tag.Kind
	target    string
	line      Status // the tag's own check
	effective Status // line, or the target's status when line is OK
}

// Walk validates every root, given as workspace-relative INF paths.
func (w *Walker) Walk(roots []string) Result {
	start := w.now()
	wk := &walk{Walker: w, now: start.UTC()}
	w.logger.Info("override validation starting", "roots", len(roots))

	var res Result
	for _, rel := range roots {
		node := &ModuleNode{Path: edk2path.Canonical(rel)}
		abs := w.resolver.ToAbsolute(node.Path)
		if abs == "" {
			node.Status = DSCINFNotFound
		} else {
			node.Status = wk.visit(abs, node.Path, nil, node)
		}
		if node.Status != OK {
			res.Failures++
			w.logger.Error("override processing error", "file", node.Path, "status", node.Status)
		}
		res.Nodes = append(res.Nodes, node)
	}
	res.Total, res.OK = wk.total, wk.ok

	level := log.InfoLevel
	if res.Failures > 0 {
		level = log.ErrorLevel
	}
	w.logger.Log(level, "override validation finished",
		"ok", res.OK, "total", res.Total, "failures", res.Failures,
		"elapsed", w.now().Sub(start).Round(time.Millisecond))
	return res
}

// visit processes every tag of the module at abs and returns its status.
// stack holds the identity keys of the modules on the current chain.
func (wk *walk) visit(abs, rel string, stack []string, node *ModuleNode) Status {
	key := wk.resolver.Key(abs)
	for _, k := range stack {
		if k == key {
			wk.logger.Debug("cycle ignored", "file", rel)
			return OK
		}
	}
	st, err := os.Stat(abs)
	if err != nil {
		return DSCINFNotFound
	}
	if st.IsDir() {
		return OK
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		wk.logger.Error("unable to read module", "file", rel, "err", err)
		return DSCINFNotFound
	}
	stack = append(stack, key)

	var outcomes []outcome
	for i, raw := range textutil.SplitLinesKeepEOL(content) {
		body, _ := textutil.TrimEOL(raw)
		t, isTag, perr := tag.Parse(body)
		if !isTag {
			continue
		}
		child := &ModuleNode{Path: t.TargetPath, Kind: t.Kind, Line: i + 1}
		node.Children = append(node.Children, child)
		wk.total++

		o := wk.check(t, perr, stack, child)
		outcomes = append(outcomes, o)
		wk.logLine(rel, child, perr)
	}
	return collapse(outcomes)
}

// check validates one parsed tag and recurses into its target.
func (wk *walk) check(t tag.Tag, perr error, stack []string, child *ModuleNode) outcome {
	o := outcome{kind: t.Kind, target: t.TargetPath}
	set := func(s Status) outcome {
		child.Status, o.line, o.effective = s, s, s
		return o
	}
	if perr != nil {
		if errors.Is(perr, tag.ErrVersionUnrecognized) {
			return set(VersionUnrecognized)
		}
		return set(InvalidFormat)
	}

	target := wk.resolver.ToAbsolute(t.TargetPath)
	if target == "" {
		return set(TargetINFNotFound)
	}
	if rel := wk.resolver.ToRelative(target); rel != "" {
		child.Path = rel
	}
	child.RecordedFingerprint = t.Fingerprint
	child.AgeDays = ageDays(wk.now, t.Timestamp)

	fp, err := fingerprint.Module(target)
	if err != nil {
		wk.logger.Warn("unable to fingerprint target", "target", child.Path, "err", err)
		return set(TargetINFNotFound)
	}
	child.ExpectedFingerprint = fp

	line := OK
	if !strings.EqualFold(fp, t.Fingerprint) {
		line = FileChanged
	} else {
		wk.ok++
	}
	set(line)

	if sub := wk.visit(target, child.Path, stack, child); sub != OK && line == OK {
		o.effective = sub
	}
	return o
}

func (wk *walk) logLine(file string, n *ModuleNode, perr error) {
	kv := []any{"file", file, "line", n.Line, "kind", n.Kind, "target", n.Path, "status", n.Status}
	if n.Status == FileChanged {
		kv = append(kv, "expected", n.ExpectedFingerprint, "recorded", n.RecordedFingerprint)
	}
	if perr != nil {
		kv = append(kv, "err", perr)
	}
	// Override lines log at ERROR whatever their status.
	if n.Kind == tag.Override {
		wk.logger.Error("override tag", kv...)
		return
	}
	wk.logger.Info("track tag", kv...)
}

// collapse folds the per-tag outcomes of one file into its status. The first
// contributing failure in line order wins.
func collapse(outcomes []outcome) Status {
	tracks, missing := 0, 0
	for _, o := range outcomes {
		if o.kind == tag.Track {
			tracks++
			if o.line == TargetINFNotFound {
				missing++
			}
		}
	}
	allMissing := tracks > 0 && missing == tracks

	for i, o := range outcomes {
		s := o.effective
		if o.kind == tag.Track {
			switch o.line {
			case TargetINFNotFound:
				if !allMissing {
					s = OK
				}
			case FileChanged:
				if matchedBySibling(outcomes, i) {
					s = OK
				}
			}
		}
		if s != OK {
			return s
		}
	}
	return OK
}

func matchedBySibling(outcomes []outcome, i int) bool {
	for j, o := range outcomes {
		if j != i && o.kind == tag.Track && o.line == OK && strings.EqualFold(o.target, outcomes[i].target) {
			return true
		}
	}
	return false
}

// ageDays is the whole number of 24-hour days from recorded to now, rounded
// down.
func ageDays(now, recorded time.Time) int {
	return int(math.Floor(now.Sub(recorded).Hours() / 24))
}
