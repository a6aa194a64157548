// Package diff renders unified diffs of INF rewrites. It uses
// github.com/pmezard/go-difflib/difflib to produce classic unified patches
// (---/+++ headers, @@ hunks, lines prefixed with ' ', '-', '+').
package diff

import (
	"fmt"

	difflib "github.com/pmezard/go-difflib/difflib"

	"override-validator/internal/textutil"
)

// Options controls patch generation behavior.
type Options struct {
	// Context controls the number of context lines in unified hunks.
	// If 0, default to 3.
	Context int

	// NoPrefix controls whether FromFile/ToFile are prefixed with "a/" and "b/".
	NoPrefix bool
}

// Unified produces a unified patch for a↦b under the given display name.
// Identical inputs yield an empty string.
func Unified(name string, a, b []byte, opt Options) (string, error) {
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	from, to := "a/"+name, "b/"+name
	if opt.NoPrefix {
		from, to = name, name
	}
	u := difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: from,
		ToFile:   to,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", name, err)
	}
	return s, nil
}

// splitLines keeps newline characters, which produces better unified hunks.
// CRLF terminators are folded so Windows checkouts diff cleanly.
func splitLines(b []byte) []string {
	lines := textutil.SplitLinesKeepEOL(textutil.CRLFToLF(b))
	if lines == nil {
		return []string{}
	}
	return lines
}
