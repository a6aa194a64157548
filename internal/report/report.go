// Package report renders a walk result as OVERRIDELOG.TXT.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"override-validator/internal/atomicfile"
	"override-validator/internal/override"
	"override-validator/internal/tag"
)

// FileName is the report name under the build output directory.
const FileName = "OVERRIDELOG.TXT"

// Header carries the informational fields printed above the tree.
type Header struct {
	Platform string
	Version  string
	Date     time.Time
	Commit   string
}

// Render writes the report for res to w. Only roots that carry at least one
// tag are listed.
func Render(w io.Writer, h Header, res override.Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Platform: %s\n", h.Platform)
	fmt.Fprintf(bw, "Version:  %s\n", h.Version)
	fmt.Fprintf(bw, "Date:     %s\n", h.Date.UTC().Format(tag.TimestampLayout))
	fmt.Fprintf(bw, "Commit:   %s\n", h.Commit)
	fmt.Fprintf(bw, "State:    %d/%d\n", res.OK, res.Total)
	bw.WriteString("\nOverrides\n")
	bw.WriteString(strings.Repeat("-", 64) + "\n\n")

	for _, n := range res.Nodes {
		if len(n.Children) == 0 {
			continue
		}
		fmt.Fprintf(bw, "OVERRIDER: %s\n", n.Path)
		bw.WriteString("ORIGINALS:\n")
		writeChildren(bw, n, 1)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func writeChildren(w *bufio.Writer, n *override.ModuleNode, depth int) {
	indent := strings.Repeat("\t", depth)
	for _, c := range n.Children {
		fmt.Fprintf(w, "%s+ %s | %s | %d days\n", indent, c.Path, c.Status.ReportString(), c.AgeDays)
		if c.Status != override.OK {
			fmt.Fprintf(w, "%s| \tCurrent State: %s | Last Fingerprint: %s\n", indent, c.ExpectedFingerprint, c.RecordedFingerprint)
		}
		writeChildren(w, c, depth+1)
	}
}

// Write renders the report into dir/OVERRIDELOG.TXT, creating dir, and
// returns the file path.
func Write(dir string, h Header, res override.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	err := atomicfile.Write(path, 0o644, func(w io.Writer) error {
		return Render(w, h, res)
	})
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
