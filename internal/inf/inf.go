// Package inf reads the few parts of an EDK II module descriptor (INF) that
// the override tooling cares about: the [Sources] and [Binaries] file lists.
// It is deliberately not a full INF grammar.
package inf

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// Module is the parsed subset of one INF file. File entries are kept as
// written, relative to the INF's directory, in file order.
type Module struct {
	Path     string
	Sources  []string
	Binaries []string
}

type section int

const (
	sectionOther section = iota
	sectionSources
	sectionBinaries
)

// ParseFile reads and parses the INF at path.
func ParseFile(path string) (*Module, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inf: %w", err)
	}
	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse inf %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse extracts [Sources*] and [Binaries*] entries from INF content.
// Architecture-qualified sections ([Sources.X64], [Binaries.IA32]) are
// included. Each entry is the first token before any '|' qualifier.
func Parse(content []byte) (*Module, error) {
	m := &Module{}
	cur := sectionOther
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		l := StripComment(sc.Text())
		if l == "" {
			continue
		}
		if l[0] == '[' {
			cur = sectionOf(l)
			continue
		}
		switch cur {
		case sectionSources:
			if e := entryPath(l); e != "" {
				m.Sources = append(m.Sources, e)
			}
		case sectionBinaries:
			if e := entryPath(l); e != "" {
				m.Binaries = append(m.Binaries, e)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// StripComment drops everything from the first '#' and trims whitespace.
func StripComment(l string) string {
	if i := strings.IndexByte(l, '#'); i >= 0 {
		l = l[:i]
	}
	return strings.TrimSpace(l)
}

func sectionOf(header string) section {
	h := strings.ToLower(header)
	switch {
	case strings.HasPrefix(h, "[sources"):
		return sectionSources
	case strings.HasPrefix(h, "[binaries"):
		return sectionBinaries
	}
	return sectionOther
}

func entryPath(l string) string {
	l, _, _ = strings.Cut(l, "|")
	fields := strings.Fields(l)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
