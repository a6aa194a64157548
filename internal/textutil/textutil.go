// Package textutil holds the small byte-level text helpers shared by the
// fingerprinter and the tag regenerator.
package textutil

import "bytes"

// CRLFToLF converts every CRLF pair to LF. Lone CR bytes are kept as-is so
// that the hash of a file only depends on its line terminator convention,
// not on stray carriage returns inside a line.
func CRLFToLF(b []byte) []byte {
	if bytes.IndexByte(b, '\r') < 0 {
		return b
	}
	return bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
}

// SplitLinesKeepEOL splits b into lines, keeping the terminator ("\n" or
// "\r\n") attached to each line. A final line without terminator is kept.
func SplitLinesKeepEOL(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var out []string
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			out = append(out, string(b))
			break
		}
		out = append(out, string(b[:i+1]))
		b = b[i+1:]
	}
	return out
}

// TrimEOL splits a line into its body and its terminator.
func TrimEOL(line string) (body, eol string) {
	switch {
	case len(line) >= 2 && line[len(line)-2:] == "\r\n":
		return line[:len(line)-2], "\r\n"
	case len(line) >= 1 && line[len(line)-1] == '\n':
		return line[:len(line)-1], "\n"
	}
	return line, ""
}
