package tag

import (
	"regexp"
	"strconv"

	"override-validator/internal/edk2path"
)

// lineRe matches version 1 and version 2 tag lines loosely enough for the
// regenerator to rewrite them even when the timestamp is damaged.
var lineRe = regexp.MustCompile(`(?i)^(\s*)#\s*(override|track)\s*:\s*(0*[12])\s*` +
	`\|\s*([^|#]+?)\s*\|\s*([^|#]*?)\s*\|\s*([^|#]*?)\s*(?:\|\s*([^|#]*?)\s*)?(#.*)?$`)

// LineMatch is the raw shape of a version 1 or 2 tag line.
type LineMatch struct {
	Indent      string
	Kind        Kind
	Version     int
	TargetPath  string
	Fingerprint string
	Timestamp   string
	Commit      string
	Comment     string // trailing "#..." comment, verbatim
}

// MatchLine reports whether line (without its terminator) is a version 1 or
// version 2 tag and returns its fields.
func MatchLine(line string) (LineMatch, bool) {
	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return LineMatch{}, false
	}
	kind, _ := ParseKind(m[2])
	v, err := strconv.Atoi(m[3])
	if err != nil {
		return LineMatch{}, false
	}
	return LineMatch{
		Indent:      m[1],
		Kind:        kind,
		Version:     v,
		TargetPath:  edk2path.Canonical(m[4]),
		Fingerprint: m[5],
		Timestamp:   m[6],
		Commit:      m[7],
		Comment:     m[8],
	}, true
}
