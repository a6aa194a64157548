// Package tag models the override and track comment lines that pin a module
// to the fingerprint of the module it was derived from.
//
// Wire form (one INF comment line):
//
//	#<Kind> : <VERSION8> | <target> | <fingerprint> | <YYYY-MM-DDThh-mm-ss>[ | <commit>]
//
// The kind keyword is case-insensitive. Each version has a fixed field count
// (the version field included); the parser picks the version first and
// validates the field count against it.
package tag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"override-validator/internal/edk2path"
)

// TimestampLayout is the recorded timestamp form. The time part uses hyphens.
const TimestampLayout = "2006-01-02T15-04-05"

// Kind distinguishes strict override tags from lenient track tags.
type Kind int

const (
	Override Kind = iota
	Track
)

// String returns the keyword as written on disk.
func (k Kind) String() string {
	if k == Track {
		return "Track"
	}
	return "Override"
}

// ParseKind matches a kind keyword case-insensitively.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "override":
		return Override, true
	case "track":
		return Track, true
	}
	return 0, false
}

// Tag is one decoded tag line.
type Tag struct {
	Kind        Kind
	Version     int
	TargetPath  string // workspace-relative, forward slashes
	Fingerprint string
	Timestamp   time.Time // UTC, second precision
	Commit      string    // version 2 and later; may be empty
}

var (
	// ErrInvalidFormat marks a tag whose fields cannot be decoded.
	ErrInvalidFormat = errors.New("invalid tag format")
	// ErrVersionUnrecognized marks an unknown version, or a known version
	// with the wrong number of fields.
	ErrVersionUnrecognized = errors.New("unrecognized tag version")
)

// ParseError describes why a tag line was rejected. It unwraps to
// ErrInvalidFormat or ErrVersionUnrecognized.
type ParseError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s tag: %s: %s", e.Kind, e.Err, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// format is the per-version contract.
type format struct {
	fields int
	decode func(f []string, t *Tag) error
	encode func(t Tag) []string
}

var formats = map[int]format{
	1: {fields: 4, decode: decodeV1, encode: encodeV1},
	2: {fields: 5, decode: decodeV2, encode: encodeV2},
}

// Versions lists the supported tag versions in ascending order.
func Versions() []int { return []int{1, 2} }

// Supported reports whether v is a known version.
func Supported(v int) bool {
	_, ok := formats[v]
	return ok
}

func decodeV1(f []string, t *Tag) error {
	t.TargetPath = edk2path.Canonical(f[1])
	if t.TargetPath == "" {
		return errors.New("empty target path")
	}
	t.Fingerprint = f[2]
	ts, err := time.ParseInLocation(TimestampLayout, f[3], time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q", f[3])
	}
	t.Timestamp = ts
	return nil
}

func decodeV2(f []string, t *Tag) error {
	if err := decodeV1(f[:4], t); err != nil {
		return err
	}
	t.Commit = f[4]
	return nil
}

func encodeV1(t Tag) []string {
	return []string{t.TargetPath, t.Fingerprint, t.Timestamp.UTC().Format(TimestampLayout)}
}

func encodeV2(t Tag) []string {
	return append(encodeV1(t), t.Commit)
}

// Parse decodes one INF line. ok is false when the line is not a tag at all
// (not a comment, or no override/track keyword before the first ':'). Later
// colons belong to the fields. When ok is true and err is non-nil, err is a
// *ParseError.
func Parse(line string) (t Tag, ok bool, err error) {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "#") {
		return Tag{}, false, nil
	}
	l, _, _ = strings.Cut(strings.TrimLeft(l, "#"), "#")
	head, body, found := strings.Cut(l, ":")
	if !found {
		return Tag{}, false, nil
	}
	kind, isTag := ParseKind(head)
	if !isTag {
		return Tag{}, false, nil
	}
	t.Kind = kind

	fields := strings.Split(body, "|")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	t.Version, err = strconv.Atoi(fields[0])
	if err != nil {
		return t, true, &ParseError{Kind: kind, Err: ErrInvalidFormat, Reason: fmt.Sprintf("invalid version %q", fields[0])}
	}
	f, known := formats[t.Version]
	if !known {
		return t, true, &ParseError{Kind: kind, Err: ErrVersionUnrecognized, Reason: fmt.Sprintf("version %d", t.Version)}
	}
	if len(fields) != f.fields {
		return t, true, &ParseError{Kind: kind, Err: ErrVersionUnrecognized,
			Reason: fmt.Sprintf("version %d expects %d fields, found %d", t.Version, f.fields, len(fields))}
	}
	if err := f.decode(fields, &t); err != nil {
		return t, true, &ParseError{Kind: kind, Err: ErrInvalidFormat, Reason: err.Error()}
	}
	return t, true, nil
}

// Format renders t in the wire form of the given version.
func Format(t Tag, version int) (string, error) {
	f, ok := formats[version]
	if !ok {
		return "", fmt.Errorf("format version %d: %w", version, ErrVersionUnrecognized)
	}
	t.TargetPath = edk2path.Canonical(t.TargetPath)
	line := fmt.Sprintf("#%s : %08d | %s", t.Kind, version, strings.Join(f.encode(t), " | "))
	return strings.TrimRight(line, " "), nil
}
