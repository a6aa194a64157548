package tag

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var ts = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func TestParseValid(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Tag
	}{
		{
			name: "override v1",
			line: "#Override : 00000001 | MdeModulePkg/Core/Dxe/DxeMain.inf | 0123456789abcdef0123456789abcdef | 2024-01-02T03-04-05",
			want: Tag{Kind: Override, Version: 1, TargetPath: "MdeModulePkg/Core/Dxe/DxeMain.inf",
				Fingerprint: "0123456789abcdef0123456789abcdef", Timestamp: ts},
		},
		{
			name: "track v2 lower-case keyword with spacing and comment",
			line: "  #  track:00000002|B/B.inf|ffff|2024-01-02T03-04-05|abc123   # pinned for Q1",
			want: Tag{Kind: Track, Version: 2, TargetPath: "B/B.inf", Fingerprint: "ffff", Timestamp: ts, Commit: "abc123"},
		},
		{
			name: "v2 with empty commit",
			line: "#OVERRIDE : 00000002 | Dir/Sub | aa | 2024-01-02T03-04-05 |",
			want: Tag{Kind: Override, Version: 2, TargetPath: "Dir/Sub", Fingerprint: "aa", Timestamp: ts},
		},
		{
			name: "v2 commit containing a colon",
			line: "#Override : 00000002 | B/B.inf | ffff | 2024-01-02T03-04-05 | 1234:abcdef",
			want: Tag{Kind: Override, Version: 2, TargetPath: "B/B.inf", Fingerprint: "ffff", Timestamp: ts, Commit: "1234:abcdef"},
		},
		{
			name: "backslash target is canonicalized",
			line: `#Override : 00000001 | \Pkg\X\X.inf | aa | 2024-01-02T03-04-05`,
			want: Tag{Kind: Override, Version: 1, TargetPath: "Pkg/X/X.inf", Fingerprint: "aa", Timestamp: ts},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := Parse(tc.line)
			if !ok || err != nil {
				t.Fatalf("Parse: ok=%v err=%v", ok, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("tag mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseNotATag(t *testing.T) {
	for _, line := range []string{
		"",
		"  Sample.c",
		"## @file",
		"# Overrides are documented: see README: section 2",
		"# Override without colon",
		"#Copyright : Acme",
		"[Sources]",
	} {
		if _, ok, err := Parse(line); ok || err != nil {
			t.Fatalf("Parse(%q) = ok %v err %v, want not a tag", line, ok, err)
		}
	}
}

func TestParseAgreesWithMatchLine(t *testing.T) {
	for _, line := range []string{
		"#Override : 00000002 | B/B.inf | ffff | 2024-01-02T03-04-05 | 1234:abcdef",
		"#Track : 00000001 | B/B.inf | ffff | 2024-01-02T03-04-05",
		"#Override : 00000001 | B/B.inf | ffff | 2024-01-02T03:04:05",
	} {
		_, parsed, _ := Parse(line)
		_, matched := MatchLine(line)
		if parsed != matched {
			t.Fatalf("line %q: Parse ok=%v, MatchLine ok=%v", line, parsed, matched)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		line string
		want error
	}{
		{"#Override : 00000003 | A/A.inf | aa | 2024-01-02T03-04-05", ErrVersionUnrecognized},
		{"#Override : 00000001 | A/A.inf | aa | 2024-01-02T03-04-05 | extra", ErrVersionUnrecognized},
		{"#Track : 00000002 | A/A.inf | aa | 2024-01-02T03-04-05", ErrVersionUnrecognized},
		{"#Override : one | A/A.inf | aa | 2024-01-02T03-04-05", ErrInvalidFormat},
		{"#Override : 00000001 | A/A.inf | aa | 2024-01-02 03-04-05", ErrInvalidFormat},
		{"#Override : 00000001 | A/A.inf | aa | 2024-13-02T03-04-05", ErrInvalidFormat},
		{"#Override : 00000001 |  | aa | 2024-01-02T03-04-05", ErrInvalidFormat},
		{"#Override : 00000001 | A/A.inf | aa | 2024-01-02T03:04:05", ErrInvalidFormat},
	}
	for _, tc := range cases {
		_, ok, err := Parse(tc.line)
		if !ok {
			t.Fatalf("Parse(%q): expected a tag", tc.line)
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("Parse(%q) err = %v, want %v", tc.line, err, tc.want)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("Parse(%q) err is %T, want *ParseError", tc.line, err)
		}
	}
}

func TestFormatBitExact(t *testing.T) {
	tg := Tag{Kind: Override, TargetPath: "B/B.inf", Fingerprint: "0123456789abcdef0123456789abcdef", Timestamp: ts, Commit: "deadbeef"}
	got, err := Format(tg, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := "#Override : 00000002 | B/B.inf | 0123456789abcdef0123456789abcdef | 2024-01-02T03-04-05 | deadbeef"
	if got != want {
		t.Fatalf("Format v2:\n got %q\nwant %q", got, want)
	}
	got, _ = Format(tg, 1)
	want = "#Override : 00000001 | B/B.inf | 0123456789abcdef0123456789abcdef | 2024-01-02T03-04-05"
	if got != want {
		t.Fatalf("Format v1:\n got %q\nwant %q", got, want)
	}
	if _, err := Format(tg, 9); !errors.Is(err, ErrVersionUnrecognized) {
		t.Fatalf("Format v9 err = %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	tags := []Tag{
		{Kind: Override, Version: 1, TargetPath: "A/A.inf", Fingerprint: "00ff", Timestamp: ts},
		{Kind: Track, Version: 1, TargetPath: "Pkg/Dir", Fingerprint: "abcd", Timestamp: ts},
		{Kind: Override, Version: 2, TargetPath: "A/A.inf", Fingerprint: "00ff", Timestamp: ts, Commit: "c0ffee"},
		{Kind: Track, Version: 2, TargetPath: "A/A.inf", Fingerprint: "00ff", Timestamp: ts},
	}
	for _, tg := range tags {
		line, err := Format(tg, tg.Version)
		if err != nil {
			t.Fatal(err)
		}
		got, ok, err := Parse(line)
		if !ok || err != nil {
			t.Fatalf("Parse(%q): ok=%v err=%v", line, ok, err)
		}
		if diff := cmp.Diff(tg, got); diff != "" {
			t.Fatalf("round trip of %q (-want +got):\n%s", line, diff)
		}
	}
}

func TestMatchLine(t *testing.T) {
	m, ok := MatchLine("\t#Track : 00000002 | A\\A.inf | abc | bad-time | c1 # keep")
	if !ok {
		t.Fatalf("expected match")
	}
	want := LineMatch{Indent: "\t", Kind: Track, Version: 2, TargetPath: "A/A.inf",
		Fingerprint: "abc", Timestamp: "bad-time", Commit: "c1", Comment: "# keep"}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Fatalf("match mismatch (-want +got):\n%s", diff)
	}
	if _, ok := MatchLine("#Override : 00000003 | A/A.inf | abc | 2024-01-02T03-04-05"); ok {
		t.Fatalf("version 3 must not match")
	}
	if _, ok := MatchLine("  A.c"); ok {
		t.Fatalf("source line must not match")
	}
}

func TestParseKindAndSupported(t *testing.T) {
	if k, ok := ParseKind(" TRACK "); !ok || k != Track {
		t.Fatalf("ParseKind TRACK = %v %v", k, ok)
	}
	if _, ok := ParseKind("overrides"); ok {
		t.Fatalf("overrides is not a kind")
	}
	for _, v := range Versions() {
		if !Supported(v) {
			t.Fatalf("version %d should be supported", v)
		}
	}
	if Supported(0) {
		t.Fatalf("version 0 is not supported")
	}
}
