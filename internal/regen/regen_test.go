package regen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"override-validator/internal/edk2path"
	"override-validator/internal/fingerprint"
	"override-validator/internal/tag"
)

var now = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func setup(t *testing.T) (string, *Regenerator) {
	t.Helper()
	ws := t.TempDir()
	write(t, ws, "B/B.inf", "[Sources]\n  B.c\n")
	write(t, ws, "B/B.c", "int b;\n")
	write(t, ws, "C/C.inf", "[Sources]\n")
	r, err := edk2path.New(ws, nil)
	if err != nil {
		t.Fatal(err)
	}
	g := New(r, WithClock(func() time.Time { return now }),
		WithCommitLookup(func(string) string { return "c0ffee" }))
	return ws, g
}

func write(t *testing.T, ws, rel, content string) {
	t.Helper()
	p := filepath.Join(ws, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func fp(t *testing.T, ws, rel string) string {
	t.Helper()
	h, err := fingerprint.Module(filepath.Join(ws, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func TestRegenerateStaleOverrideKeepsMatchingTrack(t *testing.T) {
	ws, g := setup(t)
	track := "  #Track : 00000001 | C/C.inf | " + fp(t, ws, "C/C.inf") + " | 2020-01-01T00-00-00"
	content := "## @file\r\n" +
		"#Override : 00000002 | B/B.inf | 00000000000000000000000000000000 | 2020-01-01T00-00-00 | old # keep me\r\n" +
		track + "\r\n" +
		"[Sources]\r\n  A.c\r\n"
	write(t, ws, "A/A.inf", content)
	path := filepath.Join(ws, "A", "A.inf")

	res, d, err := g.Regenerate(path, Options{Version: 2})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if diff := cmp.Diff(Result{Updated: 1, Unchanged: 1}, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if d != "" {
		t.Fatalf("diff is only produced in dry-run mode")
	}
	got, _ := os.ReadFile(path)
	want := "## @file\r\n" +
		"#Override : 00000002 | B/B.inf | " + fp(t, ws, "B/B.inf") + " | 2024-06-01T08-30-00 | c0ffee # keep me\r\n" +
		track + "\r\n" +
		"[Sources]\r\n  A.c\r\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Fatalf("file mismatch (-want +got):\n%s", diff)
	}
}

func TestRegenerateIsIdempotent(t *testing.T) {
	ws, g := setup(t)
	write(t, ws, "A/A.inf", "#Override : 00000001 | B/B.inf | stale | 2020-01-01T00-00-00\n")
	path := filepath.Join(ws, "A", "A.inf")
	if _, _, err := g.Regenerate(path, Options{}); err != nil {
		t.Fatal(err)
	}
	first, _ := os.ReadFile(path)

	later := New(g.resolver, WithClock(func() time.Time { return now.Add(48 * time.Hour) }))
	res, _, err := later.Regenerate(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, _ := os.ReadFile(path)
	if res.Updated != 0 || string(first) != string(second) {
		t.Fatalf("second run changed the file:\n%s\n---\n%s", first, second)
	}
	if !strings.HasPrefix(string(first), "#Override : 00000001 | B/B.inf | "+fp(t, ws, "B/B.inf")) {
		t.Fatalf("version 1 line expected, got %q", first)
	}
}

func TestRegenerateDryRun(t *testing.T) {
	ws, g := setup(t)
	content := "#Track : 00000001 | B/B.inf | stale | 2020-01-01T00-00-00\n"
	write(t, ws, "A/A.inf", content)
	path := filepath.Join(ws, "A", "A.inf")

	res, d, err := g.Regenerate(path, Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Updated != 1 {
		t.Fatalf("updated = %d", res.Updated)
	}
	if !strings.Contains(d, "--- a/A/A.inf") || !strings.Contains(d, "-#Track : 00000001 | B/B.inf | stale") {
		t.Fatalf("diff:\n%s", d)
	}
	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Fatalf("dry run modified the file")
	}
}

func TestRegenerateUnresolvedTargetLeftAlone(t *testing.T) {
	ws, g := setup(t)
	content := "#Override : 00000001 | Gone/Gone.inf | stale | 2020-01-01T00-00-00\n"
	write(t, ws, "A/A.inf", content)
	path := filepath.Join(ws, "A", "A.inf")

	res, _, err := g.Regenerate(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Unresolved != 1 || res.Updated != 0 {
		t.Fatalf("result = %+v", res)
	}
	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Fatalf("file changed")
	}
}

func TestRegenerateRejectsUnknownVersion(t *testing.T) {
	ws, g := setup(t)
	if _, _, err := g.Regenerate(filepath.Join(ws, "B", "B.inf"), Options{Version: 7}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTagLine(t *testing.T) {
	ws, g := setup(t)
	got, err := g.TagLine(filepath.Join(ws, "B", "B.inf"), tag.Track, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := "#Track : 00000002 | B/B.inf | " + fp(t, ws, "B/B.inf") + " | 2024-06-01T08-30-00 | c0ffee"
	if got != want {
		t.Fatalf("TagLine:\n got %q\nwant %q", got, want)
	}
}

func TestTagLineOutsideWorkspaceUsesPackage(t *testing.T) {
	_, g := setup(t)
	other := t.TempDir()
	write(t, other, "Vendor/FooPkg/FooPkg.dec", "")
	write(t, other, "Vendor/FooPkg/Drv/Drv.inf", "[Sources]\n")

	got, err := g.TagLine(filepath.Join(other, "Vendor", "FooPkg", "Drv", "Drv.inf"), tag.Override, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "#Override : 00000001 | FooPkg/Drv/Drv.inf | ") {
		t.Fatalf("TagLine = %q", got)
	}
}

func TestPackageRelative(t *testing.T) {
	if got := packageRelative("/a/Pkg/x/Pkg/Mod/M.inf", "Pkg"); got != "Pkg/Mod/M.inf" {
		t.Fatalf("packageRelative = %q", got)
	}
	if got := packageRelative("/a/b.inf", ""); got != "" {
		t.Fatalf("packageRelative = %q", got)
	}
}
