package autoindex

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderListsEntriesSortedDirsFirst(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(dir, "sub"), 0755)

	var buf bytes.Buffer
	if err := Render(&buf, "/listing", dir); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	subIdx := strings.Index(out, "sub/")
	aIdx := strings.Index(out, "a.txt")
	bIdx := strings.Index(out, "b.txt")
	if subIdx < 0 || aIdx < 0 || bIdx < 0 {
		t.Fatalf("missing expected entries in output: %s", out)
	}
	if !(subIdx < aIdx && aIdx < bIdx) {
		t.Fatalf("expected dir-first alphabetical ordering, got sub=%d a=%d b=%d", subIdx, aIdx, bIdx)
	}
	if !strings.Contains(out, "Index of /listing/") {
		t.Fatalf("missing title: %s", out)
	}
}

func TestRenderRootPathOmitsParentLink(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := Render(&buf, "/", dir); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), `href="../"`) {
		t.Fatalf("root listing should not link to parent: %s", buf.String())
	}
}

func TestRenderNonRootIncludesParentLink(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := Render(&buf, "/sub", dir); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), `href="../"`) {
		t.Fatalf("expected parent link: %s", buf.String())
	}
}

func TestRenderMissingDir(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, "/x", "/no/such/dir"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
