package webserv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/badu/webserv/config"
)

func TestResolveGetTargetFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	os.WriteFile(path, []byte("x"), 0644)

	servePath, isDir, status := ResolveGetTarget(path, "index.html", false)
	if status != 200 || isDir || servePath != path {
		t.Fatalf("got servePath=%q isDir=%v status=%d", servePath, isDir, status)
	}
}

func TestResolveGetTargetDirWithIndex(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0644)

	servePath, isDir, status := ResolveGetTarget(dir, "index.html", false)
	if status != 200 || isDir || servePath != filepath.Join(dir, "index.html") {
		t.Fatalf("got servePath=%q isDir=%v status=%d", servePath, isDir, status)
	}
}

func TestResolveGetTargetDirNoIndexAutoindexOff(t *testing.T) {
	dir := t.TempDir()
	_, _, status := ResolveGetTarget(dir, "index.html", false)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestResolveGetTargetDirNoIndexAutoindexOn(t *testing.T) {
	dir := t.TempDir()
	servePath, isDir, status := ResolveGetTarget(dir, "index.html", true)
	if status != 200 || !isDir || servePath != dir {
		t.Fatalf("got servePath=%q isDir=%v status=%d", servePath, isDir, status)
	}
}

func TestResolveGetTargetMissing(t *testing.T) {
	_, _, status := ResolveGetTarget("/no/such/path/at/all", "index.html", false)
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestHandleDELETE(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "victim.txt")
	os.WriteFile(path, []byte("x"), 0644)

	result := &RoutingResult{Path: path}
	spec := HandleDELETE(result)
	if spec.Status != 204 {
		t.Fatalf("expected 204, got %d", spec.Status)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected file to be removed")
	}
}

func TestHandleDELETEMissing(t *testing.T) {
	result := &RoutingResult{Path: "/no/such/file"}
	spec := HandleDELETE(result)
	if spec.Status != 404 {
		t.Fatalf("expected 404, got %d", spec.Status)
	}
}

func TestHandleDELETERejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	result := &RoutingResult{Path: dir}
	spec := HandleDELETE(result)
	if spec.Status != 403 {
		t.Fatalf("expected 403, got %d", spec.Status)
	}
}

func TestHandleGETImmediateServesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	os.WriteFile(path, []byte("<p>ok</p>"), 0644)

	result := &RoutingResult{
		Path:        path,
		RequestPath: "/page.html",
		Location:    &config.LocationConfig{Index: "index.html"},
	}
	spec := HandleGETImmediate(result)
	if spec.Status != 200 || string(spec.Body) != "<p>ok</p>" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
	if spec.ContentType != "text/html; charset=utf-8" {
		t.Fatalf("unexpected content type: %q", spec.ContentType)
	}
}

func TestHandleRedirect(t *testing.T) {
	result := &RoutingResult{RedirectCode: 301, RedirectTarget: "/new-place"}
	spec := HandleRedirect(result)
	if spec.Status != 301 || spec.Location != "/new-place" {
		t.Fatalf("unexpected spec: %+v", spec)
	}
}

func TestDiskWriterAdvanceInChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	source := make([]byte, diskChunkSize*2+10)
	for i := range source {
		source[i] = byte(i % 256)
	}
	w, err := OpenDiskWriter(path, source)
	if err != nil {
		t.Fatalf("OpenDiskWriter: %v", err)
	}
	defer w.Close()

	steps := 0
	for {
		done, err := w.Advance()
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		steps++
		if done {
			break
		}
		if steps > 10 {
			t.Fatal("too many steps, Advance not converging")
		}
	}
	if steps != 3 {
		t.Fatalf("expected 3 chunked writes, got %d", steps)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if len(written) != len(source) {
		t.Fatalf("expected %d bytes written, got %d", len(source), len(written))
	}
}

func TestDiskReaderAdvanceUntilEOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.bin")
	content := make([]byte, diskChunkSize+5)
	for i := range content {
		content[i] = byte(i % 256)
	}
	os.WriteFile(path, content, 0644)

	r, err := OpenDiskReader(path)
	if err != nil {
		t.Fatalf("OpenDiskReader: %v", err)
	}
	defer r.Close()

	for {
		err := r.Advance()
		if err != nil {
			break
		}
	}
	if int64(len(r.Accum)) != int64(len(content)) {
		t.Fatalf("expected %d bytes accumulated, got %d", len(content), len(r.Accum))
	}
}
