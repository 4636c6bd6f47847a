package mimetable

import "testing"

func TestForPathKnown(t *testing.T) {
	cases := map[string]string{
		"/index.html":      "text/html; charset=utf-8",
		"/app.JS":          "application/javascript; charset=utf-8",
		"/archive.tar.gz":  "application/gzip",
		"/photo.PNG":       "image/png",
	}
	for path, want := range cases {
		if got := ForPath(path); got != want {
			t.Errorf("ForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestForPathUnknownFallsBackToOctetStream(t *testing.T) {
	if got := ForPath("/data.unknownext"); got != "application/octet-stream" {
		t.Fatalf("got %q", got)
	}
}

func TestForPathNoExtension(t *testing.T) {
	if got := ForPath("/Makefile"); got != "application/octet-stream" {
		t.Fatalf("got %q", got)
	}
}

func TestForPathDotInDirNotExtension(t *testing.T) {
	if got := ForPath("/a.dir/readme"); got != "application/octet-stream" {
		t.Fatalf("got %q", got)
	}
}
