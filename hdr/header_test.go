package hdr

import "testing"

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Host":            "host",
		"CONTENT-TYPE":    "content-type",
		"x-session-set":   "x-session-set",
		"Content-Length":  "content-length",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHeaderGetSetCaseInsensitive(t *testing.T) {
	h := Header{}
	h.Set("Content-Type", "text/html")
	if got := h.Get("content-type"); got != "text/html" {
		t.Fatalf("got %q", got)
	}
	if got := h.Get("CONTENT-TYPE"); got != "text/html" {
		t.Fatalf("got %q", got)
	}
}

func TestHeaderGetNil(t *testing.T) {
	var h Header
	if h.Get("host") != "" {
		t.Fatal("expected empty string from nil header")
	}
}
