package webserv

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/badu/webserv/config"
	"github.com/badu/webserv/internal/cookie"
)

func TestBuildResponseBasic(t *testing.T) {
	out := BuildResponse(ResponseSpec{Status: 200, Body: []byte("hi")})
	s := string(out)
	if !strings.HasPrefix(s, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("bad status line: %q", s)
	}
	if !strings.Contains(s, "Content-Length: 2\r\n") {
		t.Fatalf("missing content-length: %q", s)
	}
	if !strings.Contains(s, "Connection: keep-alive\r\n") {
		t.Fatalf("missing keep-alive: %q", s)
	}
	if !bytes.HasSuffix(out, []byte("hi")) {
		t.Fatalf("body not appended: %q", s)
	}
}

func TestBuildResponseCloseAndCookie(t *testing.T) {
	out := BuildResponse(ResponseSpec{
		Status: 204,
		Close:  true,
		Cookies: []*cookie.Cookie{
			{Name: "SESSID", Value: "xyz", Path: "/"},
		},
	})
	s := string(out)
	if !strings.Contains(s, "Connection: close\r\n") {
		t.Fatalf("expected connection close: %q", s)
	}
	if !strings.Contains(s, "Set-Cookie: SESSID=xyz; Path=/\r\n") {
		t.Fatalf("missing set-cookie: %q", s)
	}
}

func TestBuildErrorResponseFallback(t *testing.T) {
	out := BuildErrorResponse(404, nil, nil, false)
	s := string(out)
	if !strings.Contains(s, "404 Not Found") {
		t.Fatalf("missing default body: %q", s)
	}
}

func TestBuildErrorResponseLocationOverridesServer(t *testing.T) {
	dir := t.TempDir()
	locPage := filepath.Join(dir, "loc.html")
	srvPage := filepath.Join(dir, "srv.html")
	os.WriteFile(locPage, []byte("location page"), 0644)
	os.WriteFile(srvPage, []byte("server page"), 0644)
	loc := &config.LocationConfig{ErrorPages: config.ErrorPageMap{404: locPage}}
	srv := &config.ServerConfig{ErrorPages: config.ErrorPageMap{404: srvPage}}
	out := BuildErrorResponse(404, loc, srv, false)
	if !strings.HasPrefix(string(out), "HTTP/1.1 404 Not Found") {
		t.Fatalf("unexpected response: %q", out)
	}
	if !bytes.HasSuffix(out, []byte("location page")) {
		t.Fatalf("expected the location's error page as body, got %q", out)
	}
}

func TestStatusText(t *testing.T) {
	if StatusText(200) != "OK" {
		t.Fatal("expected OK for 200")
	}
	if StatusText(999) != "" {
		t.Fatal("expected empty string for unknown code")
	}
}

func TestResolveErrorPageOrder(t *testing.T) {
	loc := locationErrorPager{&config.LocationConfig{ErrorPages: config.ErrorPageMap{500: "/loc/500.html"}}}
	srv := serverErrorPager{&config.ServerConfig{ErrorPages: config.ErrorPageMap{500: "/srv/500.html", 404: "/srv/404.html"}}}
	if got := resolveErrorPage(loc, srv, 500); got != "/loc/500.html" {
		t.Fatalf("expected location override to win, got %q", got)
	}
	if got := resolveErrorPage(loc, srv, 404); got != "/srv/404.html" {
		t.Fatalf("expected server fallback, got %q", got)
	}
	if got := resolveErrorPage(loc, srv, 403); got != "" {
		t.Fatalf("expected empty for unmapped code, got %q", got)
	}
}
