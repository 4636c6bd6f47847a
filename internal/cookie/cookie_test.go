package cookie

import (
	"strings"
	"testing"
	"time"

	"github.com/badu/webserv/hdr"
)

func TestCookieStringBasic(t *testing.T) {
	c := &Cookie{Name: "SESSID", Value: "abc123", Path: "/", HttpOnly: true}
	got := c.String()
	if !strings.Contains(got, "SESSID=abc123") {
		t.Fatalf("missing name=value: %q", got)
	}
	if !strings.Contains(got, "Path=/") {
		t.Fatalf("missing path: %q", got)
	}
	if !strings.Contains(got, "HttpOnly") {
		t.Fatalf("missing HttpOnly: %q", got)
	}
}

func TestCookieStringInvalidName(t *testing.T) {
	c := &Cookie{Name: "bad name", Value: "x"}
	if got := c.String(); got != "" {
		t.Fatalf("expected empty string for invalid name, got %q", got)
	}
}

func TestCookieStringExpiresAndMaxAge(t *testing.T) {
	exp := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	c := &Cookie{Name: "a", Value: "b", Expires: exp, MaxAge: 60}
	got := c.String()
	if !strings.Contains(got, "Expires=Thu, 30 Jul 2026 12:00:00 GMT") {
		t.Fatalf("unexpected expires formatting: %q", got)
	}
	if !strings.Contains(got, "Max-Age=60") {
		t.Fatalf("missing max-age: %q", got)
	}
}

func TestCookieValueQuotedWhenContainsSpaceOrComma(t *testing.T) {
	c := &Cookie{Name: "a", Value: "has space"}
	got := c.String()
	if !strings.Contains(got, `a="has space"`) {
		t.Fatalf("expected quoted value: %q", got)
	}
}

func TestParseCookieHeader(t *testing.T) {
	h := hdr.Header{"cookie": "SESSID=abc; theme=dark; bad name=x"}
	cookies := ParseCookieHeader(h)
	if len(cookies) != 2 {
		t.Fatalf("expected 2 valid cookies, got %d: %+v", len(cookies), cookies)
	}
	if Find(cookies, "SESSID").Value != "abc" {
		t.Fatalf("SESSID not found or wrong value")
	}
	if Find(cookies, "theme").Value != "dark" {
		t.Fatalf("theme not found or wrong value")
	}
	if Find(cookies, "missing") != nil {
		t.Fatal("expected nil for missing cookie")
	}
}

func TestParseCookieHeaderEmpty(t *testing.T) {
	h := hdr.Header{}
	if got := ParseCookieHeader(h); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestParseCookieHeaderQuotedValue(t *testing.T) {
	h := hdr.Header{"cookie": `a="quoted value part"`}
	cookies := ParseCookieHeader(h)
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Value != "quoted value part" {
		t.Fatalf("got value %q", cookies[0].Value)
	}
}
