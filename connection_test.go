package webserv

import (
	"strings"
	"testing"
	"time"

	"github.com/badu/webserv/config"
	"github.com/badu/webserv/hdr"
	"github.com/badu/webserv/internal/logging"
)

func testServerInstance() *Server {
	return NewServer([]config.ServerConfig{testServer()}, logging.New("error"))
}

func TestResolveSessionCreatesNewSessionAndCookie(t *testing.T) {
	srv := testServerInstance()
	c := &Connection{Request: &HttpRequest{Headers: hdr.Header{"host": "x"}}}

	c.resolveSession(srv)

	if c.SessionID == "" {
		t.Fatal("expected a minted SessionID")
	}
	if !c.sessionIsNew {
		t.Fatal("expected sessionIsNew to be true for a freshly minted session")
	}
	if srv.Sessions.Get(c.SessionID) == nil {
		t.Fatal("expected the minted session to actually exist in the store")
	}
}

func TestResolveSessionReusesCookieFromRequest(t *testing.T) {
	srv := testServerInstance()
	existing := srv.Sessions.Create()
	c := &Connection{Request: &HttpRequest{Headers: hdr.Header{"host": "x", "cookie": "SESSID=" + existing.ID}}}

	c.resolveSession(srv)

	if c.SessionID != existing.ID {
		t.Fatalf("expected to reuse session %q, got %q", existing.ID, c.SessionID)
	}
	if c.sessionIsNew {
		t.Fatal("expected sessionIsNew to be false when the cookie names a live session")
	}
}

func TestResolveSessionIgnoresExpiredCookie(t *testing.T) {
	srv := testServerInstance()
	c := &Connection{Request: &HttpRequest{Headers: hdr.Header{"host": "x", "cookie": "SESSID=does-not-exist"}}}

	c.resolveSession(srv)

	if c.SessionID == "does-not-exist" {
		t.Fatal("expected a stale session id not to be adopted")
	}
	if !c.sessionIsNew {
		t.Fatal("expected a fresh session to be minted when the cookie doesn't resolve")
	}
}

func TestFinishResponseSetsSessionCookieWhenNew(t *testing.T) {
	srv := testServerInstance()
	c := &Connection{Request: &HttpRequest{Method: "GET", Headers: hdr.Header{"host": "x"}}, RequestsRemaining: 5}
	c.resolveSession(srv)

	c.finishResponse(ResponseSpec{Status: 200, Body: []byte("ok")}, srv)

	out := string(c.ResponseBuf)
	if !strings.Contains(out, "Set-Cookie: SESSID="+c.SessionID) {
		t.Fatalf("expected Set-Cookie for the new session, got:\n%s", out)
	}
}

func TestFinishResponseOmitsSessionCookieWhenReused(t *testing.T) {
	srv := testServerInstance()
	existing := srv.Sessions.Create()
	c := &Connection{
		Request:           &HttpRequest{Method: "GET", Headers: hdr.Header{"host": "x", "cookie": "SESSID=" + existing.ID}},
		RequestsRemaining: 5,
	}
	c.resolveSession(srv)

	c.finishResponse(ResponseSpec{Status: 200, Body: []byte("ok")}, srv)

	if strings.Contains(string(c.ResponseBuf), "Set-Cookie:") {
		t.Fatalf("expected no Set-Cookie when reusing an existing session, got:\n%s", c.ResponseBuf)
	}
}

func TestFinishResponseRecordsRequestStats(t *testing.T) {
	srv := testServerInstance()
	c := &Connection{
		Request:           &HttpRequest{Method: "GET", Headers: hdr.Header{"host": "x"}},
		RequestsRemaining: 5,
		requestStarted:    time.Now(),
	}
	c.finishResponse(ResponseSpec{Status: 200, Body: []byte("ok")}, srv)

	body, err := srv.Stats.Expose()
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if !strings.Contains(string(body), `webserv_requests_total{method="GET",status="2xx"} 1`) {
		t.Fatalf("expected recorded request in exposition, got:\n%s", body)
	}
}

func TestFinishResponsePassesThroughCgiRawSetCookie(t *testing.T) {
	srv := testServerInstance()
	existing := srv.Sessions.Create()
	c := &Connection{
		Request:           &HttpRequest{Method: "GET", Headers: hdr.Header{"host": "x", "cookie": "SESSID=" + existing.ID}},
		RequestsRemaining: 5,
	}
	c.resolveSession(srv)

	c.finishResponse(ResponseSpec{Status: 200, Body: []byte("ok"), RawSetCookie: "cart=3; Path=/"}, srv)

	if !strings.Contains(string(c.ResponseBuf), "Set-Cookie: cart=3; Path=/") {
		t.Fatalf("expected CGI's raw Set-Cookie to pass through, got:\n%s", c.ResponseBuf)
	}
}

func TestRouteKindStatsDispatchesToStatsHandler(t *testing.T) {
	srv := testServerInstance()
	srv.Configs[0].Locations = append(srv.Configs[0].Locations, config.LocationConfig{
		Path: "/__stats", Root: "/srv/www", AllowMethods: []string{"GET"},
		ClientMaxBodySize: 1 << 20, ErrorPages: config.ErrorPageMap{}, Stats: true,
	})
	srv.Router = &Router{Servers: srv.Configs}

	c := &Connection{
		Request:           &HttpRequest{Method: "GET", Path: "/__stats", Version: "HTTP/1.1", Headers: hdr.Header{"host": "x"}, Valid: true},
		RequestsRemaining: 5,
		ListenPort:        8080,
	}
	c.resolveSession(srv)
	c.route(srv)

	if c.State != StateSendingResponse {
		t.Fatalf("expected response to be built immediately, got state %v", c.State)
	}
	if !strings.Contains(string(c.ResponseBuf), "webserv_requests_total") {
		t.Fatalf("expected stats exposition body, got:\n%s", c.ResponseBuf)
	}
}
