package webserv

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/badu/webserv/config"
	"github.com/badu/webserv/internal/cookie"
	"github.com/badu/webserv/internal/mimetable"
)

// ResponseSpec is what a handler hands to the response builder: a status
// code, a body (already fully resident — spec.md's batch model), and
// whatever extra framing the handler needs applied.
type ResponseSpec struct {
	Status      int
	Body        []byte
	ContentType string
	Location    string
	Cookies     []*cookie.Cookie
	// RawSetCookie carries a CGI-supplied Set-Cookie value through verbatim
	// (the CGI bridge already has a fully-formed header value, not a parsed
	// Cookie struct — see cgi.go's liftCgiHeaders).
	RawSetCookie string
	Close        bool
}

// BuildResponse serializes spec into the wire bytes spec.md §4.3's
// "Response construction" paragraph describes: status line, then Date,
// Server, Content-Type, Content-Length, optional Location, zero or more
// Set-Cookie, then Connection.
func BuildResponse(spec ResponseSpec) []byte {
	var buf bytes.Buffer

	reason := StatusText(spec.Status)
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", spec.Status, reason)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(httpTimeFormat))
	buf.WriteString("Server: webserv/1.0\r\n")

	ct := spec.ContentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", ct)
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(spec.Body))

	if spec.Location != "" {
		fmt.Fprintf(&buf, "Location: %s\r\n", spec.Location)
	}
	for _, c := range spec.Cookies {
		if s := c.String(); s != "" {
			fmt.Fprintf(&buf, "Set-Cookie: %s\r\n", s)
		}
	}
	if spec.RawSetCookie != "" {
		fmt.Fprintf(&buf, "Set-Cookie: %s\r\n", spec.RawSetCookie)
	}
	if spec.Close {
		buf.WriteString("Connection: close\r\n")
	} else {
		buf.WriteString("Connection: keep-alive\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(spec.Body)
	return buf.Bytes()
}

const httpTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// BuildErrorResponse resolves the custom error page for status (location,
// then server, then the built-in minimal HTML) — spec.md §4.3 / §7.
func BuildErrorResponse(status int, loc *config.LocationConfig, srv *config.ServerConfig, close bool) []byte {
	var lp, sp errorPager
	if loc != nil {
		lp = locationErrorPager{loc}
	}
	if srv != nil {
		sp = serverErrorPager{srv}
	}
	page := resolveErrorPage(lp, sp, status)
	body := defaultErrorBody(status)
	ct := "text/html; charset=utf-8"
	if page != "" {
		if data, err := os.ReadFile(page); err == nil {
			body = data
			ct = mimetable.ForPath(page)
		}
	}
	return BuildResponse(ResponseSpec{Status: status, Body: body, ContentType: ct, Close: close})
}
