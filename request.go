package webserv

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/badu/webserv/hdr"
)

// headerEndSentinel is the literal four-byte end-of-headers marker spec.md
// §4.3 names.
const headerEndSentinel = "\r\n\r\n"

// HttpRequest is the parsed request spec.md §3 describes: raw framing
// alongside the parsed method/target/version/headers, and a validity flag
// that carries the diagnosis status code so a parse failure can still be
// serialized as a normal error response instead of propagating as an
// exception (spec.md §7).
type HttpRequest struct {
	RawLine string
	Method  string
	Path    string
	Query   string
	Version string
	Headers hdr.Header

	Body []byte

	Valid      bool
	StatusCode int // populated when Valid is false
}

// FindHeaderEnd reports the index just past the first "\r\n\r\n" in buf, or
// -1 if the sentinel has not arrived yet.
func FindHeaderEnd(buf []byte) int {
	i := bytes.Index(buf, []byte(headerEndSentinel))
	if i < 0 {
		return -1
	}
	return i + len(headerEndSentinel)
}

// ParseHead parses the request line and headers out of head, which must
// end in "\r\n\r\n" (the body, if any, is read and validated separately by
// the connection state machine per spec.md §4.3). On any failure it
// returns a request with Valid=false, StatusCode set to the diagnosis, and
// safe fallback fields (GET / HTTP/1.1, empty headers) so the caller can
// always build an error response from it.
func ParseHead(head []byte) *HttpRequest {
	text := string(head)
	text = strings.TrimSuffix(text, headerEndSentinel)

	lineEnd := strings.Index(text, "\r\n")
	var reqLine, rest string
	if lineEnd < 0 {
		reqLine, rest = text, ""
	} else {
		reqLine, rest = text[:lineEnd], text[lineEnd+2:]
	}

	req := &HttpRequest{RawLine: reqLine, Method: "GET", Path: "/", Version: "HTTP/1.1", Headers: hdr.Header{}}

	parts := strings.Split(reqLine, " ")
	if len(parts) != 3 {
		req.StatusCode = 400
		return req
	}
	method, target, version := parts[0], parts[1], parts[2]

	switch method {
	case "GET", "POST", "DELETE":
		req.Method = method
	default:
		req.StatusCode = 501
		return req
	}

	switch version {
	case "HTTP/1.0", "HTTP/1.1":
		req.Version = version
	default:
		req.StatusCode = 505
		return req
	}

	path, query, ok := splitTarget(target)
	if !ok {
		req.StatusCode = 400
		return req
	}
	req.Path, req.Query = path, query

	headers, status := parseHeaderLines(rest)
	if status != 0 {
		req.StatusCode = status
		return req
	}
	req.Headers = headers

	if req.Version == "HTTP/1.1" && req.Headers.Get("host") == "" {
		req.StatusCode = 400
		return req
	}

	if req.Method == "POST" {
		cl := req.Headers.Get("content-length")
		te := req.Headers.Get("transfer-encoding")
		if te != "chunked" {
			if cl == "" {
				req.StatusCode = 411
				return req
			}
			if n, err := strconv.ParseInt(cl, 10, 64); err != nil || n < 0 {
				req.StatusCode = 411
				return req
			}
		}
		if req.Headers.Get("content-type") == "" {
			req.StatusCode = 400
			return req
		}
	}

	req.Valid = true
	return req
}

func splitTarget(target string) (path, query string, ok bool) {
	if target == "" {
		return "", "", false
	}
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path, query = target[:i], target[i+1:]
	} else {
		path = target
	}
	if query != "" && !validQuery(query) {
		return "", "", false
	}
	return path, query, true
}

// validQuery enforces spec.md §4.4's query-string grammar: '&'-joined
// key=value pairs, no empty key, no empty value, no duplicate separators.
func validQuery(query string) bool {
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			return false
		}
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 || eq == len(pair)-1 {
			return false
		}
		if strings.IndexByte(pair[eq+1:], '=') >= 0 {
			return false
		}
	}
	return true
}

// hasBareLF reports whether block contains a '\n' not immediately preceded
// by '\r' — spec.md §4.4 rejects such bare-LF line endings outright, rather
// than tolerating them as line breaks, to close off header-injection via a
// line that "looks" like it ends mid-block but is actually folded into the
// previous header's value by strings.Split(block, "\r\n").
func hasBareLF(block string) bool {
	for i := 0; i < len(block); i++ {
		if block[i] == '\n' && (i == 0 || block[i-1] != '\r') {
			return true
		}
	}
	return false
}

const maxHeaderCount = 100

func parseHeaderLines(block string) (hdr.Header, int) {
	h := hdr.Header{}
	if block == "" {
		return h, 0
	}
	if hasBareLF(block) {
		return nil, 400
	}
	lines := strings.Split(block, "\r\n")
	count := 0
	for _, line := range lines {
		if line == "" {
			continue
		}
		count++
		if count > maxHeaderCount {
			return nil, 431
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, 400
		}
		name := line[:colon]
		if !hdr.ValidFieldName(name) {
			return nil, 400
		}
		rest := line[colon+1:]
		if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
			return nil, 400
		}
		value := hdr.TrimOWS(rest)
		h.Set(name, value)
	}
	return h, 0
}
