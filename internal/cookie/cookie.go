// Package cookie implements Set-Cookie serialization and Cookie header
// parsing for the session store's SESSID cookie.
//
// Adapted from the teacher's cli package (net/http's cookie.go), trimmed to
// the server side only: the client-jar matching logic (domain-match,
// path-match, punycode host canonicalization) has no role here and was
// dropped rather than adapted.
package cookie

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/badu/webserv/hdr"
)

// Cookie is a single Set-Cookie (response) or Cookie (request) value.
type Cookie struct {
	Name  string
	Value string

	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int
	Secure   bool
	HttpOnly bool
}

// String serializes c for a Set-Cookie response header. Returns "" if c is
// nil or its name is not a valid RFC 7230 token.
func (c *Cookie) String() string {
	if c == nil || !isCookieNameValid(c.Name) {
		return ""
	}
	var b bytes.Buffer
	b.WriteString(sanitizeCookieName(c.Name))
	b.WriteByte('=')
	b.WriteString(sanitizeCookieValue(c.Value))

	if len(c.Path) > 0 {
		b.WriteString("; Path=")
		b.WriteString(sanitizeCookiePath(c.Path))
	}
	if len(c.Domain) > 0 && validCookieDomain(c.Domain) {
		d := c.Domain
		if d[0] == '.' {
			d = d[1:]
		}
		b.WriteString("; Domain=")
		b.WriteString(d)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(hdr.TimeFormat))
	}
	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	return b.String()
}

// ParseCookieHeader reads the request's Cookie header and returns its
// name=value pairs; malformed pairs are skipped rather than failing the
// whole header, matching the teacher's readCookies leniency.
func ParseCookieHeader(h hdr.Header) []*Cookie {
	line := h.Get("cookie")
	if line == "" {
		return nil
	}
	var result []*Cookie
	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, val := part, ""
		if j := strings.IndexByte(part, '='); j >= 0 {
			name, val = part[:j], part[j+1:]
		}
		if !isCookieNameValid(name) {
			continue
		}
		val, ok := parseCookieValue(val)
		if !ok {
			continue
		}
		result = append(result, &Cookie{Name: name, Value: val})
	}
	return result
}

// Find returns the named cookie from a parsed Cookie header, or nil.
func Find(cookies []*Cookie, name string) *Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func parseCookieValue(raw string) (string, bool) {
	if len(raw) > 1 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	for i := 0; i < len(raw); i++ {
		if !validCookieValueByte(raw[i]) {
			return "", false
		}
	}
	return raw, true
}

func validCookieValueByte(b byte) bool {
	return 0x20 <= b && b < 0x7f && b != '"' && b != ';' && b != '\\'
}

func isCookieNameValid(name string) bool {
	if name == "" {
		return false
	}
	return strings.IndexFunc(name, isNotToken) < 0
}

func isNotToken(r rune) bool {
	return !hdr.ValidFieldName(string(r))
}

func sanitizeCookieName(n string) string {
	return strings.NewReplacer("\n", "-", "\r", "-").Replace(n)
}

func sanitizeCookieValue(v string) string {
	v = sanitizeOrWarn(v, validCookieValueByte)
	if len(v) == 0 {
		return v
	}
	if strings.ContainsAny(v, " ,") {
		return `"` + v + `"`
	}
	return v
}

func sanitizeOrWarn(v string, valid func(byte) bool) string {
	ok := true
	for i := 0; i < len(v); i++ {
		if valid(v[i]) {
			continue
		}
		ok = false
		break
	}
	if ok {
		return v
	}
	buf := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if b := v[i]; valid(b) {
			buf = append(buf, b)
		}
	}
	return string(buf)
}

func sanitizeCookiePath(v string) string {
	v = sanitizeOrWarn(v, validCookiePathByte)
	if v == "" {
		return v
	}
	if v[0] != '/' {
		return ""
	}
	return v
}

func validCookiePathByte(b byte) bool {
	return 0x20 <= b && b < 0x7f && b != ';'
}

func validCookieDomain(v string) bool {
	if isCookieDomainName(v) {
		return true
	}
	return false
}

func isCookieDomainName(s string) bool {
	if len(s) == 0 {
		return false
	}
	if len(s) > 255 {
		return false
	}
	if s[0] == '.' {
		s = s[1:]
	}
	last := byte('.')
	ok := false
	partlen := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_':
			ok = true
			partlen++
		case '0' <= c && c <= '9':
			partlen++
		case c == '-':
			if last == '.' {
				return false
			}
			partlen++
		case c == '.':
			if last == '.' || last == '-' {
				return false
			}
			if partlen > 63 || partlen == 0 {
				return false
			}
			partlen = 0
		default:
			return false
		}
		last = c
	}
	if last == '-' || partlen > 63 {
		return false
	}
	return ok
}
