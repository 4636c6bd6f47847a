package webserv

// statusText mirrors the teacher's StatusText lookup table (src/http/utils_status.go),
// trimmed to the codes this server actually emits per spec.md §7.
var statusText = map[int]string{
	200: "OK",
	204: "No Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	411: "Length Required",
	413: "Payload Too Large",
	415: "Unsupported Media Type",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
}

// StatusText returns the reason phrase for code, or "" if unknown.
func StatusText(code int) string {
	return statusText[code]
}

// defaultErrorBody is the minimal inline HTML fallback spec.md §4.3 and §7
// describe, used when neither the location nor the server define a custom
// error_page for the status.
func defaultErrorBody(code int) []byte {
	text := StatusText(code)
	if text == "" {
		text = "Error"
	}
	return []byte("<html><head><title>" + itoa(code) + " " + text + "</title></head>" +
		"<body><h1>" + itoa(code) + " " + text + "</h1></body></html>")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// resolveErrorPage finds the path to serve for a non-2xx status, trying
// the location's error_page map, then the server's, per spec.md §4.3 /
// §7's resolution order. Returns "" when no custom page is configured and
// the caller should fall back to defaultErrorBody.
func resolveErrorPage(loc errorPager, srv errorPager, code int) string {
	if loc != nil {
		if p, ok := loc.errorPage(code); ok {
			return p
		}
	}
	if srv != nil {
		if p, ok := srv.errorPage(code); ok {
			return p
		}
	}
	return ""
}

// errorPager is satisfied by both config.ServerConfig and
// config.LocationConfig via thin accessor methods in router.go, avoiding a
// direct config dependency here.
type errorPager interface {
	errorPage(code int) (string, bool)
}
