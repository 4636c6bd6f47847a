// Package multipart implements the batch-mode multipart/form-data parser
// spec.md §4.7 describes: the whole body is already resident in memory (no
// streaming), parts are split on the boundary, and a part either carries a
// filename (destined for disk) or is a plain field (destined for the
// upload directory's form_data.log). Grounded on
// original_source/src/request_handler/post_handler.cpp's
// parseMultipartData/parseMultipartPart/sanitizeFilename, rewritten around
// Go strings instead of C++ std::string::find loops, and on the teacher's
// deleted mime package's dashBoundary convention (a boundary value is
// always prefixed with "--" before matching against the body).
package multipart

import "strings"

// Part is one decoded section of a multipart body.
type Part struct {
	Name        string
	Filename    string // empty for a plain form field
	ContentType string
	Content     []byte
}

// ExtractBoundary pulls the boundary parameter out of a Content-Type header
// value, returning it already prefixed with "--" for body matching.
func ExtractBoundary(contentType string) string {
	idx := strings.Index(contentType, "boundary=")
	if idx < 0 {
		return ""
	}
	b := contentType[idx+len("boundary="):]
	if semi := strings.IndexByte(b, ';'); semi >= 0 {
		b = b[:semi]
	}
	b = strings.Trim(b, `"`)
	if b == "" {
		return ""
	}
	return "--" + b
}

// Parse splits body on the dash-boundary and decodes each part. A part
// whose header/body split is missing or whose name is empty is dropped,
// matching the original's "basic validation" rule for malformed sections.
func Parse(body []byte, boundary string) []Part {
	if boundary == "" {
		return nil
	}
	end := boundary + "--"
	var parts []Part

	s := string(body)
	pos := 0
	for {
		found := strings.Index(s[pos:], boundary)
		if found < 0 {
			break
		}
		found += pos
		if found == pos {
			pos = found + len(boundary)
			continue
		}
		raw := s[pos:found]
		if p, ok := parsePart(raw); ok {
			parts = append(parts, p)
		}
		if strings.HasPrefix(s[found:], end) {
			break
		}
		pos = found + len(boundary)
	}
	return parts
}

func parsePart(raw string) (Part, bool) {
	headerEnd := strings.Index(raw, "\r\n\r\n")
	if headerEnd < 0 {
		return Part{}, false
	}
	headers := raw[:headerEnd]
	content := raw[headerEnd+4:]
	content = strings.TrimRight(content, "\r\n")

	var p Part
	for _, line := range strings.Split(headers, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "Content-Disposition:"):
			p.Name, p.Filename = parseContentDisposition(line)
		case strings.HasPrefix(line, "Content-Type:"):
			p.ContentType = strings.TrimSpace(line[len("Content-Type:"):])
		}
	}
	if p.Name == "" {
		return Part{}, false
	}
	p.Content = []byte(content)
	return p, true
}

func parseContentDisposition(line string) (name, filename string) {
	name = quotedParam(line, `name="`)
	filename = quotedParam(line, `filename="`)
	return
}

func quotedParam(line, key string) string {
	idx := strings.Index(line, key)
	if idx < 0 {
		return ""
	}
	start := idx + len(key)
	end := strings.IndexByte(line[start:], '"')
	if end < 0 {
		return ""
	}
	return line[start : start+end]
}

// SanitizeFilename extracts the basename and rejects any part containing a
// path separator, "..", NUL, or other control bytes — any sign of a
// traversal attempt invalidates the whole upload (spec.md §4.7), matching
// the original's sanitizeFilename "signal invalid" contract.
func SanitizeFilename(filename string) (string, bool) {
	if filename == "" {
		return "", false
	}
	basename := filename
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		basename = filename[i+1:]
	}
	if basename != filename {
		return "", false
	}
	if strings.Contains(basename, "..") {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < len(basename); i++ {
		c := basename[i]
		if c < 0x20 || c == 0x7f {
			return "", false
		}
		b.WriteByte(c)
	}
	return b.String(), true
}
