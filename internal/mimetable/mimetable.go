// Package mimetable maps a file extension to the Content-Type the response
// builder sends for static files and upload previews. spec.md §6 specifies
// a fixed table rather than deferring to the system mime database, so this
// package is a plain map instead of the teacher's sniff/mime machinery.
package mimetable

import "strings"

var table = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".mjs":  "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".xml":  "application/xml; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".ico":  "image/x-icon",
	".bmp":  "image/bmp",

	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".ogg": "audio/ogg",
	".m4a": "audio/mp4",

	".mp4":  "video/mp4",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",

	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
	".wasm": "application/wasm",

	".ttf":   "font/ttf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// defaultType is sent for unrecognized extensions, matching spec.md §6's
// fallback rule.
const defaultType = "application/octet-stream"

// ForPath returns the Content-Type for a request or upload path, matching
// by the lowercased extension including the leading dot.
func ForPath(path string) string {
	ext := extOf(path)
	if ct, ok := table[ext]; ok {
		return ct
	}
	return defaultType
}

func extOf(path string) string {
	dot := strings.LastIndexByte(path, '.')
	slash := strings.LastIndexByte(path, '/')
	if dot < 0 || dot < slash {
		return ""
	}
	return strings.ToLower(path[dot:])
}
