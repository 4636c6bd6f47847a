package webserv

import (
	"io"
	"os"
	"path/filepath"

	"github.com/badu/webserv/internal/autoindex"
	"github.com/badu/webserv/internal/mimetable"
)

const diskChunkSize = 32 << 10

// DiskReader reads a GET target's bytes in bounded chunks, one chunk per
// Advance call — spec.md §4.3's "Disk reads" paragraph. Its caller,
// connection.go's advanceDiskRead, calls Advance until EOF within a single
// loop iteration.
type DiskReader struct {
	f         *os.File
	BytesRead int64
	Accum     []byte
}

// OpenDiskReader lazily opens path for a GET response.
func OpenDiskReader(path string) (*DiskReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &DiskReader{f: f}, nil
}

// Advance reads up to one chunk, appending to Accum. Returns io.EOF once
// the file is exhausted, at which point the caller should call Close.
func (r *DiskReader) Advance() error {
	buf := make([]byte, diskChunkSize)
	n, err := r.f.Read(buf)
	if n > 0 {
		r.Accum = append(r.Accum, buf[:n]...)
		r.BytesRead += int64(n)
	}
	return err
}

// Close releases the underlying file.
func (r *DiskReader) Close() error { return r.f.Close() }

// DiskWriter streams bytes to a lazily-opened output file in bounded
// chunks — spec.md §4.3's unified write primitive.
type DiskWriter struct {
	f             *os.File
	BytesWritten  int64
	Source        []byte
}

// OpenDiskWriter lazily creates (or truncates) path and primes it with the
// full source buffer, matching the batch (non-streaming) upload model
// spec.md §4.7 describes.
func OpenDiskWriter(path string, source []byte) (*DiskWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &DiskWriter{f: f, Source: source}, nil
}

// Advance writes up to one chunk. Returns true once Source is fully
// flushed, at which point the caller should call Close.
func (w *DiskWriter) Advance() (done bool, err error) {
	if w.BytesWritten >= int64(len(w.Source)) {
		return true, nil
	}
	end := w.BytesWritten + diskChunkSize
	if end > int64(len(w.Source)) {
		end = int64(len(w.Source))
	}
	n, err := w.f.Write(w.Source[w.BytesWritten:end])
	w.BytesWritten += int64(n)
	if err != nil {
		return false, err
	}
	return w.BytesWritten >= int64(len(w.Source)), nil
}

// Close releases the underlying file.
func (w *DiskWriter) Close() error { return w.f.Close() }

// ResolveGetTarget applies index resolution (spec.md §4.3/§4.5): if the
// mapped path is a directory, try root+index; if that's missing and
// autoindex is on, the caller should render a listing instead; otherwise
// 404.
func ResolveGetTarget(mappedPath, index string, autoindexOn bool) (servePath string, isDir bool, status int) {
	fi, err := os.Stat(mappedPath)
	if err != nil {
		return "", false, 404
	}
	if !fi.IsDir() {
		return mappedPath, false, 200
	}
	if index != "" {
		candidate := filepath.Join(mappedPath, index)
		if cfi, err := os.Stat(candidate); err == nil && !cfi.IsDir() {
			return candidate, false, 200
		}
	}
	if autoindexOn {
		return mappedPath, true, 200
	}
	return "", false, 404
}

// HandleGETImmediate serves a GET synchronously with one os.ReadFile —
// used for autoindex listings, error statuses, and files smaller than
// diskReadThreshold (connection.go's startGET sends larger files through
// the DiskReader above).
func HandleGETImmediate(result *RoutingResult) ResponseSpec {
	servePath, isDir, status := ResolveGetTarget(result.Path, result.Location.Index, result.Location.Autoindex)
	if status != 200 {
		return ResponseSpec{Status: status}
	}
	if isDir {
		var buf writerBuffer
		if err := autoindex.Render(&buf, result.RequestPath, servePath); err != nil {
			return ResponseSpec{Status: 500}
		}
		return ResponseSpec{Status: 200, Body: buf.Bytes(), ContentType: "text/html; charset=utf-8"}
	}
	data, err := os.ReadFile(servePath)
	if err != nil {
		return ResponseSpec{Status: 404}
	}
	return ResponseSpec{Status: 200, Body: data, ContentType: mimetable.ForPath(servePath)}
}

// writerBuffer is a minimal io.Writer sink, avoiding an extra bytes import
// at call sites that only need Bytes().
type writerBuffer struct {
	data []byte
}

func (b *writerBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
func (b *writerBuffer) Bytes() []byte { return b.data }

// HandleDELETE removes the mapped file — spec.md §2's Handlers row.
func HandleDELETE(result *RoutingResult) ResponseSpec {
	fi, err := os.Stat(result.Path)
	if err != nil {
		return ResponseSpec{Status: 404}
	}
	if fi.IsDir() {
		return ResponseSpec{Status: 403}
	}
	if err := os.Remove(result.Path); err != nil {
		return ResponseSpec{Status: 500}
	}
	return ResponseSpec{Status: 204}
}

// HandleRedirect builds the Location response for a location's redirect
// directive.
func HandleRedirect(result *RoutingResult) ResponseSpec {
	return ResponseSpec{Status: result.RedirectCode, Location: result.RedirectTarget}
}

var _ io.Writer = (*writerBuffer)(nil)
