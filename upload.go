package webserv

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/badu/webserv/internal/multipart"
)

// uploadCounter disambiguates filenames generated within the same second,
// per spec.md §5's "incrementing counter" rule.
var uploadCounter int64

// extByContentType is the reverse of mimetable's extension table, used to
// name single-content uploads per spec.md §4.7.
var extByContentType = map[string]string{
	"text/plain":       "txt",
	"text/html":        "html",
	"application/json": "json",
	"application/xml":  "xml",
	"image/jpeg":       "jpg",
	"image/png":        "png",
	"image/gif":        "gif",
	"application/pdf":  "pdf",
	"application/zip":  "zip",
	"application/octet-stream": "bin",
}

// singleUploadSupported reports whether contentType is one of the fixed
// set spec.md §4.7 recognizes for a non-multipart POST body.
func singleUploadSupported(contentType string) bool {
	ct := stripContentTypeParams(contentType)
	_, ok := extByContentType[ct]
	return ok
}

func stripContentTypeParams(ct string) string {
	for i := 0; i < len(ct); i++ {
		if ct[i] == ';' {
			return ct[:i]
		}
	}
	return ct
}

// PreparedUpload is what the POST handler hands to the connection's
// WRITING_DISK state: one or more ordered file writes plus any plain
// form fields to append to form_data.log.
type PreparedUpload struct {
	Files      []uploadFile
	FormFields []uploadField
}

type uploadFile struct {
	Path    string
	Content []byte
}

type uploadField struct {
	Name  string
	Value string
}

// PrepareSingleUpload synthesizes file_<epoch>_<counter>.<ext> under dir
// and primes it with body — spec.md §4.7's "Single upload" bullet.
func PrepareSingleUpload(dir, contentType string, body []byte) (*PreparedUpload, error) {
	ct := stripContentTypeParams(contentType)
	ext, ok := extByContentType[ct]
	if !ok {
		ext = "bin"
	}
	n := atomic.AddInt64(&uploadCounter, 1)
	name := fmt.Sprintf("file_%d_%d.%s", time.Now().Unix(), n, ext)
	return &PreparedUpload{Files: []uploadFile{{Path: filepath.Join(dir, name), Content: body}}}, nil
}

// PrepareMultipartUpload parses body per the boundary in contentType and
// splits parts into file writes and form_data.log fields — spec.md
// §4.7's "Multipart" bullet. A single malformed filename invalidates the
// whole upload (no part is written), matching the original's
// sanitizeFilename "signal invalid" contract.
func PrepareMultipartUpload(dir, contentType string, body []byte) (*PreparedUpload, error) {
	boundary := multipart.ExtractBoundary(contentType)
	if boundary == "" {
		return nil, fmt.Errorf("multipart body has no boundary")
	}
	parts := multipart.Parse(body, boundary)

	upload := &PreparedUpload{}
	for _, p := range parts {
		if p.Filename == "" {
			upload.FormFields = append(upload.FormFields, uploadField{Name: p.Name, Value: string(p.Content)})
			continue
		}
		safe, ok := multipart.SanitizeFilename(p.Filename)
		if !ok {
			return nil, fmt.Errorf("unsafe upload filename %q", p.Filename)
		}
		upload.Files = append(upload.Files, uploadFile{Path: filepath.Join(dir, safe), Content: p.Content})
	}
	return upload, nil
}

// formDataLogName is the fixed log filename spec.md §6 names.
const formDataLogName = "form_data.log"

// AppendFormDataLog writes one "Field: <name> = <value>" line per
// non-file multipart part, per spec.md §6.
func AppendFormDataLog(dir string, fields []uploadField) error {
	if len(fields) == 0 {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, formDataLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, field := range fields {
		if _, err := fmt.Fprintf(f, "Field: %s = %s\n", field.Name, field.Value); err != nil {
			return err
		}
	}
	return nil
}
