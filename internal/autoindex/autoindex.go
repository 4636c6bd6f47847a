// Package autoindex renders the directory-listing HTML page the response
// builder serves when a GET resolves to a directory, no index file is
// present, and the location's autoindex directive is on. No repo in the
// reference corpus carries a third-party HTML templating dependency, so
// this stays on the standard library's html/template; see DESIGN.md.
package autoindex

import (
	"html/template"
	"io"
	"os"
	"path"
	"sort"
	"time"
)

// Entry is one row of a rendered listing.
type Entry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

var page = template.Must(template.New("autoindex").Parse(`<!DOCTYPE html>
<html>
<head><title>Index of {{.Path}}</title></head>
<body>
<h1>Index of {{.Path}}</h1>
<hr>
<pre>
{{- if ne .Path "/"}}
<a href="../">../</a>
{{- end}}
{{- range .Entries}}
<a href="{{.Name}}{{if .IsDir}}/{{end}}">{{.Name}}{{if .IsDir}}/{{end}}</a>{{"\t"}}{{.ModTime.Format "02-Jan-2006 15:04"}}{{"\t"}}{{if .IsDir}}-{{else}}{{.Size}}{{end}}
{{- end}}
</pre>
<hr>
</body>
</html>
`))

// Render lists dirPath (the filesystem directory, already safety-checked by
// the router) and writes the HTML listing for urlPath to w.
func Render(w io.Writer, urlPath, dirPath string) error {
	f, err := os.Open(dirPath)
	if err != nil {
		return err
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return err
	}
	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, Entry{
			Name:    fi.Name(),
			IsDir:   fi.IsDir(),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	data := struct {
		Path    string
		Entries []Entry
	}{Path: path.Clean(urlPath) + "/", Entries: entries}
	if urlPath == "/" {
		data.Path = "/"
	}
	return page.Execute(w, data)
}
