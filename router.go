package webserv

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/idna"

	"github.com/badu/webserv/config"
)

// RequestKind classifies a routed request, matching spec.md §3's
// RoutingResult.classification enum.
type RequestKind int

const (
	KindGET RequestKind = iota
	KindPOST
	KindDELETE
	KindCgiGET
	KindCgiPOST
	KindRedirect
	KindStats
)

// RoutingResult is the immutable outcome of routing one request, per
// spec.md §3.
type RoutingResult struct {
	Server      *config.ServerConfig
	Location    *config.LocationConfig
	RequestPath string // the original request path, pre-mapping
	Path        string // mapped filesystem path
	Kind        RequestKind

	CgiExt           string
	ScriptName       string
	PathInfo         string
	PathTranslated   string

	RedirectCode   int
	RedirectTarget string

	OK         bool
	StatusCode int
}

// errorPage satisfies errorPager for config types without importing config
// into errors.go.
type serverErrorPager struct{ s *config.ServerConfig }

func (p serverErrorPager) errorPage(code int) (string, bool) {
	v, ok := p.s.ErrorPages[code]
	return v, ok
}

type locationErrorPager struct{ l *config.LocationConfig }

func (p locationErrorPager) errorPage(code int) (string, bool) {
	v, ok := p.l.ErrorPages[code]
	return v, ok
}

// Router resolves an HttpRequest against the loaded server configs.
// Grounded on original_source/src/request_router/request_router.cpp's
// Route/mapPath/validatePathSecurity/classify pipeline.
type Router struct {
	Servers []config.ServerConfig
}

// Route implements spec.md §4.5's eight-step pipeline.
func (rt *Router) Route(req *HttpRequest, acceptPort int, contentLength int64) *RoutingResult {
	srv := rt.selectServer(req, acceptPort)
	if srv == nil {
		return &RoutingResult{OK: false, StatusCode: 404}
	}

	loc := srv.FindMatchingLocation(req.Path)
	if loc == nil {
		return &RoutingResult{Server: srv, OK: false, StatusCode: 404}
	}

	if !methodAllowed(loc.AllowMethods, req.Method) {
		return &RoutingResult{Server: srv, Location: loc, OK: false, StatusCode: 405}
	}

	if contentLength > loc.ClientMaxBodySize {
		return &RoutingResult{Server: srv, Location: loc, OK: false, StatusCode: 413}
	}

	mapped := mapPath(req.Path, loc.Path, loc.Root)
	if !validatePathSecurity(mapped, loc.Root) {
		return &RoutingResult{Server: srv, Location: loc, OK: false, StatusCode: 403}
	}

	cgiExt, scriptPath, pathInfo := extractPathInfo(req.Path, loc.CgiExt)
	result := &RoutingResult{
		Server:      srv,
		Location:    loc,
		RequestPath: req.Path,
		Path:        mapped,
		OK:          true,
	}

	if cgiExt != "" {
		scriptMapped := mapPath(scriptPath, loc.Path, loc.Root)
		result.Path = scriptMapped
		result.CgiExt = cgiExt
		result.ScriptName = scriptPath
		result.PathInfo = pathInfo
		result.PathTranslated = buildPathTranslated(loc.Root, pathInfo)
	}

	result.Kind = classify(req.Method, loc, cgiExt)
	if result.Kind == KindRedirect {
		result.RedirectCode = loc.RedirectCode
		result.RedirectTarget = loc.RedirectTarget
	}
	return result
}

// selectServer implements spec.md §4.5.1: filter by accepting port, then
// choose by Host header (stripped of any :port suffix, case-folded), else
// the first port-matched server as default.
func (rt *Router) selectServer(req *HttpRequest, acceptPort int) *config.ServerConfig {
	var candidates []*config.ServerConfig
	for i := range rt.Servers {
		if rt.Servers[i].ListensOnPort(acceptPort) {
			candidates = append(candidates, &rt.Servers[i])
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	host := strings.ToLower(req.Headers.Get("host"))
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = normalizeHost(host)
	if host != "" {
		for _, srv := range candidates {
			for _, name := range srv.ServerNames {
				if strings.ToLower(name) == host {
					return srv
				}
			}
		}
	}
	return candidates[0]
}

func methodAllowed(allowed []string, method string) bool {
	for _, m := range allowed {
		if m == method {
			return true
		}
	}
	return false
}

// mapPath implements spec.md §4.5.5: strip the location prefix, join with
// root, collapsing a double slash across the seam.
func mapPath(requestPath, locationPrefix, root string) string {
	rel := strings.TrimPrefix(requestPath, locationPrefix)
	if locationPrefix != "/" && rel == requestPath {
		rel = requestPath
	}
	if strings.HasSuffix(root, "/") && strings.HasPrefix(rel, "/") {
		rel = rel[1:]
	}
	return root + rel
}

// validatePathSecurity implements spec.md §4.5.6, grounded on
// request_router.cpp's validatePathSecurity: reject lexical traversal and
// NUL, then require the canonicalized mapped path to be a descendant of
// the canonicalized root, walking up to the nearest existing ancestor
// when the mapped path does not exist yet (uploads).
func validatePathSecurity(mappedPath, allowedRoot string) bool {
	if strings.Contains(mappedPath, "../") || strings.Contains(mappedPath, "/..") {
		return false
	}
	if strings.IndexByte(mappedPath, 0) >= 0 {
		return false
	}

	resolvedPath, ok := canonicalizeExistingAncestor(mappedPath)
	if !ok {
		return false
	}
	resolvedRoot, err := filepath.EvalSymlinks(allowedRoot)
	if err != nil {
		resolvedRoot = filepath.Clean(allowedRoot)
	}
	return strings.HasPrefix(resolvedPath, resolvedRoot)
}

// canonicalizeExistingAncestor resolves path via its nearest existing
// ancestor, re-appending the non-existent tail — mirroring realpath()'s
// ENOENT-walk-up loop in validatePathSecurity so POST targets that don't
// exist yet can still be checked.
func canonicalizeExistingAncestor(path string) (string, bool) {
	checkPath := filepath.Clean(path)
	remainder := ""
	for {
		resolved, err := filepath.EvalSymlinks(checkPath)
		if err == nil {
			return filepath.Join(resolved, remainder), true
		}
		if !os.IsNotExist(err) {
			return "", false
		}
		parent := filepath.Dir(checkPath)
		if parent == checkPath {
			return "", false
		}
		remainder = string(os.PathSeparator) + filepath.Base(checkPath) + remainder
		checkPath = parent
	}
}

// extractPathInfo implements spec.md §4.5.7: find the first configured CGI
// extension occurring at a '/'-or-end boundary, split the path there.
func extractPathInfo(requestPath string, cgiExt []string) (ext, scriptPath, pathInfo string) {
	for _, e := range cgiExt {
		from := 0
		for {
			idx := strings.Index(requestPath[from:], e)
			if idx < 0 {
				break
			}
			after := from + idx + len(e)
			if after == len(requestPath) || requestPath[after] == '/' {
				return e, requestPath[:after], requestPath[after:]
			}
			from += idx + 1
		}
	}
	return "", requestPath, ""
}

func buildPathTranslated(root, pathInfo string) string {
	if pathInfo == "" {
		return ""
	}
	if strings.HasSuffix(root, "/") && strings.HasPrefix(pathInfo, "/") {
		return root + pathInfo[1:]
	}
	return root + pathInfo
}

// classify implements spec.md §4.5.8, extended with the stats-exposition
// location SPEC_FULL.md §10 wires in rather than opening a second listener.
func classify(method string, loc *config.LocationConfig, cgiExt string) RequestKind {
	if loc.RedirectCode != 0 {
		return KindRedirect
	}
	if loc.Stats {
		return KindStats
	}
	if cgiExt != "" {
		if method == "POST" {
			return KindCgiPOST
		}
		return KindCgiGET
	}
	switch method {
	case "POST":
		return KindPOST
	case "DELETE":
		return KindDELETE
	default:
		return KindGET
	}
}

// normalizeHost converts an internationalized Host header to its ASCII
// (punycode) form via golang.org/x/net/idna before vhost matching, so a
// server_name written in ASCII still matches a client sending a Unicode
// Host header. Falls back to the raw value on any conversion error —
// an unparseable Host simply fails to match any server_name, per
// spec.md §4.5.1's "none match" default-server fallback.
func normalizeHost(host string) string {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}
