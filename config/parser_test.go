package config

import "testing"

func TestParseSimpleServer(t *testing.T) {
	src := `
server {
	listen 0.0.0.0:8080;
	server_name example.com www.example.com;
	root /srv/www;
	index index.html;
	autoindex on;

	location / {
		allow_methods GET POST;
	}

	location /cgi-bin {
		cgi_ext .py .cgi;
		allow_methods GET POST;
	}
}
`
	servers, err := Parse(src, "test.conf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}
	srv := servers[0]
	if len(srv.Listeners) != 1 || srv.Listeners[0].Port != 8080 {
		t.Fatalf("unexpected listeners: %+v", srv.Listeners)
	}
	if len(srv.ServerNames) != 2 || srv.ServerNames[0] != "example.com" {
		t.Fatalf("unexpected server names: %+v", srv.ServerNames)
	}
	if !srv.Autoindex {
		t.Fatal("expected autoindex on")
	}
	if len(srv.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(srv.Locations))
	}
	if srv.Locations[1].Path != "/cgi-bin" || len(srv.Locations[1].CgiExt) != 2 {
		t.Fatalf("unexpected cgi location: %+v", srv.Locations[1])
	}
}

func TestParseQuotedString(t *testing.T) {
	src := `
server {
	listen 0.0.0.0:80;
	root "/srv/my www";
}
`
	servers, err := Parse(src, "test.conf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if servers[0].Root != "/srv/my www" {
		t.Fatalf("got root %q", servers[0].Root)
	}
}

func TestParseMissingSemicolon(t *testing.T) {
	src := `
server {
	listen 0.0.0.0:80
}
`
	if _, err := Parse(src, "test.conf"); err == nil {
		t.Fatal("expected parse error for missing semicolon")
	}
}

func TestParseUnknownDirective(t *testing.T) {
	src := `
server {
	listen 0.0.0.0:80;
	frobnicate yes;
}
`
	if _, err := Parse(src, "test.conf"); err == nil {
		t.Fatal("expected error for unknown directive")
	}
}

func TestParseErrorPageMultiCode(t *testing.T) {
	src := `
server {
	listen 0.0.0.0:80;
	root /srv/www;
	error_page 500 502 503 /50x.html;
}
`
	servers, err := Parse(src, "test.conf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	for _, code := range []int{500, 502, 503} {
		if servers[0].ErrorPages[code] != "/50x.html" {
			t.Errorf("missing error page for %d", code)
		}
	}
}

func TestParseStatsLocation(t *testing.T) {
	src := `
server {
	listen 0.0.0.0:80;
	root /srv/www;

	location /__stats {
		stats on;
		allow_methods GET;
	}
}
`
	servers, err := Parse(src, "test.conf")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !servers[0].Locations[0].Stats {
		t.Fatalf("expected Stats=true, got %+v", servers[0].Locations[0])
	}
}

func TestValidateRequiresServer(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestValidateRequiresListener(t *testing.T) {
	srv := Defaults()
	srv.Root = "/srv/www"
	if err := Validate([]ServerConfig{srv}); err == nil {
		t.Fatal("expected error for missing listener")
	}
}

func TestValidateDuplicateLocation(t *testing.T) {
	srv := Defaults()
	srv.Listeners = []Listener{{Host: "0.0.0.0", Port: 80}}
	srv.Root = "/srv/www"
	srv.Locations = []LocationConfig{
		{Path: "/a", ErrorPages: ErrorPageMap{}},
		{Path: "/a", ErrorPages: ErrorPageMap{}},
	}
	if err := Validate([]ServerConfig{srv}); err == nil {
		t.Fatal("expected error for duplicate location prefix")
	}
}

func TestValidateUploadRequiresStore(t *testing.T) {
	srv := Defaults()
	srv.Listeners = []Listener{{Host: "0.0.0.0", Port: 80}}
	srv.Root = "/srv/www"
	srv.Locations = []LocationConfig{
		{Path: "/upload", UploadEnabled: true, ErrorPages: ErrorPageMap{}},
	}
	if err := Validate([]ServerConfig{srv}); err == nil {
		t.Fatal("expected error for upload without store")
	}
}

func TestLoadFile(t *testing.T) {
	fake := func(path string) (string, error) {
		return `
server {
	listen 0.0.0.0:8080;
	root /srv/www;
}
`, nil
	}
	servers, err := LoadFile(fake, "webserv.conf")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}
}
