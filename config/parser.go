package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a grammar violation with its token position.
type ParseError struct {
	Message string
	Line    int
	Column  int
	File    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// parser is a recursive-descent parser over the flat token stream produced
// by the lexer. Grounded on original_source's src/config/parser/parser.cpp
// directive shape: `name value...;` or `name { ... }`.
type parser struct {
	tokens []Token
	pos    int
	file   string
}

func (p *parser) cur() Token  { return p.tokens[p.pos] }
func (p *parser) atEOF() bool { return p.cur().Type == TokenEOF }

func (p *parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(tt TokenType) (Token, error) {
	if p.cur().Type != tt {
		return Token{}, &ParseError{fmt.Sprintf("unexpected token %q", p.cur().Value), p.cur().Line, p.cur().Column, p.file}
	}
	return p.advance(), nil
}

// Parse lexes and parses the configuration file contents into a list of
// server blocks. Unvalidated: call Validate on the result before use.
func Parse(contents, filename string) ([]ServerConfig, error) {
	tokens, err := tokenize(contents, filename)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, file: filename}

	var servers []ServerConfig
	for !p.atEOF() {
		tok, err := p.expect(TokenWord)
		if err != nil {
			return nil, err
		}
		if tok.Value != "server" {
			return nil, &ParseError{"expected 'server' block at top level", tok.Line, tok.Column, filename}
		}
		srv, err := p.parseServerBlock()
		if err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, nil
}

func (p *parser) parseServerBlock() (ServerConfig, error) {
	srv := Defaults()
	if _, err := p.expect(TokenLBrace); err != nil {
		return srv, err
	}
	for p.cur().Type != TokenRBrace {
		if p.atEOF() {
			return srv, &ParseError{"unterminated server block", p.cur().Line, p.cur().Column, p.file}
		}
		name, err := p.expect(TokenWord)
		if err != nil {
			return srv, err
		}
		if name.Value == "location" {
			loc, err := p.parseLocationBlock(srv)
			if err != nil {
				return srv, err
			}
			srv.Locations = append(srv.Locations, loc)
			continue
		}
		args, err := p.readDirectiveArgs()
		if err != nil {
			return srv, err
		}
		if err := applyServerDirective(&srv, name.Value, args); err != nil {
			return srv, &ParseError{err.Error(), name.Line, name.Column, p.file}
		}
	}
	p.advance() // consume '}'
	return srv, nil
}

func (p *parser) parseLocationBlock(srv ServerConfig) (LocationConfig, error) {
	prefixTok, err := p.expect(TokenWord)
	if err != nil {
		return LocationConfig{}, err
	}
	if !strings.HasPrefix(prefixTok.Value, "/") {
		return LocationConfig{}, &ParseError{"location prefix must start with '/'", prefixTok.Line, prefixTok.Column, p.file}
	}
	loc := LocationConfig{
		Path:              prefixTok.Value,
		Root:              srv.Root,
		Index:             srv.Index,
		Autoindex:         srv.Autoindex,
		AllowMethods:      append([]string(nil), srv.AllowMethods...),
		ErrorPages:        ErrorPageMap{},
		ClientMaxBodySize: srv.ClientMaxBodySize,
		CgiExt:            append([]string(nil), srv.CgiExt...),
		CgiPath:           append([]string(nil), srv.CgiPath...),
	}
	if _, err := p.expect(TokenLBrace); err != nil {
		return loc, err
	}
	for p.cur().Type != TokenRBrace {
		if p.atEOF() {
			return loc, &ParseError{"unterminated location block", p.cur().Line, p.cur().Column, p.file}
		}
		name, err := p.expect(TokenWord)
		if err != nil {
			return loc, err
		}
		args, err := p.readDirectiveArgs()
		if err != nil {
			return loc, err
		}
		if err := applyLocationDirective(&loc, name.Value, args); err != nil {
			return loc, &ParseError{err.Error(), name.Line, name.Column, p.file}
		}
	}
	p.advance() // consume '}'
	return loc, nil
}

// readDirectiveArgs consumes tokens up to and including the terminating ';'.
func (p *parser) readDirectiveArgs() ([]string, error) {
	var args []string
	for p.cur().Type == TokenWord || p.cur().Type == TokenString {
		args = append(args, p.advance().Value)
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return nil, err
	}
	return args, nil
}

func applyServerDirective(srv *ServerConfig, name string, args []string) error {
	switch name {
	case "listen":
		if len(args) != 1 {
			return fmt.Errorf("listen takes exactly one host:port argument")
		}
		l, err := parseListener(args[0])
		if err != nil {
			return err
		}
		srv.Listeners = append(srv.Listeners, l)
	case "server_name":
		srv.ServerNames = append(srv.ServerNames, args...)
	case "root":
		if len(args) != 1 {
			return fmt.Errorf("root takes exactly one argument")
		}
		srv.Root = args[0]
	case "index":
		if len(args) != 1 {
			return fmt.Errorf("index takes exactly one argument")
		}
		srv.Index = args[0]
	case "autoindex":
		v, err := parseOnOff(args)
		if err != nil {
			return err
		}
		srv.Autoindex = v
	case "allow_methods":
		srv.AllowMethods = args
	case "error_page":
		return applyErrorPage(srv.ErrorPages, args)
	case "client_max_body_size":
		v, err := parseSize(args)
		if err != nil {
			return err
		}
		srv.ClientMaxBodySize = v
	case "backlog":
		v, err := parseInt(args)
		if err != nil {
			return err
		}
		srv.Backlog = v
	case "keepalive_timeout":
		v, err := parseInt(args)
		if err != nil {
			return err
		}
		srv.KeepAliveTimeout = v
	case "keepalive_max_requests":
		v, err := parseInt(args)
		if err != nil {
			return err
		}
		srv.KeepAliveMaxRequest = v
	case "cgi_ext":
		srv.CgiExt = args
	case "cgi_path":
		srv.CgiPath = args
	default:
		return fmt.Errorf("unknown server directive %q", name)
	}
	return nil
}

func applyLocationDirective(loc *LocationConfig, name string, args []string) error {
	switch name {
	case "root":
		if len(args) != 1 {
			return fmt.Errorf("root takes exactly one argument")
		}
		loc.Root = args[0]
		loc.HasRootOverride = true
	case "index":
		if len(args) != 1 {
			return fmt.Errorf("index takes exactly one argument")
		}
		loc.Index = args[0]
		loc.HasIndexOverride = true
	case "autoindex":
		v, err := parseOnOff(args)
		if err != nil {
			return err
		}
		loc.Autoindex = v
		loc.HasAutoindexOver = true
	case "allow_methods":
		loc.AllowMethods = args
		loc.HasMethodsOverride = true
	case "error_page":
		return applyErrorPage(loc.ErrorPages, args)
	case "client_max_body_size":
		v, err := parseSize(args)
		if err != nil {
			return err
		}
		loc.ClientMaxBodySize = v
		loc.HasBodySizeOver = true
	case "cgi_ext":
		loc.CgiExt = args
	case "cgi_path":
		loc.CgiPath = args
	case "upload_enabled":
		v, err := parseOnOff(args)
		if err != nil {
			return err
		}
		loc.UploadEnabled = v
	case "upload_store":
		if len(args) != 1 {
			return fmt.Errorf("upload_store takes exactly one argument")
		}
		loc.UploadStore = args[0]
	case "redirect":
		if len(args) != 2 {
			return fmt.Errorf("redirect takes a status code and a target")
		}
		code, err := strconv.Atoi(args[0])
		if err != nil || code < 300 || code > 399 {
			return fmt.Errorf("redirect code must be a 3xx status")
		}
		loc.RedirectCode = code
		loc.RedirectTarget = args[1]
	case "stats":
		v, err := parseOnOff(args)
		if err != nil {
			return err
		}
		loc.Stats = v
	default:
		return fmt.Errorf("unknown location directive %q", name)
	}
	return nil
}

func applyErrorPage(into ErrorPageMap, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("error_page requires at least one code and a path")
	}
	path := args[len(args)-1]
	for _, codeStr := range args[:len(args)-1] {
		code, err := strconv.Atoi(codeStr)
		if err != nil {
			return fmt.Errorf("invalid error_page status code %q", codeStr)
		}
		into[code] = path
	}
	return nil
}

func parseListener(s string) (Listener, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return Listener{}, fmt.Errorf("listen directive must be host:port")
	}
	host := s[:idx]
	port, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return Listener{}, fmt.Errorf("invalid listen port %q", s[idx+1:])
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return Listener{Host: host, Port: port}, nil
}

func parseOnOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("expected exactly one on|off argument")
	}
	switch args[0] {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected on|off, got %q", args[0])
	}
}

func parseInt(args []string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one integer argument")
	}
	return strconv.Atoi(args[0])
}

func parseSize(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected exactly one size argument")
	}
	v, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", args[0])
	}
	return v, nil
}
