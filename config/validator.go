package config

import "fmt"

// ValidationError reports a semantically invalid (but grammatically well
// formed) configuration.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks the invariants the parser cannot enforce token-by-token:
// at least one server, at least one listener per server, and well-formed
// locations. Grounded on original_source's src/config/validator/validator.cpp.
func Validate(servers []ServerConfig) error {
	if len(servers) == 0 {
		return &ValidationError{"configuration must define at least one server block"}
	}
	for i := range servers {
		srv := &servers[i]
		if len(srv.Listeners) == 0 {
			return &ValidationError{fmt.Sprintf("server[%d] has no listen directive", i)}
		}
		if srv.Root == "" && !hasRootedLocation(srv) {
			return &ValidationError{fmt.Sprintf("server[%d] has no root and no location overrides it", i)}
		}
		seenPrefix := map[string]bool{}
		for _, loc := range srv.Locations {
			if loc.Path == "" || loc.Path[0] != '/' {
				return &ValidationError{fmt.Sprintf("server[%d] location %q must start with '/'", i, loc.Path)}
			}
			if seenPrefix[loc.Path] {
				return &ValidationError{fmt.Sprintf("server[%d] duplicate location prefix %q", i, loc.Path)}
			}
			seenPrefix[loc.Path] = true
			if loc.RedirectCode != 0 && (loc.RedirectCode < 300 || loc.RedirectCode > 399) {
				return &ValidationError{fmt.Sprintf("location %q redirect code must be 3xx", loc.Path)}
			}
			if loc.UploadEnabled && loc.UploadStore == "" {
				return &ValidationError{fmt.Sprintf("location %q enables uploads but sets no upload_store", loc.Path)}
			}
		}
	}
	return nil
}

func hasRootedLocation(srv *ServerConfig) bool {
	for _, loc := range srv.Locations {
		if loc.Root != "" {
			return true
		}
	}
	return false
}

// LoadFile reads, tokenizes, parses, and validates a configuration file in
// one call — the single entry point the CLI (spec.md §6) uses.
func LoadFile(readFile func(string) (string, error), path string) ([]ServerConfig, error) {
	contents, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	servers, err := Parse(contents, path)
	if err != nil {
		return nil, err
	}
	if err := Validate(servers); err != nil {
		return nil, err
	}
	return servers, nil
}
