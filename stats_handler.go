package webserv

// HandleStats serves the location a `stats on;` directive marks, rendering
// the server's Prometheus registry as text exposition — SPEC_FULL.md §10's
// "wired, not a new listener" stats surface.
func HandleStats(srv *Server) ResponseSpec {
	body, err := srv.Stats.Expose()
	if err != nil {
		return ResponseSpec{Status: 500}
	}
	return ResponseSpec{Status: 200, Body: body, ContentType: "text/plain; version=0.0.4; charset=utf-8"}
}
