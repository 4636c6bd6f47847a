package webserv

import (
	"sync/atomic"
	"time"

	"github.com/badu/webserv/config"
	"github.com/badu/webserv/internal/logging"
	"github.com/badu/webserv/internal/session"
	"github.com/badu/webserv/internal/stats"
)

// Server owns every piece of shared, single-threaded state the event loop
// dispatches against: the loaded configuration, the listening sockets,
// the connection pool, the CGI registry, and the out-of-scope
// collaborators spec.md §1 names (logging, sessions, stats).
type Server struct {
	Configs   []config.ServerConfig
	Router    *Router
	Listeners *ListenerRegistry
	Pool      *ConnectionPool
	Cgi       *CgiRegistry

	Logger   *logging.Logger
	Sessions *session.Store
	Stats    *stats.Collector

	shutdown int32
}

// NewServer wires the loaded configuration into a ready-to-run Server,
// per spec.md §6's CLI contract (one config path in, a running loop out).
func NewServer(configs []config.ServerConfig, logger *logging.Logger) *Server {
	return &Server{
		Configs:   configs,
		Router:    &Router{Servers: configs},
		Listeners: newListenerRegistry(),
		Pool:      newConnectionPool(),
		Cgi:       newCgiRegistry(),
		Logger:    logger,
		Sessions:  session.New(30 * time.Minute),
		Stats:     stats.New(),
	}
}

// Open binds every unique listener port named across the loaded configs —
// spec.md §4.2.
func (s *Server) Open() error {
	var specs []serverListenSpec
	for i := range s.Configs {
		srv := &s.Configs[i]
		for _, l := range srv.Listeners {
			specs = append(specs, serverListenSpec{Host: l.Host, Port: l.Port, Backlog: srv.Backlog})
		}
	}
	return s.Listeners.Open(specs)
}

// RequestShutdown is called from the signal handler — spec.md §4.1's
// "Global shutdown flag" design note: an atomic boolean set by the signal
// handler and polled by the loop, with no other global state required.
func (s *Server) RequestShutdown() {
	atomic.StoreInt32(&s.shutdown, 1)
}

func (s *Server) shuttingDown() bool {
	return atomic.LoadInt32(&s.shutdown) != 0
}

// primaryHost resolves SERVER_NAME for the CGI environment: the Host
// header if present, else the matched server's first server_name.
func (s *Server) primaryHost(req *HttpRequest, result *RoutingResult) string {
	if h := req.Headers.Get("host"); h != "" {
		return h
	}
	if result != nil && result.Server != nil && len(result.Server.ServerNames) > 0 {
		return result.Server.ServerNames[0]
	}
	return "localhost"
}
