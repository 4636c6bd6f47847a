// Package webserv implements a single-threaded, non-blocking HTTP/1.1
// origin server: static files, CGI-executed dynamic content, and
// multipart/single-content uploads, configured by the nginx-style grammar
// in the config package. Concurrency comes from a readiness-driven event
// loop (eventloop.go) over listening sockets, client connections, and CGI
// pipe endpoints rather than per-connection goroutines.
package webserv
