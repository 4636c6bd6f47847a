package webserv

import "fmt"

// ListenerRegistry owns one listening Socket per unique port across the
// whole configuration, collapsing duplicate (host, port) listeners shared
// by multiple virtual hosts on the same port — spec.md §4.2.
type ListenerRegistry struct {
	byFD   map[int]*Socket
	byPort map[int]*Socket
}

func newListenerRegistry() *ListenerRegistry {
	return &ListenerRegistry{
		byFD:   make(map[int]*Socket),
		byPort: make(map[int]*Socket),
	}
}

// Open creates a listening socket for every unique port named by servers'
// listen directives. backlog comes from whichever server first declares a
// listener on that port.
func (r *ListenerRegistry) Open(servers []serverListenSpec) error {
	for _, spec := range servers {
		if _, exists := r.byPort[spec.Port]; exists {
			continue
		}
		sock, err := NewListenSocket(spec.Host, spec.Port, spec.Backlog)
		if err != nil {
			return fmt.Errorf("opening listener on port %d: %w", spec.Port, err)
		}
		r.byFD[sock.FD] = sock
		r.byPort[spec.Port] = sock
	}
	return nil
}

// serverListenSpec is the minimal shape the registry needs from a
// config.ServerConfig's listeners, kept decoupled from the config package
// so listener.go has no import-order dependency on it.
type serverListenSpec struct {
	Host    string
	Port    int
	Backlog int
}

// FDs returns every listening descriptor, for the event loop's interest set.
func (r *ListenerRegistry) FDs() []int {
	fds := make([]int, 0, len(r.byFD))
	for fd := range r.byFD {
		fds = append(fds, fd)
	}
	return fds
}

// Lookup returns the Socket for a listening fd, or nil.
func (r *ListenerRegistry) Lookup(fd int) *Socket {
	return r.byFD[fd]
}

// CloseAll closes every listening socket.
func (r *ListenerRegistry) CloseAll() {
	for _, s := range r.byFD {
		s.Close()
	}
}
