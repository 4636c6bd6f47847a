package webserv

// ConnectionPool owns every live Connection, keyed by file descriptor —
// spec.md §3's "Connection (owned by the pool, keyed by file descriptor)".
type ConnectionPool struct {
	byFD map[int]*Connection
}

func newConnectionPool() *ConnectionPool {
	return &ConnectionPool{byFD: make(map[int]*Connection)}
}

func (p *ConnectionPool) add(c *Connection)        { p.byFD[c.FD] = c }
func (p *ConnectionPool) get(fd int) *Connection    { return p.byFD[fd] }
func (p *ConnectionPool) remove(fd int)             { delete(p.byFD, fd) }
func (p *ConnectionPool) Len() int                  { return len(p.byFD) }

// All returns every live connection. Order is unspecified — spec.md §4.1
// allows events for distinct connections to interleave arbitrarily.
func (p *ConnectionPool) All() []*Connection {
	out := make([]*Connection, 0, len(p.byFD))
	for _, c := range p.byFD {
		out = append(out, c)
	}
	return out
}
