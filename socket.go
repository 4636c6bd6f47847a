package webserv

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Socket wraps a raw IPv4 stream descriptor and owns it. Grounded on
// spec.md §4.2; built directly on golang.org/x/sys/unix rather than
// net.Listener because the event loop (eventloop.go) polls raw
// descriptors through epoll and needs fd-level control (non-blocking
// accept, SO_REUSEADDR) that net.Listener does not expose.
type Socket struct {
	FD   int
	Host string
	Port int
}

// NewListenSocket creates, binds, and listens on host:port, accepting
// "0.0.0.0" as the wildcard address per spec.md §4.2.
func NewListenSocket(host string, port int, backlog int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := resolveIPv4(host)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	sa := &unix.SockaddrInet4{Port: port, Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	if backlog <= 0 {
		backlog = 128
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set non-blocking: %w", err)
	}
	return &Socket{FD: fd, Host: host, Port: port}, nil
}

func resolveIPv4(host string) ([4]byte, error) {
	var addr [4]byte
	if host == "" || host == "0.0.0.0" {
		return addr, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return addr, fmt.Errorf("resolve listen host %q: %w", host, err)
		}
		ip = ips[0]
	}
	v4 := ip.To4()
	if v4 == nil {
		return addr, fmt.Errorf("listen host %q is not IPv4", host)
	}
	copy(addr[:], v4)
	return addr, nil
}

// Accept accepts one pending connection as a non-blocking descriptor and
// the peer's address. Returns unix.EAGAIN when no connection is pending —
// callers treat that as "try again next readiness event", never as an
// error worth logging.
func (s *Socket) Accept() (fd int, peerIP string, peerPort int, err error) {
	nfd, sa, err := unix.Accept4(s.FD, unix.SOCK_NONBLOCK)
	if err != nil {
		return -1, "", 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		peerIP = net.IP(a.Addr[:]).String()
		peerPort = a.Port
	}
	return nfd, peerIP, peerPort, nil
}

// Close closes the listening descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.FD)
}
