package webserv

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/badu/webserv/config"
)

// pollTimeoutMillis is the small poll timeout spec.md §4.1.2 names so
// timer-driven progress (timeout sweeps, zombie reaping) runs even when
// no descriptor is ready.
const pollTimeoutMillis = 10

const connIdleTimeoutDefault = 75 * time.Second
const cgiSweepTimeout = cgiDefaultTimeout

// Run drives the single-threaded readiness loop spec.md §4.1 describes.
// Grounded on original_source/src/event_loop/event_loop.cpp's
// poll-rebuild-dispatch-sweep shape, adapted from poll(2) to epoll via
// golang.org/x/sys/unix (SPEC_FULL.md §10's domain-stack decision).
func (s *Server) Run() error {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return err
	}
	defer unix.Close(epfd)

	registered := make(map[int]uint32)
	events := make([]unix.EpollEvent, 256)

	for !s.shuttingDown() {
		s.syncInterest(epfd, registered)

		n, err := unix.EpollWait(epfd, events, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			s.dispatch(events[i])
		}

		s.sweepTimeouts()
		s.Cgi.reapZombies()
		s.Stats.SetActiveConnections(s.Pool.Len())
		s.Stats.SetActiveCgiProcesses(len(s.Cgi.byFD) / 2)
	}

	s.Listeners.CloseAll()
	for _, c := range s.Pool.All() {
		unix.Close(c.FD)
	}
	return nil
}

// syncInterest rebuilds the epoll registration set from the current state
// of every listener, connection, and CGI endpoint — spec.md §4.1 step 1.
func (s *Server) syncInterest(epfd int, registered map[int]uint32) {
	desired := make(map[int]uint32)

	for _, fd := range s.Listeners.FDs() {
		desired[fd] = unix.EPOLLIN
	}
	for _, c := range s.Pool.All() {
		var mask uint32
		if c.WantsRead() {
			mask |= unix.EPOLLIN
		}
		if c.WantsWrite() {
			mask |= unix.EPOLLOUT
		}
		if mask != 0 {
			desired[c.FD] = mask
		}
		if c.CGI != nil {
			if c.CGI.StdinFD >= 0 {
				desired[c.CGI.StdinFD] = unix.EPOLLOUT
			}
			if !c.CGI.Finished {
				desired[c.CGI.StdoutFD] = unix.EPOLLIN
			}
		}
	}

	for fd, mask := range desired {
		if cur, ok := registered[fd]; !ok {
			unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{Fd: int32(fd), Events: mask})
			registered[fd] = mask
		} else if cur != mask {
			unix.EpollCtl(epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{Fd: int32(fd), Events: mask})
			registered[fd] = mask
		}
	}
	for fd := range registered {
		if _, ok := desired[fd]; !ok {
			unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
			delete(registered, fd)
		}
	}
}

// dispatch implements spec.md §4.1 step 3's tagged-sum dispatch: listener,
// CGI endpoint, or connection, drained error → hang-up → write → read.
func (s *Server) dispatch(ev unix.EpollEvent) {
	fd := int(ev.Fd)

	if sock := s.Listeners.Lookup(fd); sock != nil {
		s.acceptAll(sock)
		return
	}
	if proc := s.Cgi.lookup(fd); proc != nil {
		s.dispatchCgi(fd, proc, ev.Events)
		return
	}
	conn := s.Pool.get(fd)
	if conn == nil {
		return
	}
	s.dispatchConnection(conn, ev.Events)
}

func (s *Server) acceptAll(sock *Socket) {
	for {
		fd, ip, port, err := sock.Accept()
		if err != nil {
			return
		}
		cfg := s.configForPort(sock.Port)
		conn := NewConnection(fd, ip, port, sock.Port, time.Duration(cfg.KeepAliveTimeout)*time.Second, cfg.KeepAliveMaxRequest)
		s.Pool.add(conn)
	}
}

func (s *Server) configForPort(port int) *config.ServerConfig {
	for i := range s.Configs {
		if s.Configs[i].ListensOnPort(port) {
			return &s.Configs[i]
		}
	}
	return &s.Configs[0]
}

func (s *Server) dispatchConnection(conn *Connection, events uint32) {
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		s.readOnce(conn)
		s.closeConnection(conn)
		return
	}
	if events&unix.EPOLLOUT != 0 && conn.State == StateSendingResponse {
		s.writeOnce(conn)
	}
	if events&unix.EPOLLIN != 0 {
		s.readOnce(conn)
	}
}

const readChunk = 32 << 10

func (s *Server) readOnce(conn *Connection) {
	buf := make([]byte, readChunk)
	n, err := unix.Read(conn.FD, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.closeConnection(conn)
		return
	}
	if n == 0 {
		if conn.State == StateReadingHeaders && len(conn.RecvBuf) == 0 {
			s.closeConnection(conn)
			return
		}
		conn.prepareError(400, s)
		return
	}
	conn.feedRequestBytes(buf[:n], s)
}

func (s *Server) writeOnce(conn *Connection) {
	remaining := conn.ResponseBuf[conn.BytesSent:]
	n, err := unix.Write(conn.FD, remaining)
	if err != nil {
		if err == unix.EAGAIN {
			return
		}
		s.closeConnection(conn)
		return
	}
	done := conn.onWritable(n)
	if !done {
		return
	}
	if conn.ShouldClose {
		s.closeConnection(conn)
		return
	}
	conn.resetForNextRequest()
}

func (s *Server) dispatchCgi(fd int, proc *CgiProcess, events uint32) {
	conn := s.Pool.get(proc.ConnFD)
	if conn == nil {
		s.Cgi.teardown(proc)
		return
	}
	if fd == proc.StdinFD && events&unix.EPOLLOUT != 0 {
		conn.onCgiFeedable(s)
	}
	if fd == proc.StdoutFD && events&unix.EPOLLIN != 0 {
		conn.onCgiReadable(s)
	}
	if events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		if fd == proc.StdoutFD {
			conn.onCgiReadable(s) // attempt a final read before tearing down
		}
	}
}

// sweepTimeouts implements spec.md §4.8: connection idle timeout (exempt
// while WAITING_CGI) and CGI wall-clock deadline.
func (s *Server) sweepTimeouts() {
	now := time.Now()
	for _, conn := range s.Pool.All() {
		if conn.State == StateWaitingCGI {
			continue
		}
		timeout := conn.KeepAliveTimeout
		if timeout <= 0 {
			timeout = connIdleTimeoutDefault
		}
		if conn.IdleFor(now) <= timeout {
			continue
		}
		s.Stats.IncrementTimeouts()
		s.Logger.With(logrus.Fields{"fd": conn.FD, "state": conn.State}).Warn("connection idle timeout")
		if conn.State == StateReadingHeaders && conn.Request == nil {
			s.closeConnection(conn)
			continue
		}
		conn.prepareError(408, s)
	}
	for _, conn := range s.Pool.All() {
		if conn.CGI != nil && conn.CGI.TimedOut(now, cgiSweepTimeout) {
			s.Stats.IncrementCgiTimeouts()
			pid := 0
			if conn.CGI.Cmd.Process != nil {
				pid = conn.CGI.Cmd.Process.Pid
			}
			s.Logger.With(logrus.Fields{"fd": conn.FD, "pid": pid, "status": 504}).Warn("cgi wall-clock timeout")
			s.Cgi.teardown(conn.CGI)
			conn.CGI = nil
			conn.prepareError(504, s)
		}
	}
	if removed := s.Sessions.GC(); removed > 0 {
		s.Logger.Debugf("session GC removed %d expired sessions", removed)
	}
}

// closeConnection implements spec.md §4.1's cancellation contract:
// deallocate the connection and tear down any associated CGI.
func (s *Server) closeConnection(conn *Connection) {
	if conn.CGI != nil {
		s.Cgi.teardown(conn.CGI)
		conn.CGI = nil
	}
	if conn.diskWriter != nil {
		conn.diskWriter.Close()
	}
	if conn.diskReader != nil {
		conn.diskReader.Close()
	}
	unix.Close(conn.FD)
	s.Pool.remove(conn.FD)
}
