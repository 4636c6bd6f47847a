package webserv

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/badu/webserv/config"
	"github.com/badu/webserv/internal/cookie"
	"github.com/badu/webserv/internal/mimetable"
)

// diskReadThreshold is the file size at or above which a GET response is
// read through DiskReader in diskChunkSize pieces instead of with a single
// os.ReadFile call. advanceDiskRead still reads the whole file within one
// call, so a large file is not spread across loop iterations.
const diskReadThreshold = 1 << 20

// ConnState is one node of the per-connection state machine spec.md §4.3
// describes.
type ConnState int

const (
	StateReadingHeaders ConnState = iota
	StateRoutingRequest
	StateReadingBody
	StateExecutingRequest
	StateWritingDisk
	StateReadingDisk
	StateWaitingCGI
	StateSendingResponse
)

const maxHeaderBytes = 8 << 10

// sessionCookieName is the demo session cookie's name — SPEC_FULL.md §11's
// session store with CGI cookie bridging.
const sessionCookieName = "SESSID"

// Connection is the per-client state machine spec.md §3 describes, owned
// by the pool and keyed by file descriptor.
type Connection struct {
	FD         int
	PeerIP     string
	PeerPort   int
	ListenPort int

	State ConnState

	RecvBuf []byte // header/body accumulation buffer

	Request *HttpRequest
	Routing *RoutingResult

	chunk        *chunkDecoder
	bodyExpected int64
	bodyIsChunk  bool

	diskWriter    *DiskWriter
	diskReader    *DiskReader
	pendingUpload *PreparedUpload
	uploadFileIdx int

	ResponseBuf []byte
	BytesSent   int

	StatusCode int
	Cookies    []*cookie.Cookie

	LastActivity      time.Time
	KeepAliveTimeout  time.Duration
	RequestsRemaining int

	ShouldClose  bool
	SessionID    string
	sessionIsNew bool

	requestStarted time.Time

	CGI *CgiProcess
}

// NewConnection initializes a freshly accepted connection in
// READING_HEADERS, per spec.md §4.3's initial state.
func NewConnection(fd int, peerIP string, peerPort, listenPort int, keepAliveTimeout time.Duration, maxRequests int) *Connection {
	return &Connection{
		FD:                fd,
		PeerIP:            peerIP,
		PeerPort:          peerPort,
		ListenPort:        listenPort,
		State:             StateReadingHeaders,
		LastActivity:      time.Now(),
		KeepAliveTimeout:  keepAliveTimeout,
		RequestsRemaining: maxRequests,
	}
}

// WantsRead reports whether the loop should poll this connection for
// readability — spec.md §4.1's "no interest" rule for states that are
// mid-disk-I/O or otherwise not waiting on the socket.
func (c *Connection) WantsRead() bool {
	switch c.State {
	case StateReadingHeaders, StateReadingBody:
		return true
	default:
		return false
	}
}

// WantsWrite reports whether the loop should poll this connection for
// writability.
func (c *Connection) WantsWrite() bool {
	return c.State == StateSendingResponse && c.BytesSent < len(c.ResponseBuf)
}

// Touch records activity for the idle-timeout sweep.
func (c *Connection) Touch() { c.LastActivity = time.Now() }

// IdleFor reports how long since the connection last made progress.
func (c *Connection) IdleFor(now time.Time) time.Duration { return now.Sub(c.LastActivity) }

// feedRequestBytes appends newly read bytes to the accumulation buffer
// and tries to advance the state machine as far as it can with what is
// buffered so far — spec.md §4.3's read path contract.
func (c *Connection) feedRequestBytes(data []byte, srv *Server) {
	c.Touch()
	switch c.State {
	case StateReadingHeaders:
		c.RecvBuf = append(c.RecvBuf, data...)
		if len(c.RecvBuf) > maxHeaderBytes && FindHeaderEnd(c.RecvBuf) < 0 {
			c.prepareError(400, srv)
			return
		}
		end := FindHeaderEnd(c.RecvBuf)
		if end < 0 {
			return
		}
		head := c.RecvBuf[:end]
		leftover := append([]byte(nil), c.RecvBuf[end:]...)
		c.requestStarted = time.Now()
		c.Request = ParseHead(head)
		if !c.Request.Valid {
			c.prepareError(c.Request.StatusCode, srv)
			return
		}
		c.RecvBuf = leftover
		c.resolveSession(srv)
		c.State = StateRoutingRequest
		c.route(srv)
		if c.State == StateReadingBody && len(c.RecvBuf) > 0 {
			pending := c.RecvBuf
			c.RecvBuf = nil
			c.feedBody(pending, srv)
		}
	case StateReadingBody:
		c.feedBody(data, srv)
	}
}

// resolveSession implements SPEC_FULL.md §11's session store: reuse the
// session named by the inbound Cookie header if it is still live, else mint
// a fresh one — so every request has a SessionID a CGI script's
// X-Session-Set bridge can write into, and finishResponse has a cookie to
// hand back on a newly minted session. Grounded on
// original_source/src/cgi/cgi_executor/cgi_executor.cpp's
// updateSessionFromCGI, which assumes a session already exists by the time
// CGI output is lifted.
func (c *Connection) resolveSession(srv *Server) {
	c.sessionIsNew = false
	c.Cookies = cookie.ParseCookieHeader(c.Request.Headers)
	if sc := cookie.Find(c.Cookies, sessionCookieName); sc != nil && srv.Sessions.Get(sc.Value) != nil {
		c.SessionID = sc.Value
		return
	}
	sess := srv.Sessions.Create()
	c.SessionID = sess.ID
	c.sessionIsNew = true
}

func (c *Connection) route(srv *Server) {
	contentLength := int64(0)
	if cl := c.Request.Headers.Get("content-length"); cl != "" {
		contentLength = parseInt64(cl)
	}
	result := srv.Router.Route(c.Request, c.ListenPort, contentLength)
	if !result.OK {
		c.Routing = result
		c.prepareError(result.StatusCode, srv)
		return
	}
	c.Routing = result

	switch c.Routing.Kind {
	case KindPOST, KindCgiPOST:
		te := c.Request.Headers.Get("transfer-encoding")
		if te == "chunked" {
			if c.Request.Version == "HTTP/1.0" {
				c.prepareError(505, srv)
				return
			}
			c.bodyIsChunk = true
			c.chunk = newChunkDecoder()
		} else {
			c.bodyExpected = parseInt64(c.Request.Headers.Get("content-length"))
		}
		c.State = StateReadingBody
		if c.bodyExpected == 0 && !c.bodyIsChunk {
			c.execute(srv)
		}
	case KindCgiGET:
		c.startCGI(srv)
	case KindRedirect:
		spec := HandleRedirect(c.Routing)
		c.finishResponse(spec, srv)
	case KindGET:
		c.startGET(srv)
	case KindDELETE:
		spec := HandleDELETE(c.Routing)
		c.finishResponse(spec, srv)
	case KindStats:
		c.finishResponse(HandleStats(srv), srv)
	}
}

// startGET dispatches a static GET: directory listings and files under
// diskReadThreshold go through HandleGETImmediate's single-shot read;
// larger files stream through DiskReader via advanceDiskRead instead.
func (c *Connection) startGET(srv *Server) {
	servePath, isDir, status := ResolveGetTarget(c.Routing.Path, c.Routing.Location.Index, c.Routing.Location.Autoindex)
	if status != 200 || isDir {
		c.finishResponse(HandleGETImmediate(c.Routing), srv)
		return
	}
	fi, err := os.Stat(servePath)
	if err != nil || fi.Size() < diskReadThreshold {
		c.finishResponse(HandleGETImmediate(c.Routing), srv)
		return
	}
	r, err := OpenDiskReader(servePath)
	if err != nil {
		c.finishResponse(ResponseSpec{Status: 404}, srv)
		return
	}
	c.diskReader = r
	c.State = StateReadingDisk
	c.advanceDiskRead(srv, mimetable.ForPath(servePath))
}

func (c *Connection) feedBody(data []byte, srv *Server) {
	if c.bodyIsChunk {
		if err := c.chunk.Feed(data); err != nil {
			c.prepareError(400, srv)
			return
		}
		if !c.chunk.Done() {
			return
		}
		c.Request.Body = c.chunk.Body()
		c.execute(srv)
		return
	}
	c.Request.Body = append(c.Request.Body, data...)
	if int64(len(c.Request.Body)) >= c.bodyExpected {
		c.execute(srv)
	}
}

func (c *Connection) execute(srv *Server) {
	c.State = StateExecutingRequest
	if c.Routing.Kind == KindCgiPOST {
		c.startCGI(srv)
		return
	}
	ct := c.Request.Headers.Get("content-type")
	dir := c.Routing.Location.UploadStore
	if !c.Routing.Location.UploadEnabled {
		c.prepareError(403, srv)
		return
	}
	var upload *PreparedUpload
	var err error
	if isMultipart(ct) {
		upload, err = PrepareMultipartUpload(dir, ct, c.Request.Body)
	} else if singleUploadSupported(ct) {
		upload, err = PrepareSingleUpload(dir, ct, c.Request.Body)
	} else {
		c.prepareError(415, srv)
		return
	}
	if err != nil {
		c.prepareError(400, srv)
		return
	}
	AppendFormDataLog(dir, upload.FormFields)
	c.pendingUpload = upload
	c.uploadFileIdx = 0
	c.State = StateWritingDisk
	c.advanceDiskWrite(srv)
}

func isMultipart(contentType string) bool {
	ct := stripContentTypeParams(contentType)
	return ct == "multipart/form-data"
}

// advanceDiskWrite flushes every pending upload file to disk in bounded
// chunks. Regular files are always epoll-ready, so unlike the socket and
// CGI pipe state transitions there is no readiness event to resume on;
// the chunking (diskChunkSize per DiskWriter.Advance) bounds memory churn
// per write(2) call rather than spreading the work across loop
// iterations. Grounded on spec.md §4.3's "For multipart uploads"
// paragraph: every upload file goes through the same DiskWriter primitive.
func (c *Connection) advanceDiskWrite(srv *Server) {
	for {
		if c.diskWriter == nil {
			if c.uploadFileIdx >= len(c.pendingUpload.Files) {
				c.finishResponse(ResponseSpec{Status: 200}, srv)
				return
			}
			file := c.pendingUpload.Files[c.uploadFileIdx]
			w, err := OpenDiskWriter(file.Path, file.Content)
			if err != nil {
				c.finishResponse(ResponseSpec{Status: 500}, srv)
				return
			}
			c.diskWriter = w
		}
		done, err := c.diskWriter.Advance()
		if err != nil {
			c.diskWriter.Close()
			c.diskWriter = nil
			c.finishResponse(ResponseSpec{Status: 500}, srv)
			return
		}
		if !done {
			continue
		}
		c.diskWriter.Close()
		c.diskWriter = nil
		c.uploadFileIdx++
	}
}

// advanceDiskRead streams servePath into the response buffer in bounded
// chunks, for GET targets too large to comfortably hold as one
// os.ReadFile call (see handlers.go's HandleGETImmediate for the common,
// smaller case). Same rationale as advanceDiskWrite: runs to completion
// in one call since there is no readiness event to resume on.
func (c *Connection) advanceDiskRead(srv *Server, contentType string) {
	for {
		err := c.diskReader.Advance()
		if err == nil {
			continue
		}
		if err != io.EOF {
			c.diskReader.Close()
			c.diskReader = nil
			c.finishResponse(ResponseSpec{Status: 500}, srv)
			return
		}
		body := c.diskReader.Accum
		c.diskReader.Close()
		c.diskReader = nil
		c.finishResponse(ResponseSpec{Status: 200, Body: body, ContentType: contentType}, srv)
		return
	}
}

func (c *Connection) startCGI(srv *Server) {
	env := CgiEnv{
		ServerProtocol: c.Request.Version,
		ServerName:     srv.primaryHost(c.Request, c.Routing),
		ServerPort:     c.ListenPort,
		RemoteAddr:     c.PeerIP,
		RemotePort:     c.PeerPort,
		RequestURI:     c.Request.Path,
	}
	proc, err := SpawnCGI(c.Routing, c.Request, env, c.FD)
	if err != nil {
		srv.Logger.With(logrus.Fields{"fd": c.FD, "path": c.Routing.Path}).Errorf("cgi spawn failed: %v", err)
		c.finishResponse(ResponseSpec{Status: 500}, srv)
		return
	}
	srv.Cgi.register(proc)
	c.CGI = proc
	c.State = StateWaitingCGI
}

// onCgiFeedable is called by the event loop when the CGI stdin pipe is
// writable.
func (c *Connection) onCgiFeedable(srv *Server) {
	if c.CGI == nil {
		return
	}
	switch c.CGI.Feed(c.Request.Body, srv.Cgi) {
	case cgiFeedError:
		srv.Cgi.teardown(c.CGI)
		c.CGI = nil
		c.finishResponse(ResponseSpec{Status: 500}, srv)
	}
}

// onCgiReadable is called by the event loop when the CGI stdout pipe is
// readable.
func (c *Connection) onCgiReadable(srv *Server) {
	if c.CGI == nil {
		return
	}
	switch c.CGI.Drain() {
	case cgiDrainTooLarge:
		srv.Cgi.teardown(c.CGI)
		c.CGI = nil
		c.finishResponse(ResponseSpec{Status: 500}, srv)
	case cgiDrainError:
		srv.Cgi.teardown(c.CGI)
		c.CGI = nil
		c.finishResponse(ResponseSpec{Status: 500}, srv)
	case cgiDrainEOF:
		lifted := liftCgiHeaders(c.CGI.Output)
		srv.Cgi.teardown(c.CGI)
		c.CGI = nil
		spec := ResponseSpec{
			Status:       lifted.Status,
			Body:         lifted.Body,
			ContentType:  lifted.ContentType,
			Location:     lifted.Location,
			RawSetCookie: lifted.SetCookie,
		}
		if lifted.SessionKey != "" {
			srv.Sessions.Set(c.SessionID, lifted.SessionKey, lifted.SessionValue)
		}
		c.finishResponse(spec, srv)
	}
}

// finishResponse frames spec into wire bytes and transitions to
// SENDING_RESPONSE, applying the Connection: close rules spec.md §4.3
// names.
func (c *Connection) finishResponse(spec ResponseSpec, srv *Server) {
	c.StatusCode = spec.Status
	c.RequestsRemaining--
	close := spec.Close || c.ShouldClose || c.Request == nil ||
		c.Request.Headers.Get("connection") == "close" ||
		c.RequestsRemaining <= 0
	spec.Close = close
	if c.sessionIsNew {
		spec.Cookies = append(spec.Cookies, &cookie.Cookie{Name: sessionCookieName, Value: c.SessionID, Path: "/"})
	}

	var body []byte
	if spec.Status >= 400 {
		var loc *config.LocationConfig
		var server *config.ServerConfig
		if c.Routing != nil {
			loc, server = c.Routing.Location, c.Routing.Server
		}
		body = BuildErrorResponse(spec.Status, loc, server, close)
	} else {
		body = BuildResponse(spec)
	}
	c.ResponseBuf = body
	c.BytesSent = 0
	c.State = StateSendingResponse
	c.ShouldClose = close

	if c.Request != nil {
		bytesRx := len(c.Request.Body)
		srv.Stats.RecordRequest(c.Request.Method, spec.Status, bytesRx, len(body), time.Since(c.requestStarted))
	}
}

func (c *Connection) prepareError(status int, srv *Server) {
	c.finishResponse(ResponseSpec{Status: status}, srv)
}

// onWritable advances the SENDING_RESPONSE drain; returns true once fully
// sent (caller decides keep-alive reset vs. close).
func (c *Connection) onWritable(wrote int) bool {
	c.Touch()
	c.BytesSent += wrote
	return c.BytesSent >= len(c.ResponseBuf)
}

// resetForNextRequest implements spec.md §4.3's keep-alive reset: clear
// every per-request field and return to READING_HEADERS.
func (c *Connection) resetForNextRequest() {
	c.Request = nil
	c.Routing = nil
	c.chunk = nil
	c.bodyExpected = 0
	c.bodyIsChunk = false
	if c.diskWriter != nil {
		c.diskWriter.Close()
		c.diskWriter = nil
	}
	if c.diskReader != nil {
		c.diskReader.Close()
		c.diskReader = nil
	}
	c.pendingUpload = nil
	c.uploadFileIdx = 0
	c.ResponseBuf = nil
	c.BytesSent = 0
	c.RecvBuf = nil
	c.sessionIsNew = false
	c.State = StateReadingHeaders
}

func parseInt64(s string) int64 {
	var n int64
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return n
		}
		n = n*10 + int64(s[i]-'0')
	}
	return n
}
