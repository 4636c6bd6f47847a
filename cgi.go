package webserv

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// cgiOutputCap bounds the rolling response buffer per spec.md §4.6.5 and §5.
const cgiOutputCap = 10 << 20

// cgiDefaultTimeout is the wall-clock deadline spec.md §4.6.8 names.
const cgiDefaultTimeout = 40 * time.Second

// cgiInterpreterDirs is the fixed probe list spec.md §4.6.2 names, grounded
// on original_source/src/cgi/cgi_executor/cgi_executor.cpp's interpreter
// resolution: try a short list of absolute directories rather than trust
// $PATH, since the child's environment is rebuilt from scratch.
var cgiInterpreterDirs = []string{"/usr/bin", "/usr/local/bin", "/opt/homebrew/bin"}

var cgiInterpreterByExt = map[string]string{
	".py": "python3",
	".sh": "bash",
	".pl": "perl",
	".php": "php-cgi",
}

// CgiProcess is the process record spec.md §3 describes, keyed by both
// pipe descriptors in CgiRegistry.
type CgiProcess struct {
	Cmd        *exec.Cmd
	ConnFD     int
	StdinFD    int // parent's write end, non-blocking; -1 once closed
	StdoutFD   int // parent's read end, non-blocking
	BytesWritten int64
	Output     []byte
	StartedAt  time.Time
	Finished   bool
}

// CgiRegistry owns live CgiProcess records, keyed by both of their pipe
// descriptors so either readiness event finds the same record — spec.md §3.
type CgiRegistry struct {
	byFD      map[int]*CgiProcess
	killedPIDs []int
}

func newCgiRegistry() *CgiRegistry {
	return &CgiRegistry{byFD: make(map[int]*CgiProcess)}
}

func (r *CgiRegistry) register(p *CgiProcess) {
	r.byFD[p.StdoutFD] = p
	if p.StdinFD >= 0 {
		r.byFD[p.StdinFD] = p
	}
}

func (r *CgiRegistry) lookup(fd int) *CgiProcess { return r.byFD[fd] }

func (r *CgiRegistry) forgetStdin(p *CgiProcess) {
	if p.StdinFD >= 0 {
		delete(r.byFD, p.StdinFD)
		unix.Close(p.StdinFD)
		p.StdinFD = -1
	}
}

// teardown closes both ends, removes the record, kills the child if it is
// still running, and queues the PID for opportunistic reaping — spec.md
// §4.6.9 / §5's cancellation contract.
func (r *CgiRegistry) teardown(p *CgiProcess) {
	if p.StdinFD >= 0 {
		delete(r.byFD, p.StdinFD)
		unix.Close(p.StdinFD)
	}
	if p.StdoutFD >= 0 {
		delete(r.byFD, p.StdoutFD)
		unix.Close(p.StdoutFD)
	}
	if p.Cmd.Process != nil {
		p.Cmd.Process.Signal(unix.SIGKILL)
		r.killedPIDs = append(r.killedPIDs, p.Cmd.Process.Pid)
	}
}

// reapZombies non-blockingly waits on every queued PID, dropping the ones
// that have exited — spec.md §4.6.9.
func (r *CgiRegistry) reapZombies() {
	remaining := r.killedPIDs[:0]
	for _, pid := range r.killedPIDs {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if err != nil || wpid == 0 {
			remaining = append(remaining, pid)
		}
	}
	r.killedPIDs = remaining
}

// CgiEnv describes everything the environment builder (spec.md §6) needs
// beyond the routing result.
type CgiEnv struct {
	ServerProtocol string
	ServerName     string
	ServerPort     int
	RemoteAddr     string
	RemotePort     int
	RequestURI     string
}

// SpawnCGI starts the interpreter for result's script and wires non-blocking
// pipes — spec.md §4.6 steps 1-3. It does not register the process: the
// caller (the connection state machine) registers it with the CgiRegistry,
// then feeds the body via Feed and drains output via Drain.
func SpawnCGI(result *RoutingResult, req *HttpRequest, env CgiEnv, connFD int) (*CgiProcess, error) {
	scriptPath := result.Path
	if fi, err := os.Stat(scriptPath); err != nil || fi.IsDir() {
		return nil, fmt.Errorf("cgi script not found: %s", scriptPath)
	}

	interpreter, err := resolveInterpreter(result.CgiExt)
	if err != nil {
		return nil, err
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("cgi stdin pipe: %w", err)
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, fmt.Errorf("cgi stdout pipe: %w", err)
	}

	cmd := exec.Command(interpreter, scriptPath)
	cmd.Dir = filepath.Dir(scriptPath)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = nil
	cmd.Env = buildCgiEnv(result, req, env)

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("cgi execve failed: %w", err)
	}
	stdinR.Close()
	stdoutW.Close()

	unix.SetNonblock(int(stdinW.Fd()), true)
	unix.SetNonblock(int(stdoutR.Fd()), true)

	p := &CgiProcess{
		Cmd:       cmd,
		ConnFD:    connFD,
		StdinFD:   int(stdinW.Fd()),
		StdoutFD:  int(stdoutR.Fd()),
		StartedAt: time.Now(),
	}
	if req.Method != "POST" {
		unix.Close(p.StdinFD)
		p.StdinFD = -1
	}
	return p, nil
}

func resolveInterpreter(ext string) (string, error) {
	name, ok := cgiInterpreterByExt[ext]
	if !ok {
		return "", fmt.Errorf("no interpreter configured for cgi extension %q", ext)
	}
	for _, dir := range cgiInterpreterDirs {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && fi.Mode()&0111 != 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no executable interpreter %q found in %v", name, cgiInterpreterDirs)
}

// buildCgiEnv implements spec.md §6's CGI environment table exactly.
func buildCgiEnv(result *RoutingResult, req *HttpRequest, env CgiEnv) []string {
	scriptFilename, _ := filepath.Abs(result.Path)
	vars := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=" + env.ServerProtocol,
		"SERVER_NAME=" + env.ServerName,
		"SERVER_PORT=" + strconv.Itoa(env.ServerPort),
		"REQUEST_METHOD=" + req.Method,
		"QUERY_STRING=" + req.Query,
		"SCRIPT_NAME=" + result.ScriptName,
		"PATH_INFO=" + result.PathInfo,
		"PATH_TRANSLATED=" + result.PathTranslated,
		"CONTENT_LENGTH=" + req.Headers.Get("content-length"),
		"CONTENT_TYPE=" + req.Headers.Get("content-type"),
		"REMOTE_ADDR=" + env.RemoteAddr,
		"REMOTE_PORT=" + strconv.Itoa(env.RemotePort),
		"REDIRECT_STATUS=200",
		"SCRIPT_FILENAME=" + scriptFilename,
		"DOCUMENT_ROOT=" + result.Location.Root,
		"REQUEST_URI=" + env.RequestURI,
		"PATH=/opt/homebrew/bin:/usr/local/bin:/usr/bin:/bin",
		"SERVER_SOFTWARE=webserv/1.0",
	}
	for name, value := range req.Headers {
		vars = append(vars, "HTTP_"+headerEnvName(name)+"="+value)
	}
	return vars
}

func headerEnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

const cgiIOChunk = 32 << 10

// cgiFeedResult reports what happened on one writable-readiness event.
type cgiFeedResult int

const (
	cgiFeedContinue cgiFeedResult = iota
	cgiFeedComplete
	cgiFeedError
)

// Feed implements spec.md §4.6.4: write up to 32 KiB of body from offset,
// closing stdin once the whole body has been written. EAGAIN is not an
// error — the caller just waits for the next writable event.
func (p *CgiProcess) Feed(body []byte, registry *CgiRegistry) cgiFeedResult {
	if p.StdinFD < 0 || p.BytesWritten >= int64(len(body)) {
		return cgiFeedComplete
	}
	end := p.BytesWritten + cgiIOChunk
	if end > int64(len(body)) {
		end = int64(len(body))
	}
	n, err := unix.Write(p.StdinFD, body[p.BytesWritten:end])
	if err != nil {
		if err == unix.EAGAIN {
			return cgiFeedContinue
		}
		return cgiFeedError
	}
	p.BytesWritten += int64(n)
	if p.BytesWritten >= int64(len(body)) {
		registry.forgetStdin(p)
		return cgiFeedComplete
	}
	return cgiFeedContinue
}

// cgiDrainResult reports what happened on one readable-readiness event.
type cgiDrainResult int

const (
	cgiDrainContinue cgiDrainResult = iota
	cgiDrainEOF
	cgiDrainTooLarge
	cgiDrainError
)

// Drain implements spec.md §4.6.5: read up to 32 KiB and append to the
// rolling output buffer, enforcing the 10 MiB cap.
func (p *CgiProcess) Drain() cgiDrainResult {
	buf := make([]byte, cgiIOChunk)
	n, err := unix.Read(p.StdoutFD, buf)
	if err != nil {
		if err == unix.EAGAIN {
			return cgiDrainContinue
		}
		return cgiDrainError
	}
	if n == 0 {
		p.Finished = true
		return cgiDrainEOF
	}
	if len(p.Output)+n > cgiOutputCap {
		return cgiDrainTooLarge
	}
	p.Output = append(p.Output, buf[:n]...)
	return cgiDrainContinue
}

// TimedOut reports whether p has run past its wall-clock deadline —
// spec.md §4.6.8.
func (p *CgiProcess) TimedOut(now time.Time, deadline time.Duration) bool {
	if deadline <= 0 {
		deadline = cgiDefaultTimeout
	}
	return now.Sub(p.StartedAt) > deadline
}

// cgiHeaderResult is the outcome of lifting CGI-style headers off the
// front of the collected output, per spec.md §4.6.6.
type cgiHeaderResult struct {
	Status      int
	ContentType string
	Location    string
	SetCookie   string
	// SessionKey/SessionValue carry an X-Session-Set: key=value pseudo-header
	// lifted out of CGI output, per original_source's updateSessionFromCGI
	// (see SPEC_FULL.md §11). SessionKey is empty when no such header arrived
	// or it didn't parse as key=value.
	SessionKey   string
	SessionValue string
	Body         []byte
}

// liftCgiHeaders splits CGI output into header lines (terminated by
// "\r\n\r\n" or "\n\n") and body, recognizing Content-Type, Set-Cookie,
// Location, and Status, defaulting Content-Type to text/html when absent —
// spec.md §4.6.6.
func liftCgiHeaders(output []byte) cgiHeaderResult {
	res := cgiHeaderResult{Status: 200, ContentType: "text/html"}
	text := string(output)

	sep := "\r\n\r\n"
	idx := strings.Index(text, sep)
	if idx < 0 {
		sep = "\n\n"
		idx = strings.Index(text, sep)
	}
	if idx < 0 {
		res.Body = output
		return res
	}

	headerBlock := text[:idx]
	body := text[idx+len(sep):]
	looksLikeHeaders := false
	for _, line := range strings.Split(headerBlock, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			looksLikeHeaders = false
			break
		}
		name := strings.ToLower(strings.TrimSpace(line[:colon]))
		value := strings.TrimSpace(line[colon+1:])
		switch name {
		case "content-type":
			res.ContentType = value
			looksLikeHeaders = true
		case "set-cookie":
			res.SetCookie = value
			looksLikeHeaders = true
		case "location":
			res.Location = value
			looksLikeHeaders = true
		case "x-session-set":
			if eq := strings.IndexByte(value, '='); eq > 0 {
				res.SessionKey = value[:eq]
				res.SessionValue = value[eq+1:]
			}
			looksLikeHeaders = true
		case "status":
			if f := strings.Fields(value); len(f) > 0 {
				if code, err := strconv.Atoi(f[0]); err == nil {
					res.Status = code
				}
			}
			looksLikeHeaders = true
		default:
			looksLikeHeaders = true
		}
	}
	if !looksLikeHeaders {
		res.Body = output
		return res
	}
	res.Body = []byte(body)
	return res
}
