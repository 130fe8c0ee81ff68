package bridgerpc

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/pambridge/internal/logger"
	"github.com/marmos91/pambridge/pkg/pam"
)

// Server listens on a private unix socket and serves PAM RPC calls from
// the single helper process of the current action.
//
// The server itself is long-lived: it is created once per module state and
// reused across actions. Admission is gated by a Session that the lifecycle
// manager arms before spawning a helper and closes when the action ends.
// While no session is armed, every connection is refused.
type Server struct {
	guid     string
	dir      string
	path     string
	listener net.Listener

	uid int // owner uid, the only peer uid admitted

	mu      sync.Mutex
	session *Session

	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Session is the admission window for one action. It carries the PAM
// handle calls are dispatched against, the PID the helper is expected to
// connect from, and the single connection slot.
type Session struct {
	srv    *Server
	handle pam.Handle
	action string
	notify func(msg string)

	// pidReady is closed once SetExpectedPID has run. A helper can dial
	// the socket before the bridge records its PID; admission blocks on
	// this instead of refusing the legitimate child.
	pidReady chan struct{}
	pidOnce  sync.Once
	done     chan struct{}

	mu          sync.Mutex
	expectedPID int
	conn        net.Conn
	closed      bool
}

// NewServer creates the socket directory, binds the listener and starts
// accepting connections. The directory and socket are only reachable by
// the owning user.
func NewServer() (*Server, error) {
	dir, err := os.MkdirTemp("", "pambridge-server-*")
	if err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.Chmod(dir, 0700); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("restrict socket directory: %w", err)
	}

	path := filepath.Join(dir, "bridge.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}

	s := &Server{
		guid:     uuid.NewString(),
		dir:      dir,
		path:     path,
		listener: listener,
		uid:      os.Getuid(),
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.acceptLoop()

	logger.Debug("RPC server listening", logger.Address(s.Address()))
	return s, nil
}

// Address returns the connect address handed to helpers.
func (s *Server) Address() string {
	return FormatAddress(s.path, s.guid)
}

// Arm opens the admission window for one action. It fails if another
// action is still armed. notify receives a short message on refused
// connections so the user is not left staring at a silent prompt.
func (s *Server) Arm(handle pam.Handle, action string, notify func(msg string)) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return nil, fmt.Errorf("an action is already armed on this server")
	}

	sess := &Session{
		srv:      s,
		handle:   handle,
		action:   action,
		notify:   notify,
		pidReady: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.session = sess
	return sess, nil
}

// Close shuts the server down, waits for in-flight connections and removes
// the socket and its directory. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.shutdown)
		s.listener.Close()

		s.mu.Lock()
		sess := s.session
		s.mu.Unlock()
		if sess != nil {
			sess.Close()
		}

		s.wg.Wait()
		os.RemoveAll(s.dir)
		logger.Debug("RPC server closed", logger.Address(s.Address()))
	})
}

// SetExpectedPID records the PID the helper was spawned with. Connections
// from any other process (except our own, for self-testing) are refused.
func (sess *Session) SetExpectedPID(pid int) {
	sess.mu.Lock()
	sess.expectedPID = pid
	sess.mu.Unlock()
	sess.pidOnce.Do(func() { close(sess.pidReady) })
}

// Close ends the admission window: the active connection (if any) is torn
// down and further connections are refused until the next Arm.
func (sess *Session) Close() {
	sess.mu.Lock()
	conn := sess.conn
	sess.conn = nil
	wasClosed := sess.closed
	sess.closed = true
	sess.mu.Unlock()

	if !wasClosed {
		close(sess.done)
	}
	if conn != nil {
		conn.Close()
	}

	sess.srv.mu.Lock()
	if sess.srv.session == sess {
		sess.srv.session = nil
	}
	sess.srv.mu.Unlock()
}

// acceptLoop admits connections until the server shuts down.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			logger.Error("accept failed", logger.Err(err))
			return
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.admit(conn)
		}()
	}
}

// admit authenticates a fresh connection against the armed session and, on
// success, serves RPC calls on it until the peer hangs up.
func (s *Server) admit(conn net.Conn) {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	reject := func(reason string, attrs ...any) {
		logger.Error("connection refused: "+reason, attrs...)
		if sess != nil && sess.notify != nil {
			sess.notify("refused connection from untrusted process")
		}
		conn.Close()
	}

	if sess == nil {
		logger.Error("connection refused: no action in progress")
		conn.Close()
		return
	}

	uid, pid, err := peerCredentials(conn)
	if err != nil {
		reject("peer credentials unavailable", logger.Err(err))
		return
	}
	if int(uid) != s.uid {
		reject("peer uid mismatch", logger.UID(uid), logger.PID(int(pid)))
		return
	}

	// The helper may connect before the bridge has recorded its PID.
	select {
	case <-sess.pidReady:
	case <-sess.done:
		reject("action already finished", logger.PID(int(pid)))
		return
	case <-s.shutdown:
		conn.Close()
		return
	}

	sess.mu.Lock()
	switch {
	case sess.closed:
		sess.mu.Unlock()
		reject("action already finished", logger.PID(int(pid)))
		return
	case int(pid) != sess.expectedPID && int(pid) != os.Getpid():
		expected := sess.expectedPID
		sess.mu.Unlock()
		reject("unexpected peer pid", logger.PID(int(pid)),
			logger.Action(sess.action), "expected_pid", expected)
		return
	case sess.conn != nil:
		sess.mu.Unlock()
		reject("connection already active", logger.PID(int(pid)))
		return
	}
	sess.conn = conn
	sess.mu.Unlock()

	logger.Debug("helper connected",
		logger.Action(sess.action), logger.PID(int(pid)), logger.UID(uid))
	s.serveConn(conn, sess)
}

// serveConn answers calls one at a time until the connection drops.
func (s *Server) serveConn(conn net.Conn, sess *Session) {
	for {
		var call Call
		if err := readFrame(conn, &call); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn("read call failed",
					logger.Action(sess.action), logger.Err(err))
			}
			return
		}

		reply := s.dispatch(sess, &call)
		if err := writeFrame(conn, reply); err != nil {
			logger.Warn("write reply failed",
				logger.Action(sess.action), logger.Err(err))
			return
		}
	}
}

// dispatch runs one call against the session's PAM handle and builds the
// reply. Protocol failures never abort the connection: the helper gets an
// error reply and may try again.
func (s *Server) dispatch(sess *Session, call *Call) *Reply {
	reply := &Reply{Xid: call.Xid}

	if call.Guid != s.guid {
		reply.Accept = AcceptDenied
		reply.ErrMsg = "server guid mismatch"
		logger.Error("call refused: guid mismatch",
			logger.Action(sess.action), logger.Method(call.Method))
		return reply
	}

	proc, ok := DispatchTable[call.Method]
	if !ok {
		reply.Accept = AcceptUnknownMethod
		reply.ErrMsg = fmt.Sprintf("unknown method %q", call.Method)
		logger.Warn("unknown method called",
			logger.Action(sess.action), logger.Method(call.Method))
		return reply
	}

	logger.Debug("dispatching call",
		logger.Action(sess.action), logger.Method(proc.Name), "xid", call.Xid)

	data, perr := proc.Handler(sess.handle, call.Args)
	if perr != nil {
		reply.Accept = perr.Accept
		reply.ErrMsg = perr.Msg
		logger.Warn("call failed",
			logger.Action(sess.action), logger.Method(proc.Name), logger.Err(perr))
		return reply
	}

	reply.Accept = AcceptSuccess
	reply.Data = data
	return reply
}
