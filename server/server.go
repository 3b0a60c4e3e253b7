// Package server implements the chat service core: the accept loop with
// connection admission, the per-connection session state machine, the
// command handlers and the broadcast channel.
package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"echochamber/account"
)

type Config struct {
	Port        int
	MaxClients  int
	ChannelName string
}

// Server owns the listener, the set of live sessions, the default channel
// and the account registry reference. One goroutine runs per session.
type Server struct {
	cfg      *Config
	log      *log.Logger
	registry *account.Registry
	channel  *Channel

	mu       sync.Mutex
	listener net.Listener
	sessions map[*Session]struct{}
	closed   bool
}

func New(registry *account.Registry, cfg *Config, logger *log.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      logger,
		registry: registry,
		channel:  NewChannel(cfg.ChannelName),
		sessions: make(map[*Session]struct{}),
	}
}

// Start listens on the configured TCP port and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(listener)
}

// Serve runs the accept loop on the given listener.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	s.log.Infof("server listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}
		go s.handleConn(conn)
	}
}

// handleConn runs one session for its whole lifetime. The session slot is
// reserved atomically with the capacity check, so concurrent connects can
// never exceed MaxClients; connections beyond the limit are refused here.
func (s *Server) handleConn(conn net.Conn) {
	sess := newSession(s, conn)
	if !s.addSession(sess) {
		s.log.Warn("maximum number of simultaneous connections reached")
		conn.Write([]byte("Too many connections. Closing connection\n"))
		conn.Close()
		return
	}
	defer s.removeSession(sess)
	sess.run()
}

// Shutdown stops accepting connections and forces every live session to
// exit by closing its transport; each session then runs its normal cleanup.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	listener := s.listener
	sessions := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, sess := range sessions {
		sess.Deliver("Server is shutting down")
		sess.conn.Close()
	}
	s.log.Info("server stopped")
}

// Sessions returns a snapshot of the live sessions.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Stats renders server statistics for the control socket.
func (s *Server) Stats() string {
	sessions := s.Sessions()
	var users []string
	for _, sess := range sessions {
		if name := sess.Username(); name != "" {
			users = append(users, name)
		}
	}
	return "connections=" + strconv.Itoa(len(sessions)) +
		",accounts=" + strconv.Itoa(s.registry.Len()) +
		",users=" + strings.Join(users, ";")
}

// addSession claims a session slot; false means the server is full.
func (s *Server) addSession(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.cfg.MaxClients {
		return false
	}
	s.sessions[sess] = struct{}{}
	return true
}

func (s *Server) removeSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess)
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) welcomeMessage() string {
	lines := []string{
		"--------------------------------------------------",
		"Welcome to the EchoChamber chat server!",
		"Local time is: " + time.Now().Format(time.RFC1123),
		"You are client " + strconv.Itoa(s.sessionCount()) + " of " + strconv.Itoa(s.cfg.MaxClients) + ".",
		"Use /help or /help <command> for more information.",
		"--------------------------------------------------",
	}
	return strings.Join(lines, "\n")
}
