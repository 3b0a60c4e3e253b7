package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"echochamber/account"
	"echochamber/protocol"
)

// sessionState gates which commands a session may execute. Transitions happen
// only on successful command execution; a rejected command leaves the state
// untouched.
type sessionState int

const (
	stateEntrance sessionState = iota
	stateTransient
	stateLoggedIn
	stateDeleteConfirm
	stateExit
)

var stateCommands = map[sessionState][]string{
	stateEntrance:  {"exit", "help", "setname", "login"},
	stateTransient: {"exit", "help", "logout", "whisper", "shout", "users", "setpwd"},
	stateLoggedIn: {"exit", "help", "logout", "whisper", "shout", "users", "befriend",
		"unfriend", "friends", "accept", "refuse", "forget", "delete", "accounts", "sessions"},
	stateDeleteConfirm: {"exit", "help", "cancel", "delete"},
	stateExit:          {},
}

func (st sessionState) allows(name string) bool {
	for _, c := range stateCommands[st] {
		if c == name {
			return true
		}
	}
	return false
}

// outboxSize bounds how many undelivered messages a session may queue before
// further ones are dropped.
const outboxSize = 64

// Session is the server-side representative of one connected client. It owns
// the protocol state, the command parser, the bound account and the channel
// membership. All command dispatch runs on the session's own goroutine; only
// Deliver is called from other goroutines.
type Session struct {
	id     uuid.UUID
	srv    *Server
	conn   net.Conn
	log    *log.Logger
	parser *protocol.Parser
	state  sessionState

	out  chan string
	done chan struct{}

	mu      sync.Mutex
	account *account.Account
	channel *Channel
}

func newSession(srv *Server, conn net.Conn) *Session {
	s := &Session{
		id:     uuid.New(),
		srv:    srv,
		conn:   conn,
		log:    srv.log,
		parser: protocol.NewParser(),
		state:  stateEntrance,
		out:    make(chan string, outboxSize),
		done:   make(chan struct{}),
	}
	s.registerCommands()
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

// Account returns the currently bound account, or nil.
func (s *Session) Account() *account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// Channel returns the channel the session is subscribed to, or nil.
func (s *Session) Channel() *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Username returns the bound account's username, or "" when unbound.
func (s *Session) Username() string {
	if a := s.Account(); a != nil {
		return a.Username()
	}
	return ""
}

// Deliver queues one response line (possibly spanning multiple physical
// lines) for the client. Safe for concurrent use; broadcasts call it from
// other sessions' goroutines. Queueing never blocks, so a client that stops
// reading stalls only its own writer goroutine; once its outbox fills up,
// further messages to it are dropped.
func (s *Session) Deliver(message string) {
	select {
	case s.out <- message:
	case <-s.done:
	default:
		s.log.Warnf("session %s: outbox full, dropping message", s.id)
	}
}

// writeLoop is the session's single conn writer, draining the outbox in
// delivery order until the session ends.
func (s *Session) writeLoop() {
	for {
		select {
		case message := <-s.out:
			if _, err := s.conn.Write([]byte(message + "\n")); err != nil {
				s.log.Warnf("session %s: writing to client: %v", s.id, err)
			}
		case <-s.done:
			return
		}
	}
}

// run is the session's line loop: it blocks on the next input line and
// dispatches synchronously until the state reaches EXIT or the transport
// ends. Cleanup is identical for graceful exit and transport failure.
func (s *Session) run() {
	defer s.cleanup()
	go s.writeLoop()

	s.log.Infof("session %s started for client at %s", s.id, s.conn.RemoteAddr())
	s.Deliver(s.srv.welcomeMessage())

	reader := bufio.NewReader(s.conn)
	for s.state != stateExit {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.log.Warnf("session %s: reading from client: %v", s.id, err)
			} else {
				s.log.Infof("session %s: client disconnected", s.id)
			}
			return
		}
		s.handleLine(strings.TrimRight(line, "\r\n"))
	}
}

// handleLine implements one dispatch round: sanitize, split off the command
// token, resolve the empty token against the current state, gate on the
// state's command set, validate arity, execute.
func (s *Session) handleLine(line string) {
	name, rest := protocol.SplitCommand(protocol.Sanitize(line))
	if name == "" {
		switch s.state {
		case stateEntrance:
			name, rest = "help", ""
		case stateTransient, stateLoggedIn:
			name = "shout"
		default:
			return
		}
	}
	name = strings.ToLower(name)

	cmd, ok := s.parser.Lookup(name)
	if !ok {
		s.Deliver("Invalid command '" + name + "'")
		return
	}
	if !s.state.allows(cmd.Name) {
		s.Deliver("Command not available in this context")
		return
	}
	args, err := cmd.SplitArgs(rest)
	if err != nil {
		s.Deliver("Wrong number of arguments for command '" + cmd.Name + "'. " + cmd.Usage())
		return
	}
	if reply := cmd.Run(args); reply != "" {
		s.Deliver(reply)
	}
}

func (s *Session) cleanup() {
	s.leaveChannel()
	s.unbindAccount()
	close(s.done)
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.log.Warnf("session %s: closing connection: %v", s.id, err)
	}
	s.log.Infof("session %s terminated", s.id)
}

func (s *Session) joinChannel(c *Channel) {
	s.mu.Lock()
	if s.channel != nil {
		s.mu.Unlock()
		s.log.Warnf("session %s already bound to channel %s", s.id, s.channel)
		return
	}
	s.channel = c
	s.mu.Unlock()
	c.Subscribe(s)
}

func (s *Session) leaveChannel() {
	s.mu.Lock()
	c := s.channel
	s.channel = nil
	s.mu.Unlock()
	if c != nil {
		c.Unsubscribe(s)
	}
}

// bindAccount attaches an account to the session. The account must already be
// logged in through Account.Login.
func (s *Session) bindAccount(a *account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account != nil {
		s.log.Warnf("session %s already bound to account %s", s.id, s.account.ID())
		return
	}
	s.account = a
}

// unbindAccount detaches and logs out the bound account. A transient account
// has no life of its own and is disposed through the registry.
func (s *Session) unbindAccount() {
	s.mu.Lock()
	a := s.account
	s.account = nil
	s.mu.Unlock()
	if a == nil {
		return
	}
	a.Logout()
	if !a.Permanent() {
		s.srv.registry.Delete(a)
	}
}
