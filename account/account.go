// Package account holds the user identity model: accounts with optional
// credentials, the friend/request relations graph and the process-wide
// registry that owns every account instance.
package account

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"echochamber/security"
)

var (
	// ErrAlreadyOnline is returned when a second session tries to bind an
	// account that is already bound to a live session.
	ErrAlreadyOnline = errors.New("account already online")
)

// Peer is the server-side representative of the client currently bound to an
// account. The server's Session satisfies it.
type Peer interface {
	Deliver(message string)
}

// Account is a user identity. Transient accounts carry no credential and no
// relations and live only as long as the session that created them; permanent
// accounts carry a salted credential and a relations graph and survive
// restarts through the registry snapshot.
type Account struct {
	id      uuid.UUID
	created time.Time
	graph   *sync.Mutex // relations graph lock, shared across the registry
	log     *log.Logger

	mu        sync.Mutex
	username  string
	salt      []byte
	hash      []byte
	permanent bool
	online    bool
	peer      Peer
	lastLogin time.Time
	relations *Relations
}

func newAccount(username string, graph *sync.Mutex, logger *log.Logger) *Account {
	return &Account{
		id:       uuid.New(),
		created:  time.Now(),
		graph:    graph,
		log:      logger,
		username: username,
	}
}

func (a *Account) ID() uuid.UUID { return a.id }

func (a *Account) Created() time.Time { return a.created }

// Username returns the current username, or "" once the account is deleted.
func (a *Account) Username() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.username
}

func (a *Account) Permanent() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.permanent
}

func (a *Account) Online() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online
}

func (a *Account) LastLogin() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastLogin
}

// Relations returns the relations graph node, or nil for transient accounts.
func (a *Account) Relations() *Relations {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.relations
}

// Peer returns the bound session peer, if any.
func (a *Account) Peer() (Peer, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peer, a.peer != nil
}

// Login binds the account to a session peer and stamps the login time. It
// returns the previous login time so the caller can report it. At most one
// peer may be bound at a time.
func (a *Account) Login(p Peer) (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.online {
		return time.Time{}, ErrAlreadyOnline
	}
	previous := a.lastLogin
	a.peer = p
	a.online = true
	a.lastLogin = time.Now()
	return previous, nil
}

// Logout unbinds the account from its session peer.
func (a *Account) Logout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.peer = nil
	a.online = false
}

// CheckPassword recomputes the credential hash from the presented password
// and the stored salt. Always false for transient accounts. The password
// buffer is consumed and wiped.
func (a *Account) CheckPassword(password []byte) bool {
	// deep-copy the credential material: deletion zeroes the stored buffers
	// in place, which must not affect a verification already in flight
	a.mu.Lock()
	salt := append([]byte(nil), a.salt...)
	hash := append([]byte(nil), a.hash...)
	a.mu.Unlock()
	if len(salt) == 0 || len(hash) == 0 {
		security.Zero(password)
		return false
	}
	ok := security.VerifyPassword(salt, hash, password)
	if ok {
		a.log.Infof("successful authentication attempt for account %s", a.id)
	} else {
		a.log.Warnf("failed authentication attempt for account %s", a.id)
	}
	return ok
}

// MakePermanent generates fresh credential material for a transient account,
// flips permanence and allocates its relations node. Promoting an already
// permanent account is a logged no-op.
func (a *Account) MakePermanent(password []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.permanent {
		security.Zero(password)
		a.log.Warnf("account %s is already permanent", a.id)
		return nil
	}
	salt, err := security.NewSalt()
	if err != nil {
		security.Zero(password)
		return err
	}
	hash, err := security.HashPassword(salt, password)
	if err != nil {
		return err
	}
	a.salt = salt
	a.hash = hash
	a.permanent = true
	a.relations = newRelations(a)
	a.log.Infof("changed transient account %s to permanent", a.id)
	return nil
}

// delete releases credential material and, for permanent accounts, clears the
// relations graph so no counterpart keeps a dangling entry. Detaching the
// relations node and clearing its edges happen in one graph critical section,
// so a concurrent Add observes either the live node or nil, never a cleared
// node it could repopulate. The account ends up an orphaned, username-less
// husk. Only the registry calls this.
func (a *Account) delete() {
	a.graph.Lock()
	a.mu.Lock()
	relations := a.relations
	a.relations = nil
	a.mu.Unlock()
	if relations != nil {
		relations.clearLocked()
	}
	a.graph.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.log.Infof("deleted %s account %s", kind(a.permanent), a.id)
	a.username = ""
	security.Zero(a.salt)
	security.Zero(a.hash)
	a.salt = nil
	a.hash = nil
}

func kind(permanent bool) string {
	if permanent {
		return "permanent"
	}
	return "transient"
}

// Info renders a one-line account summary for the accounts listing.
func (a *Account) Info(channel string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := "Offline"
	if a.online {
		status = "Online"
	}
	typ := "Transient"
	if a.permanent {
		typ = "Permanent"
	}
	if channel == "" {
		channel = "none"
	}
	return "Name: " + a.username + ", Type: " + typ + ", Status: " + status + ", Current channel: " + channel
}
