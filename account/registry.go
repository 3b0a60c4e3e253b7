package account

import (
	"errors"
	"sort"
	"sync"

	"github.com/labstack/gommon/log"
)

var (
	// ErrUsernameTaken is returned when the requested username already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmptyUsername is returned for a blank username.
	ErrEmptyUsername = errors.New("username must not be empty")
)

// Registry is the process-wide, uniqueness-enforcing store of accounts keyed
// by username. It exclusively owns every account instance and hands out the
// shared relations graph lock.
type Registry struct {
	log   *log.Logger
	graph sync.Mutex

	mu     sync.RWMutex
	byName map[string]*Account
}

func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		log:    logger,
		byName: make(map[string]*Account),
	}
}

// CreateTransient creates and registers a transient account with no
// credential and no relations.
func (r *Registry) CreateTransient(username string) (*Account, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	a := newAccount(username, &r.graph, r.log)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[username]; exists {
		return nil, ErrUsernameTaken
	}
	r.byName[username] = a
	r.log.Infof("created transient account %s [%s]", a.id, username)
	return a, nil
}

// CreatePermanent creates and registers an account that is permanent from the
// start, with fresh credential material for the given password.
func (r *Registry) CreatePermanent(username string, password []byte) (*Account, error) {
	a, err := r.CreateTransient(username)
	if err != nil {
		return nil, err
	}
	if err := a.MakePermanent(password); err != nil {
		r.Delete(a)
		return nil, err
	}
	return a, nil
}

// Lookup finds an account by username.
func (r *Registry) Lookup(username string) (*Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byName[username]
	return a, ok
}

// Accounts returns a snapshot slice of all registered accounts.
func (r *Registry) Accounts() []*Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Account, 0, len(r.byName))
	for _, a := range r.byName {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username() < out[j].Username() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Delete unregisters the account and destroys it, cascading through its
// relations so no counterpart keeps a reference. Used both for explicit
// account deletion and for disposing transient accounts at session end.
func (r *Registry) Delete(a *Account) {
	if a == nil {
		return
	}
	name := a.Username()
	r.mu.Lock()
	if current, ok := r.byName[name]; ok && current == a {
		delete(r.byName, name)
	}
	r.mu.Unlock()
	a.delete()
}
