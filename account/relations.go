package account

import (
	"sort"

	"github.com/google/uuid"
)

// Relations is one permanent account's node in the friend/request graph.
// Per ordered account pair at most one of friends, pending-sent and
// pending-received ever holds, and every entry is mirrored on the counterpart.
// All mutation happens under a single graph-wide mutex handed out by the
// registry, so a paired update is one critical section and two-account
// operations cannot deadlock.
type Relations struct {
	owner    *Account
	friends  map[uuid.UUID]*Account
	sent     map[uuid.UUID]*Account
	received map[uuid.UUID]*Account
}

func newRelations(owner *Account) *Relations {
	return &Relations{
		owner:    owner,
		friends:  make(map[uuid.UUID]*Account),
		sent:     make(map[uuid.UUID]*Account),
		received: make(map[uuid.UUID]*Account),
	}
}

// Add sends a friend request to target, or promotes an existing incoming
// request from target to friendship. Self, transient counterparts, existing
// friendships and duplicate outgoing requests are no-ops.
func (r *Relations) Add(target *Account) {
	if target == nil || target == r.owner {
		return
	}
	if !r.owner.Permanent() || !target.Permanent() {
		return
	}

	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()

	other := target.relations
	if other == nil {
		return
	}
	switch {
	case r.friends[target.id] != nil:
		// already friends
	case r.received[target.id] != nil:
		delete(r.received, target.id)
		delete(other.sent, r.owner.id)
		r.friends[target.id] = target
		other.friends[r.owner.id] = r.owner
	case r.sent[target.id] == nil:
		r.sent[target.id] = target
		other.received[r.owner.id] = r.owner
	}

	r.checkPair(target)
}

// Remove clears every relationship kind between owner and target. It backs
// unfriend as well as refusing incoming and withdrawing outgoing requests.
func (r *Relations) Remove(target *Account) {
	if target == nil {
		return
	}

	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()
	r.removeLocked(target)
	r.checkPair(target)
}

func (r *Relations) removeLocked(target *Account) {
	delete(r.friends, target.id)
	delete(r.sent, target.id)
	delete(r.received, target.id)
	if other := target.relations; other != nil {
		delete(other.friends, r.owner.id)
		delete(other.sent, r.owner.id)
		delete(other.received, r.owner.id)
	}
}

// clearLocked removes every relationship the owner holds. Called during
// account deletion, under the graph lock.
func (r *Relations) clearLocked() {
	for _, set := range []map[uuid.UUID]*Account{r.friends, r.sent, r.received} {
		for _, target := range set {
			r.removeLocked(target)
		}
	}
}

func (r *Relations) HasFriend(target *Account) bool {
	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()
	return r.friends[target.id] != nil
}

func (r *Relations) HasPendingSent(target *Account) bool {
	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()
	return r.sent[target.id] != nil
}

func (r *Relations) HasPendingReceived(target *Account) bool {
	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()
	return r.received[target.id] != nil
}

// Friends returns the current friends sorted by username.
func (r *Relations) Friends() []*Account {
	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()
	return sorted(r.friends)
}

// PendingSent returns accounts the owner has requested, sorted by username.
func (r *Relations) PendingSent() []*Account {
	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()
	return sorted(r.sent)
}

// PendingReceived returns accounts awaiting the owner's answer, sorted by
// username.
func (r *Relations) PendingReceived() []*Account {
	r.owner.graph.Lock()
	defer r.owner.graph.Unlock()
	return sorted(r.received)
}

func sorted(set map[uuid.UUID]*Account) []*Account {
	out := make([]*Account, 0, len(set))
	for _, a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username() < out[j].Username() })
	return out
}

// checkPair verifies, under the graph lock, that the pair (owner, target) is
// mirrored symmetrically and that at most one relationship kind holds. A
// violation indicates a bug in the paired mutations above.
func (r *Relations) checkPair(target *Account) {
	other := target.relations
	if other == nil {
		return
	}
	friends, sent, received := r.friends[target.id] != nil, r.sent[target.id] != nil, r.received[target.id] != nil
	mirrored := friends == (other.friends[r.owner.id] != nil) &&
		sent == (other.received[r.owner.id] != nil) &&
		received == (other.sent[r.owner.id] != nil)
	kinds := 0
	for _, held := range []bool{friends, sent, received} {
		if held {
			kinds++
		}
	}
	if !mirrored || kinds > 1 {
		r.owner.log.Errorf("relations pair %s/%s inconsistent (mirrored=%v kinds=%d)",
			r.owner.id, target.id, mirrored, kinds)
	}
}
