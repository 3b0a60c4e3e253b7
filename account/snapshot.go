package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the serializable form of one permanent account, exchanged with
// the persistence layer at process start and stop. Relation sets are stored
// by counterpart ID; pending-received entries are implied by the counterpart's
// pending-sent set and therefore not stored.
type Snapshot struct {
	ID          uuid.UUID
	Username    string
	Salt        []byte
	Hash        []byte
	Permanent   bool
	Created     time.Time
	LastLogin   time.Time
	Friends     []uuid.UUID
	PendingSent []uuid.UUID
}

// Snapshot captures every permanent account together with its relations,
// consistently under the graph lock.
func (r *Registry) Snapshot() []Snapshot {
	accounts := r.Accounts()

	r.graph.Lock()
	defer r.graph.Unlock()

	out := make([]Snapshot, 0, len(accounts))
	for _, a := range accounts {
		a.mu.Lock()
		if !a.permanent {
			a.mu.Unlock()
			continue
		}
		snap := Snapshot{
			ID:        a.id,
			Username:  a.username,
			Salt:      append([]byte(nil), a.salt...),
			Hash:      append([]byte(nil), a.hash...),
			Permanent: true,
			Created:   a.created,
			LastLogin: a.lastLogin,
		}
		if rel := a.relations; rel != nil {
			for id := range rel.friends {
				snap.Friends = append(snap.Friends, id)
			}
			for id := range rel.sent {
				snap.PendingSent = append(snap.PendingSent, id)
			}
		}
		a.mu.Unlock()
		out = append(out, snap)
	}
	return out
}

// Restore rebuilds the registry contents from persisted snapshots. It must be
// called before any sessions are admitted. Relation entries pointing at
// unknown accounts are dropped with a warning.
func (r *Registry) Restore(snaps []Snapshot) error {
	byID := make(map[uuid.UUID]*Account, len(snaps))

	for _, snap := range snaps {
		if snap.Username == "" {
			return fmt.Errorf("restoring account %s: empty username", snap.ID)
		}
		a := &Account{
			id:        snap.ID,
			created:   snap.Created,
			graph:     &r.graph,
			log:       r.log,
			username:  snap.Username,
			salt:      append([]byte(nil), snap.Salt...),
			hash:      append([]byte(nil), snap.Hash...),
			permanent: snap.Permanent,
			lastLogin: snap.LastLogin,
		}
		if snap.Permanent {
			a.relations = newRelations(a)
		}

		r.mu.Lock()
		if _, exists := r.byName[snap.Username]; exists {
			r.mu.Unlock()
			return fmt.Errorf("restoring account %s: %w", snap.Username, ErrUsernameTaken)
		}
		r.byName[snap.Username] = a
		r.mu.Unlock()
		byID[snap.ID] = a
	}

	r.graph.Lock()
	defer r.graph.Unlock()
	for _, snap := range snaps {
		a := byID[snap.ID]
		if a.relations == nil {
			continue
		}
		for _, id := range snap.Friends {
			other := byID[id]
			if other == nil || other.relations == nil {
				r.log.Warnf("account %s: dropping friend entry for unknown account %s", snap.Username, id)
				continue
			}
			a.relations.friends[id] = other
			other.relations.friends[a.id] = a
		}
		for _, id := range snap.PendingSent {
			other := byID[id]
			if other == nil || other.relations == nil {
				r.log.Warnf("account %s: dropping pending entry for unknown account %s", snap.Username, id)
				continue
			}
			a.relations.sent[id] = other
			other.relations.received[a.id] = a
		}
	}
	return nil
}
