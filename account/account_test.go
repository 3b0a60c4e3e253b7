package account

import (
	"sync"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	logger := log.New("test")
	logger.SetLevel(log.OFF)
	return NewRegistry(logger)
}

func permanentPair(t *testing.T, r *Registry) (*Account, *Account) {
	t.Helper()
	bob, err := r.CreatePermanent("bob", []byte("pw-bob"))
	require.NoError(t, err)
	eve, err := r.CreatePermanent("eve", []byte("pw-eve"))
	require.NoError(t, err)
	return bob, eve
}

// requireMirrored asserts the symmetric-consistency properties for a pair.
func requireMirrored(t *testing.T, a, b *Account) {
	t.Helper()
	require.Equal(t, a.Relations().HasFriend(b), b.Relations().HasFriend(a))
	require.Equal(t, a.Relations().HasPendingSent(b), b.Relations().HasPendingReceived(a))
	require.Equal(t, a.Relations().HasPendingReceived(b), b.Relations().HasPendingSent(a))

	kinds := 0
	for _, held := range []bool{
		a.Relations().HasFriend(b),
		a.Relations().HasPendingSent(b),
		a.Relations().HasPendingReceived(b),
	} {
		if held {
			kinds++
		}
	}
	require.LessOrEqual(t, kinds, 1, "more than one relationship kind held for the pair")
}

func TestTransientAccountHasNoRelations(t *testing.T) {
	r := testRegistry()
	a, err := r.CreateTransient("ghost")
	require.NoError(t, err)
	assert.False(t, a.Permanent())
	assert.Nil(t, a.Relations())
	assert.False(t, a.CheckPassword([]byte("anything")))
}

func TestRegistryEnforcesUniqueness(t *testing.T) {
	r := testRegistry()
	_, err := r.CreateTransient("alice")
	require.NoError(t, err)
	_, err = r.CreateTransient("alice")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = r.CreateTransient("")
	assert.ErrorIs(t, err, ErrEmptyUsername)
}

func TestMakePermanentAllocatesRelations(t *testing.T) {
	r := testRegistry()
	a, err := r.CreateTransient("alice")
	require.NoError(t, err)

	require.NoError(t, a.MakePermanent([]byte("secret")))
	assert.True(t, a.Permanent())
	assert.NotNil(t, a.Relations())
	assert.True(t, a.CheckPassword([]byte("secret")))
	assert.False(t, a.CheckPassword([]byte("Secret")))

	// promoting again is a no-op and keeps the old credential
	require.NoError(t, a.MakePermanent([]byte("other")))
	assert.True(t, a.CheckPassword([]byte("secret")))
}

func TestLoginBindsAtMostOnePeer(t *testing.T) {
	r := testRegistry()
	a, err := r.CreatePermanent("alice", []byte("pw"))
	require.NoError(t, err)

	_, err = a.Login(nil)
	require.NoError(t, err)
	assert.True(t, a.Online())

	_, err = a.Login(nil)
	assert.ErrorIs(t, err, ErrAlreadyOnline)

	a.Logout()
	assert.False(t, a.Online())
	last, err := a.Login(nil)
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestFriendRequestLifecycle(t *testing.T) {
	r := testRegistry()
	bob, eve := permanentPair(t, r)

	t.Run("request", func(t *testing.T) {
		bob.Relations().Add(eve)
		assert.True(t, bob.Relations().HasPendingSent(eve))
		assert.True(t, eve.Relations().HasPendingReceived(bob))
		assert.False(t, bob.Relations().HasFriend(eve))
		requireMirrored(t, bob, eve)
	})

	t.Run("duplicate request is a no-op", func(t *testing.T) {
		bob.Relations().Add(eve)
		assert.Len(t, bob.Relations().PendingSent(), 1)
		requireMirrored(t, bob, eve)
	})

	t.Run("counter-request promotes to friendship", func(t *testing.T) {
		eve.Relations().Add(bob)
		assert.True(t, bob.Relations().HasFriend(eve))
		assert.True(t, eve.Relations().HasFriend(bob))
		assert.Empty(t, bob.Relations().PendingSent())
		assert.Empty(t, eve.Relations().PendingReceived())
		requireMirrored(t, bob, eve)
	})

	t.Run("add while friends is a no-op", func(t *testing.T) {
		bob.Relations().Add(eve)
		assert.True(t, bob.Relations().HasFriend(eve))
		assert.Empty(t, bob.Relations().PendingSent())
		requireMirrored(t, bob, eve)
	})

	t.Run("remove clears everything", func(t *testing.T) {
		bob.Relations().Remove(eve)
		assert.False(t, bob.Relations().HasFriend(eve))
		assert.False(t, eve.Relations().HasFriend(bob))
		requireMirrored(t, bob, eve)
	})
}

func TestAddRejectsSelfAndTransient(t *testing.T) {
	r := testRegistry()
	bob, _ := permanentPair(t, r)
	ghost, err := r.CreateTransient("ghost")
	require.NoError(t, err)

	bob.Relations().Add(bob)
	assert.Empty(t, bob.Relations().PendingSent())

	bob.Relations().Add(ghost)
	assert.Empty(t, bob.Relations().PendingSent())
	assert.Nil(t, ghost.Relations())
}

func TestDeleteCascadesThroughRelations(t *testing.T) {
	r := testRegistry()
	bob, eve := permanentPair(t, r)
	mal, err := r.CreatePermanent("mal", []byte("pw-mal"))
	require.NoError(t, err)

	bob.Relations().Add(eve)
	eve.Relations().Add(bob) // friends
	bob.Relations().Add(mal) // pending

	r.Delete(bob)

	assert.Empty(t, bob.Username())
	_, found := r.Lookup("bob")
	assert.False(t, found)
	assert.Empty(t, eve.Relations().Friends())
	assert.Empty(t, mal.Relations().PendingReceived())
	assert.False(t, bob.CheckPassword([]byte("pw-bob")))
}

// Delete must not disturb password checks or relation updates already in
// flight; run with the race detector.
func TestDeleteIsSafeAgainstConcurrentUse(t *testing.T) {
	r := testRegistry()
	bob, eve := permanentPair(t, r)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 8; i++ {
			bob.CheckPassword([]byte("pw-bob"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			eve.Relations().Add(bob)
			eve.Relations().Remove(bob)
		}
	}()

	r.Delete(bob)
	wg.Wait()

	assert.False(t, bob.CheckPassword([]byte("pw-bob")))
	assert.Empty(t, eve.Relations().Friends())
	assert.Empty(t, eve.Relations().PendingSent())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	r := testRegistry()
	bob, eve := permanentPair(t, r)
	mal, err := r.CreatePermanent("mal", []byte("pw-mal"))
	require.NoError(t, err)
	_, err = r.CreateTransient("ghost") // must not be persisted
	require.NoError(t, err)

	bob.Relations().Add(eve)
	eve.Relations().Add(bob) // friends
	bob.Relations().Add(mal) // pending bob->mal

	snaps := r.Snapshot()
	require.Len(t, snaps, 3)

	restored := testRegistry()
	require.NoError(t, restored.Restore(snaps))

	_, found := restored.Lookup("ghost")
	assert.False(t, found)

	bob2, ok := restored.Lookup("bob")
	require.True(t, ok)
	eve2, ok := restored.Lookup("eve")
	require.True(t, ok)
	mal2, ok := restored.Lookup("mal")
	require.True(t, ok)

	assert.Equal(t, bob.ID(), bob2.ID())
	assert.True(t, bob2.CheckPassword([]byte("pw-bob")))
	assert.True(t, bob2.Relations().HasFriend(eve2))
	assert.True(t, eve2.Relations().HasFriend(bob2))
	assert.True(t, bob2.Relations().HasPendingSent(mal2))
	assert.True(t, mal2.Relations().HasPendingReceived(bob2))
	requireMirrored(t, bob2, eve2)
	requireMirrored(t, bob2, mal2)
}
