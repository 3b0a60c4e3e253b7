package db

import (
	"os"
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echochamber/account"
)

func tempDB(t *testing.T) *DB {
	t.Helper()
	file, err := os.CreateTemp("", "echochamber-test-*.db")
	require.NoError(t, err)
	require.NoError(t, file.Close())
	t.Cleanup(func() { os.Remove(file.Name()) })

	db, err := New(file.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoadRoundTrip(t *testing.T) {
	logger := log.New("test")
	logger.SetLevel(log.OFF)

	registry := account.NewRegistry(logger)
	alice, err := registry.CreatePermanent("alice", []byte("pw-alice"))
	require.NoError(t, err)
	bob, err := registry.CreatePermanent("bob", []byte("pw-bob"))
	require.NoError(t, err)
	_, err = registry.CreatePermanent("carol", []byte("pw-carol"))
	require.NoError(t, err)
	_, err = registry.CreateTransient("ghost")
	require.NoError(t, err)

	// alice and bob are friends, alice has a pending request to carol
	alice.Relations().Add(bob)
	bob.Relations().Add(alice)
	carol, _ := registry.Lookup("carol")
	alice.Relations().Add(carol)

	db := tempDB(t)
	require.NoError(t, db.SaveAccounts(registry.Snapshot()))

	snaps, err := db.LoadAccounts()
	require.NoError(t, err)
	require.Len(t, snaps, 3, "transient accounts must not be persisted")

	restored := account.NewRegistry(logger)
	require.NoError(t, restored.Restore(snaps))

	_, found := restored.Lookup("ghost")
	assert.False(t, found)

	alice2, found := restored.Lookup("alice")
	require.True(t, found)
	assert.True(t, alice2.Permanent())
	assert.True(t, alice2.CheckPassword([]byte("pw-alice")))
	assert.False(t, alice2.CheckPassword([]byte("wrong")))

	bob2, _ := restored.Lookup("bob")
	carol2, _ := restored.Lookup("carol")
	assert.True(t, alice2.Relations().HasFriend(bob2))
	assert.True(t, bob2.Relations().HasFriend(alice2))
	assert.True(t, alice2.Relations().HasPendingSent(carol2))
	assert.True(t, carol2.Relations().HasPendingReceived(alice2))
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	logger := log.New("test")
	logger.SetLevel(log.OFF)

	db := tempDB(t)

	first := account.NewRegistry(logger)
	_, err := first.CreatePermanent("old", []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, db.SaveAccounts(first.Snapshot()))

	second := account.NewRegistry(logger)
	_, err = second.CreatePermanent("new", []byte("pw"))
	require.NoError(t, err)
	require.NoError(t, db.SaveAccounts(second.Snapshot()))

	snaps, err := db.LoadAccounts()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "new", snaps[0].Username)
}

func TestLoadFromEmptyDatabase(t *testing.T) {
	db := tempDB(t)
	snaps, err := db.LoadAccounts()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
