// internal/game/store_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLobbyStoreCreateAndGet(t *testing.T) {
	store := NewLobbyStore()

	lobby, err := store.CreateLobby("friday-night", "")
	require.NoError(t, err)
	assert.Equal(t, "friday-night", lobby.Name)
	assert.Equal(t, StateAwaitingPlayers, lobby.State)

	_, err = store.CreateLobby("friday-night", "")
	assert.ErrorIs(t, err, ErrNameTaken)

	found, err := store.GetLobby("friday-night")
	require.NoError(t, err)
	assert.Same(t, lobby, found)

	_, err = store.GetLobby("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLobbyStoreGetOrCreate(t *testing.T) {
	store := NewLobbyStore()

	a := store.GetOrCreateLobby("pickup")
	b := store.GetOrCreateLobby("pickup")
	assert.Same(t, a, b)
}

// Configure must run on every create path before the lobby is visible, so
// callback attachment cannot race lobby operations.
func TestLobbyStoreConfiguresNewLobbies(t *testing.T) {
	store := NewLobbyStore()
	var configured []string
	store.Configure = func(l *Lobby) { configured = append(configured, l.Name) }

	_, err := store.CreateLobby("created", "")
	require.NoError(t, err)
	store.GetOrCreateLobby("implicit")
	store.GetOrCreateLobby("implicit") // existing lobby, no reconfigure

	assert.Equal(t, []string{"created", "implicit"}, configured)
}

func TestLobbyStoreRemovesEmptyLobbies(t *testing.T) {
	store := NewLobbyStore()
	lobby, err := store.CreateLobby("transient", "")
	require.NoError(t, err)

	require.NoError(t, lobby.Join("alice"))
	lobby.RemovePlayer("alice")

	_, err = store.GetLobby("transient")
	assert.ErrorIs(t, err, ErrNotFound, "empty lobby is reaped")
}

func TestLobbyStoreList(t *testing.T) {
	store := NewLobbyStore()
	open, err := store.CreateLobby("open", "")
	require.NoError(t, err)
	_, err = store.CreateLobby("private", "$argon2id$fake")
	require.NoError(t, err)
	require.NoError(t, open.Join("alice"))

	summaries := store.ListLobbies()
	require.Len(t, summaries, 2)

	byName := make(map[string]LobbySummary)
	for _, s := range summaries {
		byName[s.Name] = s
	}
	assert.Equal(t, 1, byName["open"].PlayerCount)
	assert.False(t, byName["open"].HasPasscode)
	assert.True(t, byName["private"].HasPasscode)
	assert.Equal(t, MaxPlayers, byName["open"].MaxPlayers)
}
