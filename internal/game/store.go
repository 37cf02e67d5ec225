// internal/game/store.go
package game

import (
	"fmt"
	"sync"
	"time"
)

// LobbySummary is the public listing entry for a lobby.
type LobbySummary struct {
	Name        string `json:"name"`
	State       State  `json:"state"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
	HasPasscode bool   `json:"hasPasscode"`
}

// LobbyStore is a thread-safe registry of lobbies keyed by name. Names are
// the sole lobby identity on the wire.
type LobbyStore struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby

	// TurnTimeout is applied to every created lobby; zero disables forced
	// draws.
	TurnTimeout time.Duration

	// Configure, when set, runs on each newly created lobby while the store
	// mutex is held, before the lobby is visible to any other goroutine.
	// Used to attach notification callbacks without racing lobby operations.
	Configure func(*Lobby)
}

func NewLobbyStore() *LobbyStore {
	return &LobbyStore{
		lobbies: make(map[string]*Lobby),
	}
}

// CreateLobby registers a new lobby under name. passcodeHash may be empty for
// an open lobby. Fails with ErrNameTaken when the name is in use.
func (s *LobbyStore) CreateLobby(name, passcodeHash string) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[name]; exists {
		return nil, fmt.Errorf("%w: lobby %q already exists", ErrNameTaken, name)
	}
	lobby := NewLobby(name)
	lobby.PasscodeHash = passcodeHash
	lobby.TurnTimeout = s.TurnTimeout
	lobby.OnEmpty = s.DeleteLobby
	if s.Configure != nil {
		s.Configure(lobby)
	}
	s.lobbies[name] = lobby
	return lobby, nil
}

// GetLobby retrieves a lobby by name, or ErrNotFound.
func (s *LobbyStore) GetLobby(name string) (*Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.lobbies[name]
	if !ok {
		return nil, fmt.Errorf("%w: lobby %q", ErrNotFound, name)
	}
	return lobby, nil
}

// GetOrCreateLobby returns the named lobby, creating an open one when it does
// not exist yet.
func (s *LobbyStore) GetOrCreateLobby(name string) *Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lobby, ok := s.lobbies[name]; ok {
		return lobby
	}
	lobby := NewLobby(name)
	lobby.TurnTimeout = s.TurnTimeout
	lobby.OnEmpty = s.DeleteLobby
	if s.Configure != nil {
		s.Configure(lobby)
	}
	s.lobbies[name] = lobby
	return lobby
}

// DeleteLobby removes a lobby from the registry.
func (s *LobbyStore) DeleteLobby(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, name)
}

// ListLobbies summarizes every registered lobby.
func (s *LobbyStore) ListLobbies() []LobbySummary {
	s.mu.Lock()
	lobbies := make([]*Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		lobbies = append(lobbies, l)
	}
	s.mu.Unlock()

	out := make([]LobbySummary, 0, len(lobbies))
	for _, l := range lobbies {
		l.Mu.Lock()
		out = append(out, LobbySummary{
			Name:        l.Name,
			State:       l.State,
			PlayerCount: len(l.Players),
			MaxPlayers:  MaxPlayers,
			HasPasscode: l.PasscodeHash != "",
		})
		l.Mu.Unlock()
	}
	return out
}
