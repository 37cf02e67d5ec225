// internal/handlers/game_server.go
package handlers

import (
	"sync"

	"github.com/AndresSweeneyRios/uno/internal/game"
	"github.com/AndresSweeneyRios/uno/internal/ws"
)

// GameServer owns the lobby store and the mapping from lobby membership to
// live websocket peers. Lobby callbacks fan out through it; registry access
// is brief and never calls back into a lobby, so holding a lobby lock while
// notifying is safe.
type GameServer struct {
	LobbyStore *game.LobbyStore

	mu    sync.Mutex
	peers map[string]map[string]*ws.Peer // lobby name -> nickname -> peer
}

// NewGameServer builds a GameServer around the given store. Every lobby the
// store creates gets its notification callbacks attached under the store
// mutex, before the lobby is reachable by other goroutines.
func NewGameServer(store *game.LobbyStore) *GameServer {
	gs := &GameServer{
		LobbyStore: store,
		peers:      make(map[string]map[string]*ws.Peer),
	}
	store.Configure = gs.attachCallbacks
	return gs
}

// attachCallbacks points a lobby's notification hooks at this server. Only
// called from the store's create paths, never on a live lobby.
func (gs *GameServer) attachCallbacks(lobby *game.Lobby) {
	name := lobby.Name
	lobby.BroadcastFn = func(event string, payload interface{}) {
		gs.BroadcastToLobby(name, event, payload)
	}
	lobby.SendToFn = func(nickname, event string, payload interface{}) {
		gs.SendToPlayer(name, nickname, event, payload)
	}
}

// registerPeer records peer as lobbyName's connection for its nickname. A
// reconnect replaces the previous peer, which is closed out of the registry.
func (gs *GameServer) registerPeer(lobbyName string, peer *ws.Peer) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	members, ok := gs.peers[lobbyName]
	if !ok {
		members = make(map[string]*ws.Peer)
		gs.peers[lobbyName] = members
	}
	members[peer.Nickname] = peer
}

// unregisterPeer drops the peer registration if it is still current. A stale
// peer (already replaced by a reconnect) is left alone.
func (gs *GameServer) unregisterPeer(lobbyName string, peer *ws.Peer) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	members, ok := gs.peers[lobbyName]
	if !ok {
		return
	}
	if current, ok := members[peer.Nickname]; ok && current == peer {
		delete(members, peer.Nickname)
	}
	if len(members) == 0 {
		delete(gs.peers, lobbyName)
	}
}

// BroadcastToLobby sends an event to every peer registered for the lobby.
func (gs *GameServer) BroadcastToLobby(lobbyName, event string, payload interface{}) {
	gs.mu.Lock()
	targets := make([]*ws.Peer, 0, len(gs.peers[lobbyName]))
	for _, p := range gs.peers[lobbyName] {
		targets = append(targets, p)
	}
	gs.mu.Unlock()

	for _, p := range targets {
		p.Send(event, payload)
	}
}

// SendToPlayer sends an event to one lobby member's peer, if connected.
func (gs *GameServer) SendToPlayer(lobbyName, nickname, event string, payload interface{}) {
	gs.mu.Lock()
	peer := gs.peers[lobbyName][nickname]
	gs.mu.Unlock()

	if peer != nil {
		peer.Send(event, payload)
	}
}
