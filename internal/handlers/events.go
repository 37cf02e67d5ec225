// internal/handlers/events.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AndresSweeneyRios/uno/internal/auth"
	"github.com/AndresSweeneyRios/uno/internal/game"
	"github.com/AndresSweeneyRios/uno/internal/ws"
)

var lobbyNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// wsError is the payload of every error event.
type wsError struct {
	Code string `json:"code"`
	Text string `json:"text"`
}

// errorCode maps an error to its wire taxonomy code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrIllegalMove):
		return "illegalMove"
	case errors.Is(err, game.ErrNameTaken):
		return "nameTaken"
	case errors.Is(err, game.ErrNotFound):
		return "notFound"
	case errors.Is(err, game.ErrLobbyFull):
		return "lobbyFull"
	case errors.Is(err, game.ErrBadPasscode):
		return "badPasscode"
	case errors.Is(err, errProtocol):
		return "protocolError"
	default:
		return "internalError"
	}
}

// errProtocol marks malformed frames and payloads.
var errProtocol = errors.New("protocol error")

// session is the connection-scoped state: which lobbies this connection is
// subscribed to. Subscriptions die with the connection.
type session struct {
	gs   *GameServer
	peer *ws.Peer

	mu      sync.Mutex
	lobbies map[string]bool
	current string // most recently subscribed lobby
}

func newSession(gs *GameServer, peer *ws.Peer) *session {
	return &session{
		gs:      gs,
		peer:    peer,
		lobbies: make(map[string]bool),
	}
}

// router builds the event router for this session. Registration order is the
// dispatch scan order.
func (s *session) router() *ws.Router {
	r := ws.NewRouter()
	r.ReportError = func(p *ws.Peer, event string, err error) {
		p.Send("error", wsError{Code: errorCode(err), Text: err.Error()})
	}

	// Audit tap: observes every event without claiming it, so unknown event
	// names still come back as protocol errors.
	r.Tap(func(hc *ws.HandlerContext) error {
		logrus.Debugf("Event %q from %s", hc.Event, hc.Peer.Nickname)
		return nil
	})

	r.Handle(`subscribe`, s.handleSubscribe)
	r.Handle(`unsubscribe`, s.handleUnsubscribe)
	r.Handle(`startGame`, s.handleStartGame)
	r.Handle(`playCard`, s.handlePlayCard)
	r.Handle(`drawCard`, s.handleDrawCard)
	r.Handle(`chooseColor`, s.handleChooseColor)
	return r
}

// resolveLobby picks the lobby an event targets: the explicit lobbyName when
// given, else the connection's sole subscription.
func (s *session) resolveLobby(explicit string) (*game.Lobby, error) {
	s.mu.Lock()
	name := explicit
	if name == "" {
		if len(s.lobbies) == 1 {
			name = s.current
		} else {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: lobbyName is required", errProtocol)
		}
	}
	subscribed := s.lobbies[name]
	s.mu.Unlock()

	if !subscribed {
		return nil, fmt.Errorf("%w: not subscribed to lobby %q", game.ErrIllegalMove, name)
	}
	return s.gs.LobbyStore.GetLobby(name)
}

type subscribePayload struct {
	LobbyName string `json:"lobbyName"`
	Passcode  string `json:"passcode"`
}

func (s *session) handleSubscribe(hc *ws.HandlerContext) error {
	var payload subscribePayload
	if err := json.Unmarshal(hc.Message, &payload); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	if !lobbyNamePattern.MatchString(payload.LobbyName) {
		return fmt.Errorf("%w: invalid lobby name", errProtocol)
	}

	nickname := s.peer.Nickname
	// Subscribing to an unknown name creates an open lobby on the fly.
	lobby := s.gs.LobbyStore.GetOrCreateLobby(payload.LobbyName)
	if lobby.PasscodeHash != "" {
		ok, err := auth.VerifyPasscode(payload.Passcode, lobby.PasscodeHash)
		if err != nil {
			return fmt.Errorf("failed to verify passcode: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: wrong passcode for lobby %q", game.ErrBadPasscode, payload.LobbyName)
		}
	}

	// Register before joining so the join broadcast reaches this peer too.
	s.gs.registerPeer(lobby.Name, s.peer)

	if lobby.HasPlayer(nickname) {
		// Reconnect from another tab or a replaced connection: the new peer
		// takes over the seat and just needs the current view.
		s.peer.Send("lobbyState", lobby.SnapshotFor(nickname))
	} else if err := lobby.Join(nickname); err != nil {
		s.gs.unregisterPeer(lobby.Name, s.peer)
		return err
	}

	s.mu.Lock()
	s.lobbies[lobby.Name] = true
	s.current = lobby.Name
	s.mu.Unlock()
	return nil
}

type lobbyPayload struct {
	LobbyName string `json:"lobbyName"`
}

// handleUnsubscribe leaves a lobby. Unsubscribing when not subscribed is a
// no-op acknowledged the same way, so retries are harmless.
func (s *session) handleUnsubscribe(hc *ws.HandlerContext) error {
	var payload lobbyPayload
	if err := json.Unmarshal(hc.Message, &payload); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	name := payload.LobbyName
	if name == "" {
		return fmt.Errorf("%w: lobbyName is required", errProtocol)
	}

	s.mu.Lock()
	wasSubscribed := s.lobbies[name]
	delete(s.lobbies, name)
	if s.current == name {
		s.current = ""
		for n := range s.lobbies {
			s.current = n
		}
	}
	s.mu.Unlock()

	if wasSubscribed {
		s.gs.unregisterPeer(name, s.peer)
		if lobby, err := s.gs.LobbyStore.GetLobby(name); err == nil {
			lobby.RemovePlayer(s.peer.Nickname)
		}
	}
	s.peer.Send("unsubscribed", map[string]string{"lobbyName": name})
	return nil
}

func (s *session) handleStartGame(hc *ws.HandlerContext) error {
	var payload lobbyPayload
	if err := json.Unmarshal(hc.Message, &payload); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	lobby, err := s.resolveLobby(payload.LobbyName)
	if err != nil {
		return err
	}
	return lobby.Start(s.peer.Nickname)
}

type playCardPayload struct {
	LobbyName  string `json:"lobbyName"`
	CardSymbol string `json:"cardSymbol"`
}

func (s *session) handlePlayCard(hc *ws.HandlerContext) error {
	var payload playCardPayload
	if err := json.Unmarshal(hc.Message, &payload); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	symbol, err := uuid.Parse(payload.CardSymbol)
	if err != nil {
		return fmt.Errorf("%w: invalid card symbol", errProtocol)
	}
	lobby, err := s.resolveLobby(payload.LobbyName)
	if err != nil {
		return err
	}
	return lobby.PlayCard(s.peer.Nickname, symbol)
}

func (s *session) handleDrawCard(hc *ws.HandlerContext) error {
	var payload lobbyPayload
	if err := json.Unmarshal(hc.Message, &payload); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	lobby, err := s.resolveLobby(payload.LobbyName)
	if err != nil {
		return err
	}
	return lobby.DrawCard(s.peer.Nickname)
}

type chooseColorPayload struct {
	LobbyName string `json:"lobbyName"`
	Color     string `json:"color"`
}

func (s *session) handleChooseColor(hc *ws.HandlerContext) error {
	var payload chooseColorPayload
	if err := json.Unmarshal(hc.Message, &payload); err != nil {
		return fmt.Errorf("%w: %v", errProtocol, err)
	}
	lobby, err := s.resolveLobby(payload.LobbyName)
	if err != nil {
		return err
	}
	return lobby.ChooseColor(s.peer.Nickname, game.Color(payload.Color))
}

// teardown reconciles every subscription when the connection dies.
func (s *session) teardown() {
	s.mu.Lock()
	names := make([]string, 0, len(s.lobbies))
	for name := range s.lobbies {
		names = append(names, name)
	}
	s.lobbies = make(map[string]bool)
	s.current = ""
	s.mu.Unlock()

	for _, name := range names {
		s.gs.unregisterPeer(name, s.peer)
		if lobby, err := s.gs.LobbyStore.GetLobby(name); err == nil {
			lobby.RemovePlayer(s.peer.Nickname)
		}
	}
}
