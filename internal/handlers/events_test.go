// internal/handlers/events_test.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndresSweeneyRios/uno/internal/auth"
	"github.com/AndresSweeneyRios/uno/internal/game"
	"github.com/AndresSweeneyRios/uno/internal/ws"
)

func newTestSession(gs *GameServer, nickname string) *session {
	return newSession(gs, ws.NewPeer(nickname, nil))
}

func event(t *testing.T, s *session, h ws.HandlerFunc, frame string) error {
	t.Helper()
	return h(&ws.HandlerContext{
		Ctx:     context.Background(),
		Peer:    s.peer,
		Message: json.RawMessage(frame),
	})
}

func TestErrorCodeMapping(t *testing.T) {
	assert.Equal(t, "illegalMove", errorCode(game.ErrIllegalMove))
	assert.Equal(t, "nameTaken", errorCode(game.ErrNameTaken))
	assert.Equal(t, "notFound", errorCode(game.ErrNotFound))
	assert.Equal(t, "lobbyFull", errorCode(game.ErrLobbyFull))
	assert.Equal(t, "badPasscode", errorCode(game.ErrBadPasscode))
	assert.Equal(t, "protocolError", errorCode(errProtocol))
	assert.Equal(t, "internalError", errorCode(errors.New("surprise")))
}

func TestSubscribeCreatesOpenLobby(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")

	require.NoError(t, event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`))

	lobby, err := gs.LobbyStore.GetLobby("pickup")
	require.NoError(t, err)
	assert.True(t, lobby.HasPlayer("alice"))
	assert.Equal(t, "alice", lobby.HostNickname)
	assert.True(t, s.lobbies["pickup"])
}

// Two connections racing to subscribe to the same fresh lobby name must both
// land in one lobby whose callbacks were attached exactly once, at creation.
func TestConcurrentSubscribesToFreshLobby(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	a := newTestSession(gs, "alice")
	b := newTestSession(gs, "bob")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = event(t, a, a.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`)
	}()
	go func() {
		defer wg.Done()
		errs[1] = event(t, b, b.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	lobby, err := gs.LobbyStore.GetLobby("pickup")
	require.NoError(t, err)
	assert.True(t, lobby.HasPlayer("alice"))
	assert.True(t, lobby.HasPlayer("bob"))
	assert.NotNil(t, lobby.BroadcastFn)
	assert.NotNil(t, lobby.SendToFn)
}

// The audit tap observes everything; it must not make unknown events look
// handled.
func TestUnknownEventIsUnmatched(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")
	r := s.router()

	matched := r.Dispatch(&ws.HandlerContext{
		Ctx:     context.Background(),
		Peer:    s.peer,
		Event:   "definitelyNotAnEvent",
		Message: json.RawMessage(`{"event":"definitelyNotAnEvent"}`),
	})
	assert.False(t, matched)
}

func TestSubscribeInvalidName(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")

	err := event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"bad name!"}`)
	assert.ErrorIs(t, err, errProtocol)
}

func TestSubscribeWithPasscode(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	hash, err := auth.HashPasscode("hunter2")
	require.NoError(t, err)
	lobby, err := gs.LobbyStore.CreateLobby("secret-club", hash)
	require.NoError(t, err)

	s := newTestSession(gs, "alice")
	err = event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"secret-club"}`)
	assert.ErrorIs(t, err, game.ErrBadPasscode, "missing passcode")

	err = event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"secret-club","passcode":"wrong"}`)
	assert.ErrorIs(t, err, game.ErrBadPasscode)

	err = event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"secret-club","passcode":"hunter2"}`)
	require.NoError(t, err)
	assert.True(t, lobby.HasPlayer("alice"))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")
	s2 := newTestSession(gs, "bob")

	require.NoError(t, event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`))
	require.NoError(t, event(t, s2, s2.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`))

	require.NoError(t, event(t, s, s.handleUnsubscribe, `{"event":"unsubscribe","lobbyName":"pickup"}`))
	require.NoError(t, event(t, s, s.handleUnsubscribe, `{"event":"unsubscribe","lobbyName":"pickup"}`),
		"repeat unsubscribe is a no-op")

	lobby, err := gs.LobbyStore.GetLobby("pickup")
	require.NoError(t, err)
	assert.False(t, lobby.HasPlayer("alice"))
	assert.True(t, lobby.HasPlayer("bob"))
}

func TestUnsubscribeLastPlayerReapsLobby(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")

	require.NoError(t, event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`))
	require.NoError(t, event(t, s, s.handleUnsubscribe, `{"event":"unsubscribe","lobbyName":"pickup"}`))

	_, err := gs.LobbyStore.GetLobby("pickup")
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestGameplayEventsResolveSoleSubscription(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	host := newTestSession(gs, "alice")
	guest := newTestSession(gs, "bob")

	require.NoError(t, event(t, host, host.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`))
	require.NoError(t, event(t, guest, guest.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`))

	// No lobbyName needed when the connection has exactly one subscription.
	require.NoError(t, event(t, host, host.handleStartGame, `{"event":"startGame"}`))

	lobby, err := gs.LobbyStore.GetLobby("pickup")
	require.NoError(t, err)
	assert.Equal(t, game.StateInProgress, lobby.State)

	err = event(t, guest, guest.handleStartGame, `{"event":"startGame"}`)
	assert.ErrorIs(t, err, game.ErrIllegalMove, "already started")
}

func TestPlayCardRejectsBadSymbol(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")
	require.NoError(t, event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"pickup"}`))

	err := event(t, s, s.handlePlayCard, `{"event":"playCard","cardSymbol":"not-a-uuid"}`)
	assert.ErrorIs(t, err, errProtocol)
}

func TestGameplayEventsRequireSubscription(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")

	err := event(t, s, s.handleDrawCard, `{"event":"drawCard","lobbyName":"pickup"}`)
	assert.ErrorIs(t, err, game.ErrIllegalMove)

	err = event(t, s, s.handleDrawCard, `{"event":"drawCard"}`)
	assert.ErrorIs(t, err, errProtocol, "no sole subscription to infer")
}

func TestTeardownRemovesPlayerFromAllLobbies(t *testing.T) {
	gs := NewGameServer(game.NewLobbyStore())
	s := newTestSession(gs, "alice")
	other := newTestSession(gs, "bob")

	require.NoError(t, event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"first"}`))
	require.NoError(t, event(t, s, s.handleSubscribe, `{"event":"subscribe","lobbyName":"second"}`))
	require.NoError(t, event(t, other, other.handleSubscribe, `{"event":"subscribe","lobbyName":"second"}`))

	s.teardown()

	_, err := gs.LobbyStore.GetLobby("first")
	assert.ErrorIs(t, err, game.ErrNotFound, "emptied lobby is reaped")

	second, err := gs.LobbyStore.GetLobby("second")
	require.NoError(t, err)
	assert.False(t, second.HasPlayer("alice"))
	assert.True(t, second.HasPlayer("bob"))
}

// TestWebsocketSubscribeRoundTrip exercises the full path: HTTP upgrade,
// frame decode, dispatch, and the snapshot push back to the client.
func TestWebsocketSubscribeRoundTrip(t *testing.T) {
	auth.Init() // ephemeral keys, no DB needed
	gs := NewGameServer(game.NewLobbyStore())
	srv := httptest.NewServer(http.HandlerFunc(gs.ConnectWSHandler))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?nickname=alice"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	require.NoError(t, conn.Write(ctx, websocket.MessageText,
		[]byte(`{"event":"subscribe","lobbyName":"pickup"}`)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var env ws.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "lobbyState", env.Event)

	// Unknown events come back as protocol errors without killing the
	// connection.
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"event":"teleport"}`)))
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &env))
	require.Equal(t, "error", env.Event)
	payload, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "protocolError", payload["code"])
}
