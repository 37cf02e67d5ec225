// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/AndresSweeneyRios/uno/internal/auth"
	"github.com/AndresSweeneyRios/uno/internal/ws"
)

// inboundFrame is the minimal decode of a client frame: just enough to route.
type inboundFrame struct {
	Event string `json:"event"`
}

// ConnectWSHandler upgrades an HTTP request to the game websocket and runs
// the connection until it closes. Each connection gets its own session and
// router; all game state flows through the lobby store.
func (gs *GameServer) ConnectWSHandler(w http.ResponseWriter, r *http.Request) {
	nickname, err := auth.EnsureNickname(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{"game"},
		InsecureSkipVerify: true,
	})
	if err != nil {
		logrus.Warnf("Failed websocket accept for %s: %v", nickname, err)
		return
	}

	peer := ws.NewPeer(nickname, conn)
	sess := newSession(gs, peer)
	router := sess.router()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go peer.WritePump(ctx)

	logrus.Infof("Player %s connected.", nickname)
	defer func() {
		sess.teardown()
		peer.Close(websocket.StatusNormalClosure, "bye")
		logrus.Infof("Player %s disconnected.", nickname)
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			peer.Send("error", wsError{Code: "protocolError", Text: "malformed frame: expected a JSON object with an event field"})
			continue
		}

		hc := &ws.HandlerContext{
			Ctx:     ctx,
			Peer:    peer,
			Event:   frame.Event,
			Message: json.RawMessage(data),
		}
		if !router.Dispatch(hc) {
			peer.Send("error", wsError{Code: "protocolError", Text: "unknown event: " + frame.Event})
		}
	}
}
