// internal/ws/peer.go
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Envelope is the wire shape of every server-to-client message.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Peer wraps one websocket connection and its outbound queue. Send is
// non-blocking so game code can fan out notifications while holding a lobby
// lock; a peer that cannot keep up loses messages rather than stalling the
// game.
type Peer struct {
	Nickname string
	Conn     *websocket.Conn

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewPeer wraps conn. The caller owns starting WritePump.
func NewPeer(nickname string, conn *websocket.Conn) *Peer {
	return &Peer{
		Nickname: nickname,
		Conn:     conn,
		out:      make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// Send queues an event for delivery. Safe to call from any goroutine,
// including under lobby locks.
func (p *Peer) Send(event string, payload interface{}) {
	data, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		logrus.Warnf("Peer %s: failed to marshal %s event: %v", p.Nickname, event, err)
		return
	}
	select {
	case p.out <- data:
	case <-p.done:
	default:
		logrus.Warnf("Peer %s: outbound queue full, dropping %s event", p.Nickname, event)
	}
}

// WritePump drains the outbound queue onto the connection and keeps the
// connection alive with periodic pings. Returns when the peer is closed or a
// write fails.
func (p *Peer) WritePump(ctx context.Context) {
	pingTicker := time.NewTicker(15 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case msg := <-p.out:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := p.Conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				logrus.Debugf("Peer %s: write failed: %v", p.Nickname, err)
				p.Close(websocket.StatusAbnormalClosure, "write failure")
				return
			}
		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := p.Conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logrus.Debugf("Peer %s: ping failed: %v", p.Nickname, err)
				p.Close(websocket.StatusAbnormalClosure, "ping failure")
				return
			}
		case <-p.done:
			return
		case <-ctx.Done():
			p.Close(websocket.StatusNormalClosure, "server shutdown")
			return
		}
	}
}

// Close shuts the connection down once; repeated calls are no-ops.
func (p *Peer) Close(code websocket.StatusCode, reason string) {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.Conn.Close(code, reason)
	})
}

// Done is closed when the peer has been shut down.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}
