// internal/game/snapshot.go
package game

// SafePlayer is the redacted view of a seat. Hand contents appear only in the
// viewer's own entry; everyone else is a count.
type SafePlayer struct {
	Nickname      string  `json:"nickname"`
	HandSize      int     `json:"handSize"`
	Hand          []*Card `json:"hand,omitempty"`
	IsHost        bool    `json:"isHost"`
	IsCurrentTurn bool    `json:"isCurrentTurn"`
}

// SafeLobby is the snapshot broadcast to clients after every accepted
// mutation. Pile contents beyond the discard top never leave the server.
type SafeLobby struct {
	Name                string       `json:"name"`
	State               State        `json:"state"`
	Players             []SafePlayer `json:"players"`
	DiscardTop          *Card        `json:"discardTop,omitempty"`
	ActiveColor         Color        `json:"activeColor,omitempty"`
	DrawPileSize        int          `json:"drawPileSize"`
	DiscardPileSize     int          `json:"discardPileSize"`
	CurrentPlayer       string       `json:"currentPlayer,omitempty"`
	Direction           int          `json:"direction"`
	PendingColorChooser string       `json:"pendingColorChooser,omitempty"`
}

// SnapshotFor builds the lobby view as seen by viewer.
func (l *Lobby) SnapshotFor(viewer string) SafeLobby {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.snapshotForUnsafe(viewer)
}

func (l *Lobby) snapshotForUnsafe(viewer string) SafeLobby {
	snap := SafeLobby{
		Name:                l.Name,
		State:               l.State,
		ActiveColor:         l.ActiveColor,
		DrawPileSize:        len(l.DrawPile),
		DiscardPileSize:     len(l.DiscardPile),
		Direction:           l.Direction,
		PendingColorChooser: l.PendingColorChooser,
		DiscardTop:          l.topDiscardUnsafe(),
	}
	inPlay := l.State == StateInProgress || l.State == StateAwaitingColorChoice
	if inPlay && l.CurrentPlayerIndex < len(l.Players) {
		snap.CurrentPlayer = l.Players[l.CurrentPlayerIndex].Nickname
	}
	for i, p := range l.Players {
		sp := SafePlayer{
			Nickname:      p.Nickname,
			HandSize:      len(p.Hand),
			IsHost:        p.Nickname == l.HostNickname,
			IsCurrentTurn: inPlay && i == l.CurrentPlayerIndex,
		}
		if p.Nickname == viewer {
			sp.Hand = p.Hand
		}
		snap.Players = append(snap.Players, sp)
	}
	return snap
}

// broadcastStateUnsafe pushes a personalized snapshot to every seated player.
// Each viewer sees their own hand; everyone else's is a count.
func (l *Lobby) broadcastStateUnsafe() {
	if l.SendToFn == nil {
		return
	}
	for _, p := range l.Players {
		l.SendToFn(p.Nickname, "lobbyState", l.snapshotForUnsafe(p.Nickname))
	}
}
