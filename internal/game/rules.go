// internal/game/rules.go
package game

// IsLegalPlay reports whether card may be played on top of the discard pile.
// activeColor is normally top.Color but diverges right after a wild's color
// choice. Evaluated authoritatively for every play request; a client's own
// matching logic is advisory only and never trusted.
func IsLegalPlay(card, top *Card, activeColor Color) bool {
	if card == nil || top == nil {
		return false
	}
	return card.Color == ColorSpecial || card.Color == activeColor || card.Type == top.Type
}

// IsPlayersTurn reports whether nickname holds the current turn. Acquires the
// lobby lock.
func (l *Lobby) IsPlayersTurn(nickname string) bool {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.isPlayersTurnUnsafe(nickname)
}

// isPlayersTurnUnsafe assumes the lock is held.
func (l *Lobby) isPlayersTurnUnsafe(nickname string) bool {
	if l.State != StateInProgress && l.State != StateAwaitingColorChoice {
		return false
	}
	if l.CurrentPlayerIndex < 0 || l.CurrentPlayerIndex >= len(l.Players) {
		return false
	}
	return l.Players[l.CurrentPlayerIndex].Nickname == nickname
}
