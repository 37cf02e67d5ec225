// internal/game/lobby.go
package game

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AndresSweeneyRios/uno/internal/cache"
)

// State is a lobby's lifecycle phase. AwaitingColorChoice is a transient
// sub-phase of play: exactly one of {normal turn, pending color choice} is
// active at any time.
type State string

const (
	StateAwaitingPlayers     State = "awaitingPlayers"
	StateInProgress          State = "inProgress"
	StateAwaitingColorChoice State = "awaitingColorChoice"
	StateFinished            State = "finished"
)

const (
	MinPlayers       = 2
	MaxPlayers       = 4
	StartingHandSize = 7
)

// Player is one seat in a lobby. The Lobby owns the list; a hand is only ever
// mutated by the lobby's own operations while its lock is held.
type Player struct {
	Nickname string  `json:"nickname"`
	Hand     []*Card `json:"hand"`
}

// Lobby holds the entire authoritative state for one game session. The Mu
// mutex is the unit of mutual exclusion: validate-then-apply runs to
// completion under it, so concurrent intents against a stale turn pointer are
// rejected rather than merged. Lobbies are fully independent; cross-lobby
// operations never coordinate.
type Lobby struct {
	Name         string
	HostNickname string
	PasscodeHash string // empty means the lobby is open

	Players     []*Player
	DrawPile    []*Card
	DiscardPile []*Card

	State               State
	CurrentPlayerIndex  int
	Direction           int // +1 or -1
	ActiveColor         Color
	PendingColorChooser string // nickname, set only while State == StateAwaitingColorChoice
	pendingDraw         int    // penalty owed to the next player once the color is chosen

	TurnID      int
	TurnTimeout time.Duration // 0 disables the forced-draw timer
	turnTimer   *time.Timer
	moveIndex   int

	// BroadcastFn sends an event to every subscribed peer. Called with the
	// lobby lock held; implementations must not call back into the lobby and
	// must not block (the peer layer uses buffered non-blocking sends).
	BroadcastFn func(event string, payload interface{})

	// SendToFn sends an event to a single player's peer. Same constraints as
	// BroadcastFn.
	SendToFn func(nickname, event string, payload interface{})

	// OnEmpty is invoked outside the lock after the last player leaves,
	// typically to remove the lobby from its store.
	OnEmpty func(name string)

	Mu sync.Mutex
}

// NewLobby builds an empty lobby awaiting players.
func NewLobby(name string) *Lobby {
	return &Lobby{
		Name:      name,
		State:     StateAwaitingPlayers,
		Direction: 1,
	}
}

// Join adds a player seat. The first player to join becomes the host. Fails
// once the game has started, the lobby is full, or the nickname is in use.
func (l *Lobby) Join(nickname string) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.State != StateAwaitingPlayers {
		return fmt.Errorf("%w: game already started", ErrIllegalMove)
	}
	if len(l.Players) >= MaxPlayers {
		return ErrLobbyFull
	}
	for _, p := range l.Players {
		if p.Nickname == nickname {
			return fmt.Errorf("%w: nickname %q already in lobby", ErrNameTaken, nickname)
		}
	}

	l.Players = append(l.Players, &Player{Nickname: nickname})
	if l.HostNickname == "" {
		l.HostNickname = nickname
	}
	log.Printf("Lobby %s: player %s joined (%d seated).", l.Name, nickname, len(l.Players))
	l.logMoveUnsafe(nickname, "join", nil)
	l.broadcastStateUnsafe()
	return nil
}

// Start deals the opening hands and flips the first discard. Host only.
func (l *Lobby) Start(nickname string) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.State != StateAwaitingPlayers {
		return fmt.Errorf("%w: game already started", ErrIllegalMove)
	}
	if nickname != l.HostNickname {
		return fmt.Errorf("%w: only the host can start the game", ErrIllegalMove)
	}
	if len(l.Players) < MinPlayers {
		return fmt.Errorf("%w: need at least %d players", ErrIllegalMove, MinPlayers)
	}

	l.DrawPile = BuildDeck()
	l.DiscardPile = nil
	for _, p := range l.Players {
		p.Hand = make([]*Card, 0, StartingHandSize)
		drawn, err := l.takeFromDrawPileUnsafe(StartingHandSize)
		if err != nil {
			return err
		}
		p.Hand = append(p.Hand, drawn...)
	}

	// Flip the opening discard. Wild-colored flips go under the pile so play
	// always begins with a concrete active color.
	for {
		top := l.DrawPile[0]
		l.DrawPile = l.DrawPile[1:]
		if !top.IsWild() {
			l.DiscardPile = append(l.DiscardPile, top)
			l.ActiveColor = top.Color
			break
		}
		l.DrawPile = append(l.DrawPile, top)
	}

	l.State = StateInProgress
	l.CurrentPlayerIndex = 0
	l.Direction = 1
	l.TurnID = 1
	l.scheduleTurnTimerUnsafe()

	log.Printf("Lobby %s: game started with %d players.", l.Name, len(l.Players))
	l.logMoveUnsafe(nickname, "start", map[string]interface{}{"players": len(l.Players)})
	l.broadcastStateUnsafe()
	return nil
}

// PlayCard validates and applies a play of the card identified by symbol.
// Removal is by symbol, never by value, so duplicate-valued cards cannot be
// confused. On success the card's effect is applied, the turn advances, and
// every member receives a fresh snapshot.
func (l *Lobby) PlayCard(nickname string, symbol uuid.UUID) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.State != StateInProgress {
		if l.State == StateAwaitingColorChoice {
			return fmt.Errorf("%w: waiting for %s to choose a color", ErrIllegalMove, l.PendingColorChooser)
		}
		return fmt.Errorf("%w: game is not in progress", ErrIllegalMove)
	}
	if !l.isPlayersTurnUnsafe(nickname) {
		return fmt.Errorf("%w: not your turn", ErrIllegalMove)
	}

	player := l.playerUnsafe(nickname)
	cardIdx := -1
	for i, c := range player.Hand {
		if c.Symbol == symbol {
			cardIdx = i
			break
		}
	}
	if cardIdx == -1 {
		return fmt.Errorf("%w: card is not in your hand", ErrIllegalMove)
	}

	card := player.Hand[cardIdx]
	top := l.topDiscardUnsafe()
	if !IsLegalPlay(card, top, l.ActiveColor) {
		return fmt.Errorf("%w: card does not match the discard pile", ErrIllegalMove)
	}

	// Validation complete; mutate.
	player.Hand = append(player.Hand[:cardIdx], player.Hand[cardIdx+1:]...)
	l.DiscardPile = append(l.DiscardPile, card)
	l.ActiveColor = card.Color
	l.logMoveUnsafe(nickname, "playCard", map[string]interface{}{
		"symbol": card.Symbol.String(),
		"color":  string(card.Color),
		"type":   string(card.Type),
	})

	if len(player.Hand) == 0 {
		// Winning with a draw card still lands the penalty before the lobby
		// closes; a winning wild needs no color choice.
		switch card.Type {
		case TypeDrawTwo:
			if err := l.dealToOffsetUnsafe(1, 2); err != nil {
				return l.fatalUnsafe(err)
			}
		case TypeWildDrawFour:
			if err := l.dealToOffsetUnsafe(1, 4); err != nil {
				return l.fatalUnsafe(err)
			}
		}
		l.finishUnsafe(nickname)
		return nil
	}

	if err := l.applyEffectUnsafe(card, nickname); err != nil {
		return l.fatalUnsafe(err)
	}
	l.broadcastStateUnsafe()
	return nil
}

// DrawCard draws a single card for the current player and passes the turn.
func (l *Lobby) DrawCard(nickname string) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.State != StateInProgress {
		if l.State == StateAwaitingColorChoice {
			return fmt.Errorf("%w: waiting for %s to choose a color", ErrIllegalMove, l.PendingColorChooser)
		}
		return fmt.Errorf("%w: game is not in progress", ErrIllegalMove)
	}
	if !l.isPlayersTurnUnsafe(nickname) {
		return fmt.Errorf("%w: not your turn", ErrIllegalMove)
	}
	return l.drawForCurrentUnsafe()
}

// drawForCurrentUnsafe draws one card into the current player's hand and
// advances the turn. Shared by DrawCard and the turn-timer forfeit path.
func (l *Lobby) drawForCurrentUnsafe() error {
	player := l.Players[l.CurrentPlayerIndex]
	drawn, err := l.takeFromDrawPileUnsafe(1)
	if err != nil {
		return l.fatalUnsafe(err)
	}
	player.Hand = append(player.Hand, drawn...)
	l.logMoveUnsafe(player.Nickname, "drawCard", map[string]interface{}{"handSize": len(player.Hand)})
	l.advanceUnsafe(1)
	l.broadcastStateUnsafe()
	return nil
}

// ChooseColor resolves a pending color choice. Legal only for the player the
// choice is pending on.
func (l *Lobby) ChooseColor(nickname string, color Color) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.State != StateAwaitingColorChoice || l.PendingColorChooser != nickname {
		return fmt.Errorf("%w: no color choice pending for you", ErrIllegalMove)
	}
	if !color.IsChoosable() {
		return fmt.Errorf("%w: %q is not a choosable color", ErrIllegalMove, color)
	}
	return l.resolveColorUnsafe(nickname, color)
}

// resolveColorUnsafe applies a color choice, lands any queued wild-draw-four
// penalty on the next player, and advances the turn.
func (l *Lobby) resolveColorUnsafe(nickname string, color Color) error {
	l.ActiveColor = color
	l.PendingColorChooser = ""
	l.State = StateInProgress
	l.logMoveUnsafe(nickname, "chooseColor", map[string]interface{}{"color": string(color)})

	if l.pendingDraw > 0 {
		n := l.pendingDraw
		l.pendingDraw = 0
		if err := l.dealToOffsetUnsafe(1, n); err != nil {
			return l.fatalUnsafe(err)
		}
		l.advanceUnsafe(2) // the penalized player forfeits their turn
	} else {
		l.advanceUnsafe(1)
	}
	l.broadcastStateUnsafe()
	return nil
}

// applyEffectUnsafe applies a played card's effect and advances the turn
// pointer accordingly.
func (l *Lobby) applyEffectUnsafe(card *Card, nickname string) error {
	switch card.Type {
	case TypeSkip:
		l.advanceUnsafe(2)
	case TypeReverse:
		l.Direction = -l.Direction
		if len(l.Players) == 2 {
			// Degenerates to a skip: the turn returns to the player.
			l.advanceUnsafe(2)
		} else {
			l.advanceUnsafe(1)
		}
	case TypeDrawTwo:
		if err := l.dealToOffsetUnsafe(1, 2); err != nil {
			return err
		}
		l.advanceUnsafe(2)
	case TypeWild:
		l.State = StateAwaitingColorChoice
		l.PendingColorChooser = nickname
	case TypeWildDrawFour:
		l.State = StateAwaitingColorChoice
		l.PendingColorChooser = nickname
		l.pendingDraw = 4
	default:
		l.advanceUnsafe(1)
	}
	return nil
}

// advanceUnsafe moves the turn pointer by steps seats along the current
// direction and restarts the turn timer.
func (l *Lobby) advanceUnsafe(steps int) {
	n := len(l.Players)
	if n == 0 {
		return
	}
	l.CurrentPlayerIndex = ((l.CurrentPlayerIndex+steps*l.Direction)%n + n) % n
	l.TurnID++
	l.scheduleTurnTimerUnsafe()
}

// dealToOffsetUnsafe draws n cards into the hand of the player offset seats
// away from the current player along the play direction.
func (l *Lobby) dealToOffsetUnsafe(offset, n int) error {
	count := len(l.Players)
	idx := ((l.CurrentPlayerIndex+offset*l.Direction)%count + count) % count
	target := l.Players[idx]
	drawn, err := l.takeFromDrawPileUnsafe(n)
	if err != nil {
		return err
	}
	target.Hand = append(target.Hand, drawn...)
	l.logMoveUnsafe(target.Nickname, "penaltyDraw", map[string]interface{}{"count": n})
	return nil
}

// takeFromDrawPileUnsafe removes n cards from the front of the draw pile,
// recycling the discard pile (minus its top card) when the pile runs dry. The
// recycle happens atomically under the lobby lock: no snapshot or other
// operation can observe the lobby mid-recycle. Returns ErrNoCardsLeft when
// draw + recyclable discard cannot satisfy the request.
func (l *Lobby) takeFromDrawPileUnsafe(n int) ([]*Card, error) {
	out := make([]*Card, 0, n)
	for len(out) < n {
		if len(l.DrawPile) == 0 {
			if len(l.DiscardPile) <= 1 {
				return nil, ErrNoCardsLeft
			}
			topIdx := len(l.DiscardPile) - 1
			top := l.DiscardPile[topIdx]
			l.DrawPile = append(l.DrawPile, l.DiscardPile[:topIdx]...)
			l.DiscardPile = []*Card{top}
			shuffleCards(l.DrawPile)
			log.Printf("Lobby %s: recycled discard pile into draw pile (%d cards).", l.Name, len(l.DrawPile))
			l.logMoveUnsafe("", "recycle", map[string]interface{}{"drawPileSize": len(l.DrawPile)})
		}
		out = append(out, l.DrawPile[0])
		l.DrawPile = l.DrawPile[1:]
	}
	return out, nil
}

// fatalUnsafe closes the lobby on an unrecoverable error. Never silent: every
// member is told the lobby is dead.
func (l *Lobby) fatalUnsafe(err error) error {
	log.Printf("Lobby %s: fatal error, closing: %v", l.Name, err)
	l.finishUnsafe("")
	if l.BroadcastFn != nil {
		l.BroadcastFn("lobbyClosed", map[string]interface{}{"reason": err.Error()})
	}
	return err
}

// finishUnsafe transitions to Finished, stops timers, and announces a winner
// when there is one.
func (l *Lobby) finishUnsafe(winner string) {
	l.State = StateFinished
	l.PendingColorChooser = ""
	l.pendingDraw = 0
	if l.turnTimer != nil {
		l.turnTimer.Stop()
		l.turnTimer = nil
	}
	if winner != "" {
		log.Printf("Lobby %s: %s wins.", l.Name, winner)
		l.logMoveUnsafe(winner, "win", nil)
		if l.BroadcastFn != nil {
			l.BroadcastFn("win", map[string]interface{}{"nickname": winner})
		}
	}
	l.broadcastStateUnsafe()
}

// RemovePlayer reconciles a leave or disconnect: the player's hand returns to
// the bottom of the draw pile (card conservation holds), the seat is removed,
// and the turn pointer is repaired. A mid-game lobby left with fewer than
// MinPlayers finishes immediately. In-flight mutations are never rolled back.
func (l *Lobby) RemovePlayer(nickname string) {
	l.Mu.Lock()

	idx := -1
	for i, p := range l.Players {
		if p.Nickname == nickname {
			idx = i
			break
		}
	}
	if idx == -1 {
		l.Mu.Unlock()
		return
	}

	player := l.Players[idx]
	inPlay := l.State == StateInProgress || l.State == StateAwaitingColorChoice
	wasCurrent := inPlay && idx == l.CurrentPlayerIndex

	// An abandoned color choice is resolved for the leaver before the seat
	// goes away so play can continue.
	if l.PendingColorChooser == nickname {
		l.PendingColorChooser = ""
		l.State = StateInProgress
		l.ActiveColor = l.fallbackColorUnsafe()
		if l.pendingDraw > 0 {
			n := l.pendingDraw
			l.pendingDraw = 0
			if err := l.dealToOffsetUnsafe(1, n); err != nil {
				l.fatalUnsafe(err)
			}
		}
	}

	// The turn must pass along the play direction, which list-order splicing
	// alone gets wrong when Direction is -1. Remember who is next before the
	// seat disappears.
	nextNickname := ""
	if wasCurrent && len(l.Players) > 1 {
		n := len(l.Players)
		nextNickname = l.Players[((idx+l.Direction)%n+n)%n].Nickname
	}

	l.DrawPile = append(l.DrawPile, player.Hand...)
	player.Hand = nil
	l.Players = append(l.Players[:idx], l.Players[idx+1:]...)
	if idx < l.CurrentPlayerIndex {
		l.CurrentPlayerIndex--
	}
	if nextNickname != "" {
		for i, p := range l.Players {
			if p.Nickname == nextNickname {
				l.CurrentPlayerIndex = i
				break
			}
		}
	}
	if len(l.Players) > 0 {
		l.CurrentPlayerIndex = ((l.CurrentPlayerIndex % len(l.Players)) + len(l.Players)) % len(l.Players)
	} else {
		l.CurrentPlayerIndex = 0
	}
	if l.HostNickname == nickname && len(l.Players) > 0 {
		l.HostNickname = l.Players[0].Nickname
	}

	log.Printf("Lobby %s: player %s removed (%d remain).", l.Name, nickname, len(l.Players))
	l.logMoveUnsafe(nickname, "leave", nil)

	if inPlay && len(l.Players) < MinPlayers {
		l.finishUnsafe("")
		if l.BroadcastFn != nil {
			l.BroadcastFn("lobbyClosed", map[string]interface{}{"reason": "not enough players"})
		}
	} else {
		if wasCurrent && l.State != StateFinished {
			// The seat rotation already points at the next player; treat it
			// as a fresh turn.
			l.TurnID++
			l.scheduleTurnTimerUnsafe()
		}
		l.broadcastStateUnsafe()
	}

	empty := len(l.Players) == 0
	onEmpty := l.OnEmpty
	l.Mu.Unlock()

	if empty && onEmpty != nil {
		onEmpty(l.Name)
	}
}

// fallbackColorUnsafe picks an active color when a pending chooser vanishes:
// the last colored card under the discard top, else red.
func (l *Lobby) fallbackColorUnsafe() Color {
	for i := len(l.DiscardPile) - 2; i >= 0; i-- {
		if c := l.DiscardPile[i].Color; c != ColorSpecial {
			return c
		}
	}
	return ColorRed
}

// scheduleTurnTimerUnsafe restarts the forced-move timer for the current
// turn. The captured TurnID guards against stale timer callbacks acting on a
// turn that has since moved on.
func (l *Lobby) scheduleTurnTimerUnsafe() {
	if l.TurnTimeout <= 0 {
		return
	}
	if l.turnTimer != nil {
		l.turnTimer.Stop()
	}
	turnID := l.TurnID
	l.turnTimer = time.AfterFunc(l.TurnTimeout, func() {
		l.Mu.Lock()
		defer l.Mu.Unlock()
		if l.TurnID != turnID {
			return
		}
		switch l.State {
		case StateAwaitingColorChoice:
			log.Printf("Lobby %s: color choice timed out for %s.", l.Name, l.PendingColorChooser)
			_ = l.resolveColorUnsafe(l.PendingColorChooser, l.fallbackColorUnsafe())
		case StateInProgress:
			nickname := l.Players[l.CurrentPlayerIndex].Nickname
			log.Printf("Lobby %s: turn timed out for %s, drawing on their behalf.", l.Name, nickname)
			_ = l.drawForCurrentUnsafe()
		}
	})
}

// HasPlayer reports whether nickname currently holds a seat.
func (l *Lobby) HasPlayer(nickname string) bool {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	return l.playerUnsafe(nickname) != nil
}

func (l *Lobby) playerUnsafe(nickname string) *Player {
	for _, p := range l.Players {
		if p.Nickname == nickname {
			return p
		}
	}
	return nil
}

func (l *Lobby) topDiscardUnsafe() *Card {
	if len(l.DiscardPile) == 0 {
		return nil
	}
	return l.DiscardPile[len(l.DiscardPile)-1]
}

// logMoveUnsafe records an accepted mutation for the historian pipeline.
// Publishing is asynchronous and optional; the in-memory state machine never
// waits on it.
func (l *Lobby) logMoveUnsafe(nickname, moveType string, payload map[string]interface{}) {
	l.moveIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.MoveRecord{
		LobbyName: l.Name,
		MoveIndex: l.moveIndex,
		Nickname:  nickname,
		MoveType:  moveType,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	go func(rec cache.MoveRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishMove(ctx, rec); err != nil {
			log.Printf("Lobby %s: failed to publish move %d: %v", rec.LobbyName, rec.MoveIndex, err)
		}
	}(record)
}
