// internal/game/errors.go
package game

import "errors"

// Sentinel errors reported back to clients. Handlers match with errors.Is and
// forward only the message text; none of these leave a lobby partially
// mutated, because every operation validates fully before touching state.
var (
	// ErrIllegalMove covers out-of-turn plays, cards that don't match the
	// discard, and color choices with no pending choice.
	ErrIllegalMove = errors.New("illegal move")

	// ErrNameTaken is returned when creating a lobby whose name exists, or
	// joining with a nickname already used inside the lobby.
	ErrNameTaken = errors.New("name taken")

	// ErrNotFound is returned for lookups of unknown lobbies or cards.
	ErrNotFound = errors.New("not found")

	// ErrNoCardsLeft is the fatal lobby error raised when a draw cannot be
	// satisfied even after recycling: no cards remain anywhere to move.
	ErrNoCardsLeft = errors.New("no cards left in lobby")

	// ErrLobbyFull is returned when a fifth player tries to join.
	ErrLobbyFull = errors.New("lobby is full")

	// ErrBadPasscode is returned when subscribing to a passcode-protected
	// lobby with a missing or wrong passcode.
	ErrBadPasscode = errors.New("invalid passcode")
)
