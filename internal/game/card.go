// internal/game/card.go
package game

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Color is a card face color. ColorSpecial marks wild-family cards that match
// any color until one is chosen for them.
type Color string

const (
	ColorRed     Color = "red"
	ColorYellow  Color = "yellow"
	ColorGreen   Color = "green"
	ColorBlue    Color = "blue"
	ColorSpecial Color = "special"
)

// Colors lists the four playable colors, in the order used for deck building.
var Colors = []Color{ColorRed, ColorYellow, ColorGreen, ColorBlue}

// IsChoosable reports whether c is a color a player may pick after a wild.
func (c Color) IsChoosable() bool {
	for _, v := range Colors {
		if c == v {
			return true
		}
	}
	return false
}

// CardType identifies a card's rank or action.
type CardType string

const (
	TypeZero  CardType = "0"
	TypeOne   CardType = "1"
	TypeTwo   CardType = "2"
	TypeThree CardType = "3"
	TypeFour  CardType = "4"
	TypeFive  CardType = "5"
	TypeSix   CardType = "6"
	TypeSeven CardType = "7"
	TypeEight CardType = "8"
	TypeNine  CardType = "9"

	TypeSkip         CardType = "skip"
	TypeReverse      CardType = "reverse"
	TypeDrawTwo      CardType = "drawTwo"
	TypeWild         CardType = "wild"
	TypeWildDrawFour CardType = "wildDrawFour"
)

// numberTypes covers 1-9; zero appears once per color, the rest twice.
var numberTypes = []CardType{
	TypeOne, TypeTwo, TypeThree, TypeFour, TypeFive,
	TypeSix, TypeSeven, TypeEight, TypeNine,
}

var actionTypes = []CardType{TypeSkip, TypeReverse, TypeDrawTwo}

// Card is an immutable card instance. Symbol distinguishes identity from
// value: two cards with equal color/type are still individually addressable,
// which playCard relies on when removing from a hand.
type Card struct {
	Symbol uuid.UUID `json:"symbol"`
	Color  Color     `json:"color"`
	Type   CardType  `json:"type"`
}

// IsWild reports whether the card requires a color choice after being played.
func (c *Card) IsWild() bool {
	return c.Color == ColorSpecial
}

// DeckSpec describes deck composition. The standard deck is a configuration
// constant rather than magic numbers inside the build loop.
type DeckSpec struct {
	ZeroPerColor   int // copies of the 0 card per color
	NumberPerColor int // copies of each 1-9 card per color
	ActionPerColor int // copies of each skip/reverse/drawTwo per color
	WildCards      int
	WildDrawFours  int
}

// StandardDeckSpec is the 108-card standard composition.
var StandardDeckSpec = DeckSpec{
	ZeroPerColor:   1,
	NumberPerColor: 2,
	ActionPerColor: 2,
	WildCards:      4,
	WildDrawFours:  4,
}

// Total returns the number of cards the spec produces.
func (s DeckSpec) Total() int {
	perColor := s.ZeroPerColor + s.NumberPerColor*len(numberTypes) + s.ActionPerColor*len(actionTypes)
	return perColor*len(Colors) + s.WildCards + s.WildDrawFours
}

// BuildDeck produces a complete shuffled standard deck.
func BuildDeck() []*Card {
	return BuildDeckFrom(StandardDeckSpec)
}

// BuildDeckFrom builds and shuffles a deck according to spec.
func BuildDeckFrom(spec DeckSpec) []*Card {
	deck := make([]*Card, 0, spec.Total())

	newCard := func(color Color, typ CardType) *Card {
		sym, _ := uuid.NewRandom()
		return &Card{Symbol: sym, Color: color, Type: typ}
	}

	for _, color := range Colors {
		for i := 0; i < spec.ZeroPerColor; i++ {
			deck = append(deck, newCard(color, TypeZero))
		}
		for _, typ := range numberTypes {
			for i := 0; i < spec.NumberPerColor; i++ {
				deck = append(deck, newCard(color, typ))
			}
		}
		for _, typ := range actionTypes {
			for i := 0; i < spec.ActionPerColor; i++ {
				deck = append(deck, newCard(color, typ))
			}
		}
	}
	for i := 0; i < spec.WildCards; i++ {
		deck = append(deck, newCard(ColorSpecial, TypeWild))
	}
	for i := 0; i < spec.WildDrawFours; i++ {
		deck = append(deck, newCard(ColorSpecial, TypeWildDrawFour))
	}

	shuffleCards(deck)
	return deck
}

func shuffleCards(cards []*Card) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
