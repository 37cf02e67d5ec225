// internal/game/card_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeckComposition(t *testing.T) {
	deck := BuildDeck()
	require.Len(t, deck, StandardDeckSpec.Total())
	require.Len(t, deck, 108)

	byColorType := make(map[Color]map[CardType]int)
	for _, c := range deck {
		if byColorType[c.Color] == nil {
			byColorType[c.Color] = make(map[CardType]int)
		}
		byColorType[c.Color][c.Type]++
	}

	for _, color := range Colors {
		counts := byColorType[color]
		assert.Equal(t, 1, counts[TypeZero], "one zero per color")
		for _, nt := range numberTypes {
			assert.Equal(t, 2, counts[nt], "two %s per color", nt)
		}
		for _, at := range actionTypes {
			assert.Equal(t, 2, counts[at], "two %s per color", at)
		}
	}
	assert.Equal(t, 4, byColorType[ColorSpecial][TypeWild])
	assert.Equal(t, 4, byColorType[ColorSpecial][TypeWildDrawFour])
}

func TestBuildDeckSymbolsUnique(t *testing.T) {
	deck := BuildDeck()
	seen := make(map[string]bool, len(deck))
	for _, c := range deck {
		key := c.Symbol.String()
		require.False(t, seen[key], "duplicate symbol %s", key)
		seen[key] = true
	}
}

func TestIsWild(t *testing.T) {
	assert.True(t, (&Card{Color: ColorSpecial, Type: TypeWild}).IsWild())
	assert.True(t, (&Card{Color: ColorSpecial, Type: TypeWildDrawFour}).IsWild())
	assert.False(t, (&Card{Color: ColorRed, Type: TypeSkip}).IsWild())
}

func TestColorIsChoosable(t *testing.T) {
	for _, c := range Colors {
		assert.True(t, c.IsChoosable())
	}
	assert.False(t, ColorSpecial.IsChoosable())
	assert.False(t, Color("purple").IsChoosable())
}
