package village

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/simerr"
)

func TestGenerateCounts(t *testing.T) {
	c := Generate(DefaultGenConfig(7))

	require.Equal(t, 50, c.Len())
	counts := make(map[Kind]int)
	for _, e := range c.Elements {
		counts[e.Kind]++
	}
	assert.Equal(t, 15, counts[KindHouse])
	assert.Equal(t, 25, counts[KindTree])
	infra := counts[KindWell] + counts[KindFence] + counts[KindShed] + counts[KindStatue]
	assert.Equal(t, 10, infra)

	for i, e := range c.Elements {
		assert.Equal(t, i, e.ID)
		assert.False(t, e.Dismantled)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(DefaultGenConfig(99))
	b := Generate(DefaultGenConfig(99))
	assert.Equal(t, a, b)

	c := Generate(DefaultGenConfig(100))
	assert.NotEqual(t, a, c)
}

func TestGenerateRanges(t *testing.T) {
	cfg := DefaultGenConfig(3)
	c := Generate(cfg)

	for _, e := range c.Elements {
		assert.GreaterOrEqual(t, e.Population, 0)
		switch e.Kind {
		case KindHouse:
			assert.GreaterOrEqual(t, e.Population, 2)
			assert.LessOrEqual(t, e.Population, 6)
			assert.GreaterOrEqual(t, e.Yield[economy.Wood], 2)
			assert.LessOrEqual(t, e.Yield[economy.Wood], 4)
			assert.GreaterOrEqual(t, e.Yield[economy.Stone], 1)
			assert.LessOrEqual(t, e.Yield[economy.Stone], 2)
		case KindTree:
			assert.Equal(t, 0, e.Population)
			assert.GreaterOrEqual(t, e.X, 40)
			assert.LessOrEqual(t, e.X, 580)
			assert.GreaterOrEqual(t, e.Y, 300)
			assert.LessOrEqual(t, e.Y, 700)
		case KindWell:
			assert.GreaterOrEqual(t, e.Population, 1)
			assert.LessOrEqual(t, e.Population, 3)
			assert.Equal(t, economy.Materials{economy.Stone: 2, economy.Metal: 1}, e.Yield)
		case KindShed:
			assert.LessOrEqual(t, e.Population, 1)
		case KindFence, KindStatue:
			assert.Equal(t, 0, e.Population)
		}
	}

	// Houses stay within the jitter window of their grid slot.
	for i := 0; i < 15; i++ {
		e := c.Elements[i]
		row, col := i/cfg.HouseCols, i%cfg.HouseCols
		assert.InDelta(t, cfg.HouseStartX+col*cfg.HouseSpacingX, e.X, float64(cfg.HouseJitter))
		assert.InDelta(t, cfg.HouseStartY+row*cfg.HouseSpacingY, e.Y, float64(cfg.HouseJitter))
	}
}

func TestDismantleOnce(t *testing.T) {
	e := &Element{ID: 4, Kind: KindTree, Yield: economy.Materials{economy.Wood: 2}}

	got, err := e.Dismantle()
	require.NoError(t, err)
	assert.Equal(t, economy.Materials{economy.Wood: 2}, got)
	assert.True(t, e.Dismantled)

	_, err = e.Dismantle()
	assert.ErrorIs(t, err, simerr.ErrAlreadyDismantled)
	assert.ErrorIs(t, err, simerr.ErrInvalidState)
}

func TestCatalogGetOutOfRange(t *testing.T) {
	c := NewCatalog([]*Element{{Kind: KindFence}})
	_, err := c.Get(1)
	assert.ErrorIs(t, err, simerr.ErrOutOfRange)
	_, err = c.Get(-1)
	assert.ErrorIs(t, err, simerr.ErrOutOfRange)
}

func TestDismantledYieldAndPopulation(t *testing.T) {
	c := NewCatalog([]*Element{
		{Kind: KindHouse, Population: 4, Yield: economy.Materials{economy.Wood: 3, economy.Stone: 1}},
		{Kind: KindWell, Population: 2, Yield: economy.Materials{economy.Stone: 2, economy.Metal: 1}},
		{Kind: KindTree, Yield: economy.Materials{economy.Wood: 1}},
	})
	assert.Equal(t, 6, c.TotalPopulation())

	_, _ = c.Elements[0].Dismantle()
	_, _ = c.Elements[2].Dismantle()
	assert.Equal(t, economy.Materials{economy.Wood: 4, economy.Stone: 1}, c.DismantledYield())
	assert.Len(t, c.Remaining(), 1)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Statue")
	require.NoError(t, err)
	assert.Equal(t, KindStatue, k)

	_, err = ParseKind("hous")
	require.ErrorIs(t, err, simerr.ErrOutOfRange)
	assert.Contains(t, err.Error(), `did you mean "house"`)

	_, err = ParseKind("submarine")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestNeedsConfirmation(t *testing.T) {
	assert.True(t, (&Element{Kind: KindHouse, Population: 2}).NeedsConfirmation())
	assert.False(t, (&Element{Kind: KindHouse}).NeedsConfirmation())
	assert.False(t, (&Element{Kind: KindWell, Population: 3}).NeedsConfirmation())
}
