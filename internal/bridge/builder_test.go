package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bridge-keeper/internal/economy"
)

func TestTypeFor(t *testing.T) {
	want := map[int]SegmentType{
		0: Foundation, 1: Foundation,
		2: Platform, 3: Platform,
		4: Support, 5: Platform,
		8: Support, 12: Support, 16: Support,
		17: Platform,
		18: Foundation, 19: Foundation,
	}
	for i, typ := range want {
		assert.Equal(t, typ, TypeFor(i, 20), "index %d", i)
	}
}

func TestAutoBuildNeedsFullRecipe(t *testing.T) {
	b := NewBuilder(20, 100, 768)
	l := economy.NewLedger(economy.Materials{economy.Wood: 2})

	assert.Empty(t, b.AutoBuild(l, time.Unix(0, 0)))
	assert.Equal(t, economy.Materials{economy.Wood: 2, economy.Stone: 0, economy.Metal: 0}, l.Counts())
}

func TestAutoBuildBuildsAllAffordableInOneCall(t *testing.T) {
	b := NewBuilder(20, 100, 768)
	l := economy.NewLedger(economy.Materials{economy.Wood: 10, economy.Stone: 7, economy.Metal: 2})
	now := time.Unix(100, 0)

	built := b.AutoBuild(l, now)

	// min(10/3, 7/2, 2/1) = 2
	require.Len(t, built, 2)
	assert.Equal(t, economy.Materials{economy.Wood: 4, economy.Stone: 3, economy.Metal: 0}, l.Counts())
	assert.Equal(t, 768-38, b.Segments[0].Y)
	assert.Equal(t, 768-2*38, b.Segments[1].Y)
	assert.Equal(t, now, b.Segments[1].BuiltAt)
	assert.InDelta(t, 10.0, b.Progress(), 1e-9)
}

func TestAutoBuildStopsAtCapAndKeepsExcess(t *testing.T) {
	b := NewBuilder(3, 100, 768)
	l := economy.NewLedger(economy.Materials{economy.Wood: 30, economy.Stone: 20, economy.Metal: 10})

	built := b.AutoBuild(l, time.Unix(0, 0))

	assert.Len(t, built, 3)
	assert.True(t, b.Complete())
	assert.Equal(t, 0, b.Remaining())
	assert.Equal(t, economy.Materials{economy.Wood: 21, economy.Stone: 14, economy.Metal: 7}, l.Counts())

	assert.Empty(t, b.AutoBuild(l, time.Unix(1, 0)))
	assert.Equal(t, 42, l.Total())
}

func TestSettleAfterWindow(t *testing.T) {
	b := NewBuilder(20, 100, 768)
	l := economy.NewLedger(economy.Materials{economy.Wood: 3, economy.Stone: 2, economy.Metal: 1})
	start := time.Unix(50, 0)
	b.AutoBuild(l, start)

	b.Settle(start.Add(499 * time.Millisecond))
	assert.False(t, b.Segments[0].Completed)

	b.Settle(start.Add(500 * time.Millisecond))
	assert.True(t, b.Segments[0].Completed)
}

func TestProgressMonotonic(t *testing.T) {
	b := NewBuilder(20, 100, 768)
	l := economy.NewLedger(nil)
	last := b.Progress()
	for i := 0; i < 25; i++ {
		l.Add(Recipe)
		b.AutoBuild(l, time.Unix(int64(i), 0))
		assert.GreaterOrEqual(t, b.Progress(), last)
		assert.LessOrEqual(t, b.Built(), 20)
		last = b.Progress()
	}
	assert.True(t, b.Complete())
}
