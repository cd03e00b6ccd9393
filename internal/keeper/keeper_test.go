package keeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bridge-keeper/internal/village"
)

func TestMoveClampsToVillageSide(t *testing.T) {
	k := New(768)
	k.X, k.Y = 570, 740

	k.Move(1, 1)
	assert.Equal(t, 580.0, k.TargetX)
	assert.Equal(t, 748.0, k.TargetY)
	assert.Equal(t, Right, k.Facing)
	assert.True(t, k.Moving)

	k.X, k.Y = 30, 30
	k.Move(-1, 0)
	assert.Equal(t, 20.0, k.TargetX)
	assert.Equal(t, Left, k.Facing)

	k.Move(0, -1)
	assert.Equal(t, 20.0, k.TargetY)
	assert.Equal(t, Up, k.Facing)
}

func TestMoveToRejectsOffVillage(t *testing.T) {
	k := New(768)
	assert.False(t, k.MoveTo(600, 100))
	assert.False(t, k.MoveTo(100, 748))
	assert.False(t, k.Moving)

	assert.True(t, k.MoveTo(100, 320))
	assert.Equal(t, Left, k.Facing)
	assert.True(t, k.Moving)
}

func TestUpdateWalksAndSnaps(t *testing.T) {
	k := New(768)
	require.True(t, k.MoveTo(450, 300))

	k.Update(0.5)
	assert.InDelta(t, 375.0, k.X, 1e-9)
	assert.True(t, k.Moving)

	for i := 0; i < 100 && k.Moving; i++ {
		k.Update(1.0 / 60)
	}
	assert.False(t, k.Moving)
	assert.Equal(t, 450.0, k.X)
	assert.Equal(t, 300.0, k.Y)
}

func TestCooldown(t *testing.T) {
	k := New(768)
	assert.True(t, k.Ready())
	k.StartCooldown()
	assert.False(t, k.Ready())
	k.Update(0.3)
	assert.False(t, k.Ready())
	k.Update(0.2)
	assert.True(t, k.Ready())
}

func TestNearestPicksClosestStanding(t *testing.T) {
	cat := village.NewCatalog([]*village.Element{
		{Kind: village.KindTree, X: 288, Y: 284, Width: 24, Height: 32},  // centre (300,300), dismantled below
		{Kind: village.KindFence, X: 300, Y: 312, Width: 40, Height: 16}, // centre (320,320)
		{Kind: village.KindWell, X: 296, Y: 296, Width: 28, Height: 28},  // centre (310,310)
		{Kind: village.KindStatue, X: 500, Y: 500, Width: 24, Height: 32},
	})
	cat.Elements[0].Dismantled = true
	k := New(768)

	e, ok := k.Nearest(cat)
	require.True(t, ok)
	assert.Equal(t, 2, e.ID)

	k.X, k.Y = 100, 100
	_, ok = k.Nearest(cat)
	assert.False(t, ok)
}
