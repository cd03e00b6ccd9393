package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bridge-keeper/internal/config"
	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/village"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// playedRun returns a run with dismantles, built segments and a pending
// confirmation on a populated house.
func playedRun(t *testing.T) (*engine.Run, *engine.FakeClock) {
	t.Helper()
	clock := engine.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r, err := engine.NewRun(engine.RunConfig{Difficulty: config.DifficultyNormal, Seed: 7, Clock: clock})
	require.NoError(t, err)
	require.NoError(t, r.Start())

	var houseID = -1
	for _, e := range r.Snapshot().Elements {
		switch {
		case e.Kind == village.KindHouse && e.Population > 0:
			if houseID < 0 {
				houseID = e.ID
			}
		case e.Population == 0:
			_, err := r.RequestDismantle(e.ID)
			require.NoError(t, err)
		}
	}
	require.GreaterOrEqual(t, houseID, 0)

	for i := 0; i < 30; i++ {
		clock.Advance(time.Second)
		r.Tick(1)
	}
	res, err := r.RequestDismantle(houseID)
	require.NoError(t, err)
	require.True(t, res.RequiresConfirmation)
	return r, clock
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	r, _ := playedRun(t)
	want := r.Snapshot()
	require.NotEmpty(t, want.Segments)
	require.NotEmpty(t, want.Choices)

	require.NoError(t, db.SaveRun(want))

	got, err := db.LoadRun(want.ID)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Seed, got.Seed)
	assert.Equal(t, want.Difficulty, got.Difficulty)
	assert.Equal(t, want.Tuning, got.Tuning)
	assert.Equal(t, want.State, got.State)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.Tick, got.Tick)
	assert.Equal(t, want.Elapsed, got.Elapsed)
	assert.Equal(t, want.Elements, got.Elements)
	assert.Equal(t, want.Resources, got.Resources)
	assert.Equal(t, want.Segments, got.Segments)
	assert.Equal(t, want.Choices, got.Choices)
	assert.Equal(t, want.Standing, got.Standing)
	assert.Equal(t, want.FloodTimer, got.FloodTimer)
	assert.Equal(t, want.Scheduler, got.Scheduler)
	assert.Equal(t, want.Keeper, got.Keeper)
	assert.Equal(t, want.PendingElement, got.PendingElement)
	assert.Equal(t, want.InitialVillagers, got.InitialVillagers)
	assert.Equal(t, want.CurrentVillagers, got.CurrentVillagers)
	assert.ElementsMatch(t, want.Achievements, got.Achievements)
	assert.Equal(t, want.Log, got.Log)
	assert.Nil(t, got.Result)
}

func TestLoadedRunResumesIdentically(t *testing.T) {
	db := openTestDB(t)
	r, clock := playedRun(t)
	require.NoError(t, db.SaveRun(r.Snapshot()))

	loaded, err := db.LoadRun(r.ID())
	require.NoError(t, err)
	restored, err := engine.Restore(engine.RunConfig{Clock: clock}, loaded)
	require.NoError(t, err)

	for _, run := range []*engine.Run{r, restored} {
		_, err := run.ConfirmDismantle()
		require.NoError(t, err)
	}
	for i := 0; i < 120; i++ {
		clock.Advance(time.Second)
		r.Tick(1)
		restored.Tick(1)
	}

	a, b := r.Snapshot(), restored.Snapshot()
	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.Standing, b.Standing)
	assert.Equal(t, a.Resources, b.Resources)
	assert.Equal(t, a.FloodTimer, b.FloodTimer)
	assert.Equal(t, a.Scheduler.Fired, b.Scheduler.Fired)
	assert.Equal(t, a.Scheduler.Delay, b.Scheduler.Delay)
	assert.Equal(t, len(a.Segments), len(b.Segments))
}

func TestSaveRunReplacesPreviousSave(t *testing.T) {
	db := openTestDB(t)
	r, clock := playedRun(t)
	require.NoError(t, db.SaveRun(r.Snapshot()))

	require.NoError(t, r.CancelDismantle())
	clock.Advance(time.Second)
	r.Tick(1)
	second := r.Snapshot()
	require.NoError(t, db.SaveRun(second))

	got, err := db.LoadRun(r.ID())
	require.NoError(t, err)
	assert.Nil(t, got.PendingElement)
	assert.Equal(t, second.Tick, got.Tick)
	assert.Equal(t, second.Elements, got.Elements)
	assert.Len(t, got.Segments, len(second.Segments))
	assert.Len(t, got.Log, len(second.Log))
}

func TestFinishedRunStoresResult(t *testing.T) {
	db := openTestDB(t)
	clock := engine.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r, err := engine.NewRun(engine.RunConfig{Difficulty: config.DifficultyHard, Seed: 3, Clock: clock})
	require.NoError(t, err)
	require.NoError(t, r.Start())
	r.Tick(200)
	require.Equal(t, engine.StateGameOver, r.State())

	require.NoError(t, db.SaveRun(r.Snapshot()))
	got, err := db.LoadRun(r.ID())
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	want, _ := r.Result()
	assert.Equal(t, want, *got.Result)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, string(want.Tier), runs[0].Tier)
	assert.Equal(t, string(engine.StateGameOver), runs[0].State)
}

func TestLatestRunIDAndListing(t *testing.T) {
	db := openTestDB(t)

	_, err := db.LatestRunID()
	assert.ErrorIs(t, err, ErrNotFound)

	first, _ := playedRun(t)
	second, _ := playedRun(t)
	require.NoError(t, db.SaveRun(first.Snapshot()))
	require.NoError(t, db.SaveRun(second.Snapshot()))

	id, err := db.LatestRunID()
	require.NoError(t, err)
	assert.Equal(t, second.ID(), id)

	runs, err := db.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID(), runs[0].ID)

	runs, err = db.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLoadMissingRun(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadRun("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetMeta(metaLastRun)
	assert.ErrorIs(t, err, ErrNotFound)

	r, _ := playedRun(t)
	require.NoError(t, db.SaveRun(r.Snapshot()))
	v, err := db.GetMeta(metaLastRun)
	require.NoError(t, err)
	assert.Equal(t, r.ID(), v)
}
