// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"testing"
	"time"

	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, uninitialised backend.
type Factory func(t *testing.T) storage.Backend

// SampleTick returns tick 42 with vehicles 5 and 9 and light 0.
func SampleTick() *core.Tick {
	a := &core.Vehicle{
		ID: 5, ArrivalTime: 0.99, From: "0", To: "1", Direction: 1,
		Length: 5, Width: 2, DesiredSpeed: 10,
		X: 3.5, Y: -1.75, Scf: 3.5, Tcf: -1.75, Velocity: 4.2, Acceleration: 1.1,
		Road: "r01", Score: 91.5,
	}
	a.AppendHistory()
	a.SetPlan(core.Trajectory{
		X: []float64{4.5}, Y: []float64{-1.75}, Heading: []float64{0},
		Velocity: []float64{4.4}, Acceleration: []float64{1.1}, Yaw: []float64{0},
		RoadID: []string{"r01"},
	})
	b := &core.Vehicle{
		ID: 9, ArrivalTime: 4.62, From: "1", To: "0", Direction: -1,
		Length: 5, Width: 2, DesiredSpeed: 10, X: 90, Y: 1.75, Road: "r01",
	}
	return &core.Tick{
		Number:   42,
		Vehicles: map[int64]*core.Vehicle{5: a, 9: b},
		Lights: map[int64]*core.TrafficLight{
			0: {
				ID: 0, Road: "r01", Direction: 1,
				Program: []core.LightPhase{{State: core.LightGreen, Duration: 20}, {State: core.LightRed, Duration: 20}},
				Phase:   1, State: core.LightRed, Remaining: 7.5,
			},
		},
	}
}

// SampleRun returns run metadata for tests.
func SampleRun() *core.RunInfo {
	return &core.RunInfo{
		Name:               "straight_SimTime100_demand_Seed42",
		Network:            "straight.yaml",
		Demand:             "demand.txt",
		Seed:               42,
		RunTime:            100,
		Frequency:          4,
		GenerationFraction: 0.3,
		StartedAt:          time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
	}
}

// Run exercises the Backend contract against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("CloseWithoutInit", func(t *testing.T) {
		b := newBackend(t)
		assert.NoError(t, b.Close())
		assert.NoError(t, b.Close())
	})

	t.Run("DoubleClose", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Init())
		assert.NoError(t, b.Close())
		assert.NoError(t, b.Close())
	})

	t.Run("RecordBeforeRun", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Init())
		defer b.Close()
		assert.ErrorIs(t, b.RecordTick(SampleTick()), storage.ErrNotInitialized)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Init())
		defer b.Close()

		info := SampleRun()
		require.NoError(t, b.StartRun(info))
		assert.NotZero(t, info.ID)

		require.NoError(t, b.RecordTick(SampleTick()))

		got, err := b.LoadTick(42)
		require.NoError(t, err)
		assert.Equal(t, SampleTick(), got)

		_, err = b.LoadTick(43)
		assert.ErrorIs(t, err, storage.ErrTickNotFound)
	})

	t.Run("DuplicateTick", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Init())
		defer b.Close()
		require.NoError(t, b.StartRun(SampleRun()))

		require.NoError(t, b.RecordTick(SampleTick()))
		assert.ErrorIs(t, b.RecordTick(SampleTick()), storage.ErrDuplicateTick)
	})

	t.Run("MaxTick", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Init())
		defer b.Close()
		require.NoError(t, b.StartRun(SampleRun()))

		last, err := b.MaxTick()
		require.NoError(t, err)
		assert.Equal(t, int64(0), last)

		for _, n := range []int64{3, 17, 9} {
			tick := SampleTick()
			tick.Number = n
			require.NoError(t, b.RecordTick(tick))
		}
		last, err = b.MaxTick()
		require.NoError(t, err)
		assert.Equal(t, int64(17), last)
	})

	t.Run("OpenRun", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Init())
		defer b.Close()

		first := SampleRun()
		require.NoError(t, b.StartRun(first))
		require.NoError(t, b.RecordTick(SampleTick()))

		second := SampleRun()
		second.Seed = 43
		require.NoError(t, b.StartRun(second))
		assert.NotEqual(t, first.ID, second.ID)

		latest, err := b.OpenRun(0)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Equal(t, int64(43), latest.Seed)
		_, err = b.LoadTick(42)
		assert.ErrorIs(t, err, storage.ErrTickNotFound)

		opened, err := b.OpenRun(first.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Name, opened.Name)
		assert.Equal(t, first.RunTime, opened.RunTime)
		assert.True(t, first.StartedAt.Equal(opened.StartedAt))
		got, err := b.LoadTick(42)
		require.NoError(t, err)
		assert.Equal(t, SampleTick(), got)

		_, err = b.OpenRun(first.ID + second.ID + 100)
		assert.ErrorIs(t, err, storage.ErrRunNotFound)
	})
}
