package sim

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/azurexth/LimSim/internal/channel"
	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/focus"
	"github.com/azurexth/LimSim/internal/network"
	"github.com/azurexth/LimSim/internal/planner"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/internal/storage/memory"
	sqlitestorage "github.com/azurexth/LimSim/internal/storage/sqlite"
	"github.com/azurexth/LimSim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const straightNet = `
nodes:
  - {id: "0", x: 0, y: 0}
  - {id: "1", x: 200, y: 0}
roads:
  - {id: r01, from: "0", to: "1"}
lights:
  - id: 0
    road: r01
    phases:
      - {state: g, duration: 20}
      - {state: r, duration: 5}
`

func testNetwork(t *testing.T) *network.Network {
	t.Helper()
	n, err := network.Parse([]byte(straightNet))
	require.NoError(t, err)
	return n
}

func testSimConfig() config.SimConfig {
	return config.SimConfig{
		Frequency:          4,
		RunTime:            100,
		GenerationFraction: 0.3,
		Seed:               42,
		VehicleLength:      5,
		VehicleWidth:       2,
		DesiredSpeed:       10,
		RenderQueue:        10,
		FocusRadius:        10,
		SceneRadius:        50,
		ProgressEvery:      10,
	}
}

func testRecords() []core.DemandRecord {
	return []core.DemandRecord{{From: "0", To: "1", Direction: 1, Rate: 3600}}
}

type frameKey struct {
	Tick int64
	Ego  int64
	X, Y float64
}

func drain(q *channel.DropOldest[core.Frame], into []frameKey) []frameKey {
	for q.Len() > 0 {
		f, ok := <-q.Receive()
		if !ok {
			break
		}
		into = append(into, frameKey{f.Scene.Tick, f.Scene.EgoID, f.Scene.EgoX, f.Scene.EgoY})
	}
	return into
}

func TestLiveThenReplayMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	c := codec.MustNew(codec.CompressionZstd)
	ctx := context.Background()

	store, err := sqlitestorage.New(sqlitestorage.Config{Path: path}, c, nil)
	require.NoError(t, err)
	d, err := NewDriver(Options{
		Sim:     testSimConfig(),
		Run:     &core.RunInfo{Name: "straight"},
		Records: testRecords(),
		Network: testNetwork(t),
		Store:   store,
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(ctx))

	var live []frameKey
	for !d.End() {
		require.NoError(t, d.Step(ctx))
		live = drain(d.Frames(), live)
	}
	require.NoError(t, d.Close())
	require.NotEmpty(t, live)
	assert.Equal(t, int64(1), live[0].Ego)
	assert.Equal(t, int64(100), d.Status().Tick)
	assert.True(t, d.Status().Finished)

	replayStore, err := sqlitestorage.New(sqlitestorage.Config{Path: path}, c, nil)
	require.NoError(t, err)
	r, err := NewReplayer(ReplayOptions{Network: testNetwork(t), Store: replayStore})
	require.NoError(t, err)
	require.NoError(t, r.Start(ctx))
	defer r.Close()
	assert.Equal(t, 4, r.Context().Frequency)
	assert.Equal(t, int64(42), r.Info().Seed)

	var replayed []frameKey
	for !r.End() {
		require.NoError(t, r.Step(ctx))
		replayed = drain(r.Frames(), replayed)
	}
	assert.Equal(t, live, replayed)
}

func TestNothingPersistedWhileEgoUnresolvable(t *testing.T) {
	store := memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil)
	cfg := testSimConfig()
	cfg.RunTime = 3
	d, err := NewDriver(Options{Sim: cfg, Records: testRecords(), Network: testNetwork(t), Store: store})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Close()

	// The first vehicle arrives at 0.99 s, after tick 3.
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 0, d.Frames().Len())
	assert.Equal(t, core.UnboundID, d.Context().Ego.ID())

	last, err := store.MaxTick()
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
}

func TestPlannerErrorIsWrapped(t *testing.T) {
	boom := errors.New("boom")
	d, err := NewDriver(Options{
		Sim:     testSimConfig(),
		Records: testRecords(),
		Network: testNetwork(t),
		Store:   memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil),
		Planner: planner.Func(func(context.Context, planner.Network, map[int64]*core.Vehicle, map[int64]*core.Vehicle, int64, int) (map[int64]*core.Vehicle, map[int64]*core.Vehicle, error) {
			return nil, nil, boom
		}),
	})
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Close()

	err = d.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "planner:")
	assert.Equal(t, int64(1), d.Context().Tick())
}

func TestPauseFreezesVehicles(t *testing.T) {
	d, err := NewDriver(Options{
		Sim:     testSimConfig(),
		Records: testRecords(),
		Network: testNetwork(t),
		Store:   memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil),
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Step(ctx))
	}
	v, ok := d.Context().Running[1]
	require.True(t, ok)
	x := v.X

	d.Context().Controls.Pause()
	require.NoError(t, d.Step(ctx))
	assert.Equal(t, int64(11), d.Context().Tick())
	assert.Equal(t, x, d.Context().Running[1].X)
	assert.True(t, d.Status().Paused)

	d.Context().Controls.Resume()
	require.NoError(t, d.Step(ctx))
	assert.Greater(t, d.Context().Running[1].X, x)
}

func TestFocusRequests(t *testing.T) {
	d, err := NewDriver(Options{
		Sim:     testSimConfig(),
		Records: testRecords(),
		Network: testNetwork(t),
		Store:   memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil),
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	defer d.Close()
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Step(ctx))
	}

	// Far from any vehicle and any road: ignored.
	d.Context().Controls.Focus.Set(focus.Point{X: 100, Y: 500})
	require.NoError(t, d.Step(ctx))
	assert.Equal(t, int64(1), d.Context().Ego.ID())

	// On the road but away from vehicles: the ego becomes a dummy.
	d.Context().Controls.Focus.Set(focus.Point{X: 150, Y: -1})
	require.NoError(t, d.Step(ctx))
	assert.Equal(t, core.DummyID, d.Context().Ego.ID())

	// Near vehicle 1: bound again.
	v := d.Context().Running[1]
	d.Context().Controls.Focus.Set(focus.Point{X: v.X, Y: v.Y + 1})
	require.NoError(t, d.Step(ctx))
	assert.Equal(t, int64(1), d.Context().Ego.ID())
}

func TestReplaySkipsGapsAndStopsPastEnd(t *testing.T) {
	store := memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil)
	require.NoError(t, store.Init())
	require.NoError(t, store.StartRun(&core.RunInfo{Name: "gaps", Frequency: 4}))
	for _, n := range []int64{2, 5} {
		require.NoError(t, store.RecordTick(&core.Tick{
			Number:   n,
			Vehicles: map[int64]*core.Vehicle{3: {ID: 3, X: float64(n), Road: "r01", Direction: 1}},
			Lights:   map[int64]*core.TrafficLight{},
		}))
	}

	var observed []Status
	r, err := NewReplayer(ReplayOptions{
		RunTime:   10,
		Network:   testNetwork(t),
		Store:     store,
		Observers: []Observer{ObserverFunc(func(s Status) { observed = append(observed, s) })},
	})
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	var frames []frameKey
	require.NoError(t, r.Run(context.Background()))
	frames = drain(r.Frames(), frames)

	assert.Equal(t, []frameKey{{2, 3, 2, 0}, {5, 3, 5, 0}}, frames)
	assert.Equal(t, int64(6), r.Context().Tick())
	require.NotEmpty(t, observed)
	assert.True(t, observed[len(observed)-1].Finished)
}

func TestReplayFocusWhilePaused(t *testing.T) {
	store := memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil)
	require.NoError(t, store.Init())
	require.NoError(t, store.StartRun(&core.RunInfo{Name: "paused", Frequency: 4}))
	for n := int64(1); n <= 3; n++ {
		require.NoError(t, store.RecordTick(&core.Tick{
			Number: n,
			Vehicles: map[int64]*core.Vehicle{
				3: {ID: 3, X: float64(n), Road: "r01", Direction: 1},
				7: {ID: 7, X: float64(n) + 100, Road: "r01", Direction: 1},
			},
			Lights: map[int64]*core.TrafficLight{},
		}))
	}

	r, err := NewReplayer(ReplayOptions{Network: testNetwork(t), Store: store})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Start(ctx))
	defer r.Close()

	require.NoError(t, r.Step(ctx))
	require.NoError(t, r.Step(ctx))
	assert.Equal(t, []frameKey{{1, 3, 1, 0}, {2, 3, 2, 0}}, drain(r.Frames(), nil))

	r.Context().Controls.Pause()
	r.Context().Controls.Focus.Set(focus.Point{X: 101, Y: 1})
	require.NoError(t, r.Step(ctx))

	assert.Equal(t, int64(2), r.Context().Tick())
	assert.Equal(t, int64(7), r.Status().EgoID)
	assert.Equal(t, []frameKey{{2, 7, 102, 0}}, drain(r.Frames(), nil))

	// a road point away from both vehicles
	r.Context().Controls.Focus.Set(focus.Point{X: 50, Y: 0})
	require.NoError(t, r.Step(ctx))
	frames := drain(r.Frames(), nil)
	require.Len(t, frames, 1)
	assert.Equal(t, core.DummyID, frames[0].Ego)
	assert.Equal(t, int64(2), frames[0].Tick)

	r.Context().Controls.Resume()
	require.NoError(t, r.Step(ctx))
	assert.Equal(t, int64(3), r.Context().Tick())
}

func TestReplayMissingRun(t *testing.T) {
	store := memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil)
	r, err := NewReplayer(ReplayOptions{Network: testNetwork(t), Store: store})
	require.NoError(t, err)
	assert.ErrorIs(t, r.Start(context.Background()), storage.ErrRunNotFound)
}

func TestRunHonoursCancellation(t *testing.T) {
	d, err := NewDriver(Options{
		Sim:     testSimConfig(),
		Records: testRecords(),
		Network: testNetwork(t),
		Store:   memory.New(config.MemoryConfig{}, codec.MustNew(codec.CompressionNone), nil),
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	cancel()
	assert.ErrorIs(t, d.Run(ctx), context.Canceled)
	assert.Equal(t, int64(0), d.Context().Tick())
}

func TestLogAttrs(t *testing.T) {
	c := NewContext(4, 10, nil)
	c.RunID = 7
	c.advance()
	attrs := c.LogAttrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "run", attrs[0].Key)
	assert.Equal(t, uint64(7), attrs[0].Value.Uint64())
	assert.Equal(t, int64(1), attrs[1].Value.Int64())
	assert.InDelta(t, 0.25, c.SimTime(), 1e-12)
}
