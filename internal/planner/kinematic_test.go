package planner

import (
	"context"
	"math"
	"testing"

	"github.com/azurexth/LimSim/internal/network"
	"github.com/azurexth/LimSim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const straight = `
nodes:
  - {id: "0", x: 0, y: 0}
  - {id: "1", x: 100, y: 0}
roads:
  - {id: "r01", from: "0", to: "1"}
`

const redLight = straight + `
lights:
  - id: 1
    road: "r01"
    phases: [{state: "r", duration: 60}]
`

func testNet(t *testing.T, doc string) *network.Network {
	t.Helper()
	n, err := network.Parse([]byte(doc))
	require.NoError(t, err)
	return n
}

func newVehicle(id int64, arrival float64) *core.Vehicle {
	return &core.Vehicle{
		ID:           id,
		ArrivalTime:  arrival,
		From:         "0",
		To:           "1",
		Direction:    1,
		Length:       core.DefaultVehicleLength,
		Width:        core.DefaultVehicleWidth,
		DesiredSpeed: 10,
	}
}

func TestAdmissionWaitsForArrival(t *testing.T) {
	net := testNet(t, straight)
	k := NewKinematic(DefaultParams(), nil)
	pending := map[int64]*core.Vehicle{1: newVehicle(1, 1.0)}

	pending, running, err := k.Plan(context.Background(), net, pending, map[int64]*core.Vehicle{}, 2, 4)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Empty(t, running)

	pending, running, err = k.Plan(context.Background(), net, pending, running, 4, 4)
	require.NoError(t, err)
	assert.Empty(t, pending)
	require.Contains(t, running, int64(1))

	v := running[1]
	assert.Equal(t, "r01", v.Road)
	assert.InDelta(t, 0.0, v.X, 1e-9)
	assert.InDelta(t, -1.75, v.Y, 1e-9)
	assert.Equal(t, 12, v.Plan.Len())
	assert.Len(t, v.Plan.RoadID, 12)
}

func TestReverseDirection(t *testing.T) {
	net := testNet(t, straight)
	k := NewKinematic(DefaultParams(), nil)
	v := newVehicle(1, 0)
	v.From, v.To = "1", "0"

	_, running, err := k.Plan(context.Background(), net, map[int64]*core.Vehicle{1: v}, nil, 1, 4)
	require.NoError(t, err)
	require.Contains(t, running, int64(1))
	assert.Equal(t, -1, v.Direction)
	assert.InDelta(t, 100.0, v.X, 1e-9)
	assert.InDelta(t, 1.75, v.Y, 1e-9)
	assert.InDelta(t, math.Pi, v.Heading, 1e-9)

	_, running, err = k.Plan(context.Background(), net, nil, running, 2, 4)
	require.NoError(t, err)
	assert.Less(t, running[1].X, 100.0)
}

func TestNoRouteIsDropped(t *testing.T) {
	net := testNet(t, straight)
	k := NewKinematic(DefaultParams(), nil)
	v := newVehicle(1, 0)
	v.To = "9"

	pending, running, err := k.Plan(context.Background(), net, map[int64]*core.Vehicle{1: v}, nil, 1, 4)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, running)
}

func TestEntryBlocked(t *testing.T) {
	net := testNet(t, straight)
	k := NewKinematic(DefaultParams(), nil)

	front := newVehicle(1, 0)
	front.Road, front.Scf, front.Tcf = "r01", 3, -1.75
	pending := map[int64]*core.Vehicle{2: newVehicle(2, 0)}

	pending, running, err := k.Plan(context.Background(), net, pending, map[int64]*core.Vehicle{1: front}, 1, 4)
	require.NoError(t, err)
	assert.Contains(t, pending, int64(2))
	assert.NotContains(t, running, int64(2))
}

func TestVehicleExitsAtRoadEnd(t *testing.T) {
	net := testNet(t, straight)
	k := NewKinematic(DefaultParams(), nil)

	v := newVehicle(1, 0)
	v.Road, v.Scf, v.Velocity = "r01", 99.9, 10
	_, running, err := k.Plan(context.Background(), net, nil, map[int64]*core.Vehicle{1: v}, 1, 4)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestStopsAtRedLight(t *testing.T) {
	net := testNet(t, redLight)
	k := NewKinematic(DefaultParams(), nil)

	v := newVehicle(1, 0)
	v.Road, v.Scf, v.Velocity = "r01", 60, 5
	running := map[int64]*core.Vehicle{1: v}
	var err error
	for tick := int64(1); tick <= 200; tick++ {
		_, running, err = k.Plan(context.Background(), net, nil, running, tick, 4)
		require.NoError(t, err)
		require.Contains(t, running, int64(1))
		assert.LessOrEqual(t, running[1].Scf, 100.0)
	}
	assert.InDelta(t, 0.0, running[1].Velocity, 1e-3)
}

func TestFollowerKeepsBehindLeader(t *testing.T) {
	net := testNet(t, redLight)
	k := NewKinematic(DefaultParams(), nil)

	leader := newVehicle(1, 0)
	leader.Road, leader.Scf = "r01", 40
	follower := newVehicle(2, 0)
	follower.Road, follower.Scf, follower.Velocity = "r01", 0, 10
	running := map[int64]*core.Vehicle{1: leader, 2: follower}

	var err error
	for tick := int64(1); tick <= 200; tick++ {
		_, running, err = k.Plan(context.Background(), net, nil, running, tick, 4)
		require.NoError(t, err)
		require.Len(t, running, 2)
		assert.LessOrEqual(t, running[2].Scf, running[1].Scf-running[1].Length+1e-9)
	}
}

func TestPlanIsDeterministic(t *testing.T) {
	net := testNet(t, straight)
	k := NewKinematic(DefaultParams(), nil)

	run := func() []float64 {
		pending := map[int64]*core.Vehicle{
			1: newVehicle(1, 0.5),
			2: newVehicle(2, 1.5),
			3: newVehicle(3, 2.5),
		}
		running := map[int64]*core.Vehicle{}
		var err error
		var xs []float64
		for tick := int64(1); tick <= 40; tick++ {
			pending, running, err = k.Plan(context.Background(), net, pending, running, tick, 4)
			require.NoError(t, err)
			for _, id := range sortedIDs(running) {
				xs = append(xs, running[id].X)
			}
		}
		return xs
	}
	assert.Equal(t, run(), run())
}

func TestUnknownRoad(t *testing.T) {
	net := testNet(t, straight)
	k := NewKinematic(DefaultParams(), nil)

	v := newVehicle(1, 0)
	v.Road = "nowhere"
	_, _, err := k.Plan(context.Background(), net, nil, map[int64]*core.Vehicle{1: v}, 1, 4)
	assert.ErrorIs(t, err, ErrUnknownRoad)
}

func TestCancelledContext(t *testing.T) {
	net := testNet(t, straight)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewKinematic(DefaultParams(), nil).Plan(ctx, net, nil, nil, 1, 4)
	assert.ErrorIs(t, err, context.Canceled)
}
