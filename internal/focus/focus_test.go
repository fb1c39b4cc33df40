package focus

import (
	"errors"
	"sync"
	"testing"

	"github.com/azurexth/LimSim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConverter struct {
	calls int
	ok    bool
}

func (s *stubConverter) CartesianToFrenet(x, y float64) (float64, float64, string, bool) {
	s.calls++
	if !s.ok {
		return 0, 0, "", false
	}
	return x * 2, 0.5, "road-7", true
}

func TestNearest_PicksTrueMinimum(t *testing.T) {
	r := NewResolver(10, nil)
	running := map[int64]*core.Vehicle{
		1: {ID: 1, X: 3, Y: 0},  // distance 3
		2: {ID: 2, X: 0, Y: 12}, // distance 12
		3: {ID: 3, X: 0, Y: -9}, // distance 9
	}

	id, dist, ok := r.Nearest(Point{}, running)
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.InDelta(t, 3.0, dist, 1e-12)
}

func TestNearest_RadiusInclusive(t *testing.T) {
	r := NewResolver(10, nil)
	running := map[int64]*core.Vehicle{4: {ID: 4, X: 6, Y: 8}}

	id, _, ok := r.Nearest(Point{}, running)
	require.True(t, ok)
	assert.Equal(t, int64(4), id)
}

func TestNearest_TieGoesToLowestID(t *testing.T) {
	r := NewResolver(10, nil)
	running := map[int64]*core.Vehicle{
		8: {ID: 8, X: 2},
		5: {ID: 5, X: -2},
	}
	id, _, ok := r.Nearest(Point{}, running)
	require.True(t, ok)
	assert.Equal(t, int64(5), id)
}

func TestNearest_Empty(t *testing.T) {
	_, _, ok := NewResolver(10, nil).Nearest(Point{}, nil)
	assert.False(t, ok)
}

func TestResolve_FallsThroughToConversion(t *testing.T) {
	r := NewResolver(10, nil)
	// both vehicles are more than 10 from the point
	running := map[int64]*core.Vehicle{
		1: {ID: 1, X: 15},
		2: {ID: 2, Y: 15},
	}
	conv := &stubConverter{ok: true}

	out, err := r.Resolve(Point{X: 1.5, Y: 2}, running, conv)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.calls)
	assert.Nil(t, out.Vehicle)
	assert.Equal(t, core.DummyVehicle{X: 1.5, Y: 2, Scf: 3, Tcf: 0.5, Road: "road-7"}, out.Dummy)
}

func TestResolve_VehicleSkipsConversion(t *testing.T) {
	r := NewResolver(10, nil)
	v := &core.Vehicle{ID: 3, X: 1}
	conv := &stubConverter{ok: true}

	out, err := r.Resolve(Point{}, map[int64]*core.Vehicle{3: v}, conv)
	require.NoError(t, err)
	assert.Same(t, v, out.Vehicle)
	assert.Equal(t, 0, conv.calls)
}

func TestResolve_OffRoad(t *testing.T) {
	r := NewResolver(10, nil)

	_, err := r.Resolve(Point{X: 100}, nil, &stubConverter{ok: false})
	assert.True(t, errors.Is(err, ErrUnresolvable))

	_, err = r.Resolve(Point{X: 100}, nil, nil)
	assert.True(t, errors.Is(err, ErrUnresolvable))
}

func TestNewResolver_DefaultRadius(t *testing.T) {
	assert.Equal(t, DefaultRadius, NewResolver(0, nil).Radius)
}

func TestMailbox_LastWriteWins(t *testing.T) {
	m := NewMailbox()
	_, ok := m.Take()
	assert.False(t, ok)

	m.Set(Point{X: 1, Y: 1})
	m.Set(Point{X: 2, Y: 3})
	assert.True(t, m.Pending())

	p, ok := m.Take()
	require.True(t, ok)
	assert.Equal(t, Point{X: 2, Y: 3}, p)

	_, ok = m.Take()
	assert.False(t, ok, "take clears the slot")
}

func TestMailbox_ConcurrentWriterReader(t *testing.T) {
	m := NewMailbox()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			m.Set(Point{X: float64(i)})
		}
	}()

	var last float64 = -1
	for i := 0; i < 1000; i++ {
		if p, ok := m.Take(); ok {
			assert.Greater(t, p.X, last)
			last = p.X
		}
	}
	wg.Wait()
}
