// Package focus resolves interactive focus requests to a vehicle or a point
// on the road network.
package focus

import (
	"container/heap"
	"errors"
	"log/slog"
	"math"

	"github.com/azurexth/LimSim/pkg/core"
)

// DefaultRadius is the maximum distance at which a vehicle can be picked.
const DefaultRadius = 10.0

// ErrUnresolvable is returned when a point is neither near a vehicle nor on
// a road.
var ErrUnresolvable = errors.New("focus point is not near a vehicle or on a road")

// Converter maps Cartesian points onto road coordinates.
type Converter interface {
	CartesianToFrenet(x, y float64) (scf, tcf float64, roadID string, ok bool)
}

// Outcome is the result of resolving a focus request. Vehicle is set when a
// running vehicle was picked; otherwise Dummy holds the point on the road.
type Outcome struct {
	Vehicle *core.Vehicle
	Dummy   core.DummyVehicle
}

// Resolver answers nearest-vehicle queries for focus requests.
type Resolver struct {
	Radius float64
	Logger *slog.Logger
}

// NewResolver returns a resolver with the given pick radius. A non-positive
// radius falls back to DefaultRadius.
func NewResolver(radius float64, logger *slog.Logger) *Resolver {
	if radius <= 0 {
		radius = DefaultRadius
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Radius: radius, Logger: logger}
}

// Nearest returns the running vehicle closest to p if it lies within the
// radius (inclusive). Ties go to the lowest id.
func (r *Resolver) Nearest(p Point, running map[int64]*core.Vehicle) (int64, float64, bool) {
	if len(running) == 0 {
		return 0, 0, false
	}

	h := make(candidates, 0, len(running))
	for id, v := range running {
		h = append(h, candidate{id: id, dist: math.Hypot(v.X-p.X, v.Y-p.Y)})
	}
	heap.Init(&h)
	best := heap.Pop(&h).(candidate)

	if best.dist > r.Radius {
		return 0, best.dist, false
	}
	return best.id, best.dist, true
}

// Resolve picks the nearest vehicle within the radius, or else projects the
// point onto the network. ErrUnresolvable is returned when both fail.
func (r *Resolver) Resolve(p Point, running map[int64]*core.Vehicle, conv Converter) (Outcome, error) {
	if id, dist, ok := r.Nearest(p, running); ok {
		r.Logger.Debug("focus picked vehicle", "vehicle", id, "distance", dist)
		return Outcome{Vehicle: running[id]}, nil
	}

	if conv != nil {
		if scf, tcf, road, ok := conv.CartesianToFrenet(p.X, p.Y); ok {
			r.Logger.Debug("focus picked road point", "road", road, "scf", scf, "tcf", tcf)
			return Outcome{Dummy: core.DummyVehicle{X: p.X, Y: p.Y, Scf: scf, Tcf: tcf, Road: road}}, nil
		}
	}

	r.Logger.Warn("please choose a road or a vehicle", "x", p.X, "y", p.Y)
	return Outcome{}, ErrUnresolvable
}

type candidate struct {
	id   int64
	dist float64
}

// candidates is a min-heap ordered by distance, then id.
type candidates []candidate

func (c candidates) Len() int { return len(c) }
func (c candidates) Less(i, j int) bool {
	if c[i].dist != c[j].dist {
		return c[i].dist < c[j].dist
	}
	return c[i].id < c[j].id
}
func (c candidates) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

func (c *candidates) Push(x any) { *c = append(*c, x.(candidate)) }

func (c *candidates) Pop() any {
	old := *c
	n := len(old)
	item := old[n-1]
	*c = old[:n-1]
	return item
}
