// Package scene maintains the area of interest around the ego and builds
// the render snapshot for each tick.
package scene

import (
	"math"
	"sort"

	"github.com/azurexth/LimSim/pkg/core"
)

// DefaultRadius of the area of interest, in metres.
const DefaultRadius = 50.0

// Network is the road lookup the scene needs.
type Network interface {
	RoadsWithin(x, y, radius float64) []string
}

// Scene is the area of interest around the ego. It is owned by a single
// driver and is not safe for concurrent use.
type Scene struct {
	Radius float64

	net         Network
	egoID       int64
	egoX, egoY  float64
	egoRoad     string
	roads       []string
	surrounding []*core.Vehicle
}

// New creates a scene over the given network.
func New(net Network, radius float64) *Scene {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Scene{Radius: radius, net: net, egoID: core.UnboundID}
}

// UpdateScene recentres the area of interest on the ego and refreshes the
// roads it covers.
func (s *Scene) UpdateScene(ego core.Ego) {
	s.egoID = ego.EgoID()
	s.egoX, s.egoY = ego.Position()
	s.egoRoad = ego.RoadID()
	s.roads = s.net.RoadsWithin(s.egoX, s.egoY, s.Radius)
}

// UpdateSurroundingVehicles collects the running vehicles inside the area
// of interest, excluding the ego itself.
func (s *Scene) UpdateSurroundingVehicles(ego core.Ego, running map[int64]*core.Vehicle) {
	x, y := ego.Position()
	id := ego.EgoID()

	s.surrounding = s.surrounding[:0]
	for vid, v := range running {
		if vid == id {
			continue
		}
		if math.Hypot(v.X-x, v.Y-y) <= s.Radius {
			s.surrounding = append(s.surrounding, v)
		}
	}
	sort.Slice(s.surrounding, func(i, j int) bool {
		return s.surrounding[i].ID < s.surrounding[j].ID
	})
}

// Surrounding returns the vehicles found by the last
// UpdateSurroundingVehicles call, sorted by id.
func (s *Scene) Surrounding() []*core.Vehicle {
	return s.surrounding
}

// Roads returns the road ids inside the area of interest.
func (s *Scene) Roads() []string {
	return s.roads
}

// RenderInfo builds the render snapshot. Lights are limited to the roads in
// the area of interest.
func (s *Scene) RenderInfo(ego core.Ego, lights map[int64]*core.TrafficLight) core.Snapshot {
	snap := core.Snapshot{
		EgoID:    ego.EgoID(),
		EgoRoad:  ego.RoadID(),
		Roads:    append([]string(nil), s.roads...),
		Vehicles: make([]core.VehicleView, 0, len(s.surrounding)+1),
	}
	snap.EgoX, snap.EgoY = ego.Position()

	if v, ok := ego.(*core.Vehicle); ok {
		snap.Score = v.Score
		snap.Vehicles = append(snap.Vehicles, view(v))
	}
	for _, v := range s.surrounding {
		snap.Vehicles = append(snap.Vehicles, view(v))
	}

	inScene := make(map[string]bool, len(s.roads))
	for _, r := range s.roads {
		inScene[r] = true
	}
	for _, tl := range lights {
		if !inScene[tl.Road] {
			continue
		}
		snap.Lights = append(snap.Lights, core.LightView{
			ID:        tl.ID,
			Road:      tl.Road,
			State:     tl.State,
			Remaining: tl.Remaining,
		})
	}
	sort.Slice(snap.Lights, func(i, j int) bool { return snap.Lights[i].ID < snap.Lights[j].ID })

	return snap
}

func view(v *core.Vehicle) core.VehicleView {
	return core.VehicleView{
		ID:       v.ID,
		X:        v.X,
		Y:        v.Y,
		Heading:  v.Heading,
		Velocity: v.Velocity,
		Length:   v.Length,
		Width:    v.Width,
		Road:     v.Road,
		PlanX:    append([]float64(nil), v.Plan.X...),
		PlanY:    append([]float64(nil), v.Plan.Y...),
	}
}
