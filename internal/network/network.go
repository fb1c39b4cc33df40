// Package network is the road network: road geometry, coordinate conversion
// and the traffic light registry.
package network

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/azurexth/LimSim/internal/geo"
	"github.com/azurexth/LimSim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"gopkg.in/yaml.v3"
)

// Defaults applied to roads that leave the fields empty.
const (
	DefaultLanes     = 1
	DefaultLaneWidth = 3.5
)

// File is the YAML network description.
type File struct {
	// Geodetic marks coordinates as longitude/latitude; they are projected
	// to metres on load.
	Geodetic bool        `yaml:"geodetic"`
	Nodes    []NodeSpec  `yaml:"nodes"`
	Roads    []RoadSpec  `yaml:"roads"`
	Lights   []LightSpec `yaml:"lights"`
}

// NodeSpec is a junction or network boundary point.
type NodeSpec struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

// RoadSpec connects two nodes, optionally through intermediate points.
type RoadSpec struct {
	ID        string      `yaml:"id"`
	From      string      `yaml:"from"`
	To        string      `yaml:"to"`
	Lanes     int         `yaml:"lanes"`
	LaneWidth float64     `yaml:"laneWidth"`
	Points    [][]float64 `yaml:"points"`
}

// LightSpec is a fixed-time signal program at the end of a road.
type LightSpec struct {
	ID        int64       `yaml:"id"`
	Road      string      `yaml:"road"`
	Direction int         `yaml:"direction"`
	Offset    float64     `yaml:"offset"`
	Phases    []PhaseSpec `yaml:"phases"`
}

// PhaseSpec is one step of a signal program.
type PhaseSpec struct {
	State    string  `yaml:"state"`
	Duration float64 `yaml:"duration"`
}

// Network is an immutable road graph plus the mutable light registry.
type Network struct {
	nodes   map[string]geom.XY
	roads   map[string]*Road
	roadIDs []string
	lights  map[int64]*core.TrafficLight
}

// Load reads and builds a network from a YAML file.
func Load(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read network file: %w", err)
	}
	return Parse(data)
}

// Parse builds a network from YAML bytes.
func Parse(data []byte) (*Network, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse network file: %w", err)
	}
	return Build(f)
}

// Build validates a network description and constructs the network.
func Build(f File) (*Network, error) {
	n := &Network{
		nodes:  make(map[string]geom.XY, len(f.Nodes)),
		roads:  make(map[string]*Road, len(f.Roads)),
		lights: make(map[int64]*core.TrafficLight, len(f.Lights)),
	}

	project := func(x, y float64) geom.XY {
		if f.Geodetic {
			x, y = geo.Project4326To3857(x, y)
		}
		return geom.XY{X: x, Y: y}
	}

	for _, ns := range f.Nodes {
		if ns.ID == "" {
			return nil, fmt.Errorf("node with empty id")
		}
		if _, dup := n.nodes[ns.ID]; dup {
			return nil, fmt.Errorf("duplicate node %q", ns.ID)
		}
		n.nodes[ns.ID] = project(ns.X, ns.Y)
	}

	for _, rs := range f.Roads {
		if _, dup := n.roads[rs.ID]; dup || rs.ID == "" {
			return nil, fmt.Errorf("invalid or duplicate road id %q", rs.ID)
		}
		from, ok := n.nodes[rs.From]
		if !ok {
			return nil, fmt.Errorf("road %q: unknown node %q", rs.ID, rs.From)
		}
		to, ok := n.nodes[rs.To]
		if !ok {
			return nil, fmt.Errorf("road %q: unknown node %q", rs.ID, rs.To)
		}

		coords := [][]float64{{from.X, from.Y}}
		for i, p := range rs.Points {
			if len(p) < 2 {
				return nil, fmt.Errorf("road %q: point %d has insufficient values", rs.ID, i)
			}
			xy := project(p[0], p[1])
			coords = append(coords, []float64{xy.X, xy.Y})
		}
		coords = append(coords, []float64{to.X, to.Y})

		line, err := geo.LineStringFromXY(coords)
		if err != nil {
			return nil, fmt.Errorf("road %q: %w", rs.ID, err)
		}

		lanes, width := rs.Lanes, rs.LaneWidth
		if lanes <= 0 {
			lanes = DefaultLanes
		}
		if width <= 0 {
			width = DefaultLaneWidth
		}
		road := newRoad(rs.ID, rs.From, rs.To, lanes, width, line)
		if road.Length <= 0 {
			return nil, fmt.Errorf("road %q has zero length", rs.ID)
		}
		n.roads[rs.ID] = road
		n.roadIDs = append(n.roadIDs, rs.ID)
	}
	sort.Strings(n.roadIDs)

	for _, ls := range f.Lights {
		if _, dup := n.lights[ls.ID]; dup {
			return nil, fmt.Errorf("duplicate light %d", ls.ID)
		}
		if _, ok := n.roads[ls.Road]; !ok {
			return nil, fmt.Errorf("light %d: unknown road %q", ls.ID, ls.Road)
		}
		if len(ls.Phases) == 0 {
			return nil, fmt.Errorf("light %d has no phases", ls.ID)
		}
		program := make([]core.LightPhase, len(ls.Phases))
		for i, p := range ls.Phases {
			if p.Duration <= 0 {
				return nil, fmt.Errorf("light %d: phase %d has non-positive duration", ls.ID, i)
			}
			program[i] = core.LightPhase{State: p.State, Duration: p.Duration}
		}
		dir := ls.Direction
		if dir == 0 {
			dir = 1
		}
		tl := &core.TrafficLight{
			ID:        ls.ID,
			Road:      ls.Road,
			Direction: dir,
			Offset:    ls.Offset,
			Program:   program,
		}
		tl.Update(0, 1)
		n.lights[ls.ID] = tl
	}

	return n, nil
}

// Road returns a road by id.
func (n *Network) Road(id string) (*Road, bool) {
	r, ok := n.roads[id]
	return r, ok
}

// RoadIDs returns all road ids in ascending order.
func (n *Network) RoadIDs() []string {
	return append([]string(nil), n.roadIDs...)
}

// RouteBetween finds a road joining two nodes and the direction in which it
// is driven from origin to destination.
func (n *Network) RouteBetween(from, to string) (*Road, int, bool) {
	for _, id := range n.roadIDs {
		r := n.roads[id]
		switch {
		case r.From == from && r.To == to:
			return r, 1, true
		case r.From == to && r.To == from:
			return r, -1, true
		}
	}
	return nil, 0, false
}

// CartesianToFrenet finds the road under (x, y). When roads overlap, the one
// with the smallest lateral offset wins.
func (n *Network) CartesianToFrenet(x, y float64) (scf, tcf float64, roadID string, ok bool) {
	best := math.Inf(1)
	for _, id := range n.roadIDs {
		r := n.roads[id]
		if !r.Contains(x, y) {
			continue
		}
		s, t := r.Project(x, y)
		if math.Abs(t) < best {
			best, scf, tcf, roadID, ok = math.Abs(t), s, t, id, true
		}
	}
	return scf, tcf, roadID, ok
}

// FrenetToCartesian converts road coordinates to a Cartesian point and heading.
func (n *Network) FrenetToCartesian(roadID string, s, t float64) (x, y, heading float64, ok bool) {
	r, found := n.roads[roadID]
	if !found {
		return 0, 0, 0, false
	}
	x, y, heading = r.Locate(s, t)
	return x, y, heading, true
}

// RoadsWithin returns the ids of roads whose reference line passes within
// radius of (x, y).
func (n *Network) RoadsWithin(x, y, radius float64) []string {
	var out []string
	for _, id := range n.roadIDs {
		if d, ok := geo.DistanceToLine(n.roads[id].Line, x, y); ok && d <= radius {
			out = append(out, id)
		}
	}
	return out
}

// TrafficLights returns the live light registry, keyed by light id.
func (n *Network) TrafficLights() map[int64]*core.TrafficLight {
	return n.lights
}

// SetTrafficLights replaces the registry, e.g. with lights read back from a
// recorded trace.
func (n *Network) SetTrafficLights(lights map[int64]*core.TrafficLight) {
	n.lights = lights
}

// LightFor returns the light controlling a road end for the given direction.
func (n *Network) LightFor(roadID string, direction int) (*core.TrafficLight, bool) {
	for _, tl := range n.lights {
		if tl.Road == roadID && tl.Direction == direction {
			return tl, true
		}
	}
	return nil, false
}
