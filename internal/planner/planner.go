// Package planner moves vehicles between the pending and running sets and
// advances their kinematic state one tick at a time.
package planner

import (
	"context"

	"github.com/azurexth/LimSim/internal/network"
	"github.com/azurexth/LimSim/pkg/core"
)

// Network is the road network view the planner needs.
type Network interface {
	Road(id string) (*network.Road, bool)
	RouteBetween(from, to string) (*network.Road, int, bool)
	LightFor(roadID string, direction int) (*core.TrafficLight, bool)
}

// Planner computes the next (pending, running) partition for a tick.
type Planner interface {
	Plan(ctx context.Context, net Network, pending, running map[int64]*core.Vehicle, tick int64, frequency int) (map[int64]*core.Vehicle, map[int64]*core.Vehicle, error)
}

// Func adapts a function to the Planner interface.
type Func func(ctx context.Context, net Network, pending, running map[int64]*core.Vehicle, tick int64, frequency int) (map[int64]*core.Vehicle, map[int64]*core.Vehicle, error)

// Plan calls f.
func (f Func) Plan(ctx context.Context, net Network, pending, running map[int64]*core.Vehicle, tick int64, frequency int) (map[int64]*core.Vehicle, map[int64]*core.Vehicle, error) {
	return f(ctx, net, pending, running, tick, frequency)
}

var (
	_ Network = (*network.Network)(nil)
	_ Planner = (*Kinematic)(nil)
	_ Planner = Func(nil)
)
