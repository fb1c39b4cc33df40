package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/azurexth/LimSim/internal/channel"
	"github.com/azurexth/LimSim/internal/focus"
	"github.com/azurexth/LimSim/internal/planner"
	"github.com/azurexth/LimSim/internal/scene"
	"github.com/azurexth/LimSim/pkg/core"
)

// DefaultFrameQueue is the render hand-off capacity.
const DefaultFrameQueue = 10

// DefaultProgressEvery is how often Run logs progress, in ticks.
const DefaultProgressEvery = 10

// Network is the road network as seen by the driver.
type Network interface {
	planner.Network
	focus.Converter
	scene.Network
	TrafficLights() map[int64]*core.TrafficLight
	SetTrafficLights(lights map[int64]*core.TrafficLight)
}

// Scene builds the area of interest around the ego.
type Scene interface {
	UpdateScene(ego core.Ego)
	UpdateSurroundingVehicles(ego core.Ego, running map[int64]*core.Vehicle)
	Surrounding() []*core.Vehicle
	RenderInfo(ego core.Ego, lights map[int64]*core.TrafficLight) core.Snapshot
}

// engine is the part shared by live and replay runs: the ego, the scene,
// the render hand-off and focus handling.
type engine struct {
	mode      string
	sim       *Context
	net       Network
	scene     Scene
	resolver  *focus.Resolver
	frames    *channel.DropOldest[core.Frame]
	logger    *slog.Logger
	observers []Observer
	ins       *instruments

	lastDropped  uint64
	lastPersist  time.Duration
	lastProgress int64
	status       atomic.Pointer[Status]
}

func newEngine(mode string, sim *Context, net Network, sc Scene, resolver *focus.Resolver, frames *channel.DropOldest[core.Frame], logger *slog.Logger, observers []Observer) (*engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if frames == nil {
		frames = channel.NewDropOldest[core.Frame](DefaultFrameQueue)
	}
	if resolver == nil {
		resolver = focus.NewResolver(focus.DefaultRadius, logger)
	}
	if sc == nil {
		sc = scene.New(net, scene.DefaultRadius)
	}
	ins, err := newInstruments(mode)
	if err != nil {
		return nil, err
	}
	e := &engine{
		mode:      mode,
		sim:       sim,
		net:       net,
		scene:     sc,
		resolver:  resolver,
		frames:    frames,
		logger:    logger,
		observers: observers,
		ins:       ins,
	}
	e.status.Store(&Status{Mode: mode, RunTime: sim.RunTime, EgoID: core.UnboundID, EgoKind: sim.Ego.Kind().String()})
	return e, nil
}

// render refreshes the scene around the ego and hands a frame to the
// renderer. score is called between the scene update and the snapshot.
func (e *engine) render(ego core.Ego, lights map[int64]*core.TrafficLight, score func()) {
	e.scene.UpdateScene(ego)
	e.scene.UpdateSurroundingVehicles(ego, e.sim.Running)
	if score != nil {
		score()
	}
	snap := e.scene.RenderInfo(ego, lights)
	snap.Tick = e.sim.Tick()
	e.frames.Send(core.Frame{Scene: snap, SimTime: e.sim.SimTime()})
}

// applyFocus consumes a pending focus request.
func (e *engine) applyFocus() {
	p, ok := e.sim.Controls.Focus.Take()
	if !ok {
		return
	}
	out, err := e.resolver.Resolve(p, e.sim.Running, e.net)
	if errors.Is(err, focus.ErrUnresolvable) {
		return
	}
	if out.Vehicle != nil {
		e.sim.Ego.FocusVehicle(out.Vehicle)
		e.logger.Info("focus on vehicle", "vehicle", out.Vehicle.ID)
		return
	}
	e.sim.Ego.FocusPoint(out.Dummy)
	e.logger.Info("focus on road point", "road", out.Dummy.Road, "x", out.Dummy.X, "y", out.Dummy.Y)
}

// publish records metrics, stores the status and notifies observers.
func (e *engine) publish(ctx context.Context, started time.Time, finished bool) {
	dropped := e.frames.Dropped()
	e.ins.recordStep(ctx, len(e.sim.Running), dropped-e.lastDropped)
	e.lastDropped = dropped

	s := &Status{
		Mode:          e.mode,
		RunID:         e.sim.RunID,
		Tick:          e.sim.Tick(),
		SimTime:       e.sim.SimTime(),
		RunTime:       e.sim.RunTime,
		Pending:       len(e.sim.Pending),
		Running:       len(e.sim.Running),
		EgoID:         e.sim.Ego.ID(),
		EgoKind:       e.sim.Ego.Kind().String(),
		Paused:        e.sim.Controls.Paused(),
		Finished:      finished,
		DroppedFrames: dropped,
		LastPersist:   e.lastPersist,
		StepDuration:  time.Since(started),
	}
	e.status.Store(s)
	for _, o := range e.observers {
		o.ObserveTick(*s)
	}
}

func (e *engine) progress(every int64) {
	if every <= 0 {
		every = DefaultProgressEvery
	}
	if tick := e.sim.Tick(); tick%every == 0 && tick != e.lastProgress {
		e.lastProgress = tick
		e.logger.Info("simulation progress",
			"tick", tick,
			"runTime", e.sim.RunTime,
			"running", len(e.sim.Running),
			"pending", len(e.sim.Pending),
			"ego", e.sim.Ego.ID(),
		)
	}
}
