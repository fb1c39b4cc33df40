package sim

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/azurexth/LimSim/internal/channel"
	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/demand"
	"github.com/azurexth/LimSim/internal/focus"
	"github.com/azurexth/LimSim/internal/planner"
	"github.com/azurexth/LimSim/internal/scene"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/pkg/core"
)

// Options wires a live run.
type Options struct {
	Sim      config.SimConfig
	Run      *core.RunInfo
	Records  []core.DemandRecord
	Controls *Controls

	Network   Network
	Planner   planner.Planner
	Scene     Scene
	Evaluator *scene.Evaluator
	Resolver  *focus.Resolver
	Store     storage.Backend
	Frames    *channel.DropOldest[core.Frame]
	Logger    *slog.Logger
	Observers []Observer
}

// Driver runs a live simulation and records every tick with a resolvable ego.
type Driver struct {
	*engine
	opts      Options
	planner   planner.Planner
	evaluator scene.Evaluator
	store     storage.Backend
	started   bool
}

// NewDriver validates the options and returns a driver at tick 0.
func NewDriver(opts Options) (*Driver, error) {
	if opts.Network == nil {
		return nil, fmt.Errorf("sim: network is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("sim: trace store is required")
	}
	if opts.Sim.Frequency <= 0 {
		return nil, fmt.Errorf("sim: invalid frequency %d", opts.Sim.Frequency)
	}
	if opts.Run == nil {
		opts.Run = &core.RunInfo{}
	}
	if opts.Planner == nil {
		opts.Planner = planner.NewKinematic(planner.DefaultParams(), opts.Logger)
	}
	if opts.Scene == nil && opts.Sim.SceneRadius > 0 {
		opts.Scene = scene.New(opts.Network, opts.Sim.SceneRadius)
	}
	if opts.Resolver == nil {
		opts.Resolver = focus.NewResolver(opts.Sim.FocusRadius, opts.Logger)
	}
	if opts.Frames == nil && opts.Sim.RenderQueue > 0 {
		opts.Frames = channel.NewDropOldest[core.Frame](opts.Sim.RenderQueue)
	}
	evaluator := scene.DefaultEvaluator(opts.Sim.Frequency)
	if opts.Evaluator != nil {
		evaluator = *opts.Evaluator
	}

	sim := NewContext(opts.Sim.Frequency, opts.Sim.RunTime, opts.Controls)
	eng, err := newEngine("live", sim, opts.Network, opts.Scene, opts.Resolver, opts.Frames, opts.Logger, opts.Observers)
	if err != nil {
		return nil, err
	}
	return &Driver{
		engine:    eng,
		opts:      opts,
		planner:   opts.Planner,
		evaluator: evaluator,
		store:     opts.Store,
	}, nil
}

// Context returns the run state.
func (d *Driver) Context() *Context { return d.sim }

// Frames returns the render hand-off queue.
func (d *Driver) Frames() *channel.DropOldest[core.Frame] { return d.frames }

// Status returns the status published after the last step.
func (d *Driver) Status() Status { return *d.status.Load() }

// Start generates demand, opens the trace store and records the run.
func (d *Driver) Start(ctx context.Context) error {
	if d.started {
		return fmt.Errorf("sim: driver already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := d.opts.Sim
	window := demand.Window(cfg.RunTime, cfg.GenerationFraction)
	flow := demand.Generate(d.opts.Records, demand.Options{
		Window:       window,
		Seed:         cfg.Seed,
		SpeedMin:     cfg.SpeedMin,
		SpeedMax:     cfg.SpeedMax,
		Length:       cfg.VehicleLength,
		Width:        cfg.VehicleWidth,
		DesiredSpeed: cfg.DesiredSpeed,
	})
	d.sim.Pending = demand.Admit(flow, window, 0, cfg.Frequency)
	d.logger.Info("demand generated", "vehicles", len(flow), "pending", len(d.sim.Pending), "window", window)

	if err := d.store.Init(); err != nil {
		return fmt.Errorf("init trace store: %w", err)
	}
	run := d.opts.Run
	run.Seed = cfg.Seed
	run.RunTime = cfg.RunTime
	run.Frequency = cfg.Frequency
	run.GenerationFraction = cfg.GenerationFraction
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if err := d.store.StartRun(run); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	d.sim.RunID = run.ID
	d.started = true
	d.logger.Info("run started", "run", run.ID, "name", run.Name, "runTime", run.RunTime)
	return nil
}

// Step advances the simulation by one tick.
func (d *Driver) Step(ctx context.Context) error {
	if !d.started {
		return fmt.Errorf("sim: driver not started")
	}
	started := time.Now()
	tick := d.sim.advance()

	lights := d.net.TrafficLights()
	for _, id := range sortedLightIDs(lights) {
		lights[id].Update(tick, d.sim.Frequency)
	}

	if !d.sim.Controls.Paused() {
		pending, running, err := d.planner.Plan(ctx, d.net, d.sim.Pending, d.sim.Running, tick, d.sim.Frequency)
		if err != nil {
			return fmt.Errorf("planner: %w", err)
		}
		d.sim.Pending, d.sim.Running = pending, running
	}

	d.sim.Ego.Update(d.sim.Running)

	if ego, ok := d.sim.Ego.Current(d.sim.Running); ok {
		for _, v := range d.sim.Running {
			v.AppendHistory()
		}
		d.render(ego, lights, func() {
			if v, live := d.sim.Ego.Vehicle(d.sim.Running); live {
				v.Score = d.evaluator.Score(v, d.scene.Surrounding())
			}
		})
		if err := d.persist(tick, lights); err != nil {
			return err
		}
	}

	d.applyFocus()
	d.publish(ctx, started, d.sim.End())
	return nil
}

func (d *Driver) persist(tick int64, lights map[int64]*core.TrafficLight) error {
	start := time.Now()
	err := d.store.RecordTick(&core.Tick{Number: tick, Vehicles: d.sim.Running, Lights: lights})
	d.lastPersist = time.Since(start)
	d.ins.persist.Record(context.Background(), float64(d.lastPersist.Microseconds())/1000)
	if err != nil {
		return fmt.Errorf("persist tick %d: %w", tick, err)
	}
	return nil
}

// Run steps until the run time is reached or ctx is cancelled. Cancellation
// is only observed between ticks.
func (d *Driver) Run(ctx context.Context) error {
	for !d.End() {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("run interrupted", "tick", d.sim.Tick(), "error", err)
			return err
		}
		if err := d.Step(ctx); err != nil {
			return err
		}
		d.progress(d.opts.Sim.ProgressEvery)
	}
	d.logger.Info("run finished", "tick", d.sim.Tick())
	return nil
}

// End reports whether the run time has been reached.
func (d *Driver) End() bool { return d.sim.End() }

// Close releases the trace store.
func (d *Driver) Close() error {
	return d.store.Close()
}

func sortedLightIDs(lights map[int64]*core.TrafficLight) []int64 {
	ids := make([]int64, 0, len(lights))
	for id := range lights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
