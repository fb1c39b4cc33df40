package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/azurexth/LimSim/internal/channel"
	"github.com/azurexth/LimSim/internal/focus"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/pkg/core"
)

// pausePoll is how often a paused replay checks for resume and focus.
const pausePoll = 50 * time.Millisecond

// ReplayOptions wires a replay.
type ReplayOptions struct {
	// RunID selects the recorded run; 0 picks the latest.
	RunID uint
	// RunTime overrides the end tick; 0 uses the last recorded tick.
	RunTime       int64
	ProgressEvery int64
	Controls      *Controls

	Network   Network
	Scene     Scene
	Resolver  *focus.Resolver
	Store     storage.Backend
	Frames    *channel.DropOldest[core.Frame]
	Logger    *slog.Logger
	Observers []Observer
}

// Replayer feeds recorded ticks through the same scene and render path as a
// live run. It never plans and never writes.
type Replayer struct {
	*engine
	opts     ReplayOptions
	store    storage.Backend
	info     *core.RunInfo
	maxTick  int64
	started  bool
	finished bool
}

// NewReplayer validates the options. The frequency is read from the trace
// on Start.
func NewReplayer(opts ReplayOptions) (*Replayer, error) {
	if opts.Network == nil {
		return nil, fmt.Errorf("sim: network is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("sim: trace store is required")
	}
	sim := NewContext(0, opts.RunTime, opts.Controls)
	eng, err := newEngine("replay", sim, opts.Network, opts.Scene, opts.Resolver, opts.Frames, opts.Logger, opts.Observers)
	if err != nil {
		return nil, err
	}
	return &Replayer{engine: eng, opts: opts, store: opts.Store}, nil
}

// Context returns the run state.
func (r *Replayer) Context() *Context { return r.sim }

// Frames returns the render hand-off queue.
func (r *Replayer) Frames() *channel.DropOldest[core.Frame] { return r.frames }

// Status returns the status published after the last step.
func (r *Replayer) Status() Status { return *r.status.Load() }

// Info returns the metadata of the run being replayed. Nil before Start.
func (r *Replayer) Info() *core.RunInfo { return r.info }

// Start opens the store and the recorded run.
func (r *Replayer) Start(ctx context.Context) error {
	if r.started {
		return fmt.Errorf("sim: replayer already started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.store.Init(); err != nil {
		return fmt.Errorf("init trace store: %w", err)
	}
	info, err := r.store.OpenRun(r.opts.RunID)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}
	maxTick, err := r.store.MaxTick()
	if err != nil {
		return fmt.Errorf("read trace length: %w", err)
	}

	r.info, r.maxTick = info, maxTick
	r.sim.RunID = info.ID
	r.sim.Frequency = info.Frequency
	if r.sim.RunTime <= 0 {
		r.sim.RunTime = maxTick
	}
	r.started = true
	r.logger.Info("replay started", "run", info.ID, "name", info.Name, "runTime", r.sim.RunTime, "maxTick", maxTick)
	return nil
}

// Step loads and renders the next tick. Missing ticks inside the trace are
// skipped; the first missing tick past its end finishes the replay.
func (r *Replayer) Step(ctx context.Context) error {
	if !r.started {
		return fmt.Errorf("sim: replayer not started")
	}
	started := time.Now()

	// Paused: the tick holds, but focus changes still re-render the
	// current state.
	if r.sim.Controls.Paused() {
		r.applyFocus()
		r.sim.Ego.Update(r.sim.Running)
		if ego, ok := r.sim.Ego.Current(r.sim.Running); ok {
			r.render(ego, r.net.TrafficLights(), nil)
		}
		r.publish(ctx, started, r.End())
		return nil
	}

	tick := r.sim.advance()
	t, err := r.store.LoadTick(tick)
	switch {
	case errors.Is(err, storage.ErrTickNotFound):
		if tick > r.maxTick {
			r.finished = true
			r.logger.Info("end of trace", "tick", tick)
		}
		r.publish(ctx, started, r.End())
		return nil
	case err != nil:
		return fmt.Errorf("load tick %d: %w", tick, err)
	}

	r.sim.Running = t.Vehicles
	r.net.SetTrafficLights(t.Lights)
	r.sim.Ego.Update(r.sim.Running)

	if ego, ok := r.sim.Ego.Current(r.sim.Running); ok {
		r.render(ego, t.Lights, nil)
	}

	r.applyFocus()
	r.publish(ctx, started, r.End())
	return nil
}

// Run steps until the end of the trace or until ctx is cancelled.
func (r *Replayer) Run(ctx context.Context) error {
	for !r.End() {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("replay interrupted", "tick", r.sim.Tick(), "error", err)
			return err
		}
		if r.sim.Controls.Paused() {
			select {
			case <-ctx.Done():
			case <-time.After(pausePoll):
			}
		}
		if err := r.Step(ctx); err != nil {
			return err
		}
		r.progress(r.opts.ProgressEvery)
	}
	r.logger.Info("replay finished", "tick", r.sim.Tick())
	return nil
}

// End reports whether the trace is exhausted or the run time reached.
func (r *Replayer) End() bool {
	return r.finished || (r.started && r.sim.End())
}

// Close releases the trace store.
func (r *Replayer) Close() error {
	return r.store.Close()
}
