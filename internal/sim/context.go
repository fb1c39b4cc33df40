// Package sim drives a simulation run tick by tick, either live (demand,
// planner, persistence) or from a recorded trace.
package sim

import (
	"log/slog"
	"sync/atomic"

	"github.com/azurexth/LimSim/internal/ego"
	"github.com/azurexth/LimSim/internal/focus"
	"github.com/azurexth/LimSim/pkg/core"
)

// Controls are the inputs the outside world may change while a run is in
// progress. Each has a single writer (the control API) and a single reader
// (the driver).
type Controls struct {
	paused atomic.Bool
	Focus  *focus.Mailbox
}

// NewControls returns unpaused controls with an empty focus mailbox.
func NewControls() *Controls {
	return &Controls{Focus: focus.NewMailbox()}
}

// Pause stops vehicles from moving. Ticks keep advancing in live mode.
func (c *Controls) Pause() { c.paused.Store(true) }

// Resume undoes Pause.
func (c *Controls) Resume() { c.paused.Store(false) }

// Paused reports whether the run is paused.
func (c *Controls) Paused() bool { return c.paused.Load() }

// Context is the mutable state of one run. Only the driver goroutine touches
// Pending, Running and Ego; the tick counter may be read from anywhere.
type Context struct {
	RunID     uint
	Frequency int
	RunTime   int64

	Pending map[int64]*core.Vehicle
	Running map[int64]*core.Vehicle
	Ego     *ego.Machine

	Controls *Controls

	tick atomic.Int64
}

// NewContext returns a context at tick 0 with empty vehicle sets and an
// unbound ego. A nil controls gets a fresh set.
func NewContext(frequency int, runTime int64, controls *Controls) *Context {
	if controls == nil {
		controls = NewControls()
	}
	return &Context{
		Frequency: frequency,
		RunTime:   runTime,
		Pending:   make(map[int64]*core.Vehicle),
		Running:   make(map[int64]*core.Vehicle),
		Ego:       ego.New(),
		Controls:  controls,
	}
}

// Tick returns the current tick number.
func (c *Context) Tick() int64 { return c.tick.Load() }

func (c *Context) advance() int64 { return c.tick.Add(1) }

// SimTime returns the simulated time of the current tick in seconds.
func (c *Context) SimTime() float64 {
	return core.SimTime(c.Tick(), c.Frequency)
}

// End reports whether the run time has been reached.
func (c *Context) End() bool {
	return c.Tick() >= c.RunTime
}

// LogAttrs returns the run and tick attributes attached to every log line
// while a run is active.
func (c *Context) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Uint64("run", uint64(c.RunID)),
		slog.Int64("tick", c.Tick()),
	}
}
