// Package worker owns the control command handlers: it turns dispatcher
// events into changes of the run's controls.
package worker

import (
	"errors"
	"sync"

	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/parser"
	"github.com/azurexth/LimSim/internal/sim"
)

// ErrNoRun is returned by status queries before a run has been attached.
var ErrNoRun = errors.New("no run attached")

// StatusSource is implemented by the live driver and the replayer.
type StatusSource interface {
	Status() sim.Status
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager    *logging.SlogManager
	ParserService parser.Service
	Controls      *sim.Controls
}

// Manager applies control commands to a run.
type Manager struct {
	deps Dependencies

	mu     sync.RWMutex
	source StatusSource
}

// NewManager creates a new worker manager. source may be nil and attached
// later with Attach.
func NewManager(deps Dependencies, source StatusSource) *Manager {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Controls == nil {
		deps.Controls = sim.NewControls()
	}
	return &Manager{deps: deps, source: source}
}

// Attach sets the run whose status is reported.
func (m *Manager) Attach(source StatusSource) {
	m.mu.Lock()
	m.source = source
	m.mu.Unlock()
}

// Status returns the attached run's status.
func (m *Manager) Status() (sim.Status, error) {
	m.mu.RLock()
	source := m.source
	m.mu.RUnlock()
	if source == nil {
		return sim.Status{}, ErrNoRun
	}
	return source.Status(), nil
}

// Controls returns the controls the manager writes to.
func (m *Manager) Controls() *sim.Controls {
	return m.deps.Controls
}
