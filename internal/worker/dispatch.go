package worker

import (
	"fmt"

	"github.com/azurexth/LimSim/internal/dispatcher"
)

// RegisterHandlers registers the control handlers with the dispatcher.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Focus parses inline so callers see bad coordinates; the mailbox keeps
	// only the latest request.
	d.Register(dispatcher.CommandFocus, m.handleFocus, dispatcher.Logged())

	d.Register(dispatcher.CommandPause, m.handlePause, dispatcher.Logged())
	d.Register(dispatcher.CommandResume, m.handleResume, dispatcher.Logged())

	d.Register(dispatcher.CommandStatus, m.handleStatus)
}

func (m *Manager) handleFocus(e dispatcher.Event) (any, error) {
	if m.deps.ParserService == nil {
		return nil, fmt.Errorf("focus: no parser configured")
	}
	p, err := m.deps.ParserService.ParseFocus(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse focus request: %w", err)
	}
	m.deps.Controls.Focus.Set(p)
	m.deps.LogManager.WriteLog("handleFocus", fmt.Sprintf("focus requested at (%.2f, %.2f)", p.X, p.Y), "DEBUG")
	return p, nil
}

func (m *Manager) handlePause(dispatcher.Event) (any, error) {
	m.deps.Controls.Pause()
	m.deps.LogManager.WriteLog("handlePause", "simulation paused", "INFO")
	return "paused", nil
}

func (m *Manager) handleResume(dispatcher.Event) (any, error) {
	m.deps.Controls.Resume()
	m.deps.LogManager.WriteLog("handleResume", "simulation resumed", "INFO")
	return "resumed", nil
}

func (m *Manager) handleStatus(dispatcher.Event) (any, error) {
	s, err := m.Status()
	if err != nil {
		return nil, err
	}
	return s, nil
}
