// Package ego tracks which entity the simulation is focused on.
package ego

import (
	"fmt"

	"github.com/azurexth/LimSim/pkg/core"
)

// Kind is the lifecycle state of the ego.
type Kind int

const (
	// Unbound means no ego has been chosen yet.
	Unbound Kind = iota
	// Bound means the ego is a running vehicle.
	Bound
	// Dummy means the ego is a frozen snapshot.
	Dummy
)

func (k Kind) String() string {
	switch k {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Dummy:
		return "dummy"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Machine holds the ego state. The zero value is not usable; call New.
//
// While Bound, the machine keeps a snapshot of the vehicle as last seen in
// the running set so it can be frozen when the vehicle disappears.
type Machine struct {
	kind  Kind
	id    int64
	last  core.DummyVehicle
	dummy core.DummyVehicle
}

// New returns a machine in the Unbound state.
func New() *Machine {
	return &Machine{kind: Unbound, id: core.UnboundID}
}

// NewBound returns a machine bound to vehicle id. A non-positive id yields an
// Unbound machine.
func NewBound(id int64) *Machine {
	if id <= 0 {
		return New()
	}
	return &Machine{kind: Bound, id: id}
}

// Kind returns the current state.
func (m *Machine) Kind() Kind { return m.kind }

// ID returns -1 while Unbound, the vehicle id while Bound and 0 while Dummy.
func (m *Machine) ID() int64 {
	switch m.kind {
	case Bound:
		return m.id
	case Dummy:
		return core.DummyID
	default:
		return core.UnboundID
	}
}

// Update applies the per-tick default transitions. Nothing happens while the
// running set is empty.
func (m *Machine) Update(running map[int64]*core.Vehicle) {
	if len(running) == 0 {
		return
	}

	switch m.kind {
	case Unbound:
		id := lowestID(running)
		m.kind, m.id = Bound, id
		m.last = running[id].Freeze()
	case Bound:
		if v, ok := running[m.id]; ok {
			m.last = v.Freeze()
			return
		}
		m.kind, m.dummy = Dummy, m.last
	}
}

// FocusVehicle binds the ego to a running vehicle.
func (m *Machine) FocusVehicle(v *core.Vehicle) {
	m.kind, m.id = Bound, v.ID
	m.last = v.Freeze()
}

// FocusPoint replaces the ego with a frozen point.
func (m *Machine) FocusPoint(d core.DummyVehicle) {
	m.kind, m.dummy = Dummy, d
}

// Current returns the ego if it is resolvable: a Dummy, or a Bound vehicle
// present in running.
func (m *Machine) Current(running map[int64]*core.Vehicle) (core.Ego, bool) {
	switch m.kind {
	case Dummy:
		return m.dummy, true
	case Bound:
		if v, ok := running[m.id]; ok {
			return v, true
		}
	}
	return nil, false
}

// Vehicle returns the running vehicle the ego is bound to, if any.
func (m *Machine) Vehicle(running map[int64]*core.Vehicle) (*core.Vehicle, bool) {
	if m.kind != Bound {
		return nil, false
	}
	v, ok := running[m.id]
	return v, ok
}

func lowestID(running map[int64]*core.Vehicle) int64 {
	first := true
	var low int64
	for id := range running {
		if first || id < low {
			low, first = id, false
		}
	}
	return low
}
