package core

// Sentinel ego ids.
const (
	UnboundID int64 = -1
	DummyID   int64 = 0
)

// Ego is the capability set shared by everything that can be the ego focus.
type Ego interface {
	EgoID() int64
	Position() (x, y float64)
	Curvilinear() (scf, tcf float64)
	RoadID() string
}

// DummyVehicle is a frozen stand-in for the ego: either an off-vehicle focus
// point or a vehicle that has left the simulation.
type DummyVehicle struct {
	X    float64
	Y    float64
	Scf  float64
	Tcf  float64
	Road string
}

// EgoID implements Ego.
func (d DummyVehicle) EgoID() int64 { return DummyID }

// Position implements Ego.
func (d DummyVehicle) Position() (float64, float64) { return d.X, d.Y }

// Curvilinear implements Ego.
func (d DummyVehicle) Curvilinear() (float64, float64) { return d.Scf, d.Tcf }

// RoadID implements Ego.
func (d DummyVehicle) RoadID() string { return d.Road }

var (
	_ Ego = (*Vehicle)(nil)
	_ Ego = DummyVehicle{}
)
