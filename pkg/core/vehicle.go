// pkg/core/vehicle.go
package core

// Default physical extent of generated vehicles, in metres.
const (
	DefaultVehicleLength = 5.0
	DefaultVehicleWidth  = 2.0
)

// Trajectory is a set of parallel sequences sampled at the same instants.
// All sequences have the same length.
type Trajectory struct {
	X            []float64
	Y            []float64
	Heading      []float64
	Velocity     []float64
	Acceleration []float64
	Yaw          []float64
	RoadID       []string
}

// Len returns the number of samples in the trajectory.
func (t Trajectory) Len() int {
	return len(t.X)
}

// Clone returns a deep copy of the trajectory.
func (t Trajectory) Clone() Trajectory {
	return Trajectory{
		X:            cloneFloats(t.X),
		Y:            cloneFloats(t.Y),
		Heading:      cloneFloats(t.Heading),
		Velocity:     cloneFloats(t.Velocity),
		Acceleration: cloneFloats(t.Acceleration),
		Yaw:          cloneFloats(t.Yaw),
		RoadID:       cloneStrings(t.RoadID),
	}
}

func (t *Trajectory) append(x, y, hdg, vel, acc, yaw float64, road string) {
	t.X = append(t.X, x)
	t.Y = append(t.Y, y)
	t.Heading = append(t.Heading, hdg)
	t.Velocity = append(t.Velocity, vel)
	t.Acceleration = append(t.Acceleration, acc)
	t.Yaw = append(t.Yaw, yaw)
	t.RoadID = append(t.RoadID, road)
}

// Vehicle is a simulated vehicle: demand attributes, kinematic state, actual
// history and the currently planned trajectory.
type Vehicle struct {
	ID          int64
	ArrivalTime float64 // seconds since simulation start
	From        string  // origin node id
	To          string  // destination node id
	Direction   int     // +1 or -1

	Length       float64
	Width        float64
	DesiredSpeed float64

	X            float64
	Y            float64
	Scf          float64
	Tcf          float64
	Heading      float64
	Velocity     float64
	Acceleration float64
	Yaw          float64
	Road         string

	DecisionArea float64
	Score        float64

	History Trajectory
	Plan    Trajectory
}

// EgoID implements Ego.
func (v *Vehicle) EgoID() int64 { return v.ID }

// Position implements Ego.
func (v *Vehicle) Position() (float64, float64) { return v.X, v.Y }

// Curvilinear implements Ego.
func (v *Vehicle) Curvilinear() (float64, float64) { return v.Scf, v.Tcf }

// RoadID implements Ego.
func (v *Vehicle) RoadID() string { return v.Road }

// AppendHistory records the current kinematic state as one history sample.
func (v *Vehicle) AppendHistory() {
	v.History.append(v.X, v.Y, v.Heading, v.Velocity, v.Acceleration, v.Yaw, v.Road)
}

// SetPlan replaces the planned trajectory with a copy of p.
func (v *Vehicle) SetPlan(p Trajectory) {
	v.Plan = p.Clone()
}

// Freeze captures the vehicle's current state as a DummyVehicle.
func (v *Vehicle) Freeze() DummyVehicle {
	return DummyVehicle{X: v.X, Y: v.Y, Scf: v.Scf, Tcf: v.Tcf, Road: v.Road}
}

// Clone returns a deep copy of the vehicle.
func (v *Vehicle) Clone() *Vehicle {
	c := *v
	c.History = v.History.Clone()
	c.Plan = v.Plan.Clone()
	return &c
}

func cloneFloats(s []float64) []float64 {
	if s == nil {
		return nil
	}
	return append(make([]float64, 0, len(s)), s...)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}
