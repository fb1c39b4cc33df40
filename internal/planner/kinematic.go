package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/azurexth/LimSim/internal/network"
	"github.com/azurexth/LimSim/pkg/core"
)

// ErrUnknownRoad is returned when a running vehicle refers to a road the
// network does not have.
var ErrUnknownRoad = errors.New("unknown road")

// Params tune the car-following model.
type Params struct {
	MaxAccel     float64 // m/s²
	ComfortDecel float64 // m/s²
	MaxDecel     float64 // m/s²
	MinGap       float64 // m, standstill gap
	Headway      float64 // s, desired time gap
	Horizon      float64 // s, plan prediction length
	DesiredSpeed float64 // m/s, for vehicles without their own
}

// DefaultParams returns the parameters used by the CLI.
func DefaultParams() Params {
	return Params{
		MaxAccel:     2.0,
		ComfortDecel: 3.0,
		MaxDecel:     9.0,
		MinGap:       2.0,
		Headway:      1.5,
		Horizon:      3.0,
		DesiredSpeed: 10.0,
	}
}

// Kinematic is a single-lane car-following planner: vehicles accelerate
// toward their desired speed, keep a time gap to the vehicle ahead and stop
// at the end of their road while its light shows red or yellow.
type Kinematic struct {
	Params Params
	Logger *slog.Logger
}

// NewKinematic returns a planner with the given parameters.
func NewKinematic(p Params, logger *slog.Logger) *Kinematic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kinematic{Params: p, Logger: logger}
}

// lane identifies one direction of travel on one road.
type lane struct {
	road string
	dir  int
}

// Plan admits pending vehicles whose arrival time has passed, advances every
// running vehicle by one tick and removes vehicles that reached the end of
// their road.
func (k *Kinematic) Plan(ctx context.Context, net Network, pending, running map[int64]*core.Vehicle, tick int64, frequency int) (map[int64]*core.Vehicle, map[int64]*core.Vehicle, error) {
	if frequency <= 0 {
		return nil, nil, fmt.Errorf("invalid frequency %d", frequency)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	dt := 1 / float64(frequency)
	simTime := core.SimTime(tick, frequency)

	nextRunning := make(map[int64]*core.Vehicle, len(running))
	lanes := make(map[lane][]*core.Vehicle)
	for _, id := range sortedIDs(running) {
		v := running[id]
		if _, ok := net.Road(v.Road); !ok {
			return nil, nil, fmt.Errorf("vehicle %d: %w %q", id, ErrUnknownRoad, v.Road)
		}
		key := lane{v.Road, v.Direction}
		lanes[key] = append(lanes[key], v)
	}

	for key, vs := range lanes {
		road, _ := net.Road(key.road)
		sort.SliceStable(vs, func(i, j int) bool {
			pi, pj := progress(road, vs[i]), progress(road, vs[j])
			if pi != pj {
				return pi > pj
			}
			return vs[i].ID < vs[j].ID
		})
		light, _ := net.LightFor(key.road, key.dir)

		var leader *core.Vehicle
		for _, v := range vs {
			if k.advance(road, light, v, leader, dt) {
				nextRunning[v.ID] = v
				leader = v
			}
		}
	}

	nextPending := make(map[int64]*core.Vehicle, len(pending))
	for _, id := range sortedIDs(pending) {
		v := pending[id]
		if v.ArrivalTime > simTime {
			nextPending[id] = v
			continue
		}
		road, dir, ok := net.RouteBetween(v.From, v.To)
		if !ok {
			k.Logger.Warn("no route for vehicle, dropping it", "vehicle", id, "from", v.From, "to", v.To)
			continue
		}
		if !k.entryFree(road, dir, v, nextRunning) {
			nextPending[id] = v
			continue
		}
		k.insert(road, dir, v)
		nextRunning[id] = v
	}

	for _, v := range nextRunning {
		road, _ := net.Road(v.Road)
		v.SetPlan(k.predict(road, v, dt))
	}

	return nextPending, nextRunning, nil
}

// advance moves v one tick along its lane. It reports false when the
// vehicle has left the road.
func (k *Kinematic) advance(road *network.Road, light *core.TrafficLight, v, leader *core.Vehicle, dt float64) bool {
	p := progress(road, v)

	gap, leaderSpeed := math.Inf(1), 0.0
	limit := math.Inf(1)
	if leader != nil {
		lp := progress(road, leader) - leader.Length
		gap, leaderSpeed, limit = lp-p, leader.Velocity, lp
	}
	if light != nil && light.Stops() && p < road.Length {
		toLine := road.Length - p
		braking := v.Velocity * v.Velocity / (2 * k.Params.MaxDecel)
		if braking <= toLine && toLine < gap {
			gap, leaderSpeed, limit = toLine, 0, road.Length
		}
	}

	acc := k.acceleration(v.Velocity, v.DesiredSpeed, gap, leaderSpeed)
	vel := math.Max(0, v.Velocity+acc*dt)
	next := p + (v.Velocity+vel)/2*dt
	if next > limit {
		next, vel = math.Max(p, limit), 0
	}
	if next >= road.Length && limit > road.Length {
		return false
	}

	prevHeading := v.Heading
	v.Acceleration = acc
	v.Velocity = vel
	k.place(road, v, next)
	v.Yaw = normalizeAngle(v.Heading-prevHeading) / dt
	return true
}

// acceleration follows the intelligent driver model.
func (k *Kinematic) acceleration(v, desired, gap, leaderSpeed float64) float64 {
	a := k.Params.MaxAccel
	if desired <= 0 {
		desired = k.Params.DesiredSpeed
	}
	free := 1.0
	if desired > 0 {
		free = 1 - math.Pow(v/desired, 4)
	}
	interaction := 0.0
	if !math.IsInf(gap, 1) {
		s := k.Params.MinGap + v*k.Params.Headway + v*(v-leaderSpeed)/(2*math.Sqrt(a*k.Params.ComfortDecel))
		s = math.Max(s, k.Params.MinGap)
		g := math.Max(gap, 0.1)
		interaction = (s / g) * (s / g)
	}
	return math.Max(-k.Params.MaxDecel, a*(free-interaction))
}

// entryFree reports whether v fits at the start of its lane.
func (k *Kinematic) entryFree(road *network.Road, dir int, v *core.Vehicle, running map[int64]*core.Vehicle) bool {
	for _, o := range running {
		if o.Road != road.ID || o.Direction != dir {
			continue
		}
		if progress(road, o)-o.Length < v.Length+k.Params.MinGap {
			return false
		}
	}
	return true
}

func (k *Kinematic) insert(road *network.Road, dir int, v *core.Vehicle) {
	v.Road = road.ID
	v.Direction = dir
	v.Acceleration = 0
	v.Yaw = 0
	k.place(road, v, 0)
}

// place sets the position of v from its progress along the lane.
func (k *Kinematic) place(road *network.Road, v *core.Vehicle, p float64) {
	s := p
	if v.Direction < 0 {
		s = road.Length - p
	}
	t := road.LaneOffset(v.Direction)
	x, y, hdg := road.Locate(s, t)
	if v.Direction < 0 {
		hdg = normalizeAngle(hdg + math.Pi)
	}
	v.X, v.Y, v.Heading = x, y, hdg
	v.Scf, v.Tcf = s, t
}

// predict extrapolates v at constant acceleration over the horizon, bounded
// to the road.
func (k *Kinematic) predict(road *network.Road, v *core.Vehicle, dt float64) core.Trajectory {
	n := int(math.Round(k.Params.Horizon / dt))
	traj := core.Trajectory{
		X:            make([]float64, 0, n),
		Y:            make([]float64, 0, n),
		Heading:      make([]float64, 0, n),
		Velocity:     make([]float64, 0, n),
		Acceleration: make([]float64, 0, n),
		Yaw:          make([]float64, 0, n),
		RoadID:       make([]string, 0, n),
	}
	p, vel := progress(road, v), v.Velocity
	ghost := *v
	for i := 0; i < n; i++ {
		next := math.Max(0, vel+v.Acceleration*dt)
		p = math.Min(road.Length, p+(vel+next)/2*dt)
		vel = next
		k.place(road, &ghost, p)
		traj.X = append(traj.X, ghost.X)
		traj.Y = append(traj.Y, ghost.Y)
		traj.Heading = append(traj.Heading, ghost.Heading)
		traj.Velocity = append(traj.Velocity, vel)
		traj.Acceleration = append(traj.Acceleration, v.Acceleration)
		traj.Yaw = append(traj.Yaw, 0)
		traj.RoadID = append(traj.RoadID, road.ID)
	}
	return traj
}

// progress is the distance travelled along the lane in the driving direction.
func progress(road *network.Road, v *core.Vehicle) float64 {
	if v.Direction < 0 {
		return road.Length - v.Scf
	}
	return v.Scf
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func sortedIDs(m map[int64]*core.Vehicle) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
