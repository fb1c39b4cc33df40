package demand

import (
	"math"
	"math/rand"
	"sort"

	"github.com/azurexth/LimSim/pkg/core"
)

// Options controls vehicle generation.
type Options struct {
	// Window is the generation horizon in seconds. Arrivals accumulate until
	// they reach it; the vehicle that crosses it is still emitted.
	Window float64
	Seed   int64

	SpeedMin     float64
	SpeedMax     float64
	Length       float64
	Width        float64
	DesiredSpeed float64
}

// Flow maps vehicle id to a freshly generated vehicle.
type Flow map[int64]*core.Vehicle

// Window returns the generation horizon for a run: fraction of the run time.
func Window(runTime int64, fraction float64) float64 {
	return float64(runTime) * fraction
}

// Generate draws Poisson arrivals for every record. Inter-arrival gaps are
// exponential with mean 3600/rate seconds, rounded to 1/100 s. Ids increase
// globally from 1 in table order, so the result depends only on the records
// and the seed.
func Generate(records []core.DemandRecord, opts Options) Flow {
	rng := rand.New(rand.NewSource(opts.Seed))
	length, width := opts.Length, opts.Width
	if length <= 0 {
		length = core.DefaultVehicleLength
	}
	if width <= 0 {
		width = core.DefaultVehicleWidth
	}

	flow := make(Flow)
	var nextID int64 = 1
	for _, rec := range records {
		if rec.Rate <= 0 {
			continue
		}
		lambda := rec.Rate / 3600

		arrival := 0.0
		for arrival < opts.Window {
			arrival += round2(-math.Log(uniformOpen(rng)) / lambda)
			speed := round2(rng.Float64()*(opts.SpeedMax-opts.SpeedMin)) + opts.SpeedMin

			flow[nextID] = &core.Vehicle{
				ID:           nextID,
				ArrivalTime:  arrival,
				From:         rec.From,
				To:           rec.To,
				Direction:    rec.Direction,
				Length:       length,
				Width:        width,
				DesiredSpeed: opts.DesiredSpeed,
				Velocity:     speed,
			}
			nextID++
		}
	}
	return flow
}

// Admit scans the window at steps of one tick (1/frequency seconds) starting
// at from, and admits every vehicle whose arrival time is strictly greater
// than a scanned offset.
func Admit(flow Flow, window, from float64, frequency int) map[int64]*core.Vehicle {
	step := 1.0
	if frequency > 0 {
		step = 1 / float64(frequency)
	}

	ids := flow.IDs()
	pending := make(map[int64]*core.Vehicle)
	for k := 0; ; k++ {
		t := from + float64(k)*step
		if t >= window {
			break
		}
		for _, id := range ids {
			if _, ok := pending[id]; ok {
				continue
			}
			if v := flow[id]; v.ArrivalTime > t {
				pending[id] = v
			}
		}
		if len(pending) == len(flow) {
			break
		}
	}
	return pending
}

// IDs returns the vehicle ids in ascending order.
func (f Flow) IDs() []int64 {
	ids := make([]int64, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// uniformOpen draws from (0, 1).
func uniformOpen(rng *rand.Rand) float64 {
	for {
		if u := rng.Float64(); u > 0 {
			return u
		}
	}
}

func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}
