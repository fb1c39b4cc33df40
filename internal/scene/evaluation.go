package scene

import (
	"math"

	"github.com/azurexth/LimSim/pkg/core"
)

// Weights of the driving score components.
const (
	comfortWeight    = 0.3
	efficiencyWeight = 0.3
	safetyWeight     = 0.4
)

// Evaluator scores the ego's driving over its recent history.
type Evaluator struct {
	Window     int     // history samples considered
	MaxAccel   float64 // |acc| at which comfort reaches zero
	SafeGap    float64 // clearance at which safety is full
	MinDesired float64 // floor for the desired speed
}

// DefaultEvaluator returns the evaluator used by the driver.
func DefaultEvaluator(frequency int) Evaluator {
	return Evaluator{
		Window:     5 * frequency,
		MaxAccel:   4,
		SafeGap:    10,
		MinDesired: 1,
	}
}

// Score returns a value in [0, 100]. Higher is better.
func (e Evaluator) Score(ego *core.Vehicle, around []*core.Vehicle) float64 {
	n := ego.History.Len()
	if n == 0 {
		return 0
	}
	from := 0
	if e.Window > 0 && n > e.Window {
		from = n - e.Window
	}

	var accSum, velSum float64
	for i := from; i < n; i++ {
		accSum += math.Abs(ego.History.Acceleration[i])
		velSum += ego.History.Velocity[i]
	}
	samples := float64(n - from)

	comfort := 1 - math.Min(1, accSum/samples/e.MaxAccel)
	desired := math.Max(ego.DesiredSpeed, e.MinDesired)
	efficiency := math.Min(1, velSum/samples/desired)

	safety := 1.0
	for _, v := range around {
		clearance := math.Hypot(v.X-ego.X, v.Y-ego.Y) - (v.Length+ego.Length)/2
		safety = math.Min(safety, math.Max(0, clearance/e.SafeGap))
	}

	score := comfortWeight*comfort + efficiencyWeight*efficiency + safetyWeight*safety
	return math.Round(score*10000) / 100
}
