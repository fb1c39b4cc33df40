package core

import "math"

// Light states as single letters, matching common signal program notation.
const (
	LightGreen  = "G"
	LightYellow = "y"
	LightRed    = "r"
)

// LightPhase is one step of a fixed signal program.
type LightPhase struct {
	State    string
	Duration float64 // seconds
}

// TrafficLight is a fixed-time signal at the end of a road, controlling the
// vehicles travelling in Direction. Phase, State and Remaining are derived
// from the tick by Update.
type TrafficLight struct {
	ID        int64
	Road      string
	Direction int
	Offset    float64
	Program   []LightPhase

	Phase     int
	State     string
	Remaining float64
}

// CycleLength returns the total duration of the signal program.
func (l *TrafficLight) CycleLength() float64 {
	var total float64
	for _, p := range l.Program {
		total += p.Duration
	}
	return total
}

// Update recomputes the phase for the given tick. The result depends only on
// the tick, the frequency and the program.
func (l *TrafficLight) Update(tick int64, frequency int) {
	cycle := l.CycleLength()
	if cycle <= 0 || frequency <= 0 {
		l.Phase, l.Remaining = 0, 0
		if len(l.Program) > 0 {
			l.State = l.Program[0].State
		}
		return
	}

	pos := math.Mod(float64(tick)/float64(frequency)+l.Offset, cycle)
	if pos < 0 {
		pos += cycle
	}
	for i, p := range l.Program {
		if pos < p.Duration {
			l.Phase = i
			l.State = p.State
			l.Remaining = p.Duration - pos
			return
		}
		pos -= p.Duration
	}
	// float rounding at the very end of the cycle
	last := len(l.Program) - 1
	l.Phase, l.State, l.Remaining = last, l.Program[last].State, 0
}

// Stops reports whether vehicles must stop at this light.
func (l *TrafficLight) Stops() bool {
	return l.State == LightRed || l.State == LightYellow
}

// Clone returns a deep copy of the light.
func (l *TrafficLight) Clone() *TrafficLight {
	c := *l
	if l.Program != nil {
		c.Program = append(make([]LightPhase, 0, len(l.Program)), l.Program...)
	}
	return &c
}
