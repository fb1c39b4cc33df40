package core

import "time"

// DemandRecord is one row of the origin/destination demand table.
type DemandRecord struct {
	From      string
	To        string
	Direction int
	Rate      float64 // vehicles per hour
}

// Tick is the persisted state of one simulation step.
type Tick struct {
	Number   int64
	Vehicles map[int64]*Vehicle
	Lights   map[int64]*TrafficLight
}

// RunInfo describes one recorded simulation run.
type RunInfo struct {
	ID                 uint      `json:"id"`
	Name               string    `json:"name"`
	Network            string    `json:"network"`
	Demand             string    `json:"demand"`
	Seed               int64     `json:"seed"`
	RunTime            int64     `json:"runTime"`
	Frequency          int       `json:"frequency"`
	GenerationFraction float64   `json:"generationFraction"`
	StartedAt          time.Time `json:"startedAt"`
}

// SimTime converts a tick number to seconds of simulated time.
func SimTime(tick int64, frequency int) float64 {
	if frequency <= 0 {
		return 0
	}
	return float64(tick) / float64(frequency)
}
