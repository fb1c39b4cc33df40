package core

// VehicleView is the render-facing subset of a vehicle.
type VehicleView struct {
	ID       int64     `json:"id"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Heading  float64   `json:"heading"`
	Velocity float64   `json:"velocity"`
	Length   float64   `json:"length"`
	Width    float64   `json:"width"`
	Road     string    `json:"road"`
	PlanX    []float64 `json:"planX,omitempty"`
	PlanY    []float64 `json:"planY,omitempty"`
}

// LightView is the render-facing subset of a traffic light.
type LightView struct {
	ID        int64   `json:"id"`
	Road      string  `json:"road"`
	State     string  `json:"state"`
	Remaining float64 `json:"remaining"`
}

// Snapshot is the area of interest around the ego at one tick.
type Snapshot struct {
	Tick     int64         `json:"tick"`
	EgoID    int64         `json:"egoId"`
	EgoX     float64       `json:"egoX"`
	EgoY     float64       `json:"egoY"`
	EgoRoad  string        `json:"egoRoad"`
	Score    float64       `json:"score"`
	Roads    []string      `json:"roads"`
	Vehicles []VehicleView `json:"vehicles"`
	Lights   []LightView   `json:"lights"`
}

// Frame pairs a scene snapshot with the simulated time it was taken at.
type Frame struct {
	Scene   Snapshot `json:"scene"`
	SimTime float64  `json:"simTime"`
}
