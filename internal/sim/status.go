package sim

import "time"

// Status is a point-in-time summary of a run, published after every step.
type Status struct {
	Mode          string        `json:"mode"`
	RunID         uint          `json:"runId"`
	Tick          int64         `json:"tick"`
	SimTime       float64       `json:"simTime"`
	RunTime       int64         `json:"runTime"`
	Pending       int           `json:"pending"`
	Running       int           `json:"running"`
	EgoID         int64         `json:"egoId"`
	EgoKind       string        `json:"egoKind"`
	Paused        bool          `json:"paused"`
	Finished      bool          `json:"finished"`
	DroppedFrames uint64        `json:"droppedFrames"`
	LastPersist   time.Duration `json:"lastPersist"`
	StepDuration  time.Duration `json:"stepDuration"`
}

// Observer receives the status after every step. Observers run on the
// driver goroutine and must not block.
type Observer interface {
	ObserveTick(s Status)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Status)

// ObserveTick calls f.
func (f ObserverFunc) ObserveTick(s Status) { f(s) }
