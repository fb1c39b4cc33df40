package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&VehicleFrame{},
	&LightFrame{},
	&RunPerformance{},
}

// Run is one recorded simulation. Frames reference it so a single database
// can hold several traces.
type Run struct {
	gorm.Model
	Name               string         `json:"name" gorm:"size:255"`
	Network            string         `json:"network" gorm:"size:1024"`
	Demand             string         `json:"demand" gorm:"size:1024"`
	Seed               int64          `json:"seed"`
	RunTime            int64          `json:"runTime"`
	Frequency          int            `json:"frequency"`
	GenerationFraction float64        `json:"generationFraction"`
	StartedAt          time.Time      `json:"startedAt" gorm:"index:idx_run_started_at"`
	Config             datatypes.JSON `json:"config"`
}

func (*Run) TableName() string {
	return "runs"
}

// VehicleFrame holds the encoded running-vehicle map of one tick.
type VehicleFrame struct {
	ID    uint   `json:"id" gorm:"primarykey"`
	RunID uint   `json:"runId" gorm:"uniqueIndex:idx_vehicle_frame_run_tick"`
	Tick  int64  `json:"tick" gorm:"uniqueIndex:idx_vehicle_frame_run_tick"`
	Info  []byte `json:"-"`
}

func (*VehicleFrame) TableName() string {
	return "vehicle_frames"
}

// LightFrame holds the encoded traffic light map of one tick.
type LightFrame struct {
	ID    uint   `json:"id" gorm:"primarykey"`
	RunID uint   `json:"runId" gorm:"uniqueIndex:idx_light_frame_run_tick"`
	Tick  int64  `json:"tick" gorm:"uniqueIndex:idx_light_frame_run_tick"`
	Info  []byte `json:"-"`
}

func (*LightFrame) TableName() string {
	return "light_frames"
}

// RunPerformance is a periodic sample of driver health written by the
// status monitor.
type RunPerformance struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	RunID         uint      `json:"runId" gorm:"index:idx_run_performance_run"`
	Time          time.Time `json:"time"`
	Mode          string    `json:"mode" gorm:"size:16"`
	Tick          int64     `json:"tick"`
	Running       int       `json:"running"`
	Pending       int       `json:"pending"`
	EgoID         int64     `json:"egoId"`
	Paused        bool      `json:"paused"`
	DroppedFrames uint64    `json:"droppedFrames"`
	StepMs        float32   `json:"stepMs"`
	PersistMs     float32   `json:"persistMs"`
}

func (*RunPerformance) TableName() string {
	return "run_performance"
}
