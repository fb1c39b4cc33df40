// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/model"
	"github.com/azurexth/LimSim/pkg/core"
	"gorm.io/datatypes"
)

// CoreToRun converts run metadata to a GORM model.Run. The full RunInfo is
// also kept as JSON so fields added later survive older schemas.
func CoreToRun(info *core.RunInfo) (model.Run, error) {
	cfg, err := json.Marshal(info)
	if err != nil {
		return model.Run{}, fmt.Errorf("marshal run config: %w", err)
	}
	return model.Run{
		Name:               info.Name,
		Network:            info.Network,
		Demand:             info.Demand,
		Seed:               info.Seed,
		RunTime:            info.RunTime,
		Frequency:          info.Frequency,
		GenerationFraction: info.GenerationFraction,
		StartedAt:          info.StartedAt,
		Config:             datatypes.JSON(cfg),
	}, nil
}

// RunToCore converts a GORM model.Run to run metadata.
func RunToCore(r model.Run) *core.RunInfo {
	return &core.RunInfo{
		ID:                 r.ID,
		Name:               r.Name,
		Network:            r.Network,
		Demand:             r.Demand,
		Seed:               r.Seed,
		RunTime:            r.RunTime,
		Frequency:          r.Frequency,
		GenerationFraction: r.GenerationFraction,
		StartedAt:          r.StartedAt,
	}
}

// TickToFrames encodes a tick into its two rows.
func TickToFrames(runID uint, tick *core.Tick, c *codec.Codec) (model.VehicleFrame, model.LightFrame, error) {
	vehicles, err := c.EncodeVehicles(tick.Vehicles)
	if err != nil {
		return model.VehicleFrame{}, model.LightFrame{}, err
	}
	lights, err := c.EncodeLights(tick.Lights)
	if err != nil {
		return model.VehicleFrame{}, model.LightFrame{}, err
	}
	return model.VehicleFrame{RunID: runID, Tick: tick.Number, Info: vehicles},
		model.LightFrame{RunID: runID, Tick: tick.Number, Info: lights},
		nil
}

// FramesToTick decodes the two rows of a tick.
func FramesToTick(v model.VehicleFrame, l model.LightFrame, c *codec.Codec) (*core.Tick, error) {
	if v.Tick != l.Tick {
		return nil, fmt.Errorf("frame ticks differ: vehicles %d, lights %d", v.Tick, l.Tick)
	}
	vehicles, err := c.DecodeVehicles(v.Info)
	if err != nil {
		return nil, fmt.Errorf("tick %d: %w", v.Tick, err)
	}
	lights, err := c.DecodeLights(l.Info)
	if err != nil {
		return nil, fmt.Errorf("tick %d: %w", l.Tick, err)
	}
	return &core.Tick{Number: v.Tick, Vehicles: vehicles, Lights: lights}, nil
}
