// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/azurexth/LimSim/internal/util"
	"github.com/azurexth/LimSim/pkg/core"
)

// TraceExport is the root JSON structure
type TraceExport struct {
	Run     core.RunInfo `json:"run"`
	EndTick int64        `json:"endTick"`
	Ticks   []TickJSON   `json:"ticks"`
}

// TickJSON is one recorded tick in render form
type TickJSON struct {
	Tick     int64              `json:"tick"`
	SimTime  float64            `json:"simTime"`
	Vehicles []core.VehicleView `json:"vehicles"`
	Lights   []core.LightView   `json:"lights"`
}

// exportJSON writes the run to a (optionally gzipped) JSON file
func (b *Backend) exportJSON(rec *RunRecord) (string, error) {
	export, err := b.buildExport(rec)
	if err != nil {
		return "", err
	}

	name := util.SanitizeName(rec.Info.Name)
	if name == "" {
		name = fmt.Sprintf("run_%d", rec.Info.ID)
	}
	filename := name + ".json"
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.ExportDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if b.cfg.CompressOutput {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := json.NewEncoder(w).Encode(export); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return outputPath, nil
}

func (b *Backend) buildExport(rec *RunRecord) (TraceExport, error) {
	export := TraceExport{Run: rec.Info, Ticks: []TickJSON{}}
	for _, n := range rec.ticks() {
		tick, err := b.decode(n, rec.frames[n])
		if err != nil {
			return TraceExport{}, fmt.Errorf("tick %d: %w", n, err)
		}
		tj := TickJSON{
			Tick:     n,
			SimTime:  core.SimTime(n, rec.Info.Frequency),
			Vehicles: []core.VehicleView{},
			Lights:   []core.LightView{},
		}
		for _, id := range sortedKeys(tick.Vehicles) {
			v := tick.Vehicles[id]
			tj.Vehicles = append(tj.Vehicles, core.VehicleView{
				ID: v.ID, X: v.X, Y: v.Y, Heading: v.Heading, Velocity: v.Velocity,
				Length: v.Length, Width: v.Width, Road: v.Road,
			})
		}
		for _, id := range sortedKeys(tick.Lights) {
			l := tick.Lights[id]
			tj.Lights = append(tj.Lights, core.LightView{ID: l.ID, Road: l.Road, State: l.State, Remaining: l.Remaining})
		}
		export.Ticks = append(export.Ticks, tj)
		export.EndTick = n
	}
	return export, nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
