// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/pkg/core"
)

// frame is one recorded tick: the two encoded rows.
type frame struct {
	vehicles []byte
	lights   []byte
}

// RunRecord groups a run with its recorded ticks
type RunRecord struct {
	Info   core.RunInfo
	frames map[int64]frame
}

// Backend keeps traces in memory and optionally exports them to JSON on
// Close. Ticks are stored encoded, so loaded ticks never alias recorded ones.
type Backend struct {
	cfg    config.MemoryConfig
	codec  *codec.Codec
	logger *slog.Logger

	runs    []*RunRecord // index is ID-1
	current *RunRecord

	initialized  bool
	closed       bool
	exportedPath string
	mu           sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, c *codec.Codec, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, codec: c, logger: logger}
}

// Init initializes the backend
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initialized = true
	b.closed = false
	return nil
}

// Close exports the current run when an export directory is configured.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized || b.closed {
		return nil
	}
	b.closed = true

	if b.cfg.ExportDir != "" && b.current != nil {
		path, err := b.exportJSON(b.current)
		if err != nil {
			b.logger.Error("Failed to export trace", "error", err)
			return nil
		}
		b.exportedPath = path
		b.logger.Info("Exported trace", "path", path)
	}
	return nil
}

// ExportedFilePath returns the path written by Close, if any.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.exportedPath
}

// StartRun begins recording a new run
func (b *Backend) StartRun(info *core.RunInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized || b.closed {
		return storage.ErrNotInitialized
	}

	info.ID = uint(len(b.runs) + 1)
	rec := &RunRecord{Info: *info, frames: make(map[int64]frame)}
	b.runs = append(b.runs, rec)
	b.current = rec
	return nil
}

// OpenRun selects a recorded run for reading.
func (b *Backend) OpenRun(id uint) (*core.RunInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized || b.closed {
		return nil, storage.ErrNotInitialized
	}

	if id == 0 {
		id = uint(len(b.runs))
	}
	if id == 0 || int(id) > len(b.runs) {
		return nil, fmt.Errorf("%w: %d", storage.ErrRunNotFound, id)
	}
	b.current = b.runs[id-1]
	info := b.current.Info
	return &info, nil
}

// RecordTick stores both rows of a tick under the write lock.
func (b *Backend) RecordTick(t *core.Tick) error {
	vehicles, err := b.codec.EncodeVehicles(t.Vehicles)
	if err != nil {
		return err
	}
	lights, err := b.codec.EncodeLights(t.Lights)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.closed {
		return storage.ErrNotInitialized
	}
	if _, ok := b.current.frames[t.Number]; ok {
		return fmt.Errorf("%w: %d", storage.ErrDuplicateTick, t.Number)
	}
	b.current.frames[t.Number] = frame{vehicles: vehicles, lights: lights}
	return nil
}

// LoadTick decodes a recorded tick.
func (b *Backend) LoadTick(tick int64) (*core.Tick, error) {
	b.mu.RLock()
	if b.current == nil || b.closed {
		b.mu.RUnlock()
		return nil, storage.ErrNotInitialized
	}
	f, ok := b.current.frames[tick]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", storage.ErrTickNotFound, tick)
	}
	return b.decode(tick, f)
}

// MaxTick returns the highest recorded tick of the current run.
func (b *Backend) MaxTick() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil || b.closed {
		return 0, storage.ErrNotInitialized
	}
	var last int64
	for n := range b.current.frames {
		if n > last {
			last = n
		}
	}
	return last, nil
}

func (b *Backend) decode(tick int64, f frame) (*core.Tick, error) {
	vehicles, err := b.codec.DecodeVehicles(f.vehicles)
	if err != nil {
		return nil, err
	}
	lights, err := b.codec.DecodeLights(f.lights)
	if err != nil {
		return nil, err
	}
	return &core.Tick{Number: tick, Vehicles: vehicles, Lights: lights}, nil
}

// ticks returns the recorded tick numbers of a run in order.
func (r *RunRecord) ticks() []int64 {
	out := make([]int64, 0, len(r.frames))
	for n := range r.frames {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ storage.Backend = (*Backend)(nil)
var _ storage.Exportable = (*Backend)(nil)
