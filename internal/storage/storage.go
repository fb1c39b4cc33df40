// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/azurexth/LimSim/pkg/core"
)

var (
	// ErrTickNotFound is returned by LoadTick for ticks that were never recorded.
	ErrTickNotFound = errors.New("tick not found")
	// ErrDuplicateTick is returned when a tick is recorded twice in a run.
	ErrDuplicateTick = errors.New("tick already recorded")
	// ErrNotInitialized is returned when the backend is used before Init or
	// before a run was started or opened.
	ErrNotInitialized = errors.New("storage not initialized")
	// ErrRunNotFound is returned by OpenRun for unknown runs.
	ErrRunNotFound = errors.New("run not found")
)

// Backend is the interface all trace stores must satisfy. A trace is an
// append-only log of ticks, each stored as one vehicle row and one light row.
type Backend interface {
	// Lifecycle. Close is idempotent, safe to call without Init, and logs
	// rather than returns teardown failures.
	Init() error
	Close() error

	// Run management. StartRun assigns info.ID. OpenRun with id 0 opens
	// the most recent run.
	StartRun(info *core.RunInfo) error
	OpenRun(id uint) (*core.RunInfo, error)

	// Tick log. Both rows of a tick become visible together.
	RecordTick(t *core.Tick) error
	LoadTick(tick int64) (*core.Tick, error)
	// MaxTick returns the highest recorded tick, or 0 for an empty run.
	MaxTick() (int64, error)
}

// Exportable is an optional interface for backends that write a file
// on Close.
type Exportable interface {
	ExportedFilePath() string
}
