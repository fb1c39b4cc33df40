// Package gormstorage implements storage.Backend on any GORM dialect. The
// sqlite and postgres backends wrap it by composition and only own the
// connection setup.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/database"
	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/model"
	"github.com/azurexth/LimSim/internal/model/convert"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/pkg/core"
	"gorm.io/gorm"
)

// Dependencies holds everything the backend needs from its owner.
type Dependencies struct {
	DB         *gorm.DB
	Codec      *codec.Codec
	LogManager *logging.SlogManager
}

// Backend implements storage.Backend on a *gorm.DB.
type Backend struct {
	deps   Dependencies
	runID  uint
	ready  bool
	closed bool
	mu     sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.deps.DB == nil {
		return fmt.Errorf("%w: no database connection", storage.ErrNotInitialized)
	}
	b.deps.LogManager.WriteLog("gorm:Init", "Migrating schema", "DEBUG")
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.ready = true
	b.closed = false
	return nil
}

// Close releases the connection. Errors are logged, not returned.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || b.deps.DB == nil {
		b.closed = true
		return nil
	}
	b.closed = true
	b.ready = false

	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		b.deps.LogManager.WriteLog("gorm:Close", fmt.Sprintf("Failed to access sql interface: %v", err), "ERROR")
		return nil
	}
	if err := sqlDB.Close(); err != nil {
		b.deps.LogManager.WriteLog("gorm:Close", fmt.Sprintf("Failed to close database: %v", err), "ERROR")
	}
	return nil
}

// StartRun inserts the run row and makes it current.
func (b *Backend) StartRun(info *core.RunInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return storage.ErrNotInitialized
	}

	run, err := convert.CoreToRun(info)
	if err != nil {
		return err
	}
	if err := b.deps.DB.Create(&run).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	info.ID = run.ID
	b.runID = run.ID
	return nil
}

// OpenRun makes a recorded run current. Id 0 selects the latest run.
func (b *Backend) OpenRun(id uint) (*core.RunInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		return nil, storage.ErrNotInitialized
	}

	var run model.Run
	q := b.deps.DB
	var err error
	if id == 0 {
		err = q.Order("id desc").First(&run).Error
	} else {
		err = q.First(&run, id).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", storage.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	b.runID = run.ID
	return convert.RunToCore(run), nil
}

// RecordTick writes both rows of a tick in one transaction.
func (b *Backend) RecordTick(t *core.Tick) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || b.runID == 0 {
		return storage.ErrNotInitialized
	}

	vf, lf, err := convert.TickToFrames(b.runID, t, b.deps.Codec)
	if err != nil {
		return err
	}

	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.VehicleFrame{}).
			Where("run_id = ? AND tick = ?", b.runID, t.Number).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check tick %d: %w", t.Number, err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %d", storage.ErrDuplicateTick, t.Number)
		}
		if err := tx.Create(&vf).Error; err != nil {
			return fmt.Errorf("failed to write vehicle frame %d: %w", t.Number, err)
		}
		if err := tx.Create(&lf).Error; err != nil {
			return fmt.Errorf("failed to write light frame %d: %w", t.Number, err)
		}
		return nil
	})
}

// LoadTick reads and decodes both rows of a tick.
func (b *Backend) LoadTick(tick int64) (*core.Tick, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || b.runID == 0 {
		return nil, storage.ErrNotInitialized
	}

	var vf model.VehicleFrame
	var lf model.LightFrame
	err := b.deps.DB.Where("run_id = ? AND tick = ?", b.runID, tick).First(&vf).Error
	if err == nil {
		err = b.deps.DB.Where("run_id = ? AND tick = ?", b.runID, tick).First(&lf).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", storage.ErrTickNotFound, tick)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tick %d: %w", tick, err)
	}
	return convert.FramesToTick(vf, lf, b.deps.Codec)
}

// MaxTick returns the highest recorded tick of the current run.
func (b *Backend) MaxTick() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready || b.runID == 0 {
		return 0, storage.ErrNotInitialized
	}

	var last int64
	err := b.deps.DB.Model(&model.VehicleFrame{}).
		Where("run_id = ?", b.runID).
		Select("COALESCE(MAX(tick), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, fmt.Errorf("failed to query max tick: %w", err)
	}
	return last, nil
}

var _ storage.Backend = (*Backend)(nil)
