// Package postgres implements the storage.Backend interface on PostgreSQL.
// Reads and run bookkeeping go through the GORM backend. By default every
// tick is committed before RecordTick returns; a positive FlushInterval
// switches to write-behind batches instead.
package postgres

import (
	"fmt"
	"sync"
	"time"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/database"
	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/model"
	"github.com/azurexth/LimSim/internal/model/convert"
	"github.com/azurexth/LimSim/internal/queue"
	"github.com/azurexth/LimSim/internal/storage"
	gormstorage "github.com/azurexth/LimSim/internal/storage/gorm"
	"github.com/azurexth/LimSim/pkg/core"

	"gorm.io/gorm"
)

const batchSize = 500

// Dependencies holds all dependencies for the Postgres storage backend.
// When DB is nil, Init connects using the db.* configuration keys.
//
// FlushInterval > 0 enables write-behind: RecordTick only queues the rows
// and a background writer commits them in batches. A tick is then not
// durable when RecordTick returns, and a failed batch is reported by the
// next RecordTick. Leave it zero for one committed write per tick.
type Dependencies struct {
	DB            *gorm.DB
	Codec         *codec.Codec
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
}

type tickRows struct {
	vehicles model.VehicleFrame
	lights   model.LightFrame
}

// Backend implements storage.Backend.
type Backend struct {
	deps     Dependencies
	inner    *gormstorage.Backend
	rows     *queue.Queue[tickRows]
	runID    uint
	queued   map[int64]struct{}
	flushErr error
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.Mutex // guards runID, queued, flushErr, closed
	flushMu  sync.Mutex
	closed   bool
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps:   deps,
		rows:   queue.New[tickRows](),
		queued: make(map[int64]struct{}),
	}
}

// WriteBehind reports whether ticks are batched.
func (b *Backend) WriteBehind() bool {
	return b.deps.FlushInterval > 0
}

// Init connects if needed, migrates the schema and starts the writer when
// write-behind is enabled.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDBStandalone()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
	}

	inner := gormstorage.New(gormstorage.Dependencies{
		DB:         b.deps.DB,
		Codec:      b.deps.Codec,
		LogManager: b.deps.LogManager,
	})
	if err := inner.Init(); err != nil {
		return err
	}
	b.inner = inner
	b.deps.LogManager.WriteLog("postgres:Init", "Database setup complete", "INFO")

	if b.WriteBehind() {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.writer()
	}
	return nil
}

// Close stops the writer, flushes what is left and closes the connection.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.inner == nil || b.closed {
		b.closed = true
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
	}
	if err := b.Flush(); err != nil {
		b.deps.LogManager.WriteLog("postgres:Close", fmt.Sprintf("Final flush failed, %d ticks not written: %v", b.Pending(), err), "ERROR")
	}
	return b.inner.Close()
}

// StartRun flushes the previous run and starts a new one.
func (b *Backend) StartRun(info *core.RunInfo) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := b.Flush(); err != nil {
		return err
	}
	if err := b.inner.StartRun(info); err != nil {
		return err
	}
	b.switchRun(info.ID)
	return nil
}

// OpenRun flushes pending rows and opens a recorded run.
func (b *Backend) OpenRun(id uint) (*core.RunInfo, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	info, err := b.inner.OpenRun(id)
	if err != nil {
		return nil, err
	}
	b.switchRun(info.ID)
	return info, nil
}

// RecordTick writes both rows of the tick in one transaction. With
// write-behind it queues them instead, and returns the error of a failed
// background batch until a later flush succeeds.
func (b *Backend) RecordTick(t *core.Tick) error {
	if err := b.ready(); err != nil {
		return err
	}
	if !b.WriteBehind() {
		return b.inner.RecordTick(t)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.runID == 0 {
		return storage.ErrNotInitialized
	}
	if b.flushErr != nil {
		return fmt.Errorf("previous batch not written: %w", b.flushErr)
	}
	if _, dup := b.queued[t.Number]; dup {
		return fmt.Errorf("%w: %d", storage.ErrDuplicateTick, t.Number)
	}

	vf, lf, err := convert.TickToFrames(b.runID, t, b.deps.Codec)
	if err != nil {
		return err
	}
	b.queued[t.Number] = struct{}{}
	b.rows.Push(tickRows{vehicles: vf, lights: lf})
	return nil
}

// LoadTick flushes pending rows and reads the tick back.
func (b *Backend) LoadTick(tick int64) (*core.Tick, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.inner.LoadTick(tick)
}

// MaxTick flushes pending rows and returns the highest recorded tick.
func (b *Backend) MaxTick() (int64, error) {
	if err := b.ready(); err != nil {
		return 0, err
	}
	if err := b.Flush(); err != nil {
		return 0, err
	}
	return b.inner.MaxTick()
}

// Flush writes every queued tick in a single transaction. On failure the
// batch goes back to the head of the queue, so nothing is dropped.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	items := b.rows.GetAndEmpty()
	if len(items) == 0 {
		return nil
	}

	vehicles := make([]model.VehicleFrame, len(items))
	lights := make([]model.LightFrame, len(items))
	for i, it := range items {
		vehicles[i] = it.vehicles
		lights[i] = it.lights
	}

	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&vehicles, batchSize).Error; err != nil {
			return fmt.Errorf("failed to write vehicle frames: %w", err)
		}
		if err := tx.CreateInBatches(&lights, batchSize).Error; err != nil {
			return fmt.Errorf("failed to write light frames: %w", err)
		}
		return nil
	})

	b.mu.Lock()
	b.flushErr = err
	b.mu.Unlock()

	if err != nil {
		b.rows.PushFront(items...)
		b.deps.LogManager.WriteLog("postgres:Flush", fmt.Sprintf("Batch of %d ticks kept for retry: %v", len(items), err), "ERROR")
		return err
	}
	b.deps.LogManager.WriteLog("postgres:Flush", fmt.Sprintf("Saved %d ticks", len(items)), "DEBUG")
	return nil
}

// DB returns the connection. Nil before Init when none was injected.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Pending returns the number of ticks waiting to be written.
func (b *Backend) Pending() int {
	return b.rows.Len()
}

func (b *Backend) writer() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}

func (b *Backend) ready() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inner == nil || b.closed {
		return storage.ErrNotInitialized
	}
	return nil
}

func (b *Backend) switchRun(id uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.runID = id
	b.queued = make(map[int64]struct{})
}

var _ storage.Backend = (*Backend)(nil)
