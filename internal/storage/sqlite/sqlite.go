// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend via composition. A trace is either written
// straight to a file, or kept in an in-memory database that is dumped to
// the file via VACUUM INTO on an interval and once more on close.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/database"
	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/storage"
	gormstorage "github.com/azurexth/LimSim/internal/storage/gorm"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string        // trace file
	DumpInterval time.Duration // > 0 selects in-memory mode with periodic dumps
}

func (c Config) inMemory() bool {
	return c.DumpInterval > 0
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db        *gorm.DB
	cfg       Config
	log       *logging.SlogManager
	stopChan  chan struct{}
	stopOnce  sync.Once
	loopOnce  sync.Once
	looping   bool
	loopDone  chan struct{}
	dumpMutex sync.Mutex
}

// New creates a new SQLite storage backend.
func New(cfg Config, c *codec.Codec, logManager *logging.SlogManager) (*Backend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite trace path not set")
	}
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	dsn := cfg.Path
	if cfg.inMemory() {
		dsn = ""
	}
	db, err := database.GetSqliteDBStandalone(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:         db,
		Codec:      c,
		LogManager: logManager,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	b.loopOnce.Do(func() {
		if b.cfg.inMemory() {
			b.looping = true
			go b.dumpLoop()
		}
	})
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the
// embedded GORM backend. Safe to call more than once.
func (b *Backend) Close() error {
	first := false
	b.stopOnce.Do(func() {
		first = true
		close(b.stopChan)
	})
	if !first {
		return nil
	}

	b.loopOnce.Do(func() {})
	if b.looping {
		select {
		case <-b.loopDone:
		case <-time.After(5 * time.Second):
		}
		b.dump()
	}
	return b.Backend.Close()
}

// ExportedFilePath returns the trace file.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.Path
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
func (b *Backend) dumpLoop() {
	defer close(b.loopDone)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.dump()
		}
	}
}

func (b *Backend) dump() {
	b.dumpMutex.Lock()
	defer b.dumpMutex.Unlock()

	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.Path); err != nil {
		b.log.WriteLog("sqlite:dump", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
		return
	}
	b.log.WriteLog("sqlite:dump", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
}

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Exportable = (*Backend)(nil)
)
