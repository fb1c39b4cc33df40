package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/internal/storage/memory"
	pgstorage "github.com/azurexth/LimSim/internal/storage/postgres"
	redisstorage "github.com/azurexth/LimSim/internal/storage/redis"
	sqlitestorage "github.com/azurexth/LimSim/internal/storage/sqlite"
	"gorm.io/gorm"
)

// Storage backend names accepted by storage.type and --storage.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// ErrTraceNotFound is returned when replaying a sqlite trace file that does
// not exist.
var ErrTraceNotFound = errors.New("trace file not found")

// dbBackend is implemented by the gorm based backends.
type dbBackend interface {
	DB() *gorm.DB
}

// createStorageBackend builds the trace store selected by storageCfg. path is
// the sqlite trace file and is ignored by the other backends.
func createStorageBackend(storageCfg config.StorageConfig, path string) (storage.Backend, error) {
	comp, err := codec.ParseCompression(storageCfg.Compression)
	if err != nil {
		return nil, err
	}
	c, err := codec.New(comp)
	if err != nil {
		return nil, err
	}

	switch storageCfg.Type {
	case StoragePostgres:
		Logger.Info("Postgres storage backend selected", "flushInterval", storageCfg.Postgres.FlushInterval)
		return pgstorage.New(pgstorage.Dependencies{
			Codec:         c,
			LogManager:    SlogManager,
			FlushInterval: storageCfg.Postgres.FlushInterval,
		}), nil

	case StorageRedis:
		Logger.Info("Redis storage backend selected", "addr", storageCfg.Redis.Addr)
		return redisstorage.New(storageCfg.Redis, c, SlogManager), nil

	case StorageMemory:
		Logger.Info("Memory storage backend selected")
		return memory.New(storageCfg.Memory, c, Logger), nil

	case StorageSQLite, "":
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			Path:         path,
			DumpInterval: storageCfg.SQLite.DumpInterval,
		}, c, SlogManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend selected", "path", path)
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// openReplayStorage builds the store a recorded run is read from. A sqlite
// trace must already exist, and the memory backend holds nothing to replay.
func openReplayStorage(storageCfg config.StorageConfig, trace string) (storage.Backend, error) {
	switch storageCfg.Type {
	case StorageMemory:
		return nil, fmt.Errorf("cannot replay from the %s backend", StorageMemory)
	case StorageSQLite, "":
		if trace == "" {
			return nil, fmt.Errorf("--trace is required for the %s backend", StorageSQLite)
		}
		if _, err := os.Stat(trace); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrTraceNotFound, trace)
		}
		// replays read the file directly
		storageCfg.SQLite.DumpInterval = 0
	}
	return createStorageBackend(storageCfg, trace)
}

// storageDB returns the database behind backend, or nil for stores without
// one.
func storageDB(backend storage.Backend) *gorm.DB {
	if b, ok := backend.(dbBackend); ok {
		return b.DB()
	}
	return nil
}
