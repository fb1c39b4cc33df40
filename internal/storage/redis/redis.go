// Package redisstorage implements the storage.Backend interface on Redis.
//
// Layout, under a configurable prefix:
//
//	<prefix>:run:seq               run id counter
//	<prefix>:runs                  zset of run ids
//	<prefix>:run:<id>              run metadata (JSON)
//	<prefix>:run:<id>:vehicles     hash tick -> vehicle blob
//	<prefix>:run:<id>:lights       hash tick -> light blob
//	<prefix>:run:<id>:ticks        zset of recorded ticks
package redisstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/pkg/core"
	"github.com/redis/go-redis/v9"
)

const opTimeout = 5 * time.Second

// Backend implements storage.Backend on a Redis server.
type Backend struct {
	cfg    config.RedisConfig
	codec  *codec.Codec
	log    *logging.SlogManager
	client *redis.Client
	runID  uint
	closed bool
	mu     sync.Mutex
}

// New creates a new Redis storage backend. The connection is opened by Init.
func New(cfg config.RedisConfig, c *codec.Codec, logManager *logging.SlogManager) *Backend {
	if cfg.Prefix == "" {
		cfg.Prefix = "limsim"
	}
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}
	return &Backend{cfg: cfg, codec: c, log: logManager}
}

// Init connects and pings the server.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	client := redis.NewClient(&redis.Options{
		Addr:     b.cfg.Addr,
		Password: b.cfg.Password,
		DB:       b.cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to reach redis at %s: %w", b.cfg.Addr, err)
	}
	b.client = client
	b.closed = false
	b.log.WriteLog("redis:Init", fmt.Sprintf("Connected to %s", b.cfg.Addr), "INFO")
	return nil
}

// Close closes the client. Safe to call more than once.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client == nil || b.closed {
		b.closed = true
		return nil
	}
	b.closed = true
	if err := b.client.Close(); err != nil {
		b.log.WriteLog("redis:Close", fmt.Sprintf("Failed to close client: %v", err), "ERROR")
	}
	return nil
}

// StartRun allocates a run id and stores the metadata.
func (b *Backend) StartRun(info *core.RunInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.readyLocked(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	id, err := b.client.Incr(ctx, b.key("run", "seq")).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate run id: %w", err)
	}
	info.ID = uint(id)
	meta, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal run info: %w", err)
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.runKey(info.ID), meta, 0)
		pipe.ZAdd(ctx, b.key("runs"), redis.Z{Score: float64(id), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store run %d: %w", id, err)
	}
	b.runID = info.ID
	return nil
}

// OpenRun makes a recorded run current. Id 0 selects the latest run.
func (b *Backend) OpenRun(id uint) (*core.RunInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.readyLocked(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if id == 0 {
		latest, err := b.client.ZRevRangeWithScores(ctx, b.key("runs"), 0, 0).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		if len(latest) == 0 {
			return nil, fmt.Errorf("%w: no runs recorded", storage.ErrRunNotFound)
		}
		id = uint(latest[0].Score)
	}

	raw, err := b.client.Get(ctx, b.runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %d", storage.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %d: %w", id, err)
	}
	var info core.RunInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode run %d: %w", id, err)
	}
	b.runID = info.ID
	return &info, nil
}

// RecordTick writes both blobs and the tick index in one transaction.
func (b *Backend) RecordTick(t *core.Tick) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.readyLocked(); err != nil {
		return err
	}
	if b.runID == 0 {
		return storage.ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	field := strconv.FormatInt(t.Number, 10)
	err := b.client.ZScore(ctx, b.runKey(b.runID, "ticks"), field).Err()
	if err == nil {
		return fmt.Errorf("%w: %d", storage.ErrDuplicateTick, t.Number)
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to check tick %d: %w", t.Number, err)
	}

	vehicles, err := b.codec.EncodeVehicles(t.Vehicles)
	if err != nil {
		return err
	}
	lights, err := b.codec.EncodeLights(t.Lights)
	if err != nil {
		return err
	}

	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, b.runKey(b.runID, "vehicles"), field, vehicles)
		pipe.HSet(ctx, b.runKey(b.runID, "lights"), field, lights)
		pipe.ZAdd(ctx, b.runKey(b.runID, "ticks"), redis.Z{Score: float64(t.Number), Member: field})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write tick %d: %w", t.Number, err)
	}
	return nil
}

// LoadTick reads and decodes one tick.
func (b *Backend) LoadTick(tick int64) (*core.Tick, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.readyLocked(); err != nil {
		return nil, err
	}
	if b.runID == 0 {
		return nil, storage.ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	field := strconv.FormatInt(tick, 10)
	pipe := b.client.Pipeline()
	vCmd := pipe.HGet(ctx, b.runKey(b.runID, "vehicles"), field)
	lCmd := pipe.HGet(ctx, b.runKey(b.runID, "lights"), field)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load tick %d: %w", tick, err)
	}

	vBlob, vErr := vCmd.Bytes()
	lBlob, lErr := lCmd.Bytes()
	if errors.Is(vErr, redis.Nil) || errors.Is(lErr, redis.Nil) {
		return nil, fmt.Errorf("%w: %d", storage.ErrTickNotFound, tick)
	}
	if vErr != nil {
		return nil, vErr
	}
	if lErr != nil {
		return nil, lErr
	}

	vehicles, err := b.codec.DecodeVehicles(vBlob)
	if err != nil {
		return nil, fmt.Errorf("tick %d vehicles: %w", tick, err)
	}
	lights, err := b.codec.DecodeLights(lBlob)
	if err != nil {
		return nil, fmt.Errorf("tick %d lights: %w", tick, err)
	}
	return &core.Tick{Number: tick, Vehicles: vehicles, Lights: lights}, nil
}

// MaxTick returns the highest recorded tick of the current run, 0 when empty.
func (b *Backend) MaxTick() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.readyLocked(); err != nil {
		return 0, err
	}
	if b.runID == 0 {
		return 0, storage.ErrNotInitialized
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	last, err := b.client.ZRevRangeWithScores(ctx, b.runKey(b.runID, "ticks"), 0, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to query max tick: %w", err)
	}
	if len(last) == 0 {
		return 0, nil
	}
	return int64(last[0].Score), nil
}

func (b *Backend) readyLocked() error {
	if b.client == nil || b.closed {
		return storage.ErrNotInitialized
	}
	return nil
}

func (b *Backend) key(parts ...string) string {
	k := b.cfg.Prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (b *Backend) runKey(id uint, parts ...string) string {
	return b.key(append([]string{"run", strconv.FormatUint(uint64(id), 10)}, parts...)...)
}

var _ storage.Backend = (*Backend)(nil)
