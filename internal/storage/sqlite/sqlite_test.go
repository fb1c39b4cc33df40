package sqlitestorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/azurexth/LimSim/internal/codec"
	"github.com/azurexth/LimSim/internal/database"
	"github.com/azurexth/LimSim/internal/storage"
	gormstorage "github.com/azurexth/LimSim/internal/storage/gorm"
	"github.com/azurexth/LimSim/internal/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		b, err := New(Config{Path: filepath.Join(t.TempDir(), "trace.db")}, codec.MustNew(codec.CompressionSnappy), nil)
		require.NoError(t, err)
		return b
	})
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(Config{}, codec.MustNew(codec.CompressionNone), nil)
	assert.Error(t, err)
}

func TestFileTraceReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trace.db")
	c := codec.MustNew(codec.CompressionZstd)

	b, err := New(Config{Path: path}, c, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.StartRun(storagetest.SampleRun()))
	require.NoError(t, b.RecordTick(storagetest.SampleTick()))
	assert.Equal(t, path, b.ExportedFilePath())
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	r, err := New(Config{Path: path}, c, nil)
	require.NoError(t, err)
	require.NoError(t, r.Init())
	defer r.Close()

	info, err := r.OpenRun(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Seed)

	last, err := r.MaxTick()
	require.NoError(t, err)
	assert.Equal(t, int64(42), last)

	got, err := r.LoadTick(42)
	require.NoError(t, err)
	assert.Equal(t, storagetest.SampleTick(), got)
}

func TestInMemoryDumpsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	c := codec.MustNew(codec.CompressionZstd)

	b, err := New(Config{Path: path, DumpInterval: time.Hour}, c, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	require.NoError(t, b.StartRun(storagetest.SampleRun()))
	require.NoError(t, b.RecordTick(storagetest.SampleTick()))
	require.NoError(t, b.Close())

	db, err := database.GetSqliteDBStandalone(path)
	require.NoError(t, err)
	r := gormstorage.New(gormstorage.Dependencies{DB: db, Codec: c})
	require.NoError(t, r.Init())
	defer r.Close()

	_, err = r.OpenRun(0)
	require.NoError(t, err)
	got, err := r.LoadTick(42)
	require.NoError(t, err)
	assert.Len(t, got.Vehicles, 2)
}
