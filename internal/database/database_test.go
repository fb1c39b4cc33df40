package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/azurexth/LimSim/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteFileMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	db, err := GetSqliteDBStandalone(path)
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.VehicleFrame{RunID: 1, Tick: 1, Info: []byte("x")}).Error)

	out := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, DumpMemoryDBToDisk(db, out))
	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, out))

	disk, err := GetSqliteDBStandalone(out)
	require.NoError(t, err)
	var count int64
	require.NoError(t, disk.Model(&model.VehicleFrame{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	diskSQL, _ := disk.DB()
	diskSQL.Close()
}

func TestDumpMemoryDBToDiskNoPath(t *testing.T) {
	assert.Error(t, DumpMemoryDBToDisk(nil, ""))
}
