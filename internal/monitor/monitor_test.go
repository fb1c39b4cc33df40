package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/azurexth/LimSim/internal/database"
	"github.com/azurexth/LimSim/internal/model"
	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/internal/worker"
)

type fixedStatus struct {
	status sim.Status
	err    error
}

func (f fixedStatus) Status() (sim.Status, error) { return f.status, f.err }

type fixedMetrics struct{ rm metricdata.ResourceMetrics }

func (f fixedMetrics) CollectMetrics(context.Context) (metricdata.ResourceMetrics, error) {
	return f.rm, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func sampleStatus() sim.Status {
	return sim.Status{
		Mode:         "live",
		RunID:        2,
		Tick:         80,
		Running:      6,
		Pending:      1,
		EgoID:        4,
		StepDuration: 3 * time.Millisecond,
		LastPersist:  time.Millisecond,
	}
}

func TestPerformanceFromStatus(t *testing.T) {
	at := time.Unix(100, 0)
	p := PerformanceFromStatus(sampleStatus(), at)
	assert.Equal(t, uint(2), p.RunID)
	assert.Equal(t, at, p.Time)
	assert.Equal(t, int64(80), p.Tick)
	assert.Equal(t, 6, p.Running)
	assert.InDelta(t, 3.0, p.StepMs, 1e-6)
	assert.InDelta(t, 1.0, p.PersistMs, 1e-6)
}

func TestGetProgramStatusNoRun(t *testing.T) {
	s := NewService(Dependencies{})
	_, _, err := s.GetProgramStatus(context.Background())
	assert.True(t, errors.Is(err, worker.ErrNoRun))

	s = NewService(Dependencies{Status: fixedStatus{err: worker.ErrNoRun}})
	_, _, err = s.GetProgramStatus(context.Background())
	assert.True(t, errors.Is(err, worker.ErrNoRun))
}

func TestGetProgramStatusWithMetrics(t *testing.T) {
	rm := metricdata.ResourceMetrics{
		ScopeMetrics: []metricdata.ScopeMetrics{{
			Metrics: []metricdata.Metrics{{
				Name: "sim.ticks",
				Data: metricdata.Sum[int64]{DataPoints: []metricdata.DataPoint[int64]{{Value: 80}}},
			}},
		}},
	}
	s := NewService(Dependencies{Status: fixedStatus{status: sampleStatus()}, Metrics: fixedMetrics{rm: rm}})

	lines, perf, err := s.GetProgramStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"tick": 80`)
	assert.Contains(t, lines[1], `"sim.ticks": 80`)
	assert.Equal(t, int64(80), perf.Tick)
}

func TestSampleWritesFileAndRow(t *testing.T) {
	db := newTestDB(t)
	path := filepath.Join(t.TempDir(), "status.txt")
	s := NewService(Dependencies{
		DB:         db,
		Status:     fixedStatus{status: sampleStatus()},
		StatusPath: path,
	})

	require.NoError(t, s.Sample(context.Background()))
	require.NoError(t, s.Sample(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), `"mode": "live"`), "file is rewritten, not appended")

	var rows []model.RunPerformance
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, uint(2), rows[0].RunID)
	assert.Equal(t, 4, int(rows[0].EgoID))
}

func TestSampleSkipsRowBeforeRunStarts(t *testing.T) {
	db := newTestDB(t)
	st := sampleStatus()
	st.RunID = 0
	s := NewService(Dependencies{DB: db, Status: fixedStatus{status: st}})

	require.NoError(t, s.Sample(context.Background()))
	var count int64
	require.NoError(t, db.Model(&model.RunPerformance{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.txt")
	s := NewService(Dependencies{
		Status:     fixedStatus{status: sampleStatus()},
		StatusPath: path,
		Interval:   10 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start()) // second start is a no-op
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop() // idempotent
}
