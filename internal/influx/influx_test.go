package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/sim"
)

func unreachable() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "limsim",
		Bucket:   "simulation",
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestConnectDisabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.True(t, errors.Is(m.Connect(context.Background()), ErrDisabled))
}

func TestTickPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := TickPoint(sim.Status{
		Mode:         "live",
		RunID:        3,
		Tick:         40,
		Running:      5,
		Pending:      2,
		EgoID:        7,
		StepDuration: 1500 * time.Microsecond,
	}, at)

	line := influxdb2_write.PointToLineProtocol(p, time.Nanosecond)
	assert.True(t, strings.HasPrefix(line, "sim_tick,mode=live,run=3 "), line)
	assert.Contains(t, line, "tick=40i")
	assert.Contains(t, line, "running=5i")
	assert.Contains(t, line, "ego_id=7i")
	assert.Contains(t, line, "step_ms=1.5")
	assert.True(t, strings.HasSuffix(line, " 1700000000000000000"), line)
}

func TestBackupWhenUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(unreachable(), zerolog.Nop(), path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Connect(ctx))
	assert.False(t, m.IsValid)

	for tick := int64(1); tick <= 3; tick++ {
		m.ObserveTick(sim.Status{Mode: "replay", RunID: 1, Tick: tick})
	}
	assert.Equal(t, uint64(3), m.Written())
	require.NoError(t, m.Close())

	lines := strings.Split(strings.TrimSpace(readBackup(t, path)), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, "sim_tick,mode=replay,run=1 "), line)
		assert.Contains(t, line, "tick="+string(rune('1'+i))+"i")
	}
}

func TestUnreachableWithoutBackupPath(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, m.Connect(ctx))

	// writes are dropped, not fatal
	m.ObserveTick(sim.Status{Tick: 1})
	assert.Zero(t, m.Written())
	assert.NoError(t, m.Close())
}
