package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/azurexth/LimSim/internal/channel"
	"github.com/azurexth/LimSim/internal/config"
	"github.com/azurexth/LimSim/internal/dispatcher"
	"github.com/azurexth/LimSim/internal/handlers"
	"github.com/azurexth/LimSim/internal/influx"
	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/monitor"
	"github.com/azurexth/LimSim/internal/parser"
	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/internal/storage"
	"github.com/azurexth/LimSim/internal/stream"
	"github.com/azurexth/LimSim/internal/worker"
	"github.com/azurexth/LimSim/pkg/core"
)

// runner is a live driver or a replayer.
type runner interface {
	Start(ctx context.Context) error
	Run(ctx context.Context) error
	Close() error
	Status() sim.Status
	Context() *sim.Context
	Frames() *channel.DropOldest[core.Frame]
}

var (
	_ runner = (*sim.Driver)(nil)
	_ runner = (*sim.Replayer)(nil)
)

// session owns the services around one run: the control dispatcher and its
// handlers, the viewer stream, the optional control API, InfluxDB sink and
// status monitor.
type session struct {
	controls   *sim.Controls
	dispatcher *dispatcher.Dispatcher
	workers    *worker.Manager
	hub        *stream.Hub
	server     *handlers.Server
	influx     *influx.Manager
	monitor    *monitor.Service
	pumpDone   chan struct{}
}

// newSession wires the control path. The API server only starts when
// server.enabled is set.
func newSession(ctx context.Context) (*session, error) {
	d, err := dispatcher.New(logging.NewDispatcherLogger(ZLogger))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	s := &session{dispatcher: d}
	s.workers = worker.NewManager(worker.Dependencies{
		LogManager:    SlogManager,
		ParserService: parser.NewParser(Logger),
	}, nil)
	// the run reads the controls the handlers write
	s.controls = s.workers.Controls()
	s.workers.RegisterHandlers(d)
	Logger.Debug("Control handlers registered", "commands", d.Commands())

	s.hub = stream.NewHub(d, Logger)

	if srvCfg := config.GetServerConfig(); srvCfg.Enabled {
		svc := handlers.NewService(handlers.Dependencies{
			Commander:  d,
			Stream:     s.hub,
			LogManager: SlogManager,
		})
		srv, err := handlers.Listen(srvCfg.Listen, svc.Router())
		if err != nil {
			s.close()
			return nil, err
		}
		s.server = srv
		Logger.Info("Control API listening", "addr", srv.Addr())
	}

	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backup := filepath.Join(viper.GetString("logsDir"), "influx_backup.log.gz")
		m := influx.NewManager(influxCfg, ZLogger, backup)
		if err := m.Connect(ctx); err != nil {
			Logger.Warn("InfluxDB sink disabled", "error", err)
		} else {
			s.influx = m
		}
	}
	return s, nil
}

// observers returns the per-tick status consumers.
func (s *session) observers() []sim.Observer {
	obs := []sim.Observer{s.hub}
	if s.influx != nil {
		obs = append(obs, s.influx)
	}
	return obs
}

// execute starts r, announces it to viewers and runs it to the end.
func (s *session) execute(ctx context.Context, mode string, r runner, store storage.Backend, info func() *core.RunInfo) error {
	if err := r.Start(ctx); err != nil {
		r.Close()
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			Logger.Warn("Failed to close trace store", "error", err)
		}
	}()

	currentRun.Store(r.Context())
	defer currentRun.Store(nil)
	s.workers.Attach(r)

	if err := s.hub.Announce(mode, info()); err != nil {
		Logger.Warn("Failed to announce run", "error", err)
	}
	s.pumpDone = make(chan struct{})
	go func() {
		defer close(s.pumpDone)
		s.hub.Pump(ctx, r.Frames())
	}()

	var metrics monitor.MetricsSource
	if OTelProvider != nil {
		metrics = OTelProvider
	}
	s.monitor = monitor.NewService(monitor.Dependencies{
		DB:         storageDB(store),
		LogManager: SlogManager,
		Status:     s.workers,
		Metrics:    metrics,
		StatusPath: filepath.Join(viper.GetString("logsDir"), "status.txt"),
	})
	if err := s.monitor.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}

	err := r.Run(ctx)

	s.monitor.Stop()
	if sErr := s.monitor.Sample(context.Background()); sErr != nil && !errors.Is(sErr, worker.ErrNoRun) {
		Logger.Warn("Final status sample failed", "error", sErr)
	}

	r.Frames().Close()
	select {
	case <-s.pumpDone:
	case <-time.After(time.Second):
	}

	st := r.Status()
	Logger.Info("Run complete",
		"mode", st.Mode,
		"run", st.RunID,
		"tick", st.Tick,
		"droppedFrames", st.DroppedFrames,
		"viewerMessages", s.hub.Sent(),
	)
	return err
}

// close stops every service. Safe on a partially built session.
func (s *session) close() {
	if s.server != nil {
		if err := s.server.Shutdown(context.Background()); err != nil {
			Logger.Warn("Control API shutdown failed", "error", err)
		}
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.influx != nil {
		if err := s.influx.Close(); err != nil {
			Logger.Warn("InfluxDB close failed", "error", err)
		}
	}
	if s.dispatcher != nil {
		s.dispatcher.Close()
	}
}
