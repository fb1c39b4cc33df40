// Package monitor periodically samples the run status: it rewrites a status
// file, logs a summary line and stores a performance row in the trace
// database when one is available.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/gorm"

	"github.com/azurexth/LimSim/internal/logging"
	"github.com/azurexth/LimSim/internal/model"
	limotel "github.com/azurexth/LimSim/internal/otel"
	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/internal/worker"
)

// DefaultInterval is how often the monitor samples when none is configured.
const DefaultInterval = time.Second

// StatusSource reports the run status. *worker.Manager implements it.
type StatusSource interface {
	Status() (sim.Status, error)
}

// MetricsSource exposes the OTel instruments. *otel.Provider implements it.
type MetricsSource interface {
	CollectMetrics(ctx context.Context) (metricdata.ResourceMetrics, error)
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB         *gorm.DB // optional
	LogManager *logging.SlogManager
	Status     StatusSource
	Metrics    MetricsSource // optional
	StatusPath string        // optional
	Interval   time.Duration
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// PerformanceFromStatus converts a run status to a performance row.
func PerformanceFromStatus(st sim.Status, at time.Time) model.RunPerformance {
	return model.RunPerformance{
		RunID:         st.RunID,
		Time:          at,
		Mode:          st.Mode,
		Tick:          st.Tick,
		Running:       st.Running,
		Pending:       st.Pending,
		EgoID:         st.EgoID,
		Paused:        st.Paused,
		DroppedFrames: st.DroppedFrames,
		StepMs:        float32(st.StepDuration) / float32(time.Millisecond),
		PersistMs:     float32(st.LastPersist) / float32(time.Millisecond),
	}
}

// GetProgramStatus returns the status file lines and the performance row
// for the current moment.
func (s *Service) GetProgramStatus(ctx context.Context) (output []string, perf model.RunPerformance, err error) {
	if s.deps.Status == nil {
		return nil, perf, worker.ErrNoRun
	}
	st, err := s.deps.Status.Status()
	if err != nil {
		return nil, perf, err
	}
	perf = PerformanceFromStatus(st, time.Now())

	statusStr, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		statusStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	output = append(output, string(statusStr))

	if s.deps.Metrics != nil {
		rm, mErr := s.deps.Metrics.CollectMetrics(ctx)
		if mErr == nil {
			countersStr, jErr := json.MarshalIndent(limotel.Sums(rm), "", "  ")
			if jErr != nil {
				countersStr = []byte(fmt.Sprintf(`{"error": "%s"}`, jErr))
			}
			output = append(output, string(countersStr))
		} else if !errors.Is(mErr, limotel.ErrDisabled) {
			s.deps.LogManager.WriteLog("GetProgramStatus", fmt.Sprintf("Failed to collect metrics: %v", mErr), "WARN")
		}
	}

	return output, perf, nil
}

// Sample takes one reading: it rewrites the status file and stores the
// performance row.
func (s *Service) Sample(ctx context.Context) error {
	lines, perf, err := s.GetProgramStatus(ctx)
	if err != nil {
		return err
	}

	if s.deps.StatusPath != "" {
		data := []byte{}
		for _, line := range lines {
			data = append(data, line...)
			data = append(data, '\n')
		}
		if err := os.WriteFile(s.deps.StatusPath, data, 0644); err != nil {
			return fmt.Errorf("write status file: %w", err)
		}
	}

	if s.deps.DB != nil && perf.RunID != 0 {
		if err := s.deps.DB.WithContext(ctx).Create(&perf).Error; err != nil {
			return fmt.Errorf("write performance row: %w", err)
		}
	}

	s.deps.LogManager.WriteLog("monitor", fmt.Sprintf(
		"tick %d running %d pending %d ego %d step %.2fms persist %.2fms dropped %d",
		perf.Tick, perf.Running, perf.Pending, perf.EgoID, perf.StepMs, perf.PersistMs, perf.DroppedFrames,
	), "DEBUG")
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				err := s.Sample(context.Background())
				if err != nil && !errors.Is(err, worker.ErrNoRun) {
					logger.Error("Status monitor sample failed", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
