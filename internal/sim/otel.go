package sim

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/azurexth/LimSim/internal/sim"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// instruments are the driver's OTel metrics. They are no-ops unless a
// global meter provider has been installed.
type instruments struct {
	mode    attribute.KeyValue
	ticks   metric.Int64Counter
	dropped metric.Int64Counter
	persist metric.Float64Histogram
	running metric.Int64Gauge
}

func newInstruments(mode string) (*instruments, error) {
	m := meter()
	ins := &instruments{mode: attribute.String("mode", mode)}

	var err error
	ins.ticks, err = m.Int64Counter(
		"sim.ticks",
		metric.WithDescription("Total ticks stepped"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	ins.dropped, err = m.Int64Counter(
		"sim.frames.dropped",
		metric.WithDescription("Frames evicted from the render queue before being consumed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	ins.persist, err = m.Float64Histogram(
		"sim.persist.duration",
		metric.WithDescription("Time spent writing one tick to the trace store"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating persist histogram: %w", err)
	}

	ins.running, err = m.Int64Gauge(
		"sim.vehicles.running",
		metric.WithDescription("Vehicles currently on the network"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating running gauge: %w", err)
	}

	return ins, nil
}

func (ins *instruments) recordStep(ctx context.Context, running int, droppedDelta uint64) {
	attrs := metric.WithAttributes(ins.mode)
	ins.ticks.Add(ctx, 1, attrs)
	ins.running.Record(ctx, int64(running), attrs)
	if droppedDelta > 0 {
		ins.dropped.Add(ctx, int64(droppedDelta), attrs)
	}
}
