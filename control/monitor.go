package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	goutils "go.viam.com/utils"
)

// A DistanceSource yields clearance samples in centimeters. The
// ultrasonic sensor satisfies it; any error (timeout, detection
// disabled) means the tick has no usable sample.
type DistanceSource interface {
	Measure(ctx context.Context) (float64, error)
}

// A SpeedSource reports the current logical speed percentage.
type SpeedSource interface {
	Speed() int
}

// MonitorOptions tunes the safety monitor's policy.
type MonitorOptions struct {
	// PollInterval is the loop period. Defaults to 100ms.
	PollInterval time.Duration
	// BaseDistanceCm is the threshold at speed 0. Defaults to 10.
	BaseDistanceCm float64
	// SpeedFactorCmPerPct scales the threshold with speed so faster
	// motion triggers avoidance proportionally earlier. Defaults to 0.4.
	SpeedFactorCmPerPct float64
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// A Monitor polls the rangefinder and injects a priority stop through
// the dispatcher whenever clearance drops below the speed-scaled
// threshold.
type Monitor struct {
	disp   *Dispatcher
	sensor DistanceSource
	speed  SpeedSource
	clk    clock.Clock
	logger golog.Logger

	interval     time.Duration
	baseCm       float64
	factorPerPct float64

	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
	startOnce  sync.Once
}

// NewMonitor constructs a monitor bound to the dispatcher whose queue
// it preempts. It shares the dispatcher's grace period: while a back
// maneuver's suppression window is open, ticks are skipped entirely.
func NewMonitor(disp *Dispatcher, sensor DistanceSource, speed SpeedSource, opts MonitorOptions, logger golog.Logger) *Monitor {
	clk := opts.Clock
	if clk == nil {
		clk = disp.clk
	}
	interval := opts.PollInterval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	baseCm := opts.BaseDistanceCm
	if baseCm == 0 {
		baseCm = DefaultBaseDistance
	}
	factor := opts.SpeedFactorCmPerPct
	if factor == 0 {
		factor = DefaultSpeedFactor
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Monitor{
		disp:         disp,
		sensor:       sensor,
		speed:        speed,
		clk:          clk,
		logger:       logger,
		interval:     interval,
		baseCm:       baseCm,
		factorPerPct: factor,
		cancelCtx:    cancelCtx,
		cancelFunc:   cancelFunc,
	}
}

// Start launches the polling loop.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.workers.Add(1)
		goutils.ManagedGo(func() {
			m.run(m.cancelCtx)
		}, m.workers.Done)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// Threshold returns the clearance below which the monitor stops the
// rover at the given speed.
func (m *Monitor) Threshold(speedPct int) float64 {
	return m.baseCm + float64(speedPct)*m.factorPerPct
}

// tick performs one safety evaluation. While the grace period is
// active the tick does nothing at all, measurement included. A failed
// measurement is transient: log and wait for the next tick.
func (m *Monitor) tick(ctx context.Context) {
	if m.disp.grace.Active() {
		return
	}
	dist, err := m.sensor.Measure(ctx)
	if err != nil {
		m.logger.Debugw("no distance sample this tick", "error", err)
		return
	}
	threshold := m.Threshold(m.speed.Speed())
	if dist > 0 && dist < threshold {
		m.logger.Warnw("obstacle detected, submitting stop",
			"distance_cm", dist, "threshold_cm", threshold)
		if err := m.disp.Submit(string(Stop)); err != nil {
			m.logger.Errorw("failed to submit stop", "error", err)
		}
	}
}

// Close stops the polling loop and waits for an in-flight tick.
func (m *Monitor) Close() error {
	m.cancelFunc()
	m.workers.Wait()
	return nil
}
