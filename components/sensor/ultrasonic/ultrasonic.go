// Package ultrasonic implements an HC-SR04 style ultrasonic
// rangefinder: a trigger pulse followed by timing the echo line's
// rising and falling edges. Readings pass through a median window so a
// single glitched echo cannot fake an obstacle.
package ultrasonic

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/maishede/little-eighteen/components/board"
)

// Failure sentinels. ErrNoEcho marks a transient timeout on a single
// measurement; ErrDetectionDisabled means detection is administratively
// off and no hardware was touched.
var (
	ErrNoEcho              = errors.New("ultrasonic: timed out waiting for echo edge")
	ErrDetectionDisabled   = errors.New("ultrasonic: distance detection is disabled")
	errSensorClosed        = errors.New("ultrasonic: sensor is closed")
	errMeasurementTimedOut = errors.New("ultrasonic: timed out waiting for measurement worker")
)

// Config describes an ultrasonic sensor's wiring and tuning.
type Config struct {
	TriggerPin string `json:"trigger_pin"`
	EchoPin    string `json:"echo_pin"`
	// TimeoutMs bounds the busy-wait on each echo edge. Defaults to 30,
	// roughly a 5m round trip.
	TimeoutMs uint `json:"timeout_ms,omitempty"`
	// TemperatureC feeds the speed-of-sound compensation. Defaults to 20.
	TemperatureC float64 `json:"temperature_c,omitempty"`
	// BufferSize is the median window capacity. Defaults to 5.
	BufferSize int `json:"buffer_size,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.TriggerPin == "" {
		return errors.Errorf("%s: trigger_pin is required", path)
	}
	if cfg.EchoPin == "" {
		return errors.Errorf("%s: echo_pin is required", path)
	}
	return nil
}

const (
	defaultTimeout      = 30 * time.Millisecond
	defaultTemperatureC = 20.0
	defaultBufferSize   = 5
)

type measureResult struct {
	cm  float64
	err error
}

type measureRequest struct {
	resp chan measureResult
}

// A Sensor measures forward clearance in centimeters. The trigger/echo
// protocol busy-waits on the echo line, so all hardware access runs on
// a dedicated worker goroutine; callers block only on a channel.
type Sensor struct {
	trigger board.GPIOPin
	echo    board.GPIOPin
	clk     clock.Clock

	timeout      time.Duration
	temperatureC float64
	enabled      atomic.Bool

	window     *sampleWindow
	requestCh  chan measureRequest
	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
	logger     golog.Logger
}

// NewSensor constructs the sensor, drives the trigger line low, and
// starts the measurement worker. Detection starts enabled.
func NewSensor(ctx context.Context, b board.Board, cfg Config, logger golog.Logger) (*Sensor, error) {
	if err := cfg.Validate("ultrasonic"); err != nil {
		return nil, err
	}
	trigger, err := b.GPIOPinByName(cfg.TriggerPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab trigger pin %q", cfg.TriggerPin)
	}
	echo, err := b.GPIOPinByName(cfg.EchoPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab echo pin %q", cfg.EchoPin)
	}

	timeout := defaultTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	temperature := cfg.TemperatureC
	if temperature == 0 {
		temperature = defaultTemperatureC
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	s := &Sensor{
		trigger:      trigger,
		echo:         echo,
		clk:          clock.New(),
		timeout:      timeout,
		temperatureC: temperature,
		window:       newSampleWindow(bufferSize),
		requestCh:    make(chan measureRequest),
		cancelCtx:    cancelCtx,
		cancelFunc:   cancelFunc,
		logger:       logger,
	}
	s.enabled.Store(true)

	if err := s.trigger.Set(ctx, false); err != nil {
		cancelFunc()
		return nil, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}
	s.startWorker()
	return s, nil
}

func (s *Sensor) startWorker() {
	s.workers.Add(1)
	goutils.ManagedGo(func() {
		for {
			select {
			case <-s.cancelCtx.Done():
				return
			case req := <-s.requestCh:
				req.resp <- s.measureOnce(s.cancelCtx)
			}
		}
	}, s.workers.Done)
}

// SetEnabled toggles distance detection. While disabled, Measure
// returns ErrDetectionDisabled immediately without touching hardware.
func (s *Sensor) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
}

// Enabled reports whether detection is administratively on.
func (s *Sensor) Enabled() bool {
	return s.enabled.Load()
}

// Measure triggers one raw measurement on the worker and returns the
// median of the sample window in centimeters. A timeout on either echo
// edge yields ErrNoEcho for this call only; the window keeps its prior
// samples.
func (s *Sensor) Measure(ctx context.Context) (float64, error) {
	if !s.enabled.Load() {
		return 0, ErrDetectionDisabled
	}
	req := measureRequest{resp: make(chan measureResult, 1)}
	select {
	case s.requestCh <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.cancelCtx.Done():
		return 0, errSensorClosed
	}
	select {
	case res := <-req.resp:
		return res.cm, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.clk.After(s.timeout * 4):
		return 0, errMeasurementTimedOut
	}
}

// measureOnce runs the trigger/echo protocol once. Worker only.
func (s *Sensor) measureOnce(ctx context.Context) measureResult {
	// a clean pulse needs a brief low before the 10µs high
	if err := s.trigger.Set(ctx, false); err != nil {
		return measureResult{err: errors.Wrap(err, "ultrasonic: cannot clear trigger pin")}
	}
	goutils.SelectContextOrWait(ctx, 2*time.Microsecond)
	if err := s.trigger.Set(ctx, true); err != nil {
		return measureResult{err: errors.Wrap(err, "ultrasonic: cannot raise trigger pin")}
	}
	goutils.SelectContextOrWait(ctx, 10*time.Microsecond)
	if err := s.trigger.Set(ctx, false); err != nil {
		return measureResult{err: errors.Wrap(err, "ultrasonic: cannot lower trigger pin")}
	}

	pulseStart, err := s.waitForEdge(ctx, true)
	if err != nil {
		return measureResult{err: err}
	}
	pulseEnd, err := s.waitForEdge(ctx, false)
	if err != nil {
		return measureResult{err: err}
	}

	raw := distanceFromPulse(pulseEnd.Sub(pulseStart), s.temperatureC)
	s.window.push(raw)
	median, ok := s.window.median()
	if !ok {
		return measureResult{err: ErrNoEcho}
	}
	return measureResult{cm: math.Round(median*100) / 100}
}

// waitForEdge spins on the echo line until it reaches the wanted level,
// returning the timestamp of the transition. The spin is bounded by an
// explicit deadline so a wedged line cannot hang the worker.
func (s *Sensor) waitForEdge(ctx context.Context, high bool) (time.Time, error) {
	deadline := s.clk.Now().Add(s.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}
		level, err := s.echo.Get(ctx)
		if err != nil {
			return time.Time{}, errors.Wrap(err, "ultrasonic: cannot read echo pin")
		}
		now := s.clk.Now()
		if level == high {
			return now, nil
		}
		if now.After(deadline) {
			return time.Time{}, ErrNoEcho
		}
	}
}

// distanceFromPulse converts an echo round-trip into centimeters,
// compensating the speed of sound for ambient temperature:
// 331.3 + 0.606·T m/s.
func distanceFromPulse(pulse time.Duration, temperatureC float64) float64 {
	speedOfSound := 331.3 + 0.606*temperatureC // m/s
	return pulse.Seconds() * speedOfSound / 2 * 100
}

// Close stops the measurement worker. An in-flight measurement is
// cancelled through the worker context.
func (s *Sensor) Close() error {
	s.cancelFunc()
	s.workers.Wait()
	return nil
}
