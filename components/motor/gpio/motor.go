// Package gpio implements a motor driven by two direction pins and a
// PWM enable pin, the wiring used by common dual H-bridge drivers.
package gpio

import (
	"context"
	"math"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/maishede/little-eighteen/components/board"
	"github.com/maishede/little-eighteen/components/motor"
)

// Config describes how a single motor is wired.
type Config struct {
	PinA string `json:"pin_a"`
	PinB string `json:"pin_b"`
	// PinEN is the H-bridge enable pin carrying the PWM duty cycle.
	PinEN string `json:"pin_en"`
	// Calibration scales every power command, in (0, 1]. Compensates
	// motors that run hot or slow relative to the others. 0 means 1.
	Calibration float64 `json:"calibration,omitempty"`
	// Reversed inverts the direction pin pattern. The right-side wheels
	// are wired mirror-image to the left side, so an identical logical
	// direction needs the opposite pin pattern.
	Reversed  bool `json:"reversed,omitempty"`
	PWMFreqHz uint `json:"pwm_freq_hz,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.PinA == "" {
		return errors.Errorf("%s: pin_a is required", path)
	}
	if cfg.PinB == "" {
		return errors.Errorf("%s: pin_b is required", path)
	}
	if cfg.PinEN == "" {
		return errors.Errorf("%s: pin_en is required", path)
	}
	if cfg.Calibration < 0 || cfg.Calibration > 1 {
		return errors.Errorf("%s: calibration must be in [0, 1], got %v", path, cfg.Calibration)
	}
	return nil
}

// NewMotor constructs a motor on the given board. Pin lookup failures
// are fatal: a drivetrain with a missing wheel must not start.
func NewMotor(ctx context.Context, b board.Board, cfg Config, name string, logger golog.Logger) (*Motor, error) {
	if err := cfg.Validate(name); err != nil {
		return nil, err
	}
	a, err := b.GPIOPinByName(cfg.PinA)
	if err != nil {
		return nil, errors.Wrapf(err, "motor %s: cannot grab pin_a %q", name, cfg.PinA)
	}
	bPin, err := b.GPIOPinByName(cfg.PinB)
	if err != nil {
		return nil, errors.Wrapf(err, "motor %s: cannot grab pin_b %q", name, cfg.PinB)
	}
	en, err := b.GPIOPinByName(cfg.PinEN)
	if err != nil {
		return nil, errors.Wrapf(err, "motor %s: cannot grab pin_en %q", name, cfg.PinEN)
	}
	calibration := cfg.Calibration
	if calibration == 0 {
		calibration = 1
	}
	m := &Motor{
		name:        name,
		a:           a,
		b:           bPin,
		en:          en,
		reversed:    cfg.Reversed,
		calibration: calibration,
		logger:      logger,
	}
	if cfg.PWMFreqHz != 0 {
		if err := en.SetPWMFreq(ctx, cfg.PWMFreqHz); err != nil {
			return nil, errors.Wrapf(err, "motor %s: cannot set pwm frequency", name)
		}
	}
	if err := m.Stop(ctx); err != nil {
		return nil, errors.Wrapf(err, "motor %s: cannot reach safe state", name)
	}
	return m, nil
}

var _ = motor.Motor(&Motor{})

// A Motor drives one wheel through a pin pair plus a PWM enable line.
type Motor struct {
	name        string
	a, b, en    board.GPIOPin
	reversed    bool
	calibration float64
	logger      golog.Logger

	mu      sync.Mutex
	dir     motor.Direction
	lastPct float64
}

// SetDirection latches the direction pins. Forward is A high / B low;
// reversed motors swap the pattern so the wheel turns the same way.
func (m *Motor) SetDirection(ctx context.Context, d motor.Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setDirectionLocked(ctx, d)
}

func (m *Motor) setDirectionLocked(ctx context.Context, d motor.Direction) error {
	aHigh, bHigh := false, false
	switch d {
	case motor.DirectionForward:
		aHigh, bHigh = !m.reversed, m.reversed
	case motor.DirectionBackward:
		aHigh, bHigh = m.reversed, !m.reversed
	case motor.DirectionNeutral:
	default:
		return errors.Errorf("motor %s: unknown direction %d", m.name, d)
	}
	if err := multierr.Combine(
		m.a.Set(ctx, aHigh),
		m.b.Set(ctx, bHigh),
	); err != nil {
		return errors.Wrapf(err, "motor %s: cannot set direction pins", m.name)
	}
	m.dir = d
	return nil
}

// SetPower applies the calibrated duty cycle to the enable pin.
func (m *Motor) SetPower(ctx context.Context, powerPct float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setPowerLocked(ctx, powerPct)
}

func (m *Motor) setPowerLocked(ctx context.Context, powerPct float64) error {
	powerPct = math.Max(0, math.Min(powerPct, 1))
	if err := m.en.SetPWM(ctx, powerPct*m.calibration); err != nil {
		return errors.Wrapf(err, "motor %s: cannot set duty cycle", m.name)
	}
	m.lastPct = powerPct
	return nil
}

// Stop sets both direction pins low and the duty cycle to zero.
func (m *Motor) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return multierr.Combine(
		m.setDirectionLocked(ctx, motor.DirectionNeutral),
		m.setPowerLocked(ctx, 0),
	)
}

// Direction reports the last commanded direction.
func (m *Motor) Direction() motor.Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dir
}
