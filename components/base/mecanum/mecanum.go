// Package mecanum implements the four-wheel mecanum drivetrain: named
// motion primitives realized as per-wheel direction assignments plus a
// single logical speed shared by all wheels.
package mecanum

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/maishede/little-eighteen/components/motor"
)

// Speed bounds for the logical speed percentage. Below MinSpeed the
// motors stall without moving the chassis, so setters clamp to it.
const (
	MinSpeed = 20
	MaxSpeed = 100
)

// DefaultSpeed is used when no persisted preference is available.
const DefaultSpeed = 50

// Wheels names the four motors of a base.
type Wheels struct {
	LeftFront  motor.Motor
	LeftBack   motor.Motor
	RightFront motor.Motor
	RightBack  motor.Motor
}

// A Base coordinates the four wheel motors. One mutex serializes every
// motion mutation so a Stop can never interleave with a half-applied
// primitive from another goroutine.
type Base struct {
	mu     sync.Mutex
	motors [numWheels]motor.Motor
	speed  int
	logger golog.Logger
}

// NewBase wires a drivetrain from four constructed motors. The initial
// speed is clamped into [MinSpeed, MaxSpeed].
func NewBase(ctx context.Context, wheels Wheels, speed int, logger golog.Logger) (*Base, error) {
	motors := [numWheels]motor.Motor{
		LeftFront:  wheels.LeftFront,
		LeftBack:   wheels.LeftBack,
		RightFront: wheels.RightFront,
		RightBack:  wheels.RightBack,
	}
	for w, m := range motors {
		if m == nil {
			return nil, errors.Errorf("mecanum: missing motor for wheel %s", Wheel(w))
		}
	}
	b := &Base{motors: motors, speed: clampSpeed(speed, logger), logger: logger}
	if err := b.Stop(ctx); err != nil {
		return nil, errors.Wrap(err, "mecanum: cannot reach safe state")
	}
	return b, nil
}

func clampSpeed(pct int, logger golog.Logger) int {
	clamped := pct
	if clamped < MinSpeed {
		clamped = MinSpeed
	} else if clamped > MaxSpeed {
		clamped = MaxSpeed
	}
	if clamped != pct && logger != nil {
		logger.Debugw("speed clamped", "requested", pct, "applied", clamped)
	}
	return clamped
}

// run applies a per-wheel direction table at the current speed.
func (b *Base) run(ctx context.Context, state wheelState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	power := float64(b.speed) / 100.0
	var err error
	for w, m := range b.motors {
		dir := state[w]
		err = multierr.Combine(err, m.SetDirection(ctx, dir))
		if dir == neutral {
			err = multierr.Combine(err, m.SetPower(ctx, 0))
		} else {
			err = multierr.Combine(err, m.SetPower(ctx, power))
		}
	}
	if err != nil {
		// a half-applied primitive is worse than no motion
		return multierr.Combine(err, b.stopLocked(ctx))
	}
	return nil
}

// MoveForward drives all four wheels forward.
func (b *Base) MoveForward(ctx context.Context) error { return b.run(ctx, forwardState) }

// MoveBack drives all four wheels backward.
func (b *Base) MoveBack(ctx context.Context) error { return b.run(ctx, backState) }

// MoveLeft translates the chassis left without rotating.
func (b *Base) MoveLeft(ctx context.Context) error { return b.run(ctx, leftState) }

// MoveRight translates the chassis right without rotating.
func (b *Base) MoveRight(ctx context.Context) error { return b.run(ctx, rightState) }

// TurnLeft rotates the chassis in place, counterclockwise.
func (b *Base) TurnLeft(ctx context.Context) error { return b.run(ctx, turnLeftState) }

// TurnRight rotates the chassis in place, clockwise.
func (b *Base) TurnRight(ctx context.Context) error { return b.run(ctx, turnRightState) }

// MoveLeftForward translates diagonally toward the front-left.
func (b *Base) MoveLeftForward(ctx context.Context) error { return b.run(ctx, leftForwardState) }

// MoveRightForward translates diagonally toward the front-right.
func (b *Base) MoveRightForward(ctx context.Context) error { return b.run(ctx, rightForwardState) }

// MoveLeftBack translates diagonally toward the back-left.
func (b *Base) MoveLeftBack(ctx context.Context) error { return b.run(ctx, leftBackState) }

// MoveRightBack translates diagonally toward the back-right.
func (b *Base) MoveRightBack(ctx context.Context) error { return b.run(ctx, rightBackState) }

// Stop sets every direction pin low and every duty cycle to zero.
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopLocked(ctx)
}

func (b *Base) stopLocked(ctx context.Context) error {
	var err error
	for _, m := range b.motors {
		err = multierr.Combine(err, m.Stop(ctx))
	}
	return err
}

// SetWheel drives a single wheel, for bench diagnostics.
func (b *Base) SetWheel(ctx context.Context, w Wheel, d motor.Direction) error {
	if w < 0 || w >= numWheels {
		return errors.Errorf("mecanum: unknown wheel %d", w)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.motors[w]
	power := float64(b.speed) / 100.0
	if d == neutral {
		power = 0
	}
	return multierr.Combine(
		m.SetDirection(ctx, d),
		m.SetPower(ctx, power),
	)
}

// SetSpeed clamps and stores the logical speed, then re-applies the
// duty cycle to whichever wheels are currently energized.
func (b *Base) SetSpeed(ctx context.Context, pct int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speed = clampSpeed(pct, b.logger)
	power := float64(b.speed) / 100.0
	var err error
	for _, m := range b.motors {
		if m.Direction() == neutral {
			continue
		}
		err = multierr.Combine(err, m.SetPower(ctx, power))
	}
	return err
}

// Speed returns the current logical speed percentage.
func (b *Base) Speed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// IsMoving reports whether any wheel has a non-neutral direction.
func (b *Base) IsMoving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.motors {
		if m.Direction() != neutral {
			return true
		}
	}
	return false
}
