// Package motor defines the interface a single wheel motor exposes to
// the drivetrain.
package motor

import "context"

// Direction is the commanded rotation of a wheel.
type Direction int

// The three states a wheel can be commanded into. Neutral leaves the
// wheel free-wheeling; mecanum diagonals rely on it.
const (
	DirectionNeutral Direction = iota
	DirectionForward
	DirectionBackward
)

// String implements fmt.Stringer for logs.
func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	case DirectionNeutral:
		return "neutral"
	default:
		return "unknown"
	}
}

// A Motor is a single direction-and-power controlled wheel motor.
type Motor interface {
	// SetDirection latches the wheel's direction pins.
	SetDirection(ctx context.Context, d Direction) error

	// SetPower applies a power percentage in [0, 1]. The motor scales
	// it by its calibration multiplier before driving the PWM channel.
	SetPower(ctx context.Context, powerPct float64) error

	// Stop sets both direction pins low and the duty cycle to zero.
	// Safe to call from any state.
	Stop(ctx context.Context) error

	// Direction reports the last commanded direction.
	Direction() Direction
}
