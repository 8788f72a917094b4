package mecanum

import "github.com/maishede/little-eighteen/components/motor"

// Wheel identifies one of the four wheel positions. The order is fixed
// and shared by every direction table below.
type Wheel int

// Wheel positions, viewed from above with the rover facing up.
const (
	LeftFront Wheel = iota
	LeftBack
	RightFront
	RightBack
	numWheels
)

// String implements fmt.Stringer for logs.
func (w Wheel) String() string {
	switch w {
	case LeftFront:
		return "left_front"
	case LeftBack:
		return "left_back"
	case RightFront:
		return "right_front"
	case RightBack:
		return "right_back"
	default:
		return "unknown"
	}
}

// wheelState is a per-wheel direction assignment, indexed by Wheel.
type wheelState [numWheels]motor.Direction

const (
	fwd     = motor.DirectionForward
	back    = motor.DirectionBackward
	neutral = motor.DirectionNeutral
)

// Mecanum direction tables. Lateral motion crosses the wheel
// directions; the diagonals deliberately leave the two off-axis wheels
// neutral instead of energizing all four.
var (
	forwardState      = wheelState{fwd, fwd, fwd, fwd}
	backState         = wheelState{back, back, back, back}
	leftState         = wheelState{back, fwd, fwd, back}
	rightState        = wheelState{fwd, back, back, fwd}
	turnLeftState     = wheelState{back, back, fwd, fwd}
	turnRightState    = wheelState{fwd, fwd, back, back}
	leftForwardState  = wheelState{neutral, fwd, fwd, neutral}
	rightForwardState = wheelState{fwd, neutral, neutral, fwd}
	leftBackState     = wheelState{back, neutral, neutral, back}
	rightBackState    = wheelState{neutral, back, back, neutral}
)
