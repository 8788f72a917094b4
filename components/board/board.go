// Package board abstracts the GPIO hardware the rover's motors and
// rangefinder are wired to. All pin and PWM mutation funnels through
// these interfaces; nothing else in the module touches registers.
package board

import "context"

// A GPIOPin is a single general purpose pin on a Board. Pins double as
// PWM outputs; a duty cycle of 0 de-energizes the pin.
type GPIOPin interface {
	// Set sets the pin to either low or high.
	Set(ctx context.Context, high bool) error

	// Get gets the high/low state of the pin.
	Get(ctx context.Context) (bool, error)

	// PWM gets the pin's current duty cycle, in [0, 1].
	PWM(ctx context.Context) (float64, error)

	// SetPWM sets the pin to the given duty cycle, in [0, 1].
	SetPWM(ctx context.Context, dutyCyclePct float64) error

	// SetPWMFreq sets the pin's PWM frequency. 0 selects the board's
	// default frequency.
	SetPWMFreq(ctx context.Context, freqHz uint) error
}

// A Board owns a set of named GPIO pins.
type Board interface {
	// GPIOPinByName returns the pin with the given name. Names are
	// backend specific; the periph backend uses BCM numbers.
	GPIOPinByName(name string) (GPIOPin, error)

	// Close releases the underlying hardware.
	Close(ctx context.Context) error
}
