// Package fake implements an in-memory board that records pin state.
// It backs the package tests and lets the whole control stack run off
// real hardware.
package fake

import (
	"context"
	"sync"

	"github.com/maishede/little-eighteen/components/board"
)

// A Board holds fake GPIO pins, created on first lookup.
type Board struct {
	mu   sync.Mutex
	pins map[string]*GPIOPin
}

// NewBoard returns a fake board with no pins yet.
func NewBoard() *Board {
	return &Board{pins: map[string]*GPIOPin{}}
}

// GPIOPinByName returns the named pin, creating it if needed.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.Pin(name), nil
}

// Pin is like GPIOPinByName but returns the concrete fake type so tests
// can script and inspect it.
func (b *Board) Pin(name string) *GPIOPin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pins[name]
	if !ok {
		p = &GPIOPin{}
		b.pins[name] = p
	}
	return p
}

// Close releases nothing; the fake board owns no hardware.
func (b *Board) Close(ctx context.Context) error {
	return nil
}

// A GPIOPin reads back the same set values. GetFunc, when non-nil,
// overrides Get so tests can script an echo line.
type GPIOPin struct {
	mu      sync.Mutex
	high    bool
	pwm     float64
	pwmFreq uint

	GetFunc func(ctx context.Context) (bool, error)
}

// Set sets the pin to either low or high and zeroes any duty cycle.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.high = high
	gp.pwm = 0
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	getFunc := gp.GetFunc
	gp.mu.Unlock()
	if getFunc != nil {
		return getFunc(ctx)
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}

// PWM gets the pin's duty cycle.
func (gp *GPIOPin) PWM(ctx context.Context) (float64, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.pwm, nil
}

// SetPWM sets the pin to the given duty cycle.
func (gp *GPIOPin) SetPWM(ctx context.Context, dutyCyclePct float64) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.pwm = dutyCyclePct
	return nil
}

// SetPWMFreq sets the pin's PWM frequency.
func (gp *GPIOPin) SetPWMFreq(ctx context.Context, freqHz uint) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.pwmFreq = freqHz
	return nil
}

// PWMFreq returns the last set PWM frequency.
func (gp *GPIOPin) PWMFreq() uint {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.pwmFreq
}

// High returns the pin's high/low state for assertions.
func (gp *GPIOPin) High() bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high
}

// Duty returns the pin's duty cycle for assertions.
func (gp *GPIOPin) Duty() float64 {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.pwm
}
