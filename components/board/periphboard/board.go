// Package periphboard implements the board interfaces on top of
// periph.io, for Raspberry Pi class hosts. Pin names are BCM numbers
// (or any name periph's registry resolves).
package periphboard

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/maishede/little-eighteen/components/board"
)

const defaultPWMFreqHz = 100

// A Board hands out periph-backed GPIO pins.
type Board struct {
	mu   sync.Mutex
	pins map[string]*pin
}

// NewBoard initializes the periph host drivers and returns a board.
// Failure here is fatal for the caller; nothing can run without pins.
func NewBoard() (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}
	return &Board{pins: map[string]*pin{}}, nil
}

// GPIOPinByName resolves a pin through periph's registry.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pins[name]; ok {
		return p, nil
	}
	io := gpioreg.ByName(name)
	if io == nil {
		return nil, errors.Errorf("no GPIO pin named %q", name)
	}
	p := &pin{io: io, freqHz: defaultPWMFreqHz}
	b.pins[name] = p
	return p, nil
}

// Close halts every pin the board handed out.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for _, p := range b.pins {
		err = multierr.Combine(err, p.io.Halt())
	}
	return err
}

type pin struct {
	mu     sync.Mutex
	io     gpio.PinIO
	freqHz uint
	duty   float64
	asIn   bool
}

func (p *pin) Set(ctx context.Context, high bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asIn = false
	p.duty = 0
	return p.io.Out(gpio.Level(high))
}

func (p *pin) Get(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.asIn {
		if err := p.io.In(gpio.PullDown, gpio.NoEdge); err != nil {
			return false, errors.Wrapf(err, "cannot configure pin %q as input", p.io.Name())
		}
		p.asIn = true
	}
	return p.io.Read() == gpio.High, nil
}

func (p *pin) PWM(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty, nil
}

func (p *pin) SetPWM(ctx context.Context, dutyCyclePct float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asIn = false
	if dutyCyclePct < 0 {
		dutyCyclePct = 0
	} else if dutyCyclePct > 1 {
		dutyCyclePct = 1
	}
	p.duty = dutyCyclePct
	duty := gpio.Duty(float64(gpio.DutyMax) * dutyCyclePct)
	freq := physic.Frequency(p.freqHz) * physic.Hertz
	return p.io.PWM(duty, freq)
}

func (p *pin) SetPWMFreq(ctx context.Context, freqHz uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if freqHz == 0 {
		freqHz = defaultPWMFreqHz
	}
	p.freqHz = freqHz
	return nil
}
