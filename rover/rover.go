// Package rover assembles the control core: board pins into motors,
// motors into the mecanum base, the rangefinder, and the dispatcher
// plus safety monitor loops on top. Hosting layers (web, voice, LLM
// tools) talk only to this package.
package rover

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/maishede/little-eighteen/components/base/mecanum"
	"github.com/maishede/little-eighteen/components/board"
	motorgpio "github.com/maishede/little-eighteen/components/motor/gpio"
	"github.com/maishede/little-eighteen/components/sensor/ultrasonic"
	"github.com/maishede/little-eighteen/config"
	"github.com/maishede/little-eighteen/control"
	"github.com/maishede/little-eighteen/store"
)

// A Rover is the assembled control core.
type Rover struct {
	base       *mecanum.Base
	sonar      *ultrasonic.Sensor
	dispatcher *control.Dispatcher
	monitor    *control.Monitor
	settings   *store.Store
	logger     golog.Logger

	mu      sync.Mutex
	started bool
}

// New builds a rover from a board and a validated config. Any pin or
// PWM channel that cannot be acquired fails construction; the loops
// never start on a half-wired chassis. An unusable settings store only
// costs persistence, never startup.
func New(ctx context.Context, b board.Board, cfg *config.Config, logger golog.Logger) (*Rover, error) {
	lf, err := motorgpio.NewMotor(ctx, b, cfg.LeftFront, "left_front", logger)
	if err != nil {
		return nil, err
	}
	lb, err := motorgpio.NewMotor(ctx, b, cfg.LeftBack, "left_back", logger)
	if err != nil {
		return nil, err
	}
	rf, err := motorgpio.NewMotor(ctx, b, cfg.RightFront, "right_front", logger)
	if err != nil {
		return nil, err
	}
	rb, err := motorgpio.NewMotor(ctx, b, cfg.RightBack, "right_back", logger)
	if err != nil {
		return nil, err
	}

	// a corrupt or legacy-format settings file must not keep the robot
	// from starting; run without persistence instead
	var settings *store.Store
	speed := cfg.DefaultSpeed
	if cfg.SpeedStorePath != "" {
		settings, err = store.Open(ctx, cfg.SpeedStorePath, logger)
		if err != nil {
			logger.Warnw("cannot open settings store, running without persistence",
				"path", cfg.SpeedStorePath, "error", err, "default_speed", speed)
			settings = nil
		} else {
			speed = settings.LoadSpeed(ctx, cfg.DefaultSpeed, mecanum.MinSpeed, mecanum.MaxSpeed)
		}
	}

	closeSettings := func(err error) error {
		if settings == nil {
			return err
		}
		return multierr.Combine(err, settings.Close())
	}

	base, err := mecanum.NewBase(ctx, mecanum.Wheels{
		LeftFront:  lf,
		LeftBack:   lb,
		RightFront: rf,
		RightBack:  rb,
	}, speed, logger)
	if err != nil {
		return nil, closeSettings(err)
	}

	sonar, err := ultrasonic.NewSensor(ctx, b, cfg.Sonar, logger)
	if err != nil {
		return nil, closeSettings(err)
	}

	dispatcher := control.NewDispatcher(base, sonar, control.Options{
		RotationHold: time.Duration(cfg.Safety.RotationHoldMs) * time.Millisecond,
		GracePeriod:  time.Duration(cfg.Safety.GracePeriodMs) * time.Millisecond,
	}, logger)
	monitor := control.NewMonitor(dispatcher, sonar, base, control.MonitorOptions{
		PollInterval:        time.Duration(cfg.Safety.PollIntervalMs) * time.Millisecond,
		BaseDistanceCm:      cfg.Safety.BaseDistanceCm,
		SpeedFactorCmPerPct: cfg.Safety.SpeedFactorCmPerPct,
	}, logger)

	return &Rover{
		base:       base,
		sonar:      sonar,
		dispatcher: dispatcher,
		monitor:    monitor,
		settings:   settings,
		logger:     logger,
	}, nil
}

// Start launches the dispatch and safety loops.
func (r *Rover) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("rover already started")
	}
	r.dispatcher.Start()
	r.monitor.Start()
	r.started = true
	r.logger.Infow("control loops started", "speed", r.base.Speed())
	return nil
}

// SubmitCommand enqueues a named motion command. The returned error is
// the acceptance result: nil means queued, non-nil means the name was
// unknown and dropped.
func (r *Rover) SubmitCommand(name string) error {
	return r.dispatcher.Submit(name)
}

// SetSpeed applies and persists a new logical speed. The applied value
// is clamped; callers can read it back with Speed.
func (r *Rover) SetSpeed(ctx context.Context, pct int) error {
	if err := r.base.SetSpeed(ctx, pct); err != nil {
		return err
	}
	if r.settings != nil {
		return r.settings.SaveSpeed(ctx, r.base.Speed())
	}
	return nil
}

// Speed returns the current logical speed percentage.
func (r *Rover) Speed() int {
	return r.base.Speed()
}

// Distance returns the current filtered clearance in centimeters, for
// diagnostics.
func (r *Rover) Distance(ctx context.Context) (float64, error) {
	return r.sonar.Measure(ctx)
}

// EnableDistanceDetection toggles the obstacle interlock's sensor.
func (r *Rover) EnableDistanceDetection(enabled bool) {
	r.sonar.SetEnabled(enabled)
}

// IsMoving reports whether any wheel is energized.
func (r *Rover) IsMoving() bool {
	return r.base.IsMoving()
}

// Close shuts the core down: the monitor stops sampling, the dispatcher
// drains and stops the drivetrain, the sensor worker exits, and the
// settings store closes. Safe to call with a motion in flight.
func (r *Rover) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.monitor.Close()
	err = multierr.Combine(err, r.dispatcher.Close(ctx))
	err = multierr.Combine(err, r.sonar.Close())
	// the dispatcher already stopped the drivetrain; stop again in case
	// it was never started
	err = multierr.Combine(err, r.base.Stop(ctx))
	if r.settings != nil {
		err = multierr.Combine(err, r.settings.Close())
	}
	r.started = false
	r.logger.Infow("control loops stopped")
	return err
}
