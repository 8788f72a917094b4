package control

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	goutils "go.viam.com/utils"
)

// A Drivetrain is what the dispatcher drives. *mecanum.Base satisfies
// it.
type Drivetrain interface {
	MoveForward(ctx context.Context) error
	MoveBack(ctx context.Context) error
	MoveLeft(ctx context.Context) error
	MoveRight(ctx context.Context) error
	TurnLeft(ctx context.Context) error
	TurnRight(ctx context.Context) error
	MoveLeftForward(ctx context.Context) error
	MoveRightForward(ctx context.Context) error
	MoveLeftBack(ctx context.Context) error
	MoveRightBack(ctx context.Context) error
	Stop(ctx context.Context) error
}

// A DistanceDetector can be administratively toggled. The dispatcher
// turns it off during rotations so the sonar cone sweeping past nearby
// objects does not trip the interlock.
type DistanceDetector interface {
	SetEnabled(enabled bool)
}

// Policy defaults. Both are configurable per Options; the values mirror
// the tuned constants of the shipped robot.
const (
	DefaultRotationHold = time.Second
	DefaultGracePeriod  = 2 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
	DefaultBaseDistance = 10.0 // cm
	DefaultSpeedFactor  = 0.4  // cm per speed percentage point
)

// Options tunes the dispatcher's timing policy.
type Options struct {
	// RotationHold is how long an in-place rotation runs before the
	// dispatcher stops it. Rotations always self-terminate.
	RotationHold time.Duration
	// GracePeriod is how long safety checks stay suppressed after a
	// back command is submitted.
	GracePeriod time.Duration
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// A Dispatcher owns the command queue and the single consumer loop
// that executes it. Stop has strict priority: submitting it flushes
// everything queued before it.
type Dispatcher struct {
	drive    Drivetrain
	detector DistanceDetector
	grace    *gracePeriod
	clk      clock.Clock
	logger   golog.Logger

	rotationHold  time.Duration
	graceDuration time.Duration

	mu    sync.Mutex
	queue []Command
	wake  chan struct{}

	cancelCtx  context.Context
	cancelFunc func()
	workers    sync.WaitGroup
	startOnce  sync.Once
}

// NewDispatcher constructs a dispatcher. Start must be called before
// submitted commands execute.
func NewDispatcher(drive Drivetrain, detector DistanceDetector, opts Options, logger golog.Logger) *Dispatcher {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	rotationHold := opts.RotationHold
	if rotationHold == 0 {
		rotationHold = DefaultRotationHold
	}
	graceDuration := opts.GracePeriod
	if graceDuration == 0 {
		graceDuration = DefaultGracePeriod
	}
	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	return &Dispatcher{
		drive:         drive,
		detector:      detector,
		grace:         newGracePeriod(clk),
		clk:           clk,
		logger:        logger,
		rotationHold:  rotationHold,
		graceDuration: graceDuration,
		wake:          make(chan struct{}, 1),
		cancelCtx:     cancelCtx,
		cancelFunc:    cancelFunc,
	}
}

// Start launches the consumer loop.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.workers.Add(1)
		goutils.ManagedGo(func() {
			d.run(d.cancelCtx)
		}, d.workers.Done)
	})
}

// Submit enqueues a named command. Unknown names are rejected and
// nothing is queued. Submitting stop first drains the queue, so no
// earlier command can execute after it; submitting back arms the
// safety grace period before enqueueing.
func (d *Dispatcher) Submit(name string) error {
	cmd, err := Parse(name)
	if err != nil {
		d.logger.Errorw("dropping command", "error", err)
		return err
	}

	d.mu.Lock()
	switch cmd {
	case Stop:
		d.queue = d.queue[:0]
		d.grace.Clear()
		d.logger.Infow("stop requested, queue flushed")
	case Back:
		d.grace.Arm(d.graceDuration)
		d.logger.Debugw("grace period armed", "duration", d.graceDuration)
	}
	d.queue = append(d.queue, cmd)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Queued reports how many commands are waiting, for diagnostics.
func (d *Dispatcher) Queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) dequeue() (Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return "", false
	}
	cmd := d.queue[0]
	d.queue = d.queue[1:]
	return cmd, true
}

// run consumes one command at a time; at most one is ever in flight.
func (d *Dispatcher) run(ctx context.Context) {
	for {
		cmd, ok := d.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-d.wake:
			}
			continue
		}
		d.execute(ctx, cmd)
	}
}

// execute runs a single command. A failure is logged and isolated; the
// loop moves on to the next command.
func (d *Dispatcher) execute(ctx context.Context, cmd Command) {
	d.logger.Debugw("executing command", "command", cmd)
	var err error
	switch cmd {
	case TurnLeft, TurnRight:
		err = d.executeRotation(ctx, cmd)
	case Stop:
		// a stop always cancels any detection suppression
		err = d.drive.Stop(ctx)
		d.detector.SetEnabled(true)
	case Forward:
		err = d.drive.MoveForward(ctx)
	case Back:
		err = d.drive.MoveBack(ctx)
	case Left:
		err = d.drive.MoveLeft(ctx)
	case Right:
		err = d.drive.MoveRight(ctx)
	case LeftForward:
		err = d.drive.MoveLeftForward(ctx)
	case RightForward:
		err = d.drive.MoveRightForward(ctx)
	case LeftBack:
		err = d.drive.MoveLeftBack(ctx)
	case RightBack:
		err = d.drive.MoveRightBack(ctx)
	default:
		d.logger.Errorw("unknown command reached the dispatch loop", "command", cmd)
		return
	}
	if err != nil {
		d.logger.Errorw("command failed", "command", cmd, "error", err)
	}
}

// executeRotation runs a time-bounded in-place rotation. Detection is
// off for the duration and the rotation always ends in a stop, even on
// shutdown.
func (d *Dispatcher) executeRotation(ctx context.Context, cmd Command) error {
	d.detector.SetEnabled(false)
	defer d.detector.SetEnabled(true)

	var err error
	if cmd == TurnLeft {
		err = d.drive.TurnLeft(ctx)
	} else {
		err = d.drive.TurnRight(ctx)
	}
	if err == nil {
		timer := d.clk.Timer(d.rotationHold)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	if stopErr := d.drive.Stop(ctx); stopErr != nil && err == nil {
		err = stopErr
	}
	return err
}

// Close stops accepting work, waits for the in-flight command, then
// unconditionally stops the drivetrain.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.cancelFunc()
	d.workers.Wait()
	d.detector.SetEnabled(true)
	return d.drive.Stop(ctx)
}
