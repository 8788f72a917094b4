package control

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/test"
)

type fakeDrive struct {
	mu    sync.Mutex
	calls []string
	// blockForward, when non-nil, makes MoveForward block until closed
	blockForward chan struct{}
}

func (f *fakeDrive) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeDrive) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeDrive) MoveForward(ctx context.Context) error {
	f.record("forward")
	if f.blockForward != nil {
		<-f.blockForward
	}
	return nil
}
func (f *fakeDrive) MoveBack(ctx context.Context) error  { f.record("back"); return nil }
func (f *fakeDrive) MoveLeft(ctx context.Context) error  { f.record("left"); return nil }
func (f *fakeDrive) MoveRight(ctx context.Context) error { f.record("right"); return nil }
func (f *fakeDrive) TurnLeft(ctx context.Context) error  { f.record("turn_left"); return nil }
func (f *fakeDrive) TurnRight(ctx context.Context) error { f.record("turn_right"); return nil }
func (f *fakeDrive) MoveLeftForward(ctx context.Context) error {
	f.record("left_forward")
	return nil
}
func (f *fakeDrive) MoveRightForward(ctx context.Context) error {
	f.record("right_forward")
	return nil
}
func (f *fakeDrive) MoveLeftBack(ctx context.Context) error  { f.record("left_back"); return nil }
func (f *fakeDrive) MoveRightBack(ctx context.Context) error { f.record("right_back"); return nil }
func (f *fakeDrive) Stop(ctx context.Context) error          { f.record("stop"); return nil }

type fakeDetector struct {
	enabled atomic.Bool
	toggles atomic.Int64
}

func newFakeDetector() *fakeDetector {
	d := &fakeDetector{}
	d.enabled.Store(true)
	return d
}

func (f *fakeDetector) SetEnabled(enabled bool) {
	f.enabled.Store(enabled)
	f.toggles.Add(1)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestParse(t *testing.T) {
	cmd, err := Parse("forward")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd, test.ShouldEqual, Forward)

	_, err = Parse("fly")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "fly")
}

func TestSubmitUnknownCommandRejected(t *testing.T) {
	logger := golog.NewTestLogger(t)
	drive := &fakeDrive{}
	d := NewDispatcher(drive, newFakeDetector(), Options{}, logger)

	err := d.Submit("fly")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, d.Queued(), test.ShouldEqual, 0)
}

func TestStopDrainsQueueBeforeEnqueue(t *testing.T) {
	// the dispatcher is not started: submissions only mutate the queue
	logger := golog.NewTestLogger(t)
	drive := &fakeDrive{}
	d := NewDispatcher(drive, newFakeDetector(), Options{Clock: clock.NewMock()}, logger)

	test.That(t, d.Submit("forward"), test.ShouldBeNil)
	test.That(t, d.Submit("left"), test.ShouldBeNil)
	test.That(t, d.Queued(), test.ShouldEqual, 2)

	test.That(t, d.Submit("stop"), test.ShouldBeNil)
	test.That(t, d.Queued(), test.ShouldEqual, 1)
	cmd, ok := d.dequeue()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cmd, test.ShouldEqual, Stop)
}

func TestStopPreemptsInFlightQueue(t *testing.T) {
	logger := golog.NewTestLogger(t)
	release := make(chan struct{})
	drive := &fakeDrive{blockForward: release}
	d := NewDispatcher(drive, newFakeDetector(), Options{}, logger)
	d.Start()
	defer func() {
		test.That(t, d.Close(context.Background()), test.ShouldBeNil)
	}()

	test.That(t, d.Submit("forward"), test.ShouldBeNil)
	waitFor(t, func() bool { return len(drive.Calls()) == 1 })

	// these queue up behind the in-flight forward...
	test.That(t, d.Submit("left"), test.ShouldBeNil)
	test.That(t, d.Submit("right"), test.ShouldBeNil)
	// ...and the stop flushes them before they can run
	test.That(t, d.Submit("stop"), test.ShouldBeNil)
	test.That(t, d.Queued(), test.ShouldEqual, 1)

	close(release)
	waitFor(t, func() bool {
		calls := drive.Calls()
		return len(calls) == 2 && calls[1] == "stop"
	})
	test.That(t, drive.Calls(), test.ShouldResemble, []string{"forward", "stop"})
}

func TestOpenLoopMotionsRunInOrder(t *testing.T) {
	logger := golog.NewTestLogger(t)
	drive := &fakeDrive{}
	d := NewDispatcher(drive, newFakeDetector(), Options{}, logger)
	d.Start()
	defer func() {
		test.That(t, d.Close(context.Background()), test.ShouldBeNil)
	}()

	test.That(t, d.Submit("forward"), test.ShouldBeNil)
	test.That(t, d.Submit("left_back"), test.ShouldBeNil)
	waitFor(t, func() bool { return len(drive.Calls()) == 2 })
	// open-loop motions are not auto-stopped
	test.That(t, drive.Calls(), test.ShouldResemble, []string{"forward", "left_back"})
}

func TestRotationSelfTerminates(t *testing.T) {
	logger := golog.NewTestLogger(t)
	drive := &fakeDrive{}
	detector := newFakeDetector()
	d := NewDispatcher(drive, detector, Options{RotationHold: 20 * time.Millisecond}, logger)
	d.Start()
	defer func() {
		test.That(t, d.Close(context.Background()), test.ShouldBeNil)
	}()

	test.That(t, d.Submit("turn_left"), test.ShouldBeNil)
	// no further command is ever submitted; the rotation must still end
	waitFor(t, func() bool {
		calls := drive.Calls()
		return len(calls) == 2 && calls[1] == "stop"
	})
	test.That(t, drive.Calls(), test.ShouldResemble, []string{"turn_left", "stop"})
	// detection is back on once the rotation ends
	waitFor(t, func() bool { return detector.enabled.Load() })
	test.That(t, detector.toggles.Load(), test.ShouldBeGreaterThanOrEqualTo, 2)
}

func TestGraceArmedOnBackClearedOnStop(t *testing.T) {
	logger := golog.NewTestLogger(t)
	mock := clock.NewMock()
	drive := &fakeDrive{}
	d := NewDispatcher(drive, newFakeDetector(), Options{Clock: mock, GracePeriod: 2 * time.Second}, logger)

	test.That(t, d.grace.Active(), test.ShouldBeFalse)

	test.That(t, d.Submit("back"), test.ShouldBeNil)
	test.That(t, d.grace.Active(), test.ShouldBeTrue)

	// an explicit stop cancels the suppression immediately
	test.That(t, d.Submit("stop"), test.ShouldBeNil)
	test.That(t, d.grace.Active(), test.ShouldBeFalse)

	// and it expires on its own
	test.That(t, d.Submit("back"), test.ShouldBeNil)
	mock.Add(1 * time.Second)
	test.That(t, d.grace.Active(), test.ShouldBeTrue)
	mock.Add(1100 * time.Millisecond)
	test.That(t, d.grace.Active(), test.ShouldBeFalse)
}

func TestCloseStopsDrivetrain(t *testing.T) {
	logger := golog.NewTestLogger(t)
	drive := &fakeDrive{}
	d := NewDispatcher(drive, newFakeDetector(), Options{}, logger)
	d.Start()

	test.That(t, d.Submit("forward"), test.ShouldBeNil)
	waitFor(t, func() bool { return len(drive.Calls()) == 1 })

	test.That(t, d.Close(context.Background()), test.ShouldBeNil)
	calls := drive.Calls()
	test.That(t, calls[len(calls)-1], test.ShouldEqual, "stop")
}
