package rover

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/maishede/little-eighteen/components/board/fake"
	"github.com/maishede/little-eighteen/components/sensor/ultrasonic"
	"github.com/maishede/little-eighteen/config"
	"github.com/maishede/little-eighteen/store"
)

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

func newTestRover(t *testing.T, cfg *config.Config) (*Rover, *fake.Board) {
	t.Helper()
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	b := fake.NewBoard()
	r, err := New(ctx, b, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, r.Close(context.Background()), test.ShouldBeNil)
	})
	return r, b
}

func TestStartIsOneShot(t *testing.T) {
	r, _ := newTestRover(t, config.Default())
	test.That(t, r.Start(), test.ShouldBeNil)
	err := r.Start()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already started")
}

func TestSubmitCommandDrivesWheels(t *testing.T) {
	cfg := config.Default()
	r, b := newTestRover(t, cfg)
	test.That(t, r.Start(), test.ShouldBeNil)

	test.That(t, r.SubmitCommand("forward"), test.ShouldBeNil)
	waitFor(t, func() bool { return r.IsMoving() })
	// left_front forward: pin A high, enable pin energized
	test.That(t, b.Pin(cfg.LeftFront.PinA).High(), test.ShouldBeTrue)
	test.That(t, b.Pin(cfg.LeftFront.PinEN).Duty(), test.ShouldBeGreaterThan, 0.0)

	test.That(t, r.SubmitCommand("stop"), test.ShouldBeNil)
	waitFor(t, func() bool { return !r.IsMoving() })
	test.That(t, b.Pin(cfg.LeftFront.PinA).High(), test.ShouldBeFalse)
	test.That(t, b.Pin(cfg.LeftFront.PinEN).Duty(), test.ShouldEqual, 0.0)
}

func TestSubmitCommandRejectsUnknown(t *testing.T) {
	r, _ := newTestRover(t, config.Default())
	test.That(t, r.SubmitCommand("fly"), test.ShouldNotBeNil)
}

func TestSpeedPersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	cfg := config.Default()
	cfg.SpeedStorePath = filepath.Join(t.TempDir(), "settings.db")

	b := fake.NewBoard()
	r, err := New(ctx, b, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Speed(), test.ShouldEqual, 50)
	test.That(t, r.SetSpeed(ctx, 80), test.ShouldBeNil)
	test.That(t, r.Close(ctx), test.ShouldBeNil)

	r, err = New(ctx, fake.NewBoard(), cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, r.Close(ctx), test.ShouldBeNil)
	}()
	test.That(t, r.Speed(), test.ShouldEqual, 80)
}

func TestCorruptSpeedStoreFallsBack(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SpeedStorePath = filepath.Join(t.TempDir(), "settings.db")
	// a settings file from before the sqlite store
	test.That(t, os.WriteFile(cfg.SpeedStorePath, []byte("speed=80\n"), 0o644), test.ShouldBeNil)

	r, _ := newTestRover(t, cfg)
	test.That(t, r.Speed(), test.ShouldEqual, cfg.DefaultSpeed)

	// the rover still drives and speed changes still apply
	test.That(t, r.Start(), test.ShouldBeNil)
	test.That(t, r.SetSpeed(ctx, 70), test.ShouldBeNil)
	test.That(t, r.Speed(), test.ShouldEqual, 70)
}

func TestNewClosesStoreOnSensorFailure(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	cfg := config.Default()
	cfg.SpeedStorePath = filepath.Join(t.TempDir(), "settings.db")
	cfg.Sonar.EchoPin = ""

	_, err := New(ctx, fake.NewBoard(), cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "echo_pin")

	// the store created above is closed, not leaked: a fresh open sees a
	// valid, empty database
	s, err := store.Open(ctx, cfg.SpeedStorePath, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.LoadSpeed(ctx, 50, 20, 100), test.ShouldEqual, 50)
	test.That(t, s.Close(), test.ShouldBeNil)
}

func TestSetSpeedClampsBeforePersisting(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.SpeedStorePath = filepath.Join(t.TempDir(), "settings.db")
	r, _ := newTestRover(t, cfg)

	test.That(t, r.SetSpeed(ctx, 500), test.ShouldBeNil)
	test.That(t, r.Speed(), test.ShouldEqual, 100)
}

func TestDistanceDetectionToggle(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRover(t, config.Default())

	r.EnableDistanceDetection(false)
	_, err := r.Distance(ctx)
	test.That(t, errors.Is(err, ultrasonic.ErrDetectionDisabled), test.ShouldBeTrue)

	// re-enabled, the fake echo line never rises so the reading times out
	r.EnableDistanceDetection(true)
	_, err = r.Distance(ctx)
	test.That(t, errors.Is(err, ultrasonic.ErrNoEcho), test.ShouldBeTrue)
}

func TestCloseStopsEverything(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	cfg := config.Default()
	b := fake.NewBoard()
	r, err := New(ctx, b, cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Start(), test.ShouldBeNil)

	test.That(t, r.SubmitCommand("forward"), test.ShouldBeNil)
	waitFor(t, func() bool { return r.IsMoving() })

	test.That(t, r.Close(ctx), test.ShouldBeNil)
	test.That(t, r.IsMoving(), test.ShouldBeFalse)
	for _, pin := range []string{cfg.LeftFront.PinEN, cfg.LeftBack.PinEN, cfg.RightFront.PinEN, cfg.RightBack.PinEN} {
		test.That(t, b.Pin(pin).Duty(), test.ShouldEqual, 0.0)
	}
}
