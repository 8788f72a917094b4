package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
)

func TestLoadSpeedDefaultsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	s, err := Open(ctx, filepath.Join(t.TempDir(), "settings.db"), logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Close(), test.ShouldBeNil)
	}()

	test.That(t, s.LoadSpeed(ctx, 50, 20, 100), test.ShouldEqual, 50)

	// the default itself is clamped
	test.That(t, s.LoadSpeed(ctx, 5, 20, 100), test.ShouldEqual, 20)
}

func TestSpeedSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(ctx, path, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.SaveSpeed(ctx, 80), test.ShouldBeNil)
	test.That(t, s.Close(), test.ShouldBeNil)

	s, err = Open(ctx, path, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Close(), test.ShouldBeNil)
	}()
	test.That(t, s.LoadSpeed(ctx, 50, 20, 100), test.ShouldEqual, 80)
}

func TestSaveSpeedOverwrites(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	s, err := Open(ctx, filepath.Join(t.TempDir(), "settings.db"), logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Close(), test.ShouldBeNil)
	}()

	test.That(t, s.SaveSpeed(ctx, 40), test.ShouldBeNil)
	test.That(t, s.SaveSpeed(ctx, 70), test.ShouldBeNil)
	test.That(t, s.LoadSpeed(ctx, 50, 20, 100), test.ShouldEqual, 70)
}

func TestLoadSpeedClampsPersistedValue(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	s, err := Open(ctx, filepath.Join(t.TempDir(), "settings.db"), logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Close(), test.ShouldBeNil)
	}()

	// a value saved before the limits tightened
	test.That(t, s.SaveSpeed(ctx, 250), test.ShouldBeNil)
	test.That(t, s.LoadSpeed(ctx, 50, 20, 100), test.ShouldEqual, 100)
}

func TestOpenRejectsNonDatabaseFile(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "settings.db")
	test.That(t, os.WriteFile(path, []byte("speed=80\n"), 0o644), test.ShouldBeNil)

	// callers treat this error as "run without persistence"
	_, err := Open(ctx, path, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot initialize settings store")
}

func TestLoadSpeedToleratesCorruptValue(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)
	s, err := Open(ctx, filepath.Join(t.TempDir(), "settings.db"), logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Close(), test.ShouldBeNil)
	}()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)`, speedKey, "fast")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.LoadSpeed(ctx, 50, 20, 100), test.ShouldEqual, 50)
}
