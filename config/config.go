// Package config holds the rover's wiring and policy configuration.
package config

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/maishede/little-eighteen/components/base/mecanum"
	motorgpio "github.com/maishede/little-eighteen/components/motor/gpio"
	"github.com/maishede/little-eighteen/components/sensor/ultrasonic"
)

// Policy defaults for the safety interlock and command timing, in the
// units the JSON fields use. These are tuned values, not invariants.
const (
	DefaultPollIntervalMs = 100
	DefaultGracePeriodMs  = 2000
	DefaultRotationHoldMs = 1000
	DefaultBaseDistanceCm = 10.0
	DefaultSpeedFactor    = 0.4
	DefaultPWMFreqHz      = 100
)

// Safety tunes the obstacle interlock.
type Safety struct {
	// BaseDistanceCm plus speed times SpeedFactorCmPerPct is the stop
	// threshold: faster motion triggers avoidance earlier.
	BaseDistanceCm      float64 `json:"base_distance_cm,omitempty"`
	SpeedFactorCmPerPct float64 `json:"speed_factor_cm_per_pct,omitempty"`
	PollIntervalMs      int     `json:"poll_interval_ms,omitempty"`
	GracePeriodMs       int     `json:"grace_period_ms,omitempty"`
	RotationHoldMs      int     `json:"rotation_hold_ms,omitempty"`
}

// Config is the full wiring of a rover.
type Config struct {
	LeftFront  motorgpio.Config  `json:"left_front"`
	LeftBack   motorgpio.Config  `json:"left_back"`
	RightFront motorgpio.Config  `json:"right_front"`
	RightBack  motorgpio.Config  `json:"right_back"`
	Sonar      ultrasonic.Config `json:"sonar"`
	Safety     Safety            `json:"safety,omitempty"`

	// DefaultSpeed seeds the logical speed when the store has no
	// persisted value. Clamped to [mecanum.MinSpeed, mecanum.MaxSpeed].
	DefaultSpeed int `json:"default_speed,omitempty"`

	// SpeedStorePath locates the settings database persisting the speed
	// preference. Empty disables persistence.
	SpeedStorePath string `json:"speed_store_path,omitempty"`

	PWMFreqHz uint `json:"pwm_freq_hz,omitempty"`
}

// Validate ensures all parts of the config are valid and fills in
// defaults for omitted policy values.
func (c *Config) Validate(path string) error {
	wheels := []struct {
		name string
		cfg  *motorgpio.Config
	}{
		{"left_front", &c.LeftFront},
		{"left_back", &c.LeftBack},
		{"right_front", &c.RightFront},
		{"right_back", &c.RightBack},
	}
	for _, w := range wheels {
		if w.cfg.PinA == "" && w.cfg.PinB == "" && w.cfg.PinEN == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, w.name)
		}
		if err := w.cfg.Validate(path + "." + w.name); err != nil {
			return err
		}
	}
	if err := c.Sonar.Validate(path + ".sonar"); err != nil {
		return err
	}
	c.ensureDefaults()
	return nil
}

func (c *Config) ensureDefaults() {
	if c.Safety.BaseDistanceCm == 0 {
		c.Safety.BaseDistanceCm = DefaultBaseDistanceCm
	}
	if c.Safety.SpeedFactorCmPerPct == 0 {
		c.Safety.SpeedFactorCmPerPct = DefaultSpeedFactor
	}
	if c.Safety.PollIntervalMs == 0 {
		c.Safety.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.Safety.GracePeriodMs == 0 {
		c.Safety.GracePeriodMs = DefaultGracePeriodMs
	}
	if c.Safety.RotationHoldMs == 0 {
		c.Safety.RotationHoldMs = DefaultRotationHoldMs
	}
	if c.DefaultSpeed == 0 {
		c.DefaultSpeed = mecanum.DefaultSpeed
	}
	if c.PWMFreqHz == 0 {
		c.PWMFreqHz = DefaultPWMFreqHz
	}
	for _, w := range []*motorgpio.Config{&c.LeftFront, &c.LeftBack, &c.RightFront, &c.RightBack} {
		if w.PWMFreqHz == 0 {
			w.PWMFreqHz = c.PWMFreqHz
		}
	}
	// the right-side wheels are wired mirror-image; this is a property
	// of the chassis, not a choice
	c.RightFront.Reversed = true
	c.RightBack.Reversed = true
}

// FromFile reads and validates a JSON config.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config %q", path)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config %q", path)
	}
	if err := c.Validate("config"); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the wiring of the shipped chassis: BCM direction pin
// pairs 20/21, 12/16, 18/23, 24/25, PWM enable pins 6, 13, 26, 19, and
// the HC-SR04 on trigger 4 / echo 17.
func Default() *Config {
	c := &Config{
		LeftFront:  motorgpio.Config{PinA: "20", PinB: "21", PinEN: "6"},
		LeftBack:   motorgpio.Config{PinA: "12", PinB: "16", PinEN: "13"},
		RightFront: motorgpio.Config{PinA: "18", PinB: "23", PinEN: "26"},
		RightBack:  motorgpio.Config{PinA: "24", PinB: "25", PinEN: "19"},
		Sonar:      ultrasonic.Config{TriggerPin: "4", EchoPin: "17"},
	}
	c.ensureDefaults()
	return c
}
