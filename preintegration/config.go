package preintegration

import (
	"github.com/pkg/errors"

	"go.viam.com/vio/utils"
)

// Config holds the continuous-time sensor noise densities and the gravity
// magnitude a Preintegrated is built with. All fields are in SI units.
type Config struct {
	// AccelNoiseSigma is the accelerometer white-noise density (m/s²/√Hz).
	AccelNoiseSigma float64
	// AccelWalkSigma is the accelerometer bias random-walk density (m/s³/√Hz).
	AccelWalkSigma float64
	// GyroNoiseSigma is the gyroscope white-noise density (rad/s/√Hz).
	GyroNoiseSigma float64
	// GyroWalkSigma is the gyroscope bias random-walk density (rad/s²/√Hz).
	GyroWalkSigma float64
	// Gravity is the gravity magnitude along the world +Z axis (m/s²).
	Gravity float64
}

// DefaultConfig returns noise densities typical of a consumer MEMS IMU and
// standard gravity.
func DefaultConfig() Config {
	return Config{
		AccelNoiseSigma: 0.08,
		AccelWalkSigma:  0.00004,
		GyroNoiseSigma:  0.004,
		GyroWalkSigma:   2.0e-6,
		Gravity:         9.81,
	}
}

// Validate checks that every noise density and the gravity magnitude is a
// positive finite number.
func (c Config) Validate() error {
	check := func(name string, v float64) error {
		if !utils.Float64Finite(v) || v <= 0 {
			return errors.Errorf("%s must be a positive finite number, got %v", name, v)
		}
		return nil
	}
	if err := check("accel_noise_sigma", c.AccelNoiseSigma); err != nil {
		return err
	}
	if err := check("accel_walk_sigma", c.AccelWalkSigma); err != nil {
		return err
	}
	if err := check("gyro_noise_sigma", c.GyroNoiseSigma); err != nil {
		return err
	}
	if err := check("gyro_walk_sigma", c.GyroWalkSigma); err != nil {
		return err
	}
	return check("gravity", c.Gravity)
}
