package preintegration

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vio/spatialmath"
)

// Offsets of each error-state segment within the fixed 15-dimensional
// error-state ordering [position, rotation, velocity, accel bias, gyro bias].
const (
	OrderP  = 0
	OrderR  = 3
	OrderV  = 6
	OrderBA = 9
	OrderBG = 12

	// ErrorStateDim is the dimension of the error state.
	ErrorStateDim = 15
	// NoiseDim is the dimension of the raw noise vector driving one
	// integration step: accel/gyro white noise at both step endpoints plus
	// the two bias random walks.
	NoiseDim = 18
)

// State is a full navigation state at one instant, expressed in the world
// frame: the endpoint bundle Evaluate linearizes the preintegrated increment
// against.
type State struct {
	Position    r3.Vector
	Orientation quat.Number
	Velocity    r3.Vector
	AccelBias   r3.Vector
	GyroBias    r3.Vector
}

// Validate checks that all components are finite and the orientation is a
// unit quaternion.
func (s State) Validate() error {
	for name, v := range map[string]r3.Vector{
		"position":   s.Position,
		"velocity":   s.Velocity,
		"accel bias": s.AccelBias,
		"gyro bias":  s.GyroBias,
	} {
		if !spatialmath.R3VectorValid(v) {
			return errors.Errorf("state %s is not finite: %v", name, v)
		}
	}
	n := spatialmath.QuatNorm(s.Orientation)
	if !(math.Abs(n-1) < 1e-6) {
		return errors.Errorf("state orientation is not a unit quaternion (norm %v)", n)
	}
	return nil
}
