// Package spatialmath defines the quaternion and small-matrix operations used
// by inertial preintegration.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// QuatNorm returns the full four-component norm of the quaternion.
func QuatNorm(q quat.Number) float64 {
	return math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
}

// Normalize returns the unit quaternion pointing in the same direction as q.
// The zero quaternion is returned unchanged.
func Normalize(q quat.Number) quat.Number {
	n := QuatNorm(q)
	if n == 0 {
		return q
	}
	return quat.Scale(1/n, q)
}

// DeltaQ forms the small-angle quaternion (1, θ/2) approximating a rotation by
// the rotation vector theta. It is left unnormalized; callers renormalize the
// product they fold it into.
func DeltaQ(theta r3.Vector) quat.Number {
	return quat.Number{Real: 1, Imag: theta.X / 2, Jmag: theta.Y / 2, Kmag: theta.Z / 2}
}

// RotateVec rotates v by the unit quaternion q, i.e. computes q * (0,v) * q⁻¹.
func RotateVec(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// QuatToRotationMatrix converts a unit quaternion to its 3x3 rotation matrix.
func QuatToRotationMatrix(q quat.Number) *mat.Dense {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// QuatAlmostEqual reports whether two quaternions are elementwise equal within
// tolerance, treating q and -q as distinct.
func QuatAlmostEqual(q1, q2 quat.Number, tol float64) bool {
	return math.Abs(q1.Real-q2.Real) < tol &&
		math.Abs(q1.Imag-q2.Imag) < tol &&
		math.Abs(q1.Jmag-q2.Jmag) < tol &&
		math.Abs(q1.Kmag-q2.Kmag) < tol
}
