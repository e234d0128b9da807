package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vio/utils"
)

// SkewSymmetric returns the 3x3 cross-product matrix [v]x such that
// [v]x * w == v.Cross(w) for any w.
func SkewSymmetric(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// R3VectorValid reports whether every component of v is finite.
func R3VectorValid(v r3.Vector) bool {
	return utils.Float64Finite(v.X) && utils.Float64Finite(v.Y) && utils.Float64Finite(v.Z)
}

// MatTimesVec multiplies a 3x3 matrix by an r3 vector.
func MatTimesVec(m mat.Matrix, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}
