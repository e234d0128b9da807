package preintegration

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vio/spatialmath"
)

// BiasJacobians holds the five 3x3 blocks of the accumulated Jacobian giving
// the increment's first-order sensitivity to the linearized biases. An
// estimator reads these to linearize the residual against bias states.
type BiasJacobians struct {
	DPosDAccelBias *mat.Dense
	DPosDGyroBias  *mat.Dense
	DRotDGyroBias  *mat.Dense
	DVelDAccelBias *mat.Dense
	DVelDGyroBias  *mat.Dense
}

// BiasJacobians returns copies of the bias-sensitivity blocks of the
// accumulated Jacobian.
func (p *Preintegrated) BiasJacobians() BiasJacobians {
	blk := func(row, col int) *mat.Dense {
		return mat.DenseCopyOf(p.jacobian.Slice(row, row+3, col, col+3))
	}
	return BiasJacobians{
		DPosDAccelBias: blk(OrderP, OrderBA),
		DPosDGyroBias:  blk(OrderP, OrderBG),
		DRotDGyroBias:  blk(OrderR, OrderBG),
		DVelDAccelBias: blk(OrderV, OrderBA),
		DVelDGyroBias:  blk(OrderV, OrderBG),
	}
}

// CorrectedDelta returns the increment re-linearized to the given biases by a
// first-order Jacobian correction, without replaying the sample buffer. The
// correction is linear in the bias change and is only accurate while that
// change stays small; a large drift calls for Repropagate.
func (p *Preintegrated) CorrectedDelta(accelBias, gyroBias r3.Vector) (r3.Vector, quat.Number, r3.Vector) {
	bj := p.BiasJacobians()
	dba := accelBias.Sub(p.linearizedBA)
	dbg := gyroBias.Sub(p.linearizedBG)

	correctedQ := spatialmath.Normalize(quat.Mul(
		p.deltaQ, spatialmath.DeltaQ(spatialmath.MatTimesVec(bj.DRotDGyroBias, dbg))))
	correctedV := p.deltaV.
		Add(spatialmath.MatTimesVec(bj.DVelDAccelBias, dba)).
		Add(spatialmath.MatTimesVec(bj.DVelDGyroBias, dbg))
	correctedP := p.deltaP.
		Add(spatialmath.MatTimesVec(bj.DPosDAccelBias, dba)).
		Add(spatialmath.MatTimesVec(bj.DPosDGyroBias, dbg))
	return correctedP, correctedQ, correctedV
}

// Evaluate computes the 15-dimensional residual between the preintegrated
// increment and the relative motion implied by the two endpoint states, in
// the fixed [position, rotation, velocity, accel bias, gyro bias] order. The
// rotation component is the doubled vector part of the orientation error
// quaternion, a minimal parameterization valid for small errors. Gravity is
// accounted for here and nowhere else. Evaluate mutates nothing and may be
// called repeatedly with different endpoint guesses; the caller weights the
// result by the inverse (or inverse square root) of Covariance.
func (p *Preintegrated) Evaluate(si, sj State) (*mat.VecDense, error) {
	if p.degraded {
		return nil, ErrDegraded
	}
	if err := si.Validate(); err != nil {
		return nil, err
	}
	if err := sj.Validate(); err != nil {
		return nil, err
	}

	correctedP, correctedQ, correctedV := p.CorrectedDelta(si.AccelBias, si.GyroBias)

	gravity := r3.Vector{Z: p.cfg.Gravity}
	qiInv := quat.Conj(si.Orientation)

	posRes := spatialmath.RotateVec(qiInv,
		gravity.Mul(0.5*p.sumDT*p.sumDT).
			Add(sj.Position).
			Sub(si.Position).
			Sub(si.Velocity.Mul(p.sumDT))).
		Sub(correctedP)

	errQ := quat.Mul(quat.Conj(correctedQ), quat.Mul(qiInv, sj.Orientation))
	rotRes := r3.Vector{X: 2 * errQ.Imag, Y: 2 * errQ.Jmag, Z: 2 * errQ.Kmag}

	velRes := spatialmath.RotateVec(qiInv,
		gravity.Mul(p.sumDT).
			Add(sj.Velocity).
			Sub(si.Velocity)).
		Sub(correctedV)

	baRes := sj.AccelBias.Sub(si.AccelBias)
	bgRes := sj.GyroBias.Sub(si.GyroBias)

	return mat.NewVecDense(ErrorStateDim, []float64{
		posRes.X, posRes.Y, posRes.Z,
		rotRes.X, rotRes.Y, rotRes.Z,
		velRes.X, velRes.Y, velRes.Z,
		baRes.X, baRes.Y, baRes.Z,
		bgRes.X, bgRes.Y, bgRes.Z,
	}), nil
}
