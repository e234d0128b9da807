package preintegration

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vio/spatialmath"
	"go.viam.com/vio/utils"
)

// propagate advances the increment from the previous sample to (acc1, gyr1)
// and shifts the step window forward.
func (p *Preintegrated) propagate(dt float64, acc1, gyr1 r3.Vector) error {
	resP, resQ, resV := p.midpoint(dt, p.acc0, p.gyr0, acc1, gyr1)
	p.deltaP, p.deltaQ, p.deltaV = resP, resQ, resV
	p.sumDT += dt
	p.acc0, p.gyr0 = acc1, gyr1

	if !spatialmath.R3VectorValid(p.deltaP) || !spatialmath.R3VectorValid(p.deltaV) ||
		!utils.Float64Finite(spatialmath.QuatNorm(p.deltaQ)) ||
		!denseFinite(p.jacobian) || !denseFinite(p.covariance) {
		p.degraded = true
		p.logger.Warnw("integration produced a non-finite state", "sum_dt", p.sumDT)
		return ErrDegraded
	}
	return nil
}

func denseFinite(m *mat.Dense) bool {
	for _, v := range m.RawMatrix().Data {
		if !utils.Float64Finite(v) {
			return false
		}
	}
	return true
}

// midpoint performs one mid-point integration step. The specific force at the
// left endpoint is rotated by the current orientation, the mean angular rate
// over the step forms the incremental rotation, and the specific force at the
// right endpoint is rotated by the resulting orientation before the two are
// averaged into constant-acceleration kinematics. The step's first-order
// linearization is folded into the accumulated Jacobian and covariance.
// Biases are a random walk: their values carry forward unchanged, only their
// uncertainty grows.
func (p *Preintegrated) midpoint(dt float64, acc0, gyr0, acc1, gyr1 r3.Vector) (r3.Vector, quat.Number, r3.Vector) {
	unAcc0 := spatialmath.RotateVec(p.deltaQ, acc0.Sub(p.linearizedBA))
	unGyr := gyr0.Add(gyr1).Mul(0.5).Sub(p.linearizedBG)
	resQ := spatialmath.Normalize(quat.Mul(p.deltaQ, spatialmath.DeltaQ(unGyr.Mul(dt))))
	unAcc1 := spatialmath.RotateVec(resQ, acc1.Sub(p.linearizedBA))
	unAcc := unAcc0.Add(unAcc1).Mul(0.5)

	resP := p.deltaP.Add(p.deltaV.Mul(dt)).Add(unAcc.Mul(0.5 * dt * dt))
	resV := p.deltaV.Add(unAcc.Mul(dt))

	p.updateUncertainty(dt, acc0, acc1, unGyr, resQ)
	return resP, resQ, resV
}

// updateUncertainty builds the step's error-state transition matrix F (15x15)
// and noise-mapping matrix V (15x18) by first-order perturbation of the
// mid-point equations, then applies the Kalman prediction
//
//	jacobian   <- F * jacobian
//	covariance <- F * covariance * Fᵀ + V * noise * Vᵀ
func (p *Preintegrated) updateUncertainty(dt float64, acc0, acc1, w r3.Vector, resQ quat.Number) {
	rot0 := spatialmath.QuatToRotationMatrix(p.deltaQ)
	rot1 := spatialmath.QuatToRotationMatrix(resQ)
	wx := spatialmath.SkewSymmetric(w)
	a0x := spatialmath.SkewSymmetric(acc0.Sub(p.linearizedBA))
	a1x := spatialmath.SkewSymmetric(acc1.Sub(p.linearizedBA))

	// I - [w]x*dt, the rotation error transition over the step
	iwx := scaled(-dt, wx)
	iwx.Add(iwx, eye3())

	f := mat.NewDense(ErrorStateDim, ErrorStateDim, nil)
	setBlock(f, OrderP, OrderP, eye3())
	setBlock(f, OrderP, OrderR, sum3(
		scaled(-0.25*dt*dt, prod(rot0, a0x)),
		scaled(-0.25*dt*dt, prod(rot1, a1x, iwx)),
	))
	setBlock(f, OrderP, OrderV, scaled(dt, eye3()))
	setBlock(f, OrderP, OrderBA, scaled(-0.25*dt*dt, sum3(rot0, rot1)))
	setBlock(f, OrderP, OrderBG, scaled(0.25*dt*dt*dt, prod(rot1, a1x)))
	setBlock(f, OrderR, OrderR, iwx)
	setBlock(f, OrderR, OrderBG, scaled(-dt, eye3()))
	setBlock(f, OrderV, OrderR, sum3(
		scaled(-0.5*dt, prod(rot0, a0x)),
		scaled(-0.5*dt, prod(rot1, a1x, iwx)),
	))
	setBlock(f, OrderV, OrderV, eye3())
	setBlock(f, OrderV, OrderBA, scaled(-0.5*dt, sum3(rot0, rot1)))
	setBlock(f, OrderV, OrderBG, scaled(0.5*dt*dt, prod(rot1, a1x)))
	setBlock(f, OrderBA, OrderBA, eye3())
	setBlock(f, OrderBG, OrderBG, eye3())

	v := mat.NewDense(ErrorStateDim, NoiseDim, nil)
	v03 := scaled(-0.125*dt*dt*dt, prod(rot1, a1x))
	setBlock(v, OrderP, 0, scaled(0.25*dt*dt, rot0))
	setBlock(v, OrderP, 3, v03)
	setBlock(v, OrderP, 6, scaled(0.25*dt*dt, rot1))
	setBlock(v, OrderP, 9, v03)
	setBlock(v, OrderR, 3, scaled(0.5*dt, eye3()))
	setBlock(v, OrderR, 9, scaled(0.5*dt, eye3()))
	setBlock(v, OrderV, 0, scaled(0.5*dt, rot0))
	v63 := scaled(-0.25*dt*dt, prod(rot1, a1x))
	setBlock(v, OrderV, 3, v63)
	setBlock(v, OrderV, 6, scaled(0.5*dt, rot1))
	setBlock(v, OrderV, 9, v63)
	setBlock(v, OrderBA, 12, scaled(dt, eye3()))
	setBlock(v, OrderBG, 15, scaled(dt, eye3()))

	var jac mat.Dense
	jac.Mul(f, p.jacobian)
	p.jacobian = &jac

	var fp, fpft, vn, vnvt mat.Dense
	fp.Mul(f, p.covariance)
	fpft.Mul(&fp, f.T())
	vn.Mul(v, p.noise)
	vnvt.Mul(&vn, v.T())
	fpft.Add(&fpft, &vnvt)
	p.covariance = &fpft
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

func sum3(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Add(a, b)
	return &out
}

func prod(ms ...mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Mul(out, m)
		out = &next
	}
	return out
}

func setBlock(dst *mat.Dense, row, col int, src mat.Matrix) {
	r, c := src.Dims()
	dst.Slice(row, row+r, col, col+c).(*mat.Dense).Copy(src)
}
