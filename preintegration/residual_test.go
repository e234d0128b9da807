package preintegration

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vio/spatialmath"
)

func identityState() State {
	return State{Orientation: quat.Number{Real: 1}}
}

// quatAngle returns the rotation angle between two unit quaternions.
func quatAngle(q1, q2 quat.Number) float64 {
	d := quat.Mul(quat.Conj(q1), q2)
	return 2 * math.Asin(math.Min(1, spatialmath.QuatNorm(quat.Number{Imag: d.Imag, Jmag: d.Jmag, Kmag: d.Kmag})))
}

func TestResidualZeroWhenStationary(t *testing.T) {
	// a stationary IMU reads exactly gravity; both endpoint states are the
	// origin at rest, so every residual component must vanish
	acc := r3.Vector{Z: 9.81}
	p := newTestPre(t, acc, r3.Vector{}, r3.Vector{}, r3.Vector{})
	for i := 0; i < 100; i++ {
		test.That(t, p.PushBack(0.01, acc, r3.Vector{}), test.ShouldBeNil)
	}

	res, err := p.Evaluate(identityState(), identityState())
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < ErrorStateDim; i++ {
		test.That(t, res.AtVec(i), test.ShouldAlmostEqual, 0, 1e-9)
	}
}

func TestResidualZeroWhenRotating(t *testing.T) {
	// stationary but spinning about z at 1 rad/s; the true relative motion is
	// a pure 1 rad rotation, and gravity stays aligned with the spin axis
	acc := r3.Vector{Z: 9.81}
	gyr := r3.Vector{Z: 1}
	p := newTestPre(t, acc, gyr, r3.Vector{}, r3.Vector{})
	for i := 0; i < 100; i++ {
		test.That(t, p.PushBack(0.01, acc, gyr), test.ShouldBeNil)
	}

	sj := identityState()
	sj.Orientation = quat.Number{Real: math.Cos(0.5), Kmag: math.Sin(0.5)}
	res, err := p.Evaluate(identityState(), sj)
	test.That(t, err, test.ShouldBeNil)
	// position and velocity cancel exactly; rotation carries only the
	// mid-point discretization error
	for i := 0; i < ErrorStateDim; i++ {
		tol := 1e-9
		if i >= OrderR && i < OrderR+3 {
			tol = 1e-4
		}
		test.That(t, res.AtVec(i), test.ShouldAlmostEqual, 0, tol)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	acc := r3.Vector{X: 0.3, Z: 9.81}
	gyr := r3.Vector{Y: 0.4}
	p := newTestPre(t, acc, gyr, r3.Vector{}, r3.Vector{})
	for i := 0; i < 60; i++ {
		test.That(t, p.PushBack(0.01, acc, gyr), test.ShouldBeNil)
	}

	si := identityState()
	sj := identityState()
	sj.Position = r3.Vector{X: 1, Y: 2, Z: 3}
	sj.AccelBias = r3.Vector{X: 0.01}

	beforeP, beforeQ, beforeV := p.DeltaP(), p.DeltaQ(), p.DeltaV()
	beforeCov := p.Covariance()
	res1, err := p.Evaluate(si, sj)
	test.That(t, err, test.ShouldBeNil)
	res2, err := p.Evaluate(si, sj)
	test.That(t, err, test.ShouldBeNil)

	for i := 0; i < ErrorStateDim; i++ {
		test.That(t, res1.AtVec(i), test.ShouldEqual, res2.AtVec(i))
	}
	test.That(t, p.DeltaP(), test.ShouldResemble, beforeP)
	test.That(t, p.DeltaQ(), test.ShouldResemble, beforeQ)
	test.That(t, p.DeltaV(), test.ShouldResemble, beforeV)
	matAlmostEqual(t, p.Covariance(), beforeCov, 1e-15)
}

func TestEvaluateValidatesStates(t *testing.T) {
	p := newTestPre(t, r3.Vector{Z: 9.81}, r3.Vector{}, r3.Vector{}, r3.Vector{})

	bad := identityState()
	bad.Orientation = quat.Number{Real: 0.5} // not unit
	_, err := p.Evaluate(bad, identityState())
	test.That(t, err, test.ShouldNotBeNil)

	bad = identityState()
	bad.Velocity = r3.Vector{X: math.NaN()}
	_, err = p.Evaluate(identityState(), bad)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFirstOrderBiasCorrection(t *testing.T) {
	// the Jacobian-corrected increment must match a full replay under the
	// perturbed biases up to second order in the perturbation
	acc := r3.Vector{X: 1.2, Y: -0.4, Z: 9.81}
	gyr := r3.Vector{X: 0.3, Y: 0.2, Z: 0.5}
	const (
		n  = 100
		dt = 0.01
	)
	p := newTestPre(t, acc, gyr, r3.Vector{}, r3.Vector{})
	for i := 0; i < n; i++ {
		test.That(t, p.PushBack(dt, acc, gyr), test.ShouldBeNil)
	}

	dba := r3.Vector{X: 0.01, Y: -0.005, Z: 0.008}
	dbg := r3.Vector{X: 0.001, Y: 0.0005, Z: -0.001}

	// ground truth: an identical interval integrated with the perturbed biases
	full := newTestPre(t, acc, gyr, dba, dbg)
	for i := 0; i < n; i++ {
		test.That(t, full.PushBack(dt, acc, gyr), test.ShouldBeNil)
	}

	corrP, corrQ, corrV := p.CorrectedDelta(dba, dbg)

	rawPErr := p.DeltaP().Sub(full.DeltaP()).Norm()
	rawVErr := p.DeltaV().Sub(full.DeltaV()).Norm()
	rawQErr := quatAngle(p.DeltaQ(), full.DeltaQ())
	corrPErr := corrP.Sub(full.DeltaP()).Norm()
	corrVErr := corrV.Sub(full.DeltaV()).Norm()
	corrQErr := quatAngle(corrQ, full.DeltaQ())

	test.That(t, corrPErr, test.ShouldBeLessThan, rawPErr/10)
	test.That(t, corrVErr, test.ShouldBeLessThan, rawVErr/10)
	test.That(t, corrQErr, test.ShouldBeLessThan, rawQErr/10)

	// absolute bounds consistent with an O(|db|^2) remainder
	test.That(t, corrPErr, test.ShouldBeLessThan, 1e-3)
	test.That(t, corrVErr, test.ShouldBeLessThan, 1e-3)
	test.That(t, corrQErr, test.ShouldBeLessThan, 1e-4)
}

func TestRepropagateMatchesCorrectionDirection(t *testing.T) {
	// after Repropagate under new biases, evaluating with those biases needs
	// no first-order correction at all
	acc := r3.Vector{X: 0.5, Z: 9.81}
	gyr := r3.Vector{Z: 0.8}
	p := newTestPre(t, acc, gyr, r3.Vector{}, r3.Vector{})
	for i := 0; i < 80; i++ {
		test.That(t, p.PushBack(0.01, acc, gyr), test.ShouldBeNil)
	}

	newBA := r3.Vector{X: 0.02}
	newBG := r3.Vector{Z: 0.003}
	test.That(t, p.Repropagate(newBA, newBG), test.ShouldBeNil)

	corrP, corrQ, corrV := p.CorrectedDelta(newBA, newBG)
	vecAlmostEqual(t, corrP, p.DeltaP(), 1e-15)
	vecAlmostEqual(t, corrV, p.DeltaV(), 1e-15)
	test.That(t, spatialmath.QuatAlmostEqual(corrQ, p.DeltaQ(), 1e-12), test.ShouldBeTrue)
}
