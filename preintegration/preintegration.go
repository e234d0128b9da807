package preintegration

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vio/spatialmath"
	"go.viam.com/vio/utils"
)

var (
	// ErrNonPositiveDT is returned when a sample's time step is zero or negative.
	ErrNonPositiveDT = errors.New("sample dt must be positive")
	// ErrDegraded is returned once non-finite values have poisoned the
	// accumulated state; Repropagate with finite history is the only way out.
	ErrDegraded = errors.New("preintegrated state is degraded by non-finite values")
)

// sample is one buffered IMU reading: the time since the previous reading,
// the measured specific force, and the measured angular rate.
type sample struct {
	dt  float64
	acc r3.Vector
	gyr r3.Vector
}

// Preintegrated accumulates the relative-motion increment over one interval
// of IMU samples, its 15x15 error-state Jacobian and covariance, and the
// sample history needed to replay the interval under new bias estimates.
type Preintegrated struct {
	cfg    Config
	logger golog.Logger

	sumDT  float64
	deltaP r3.Vector
	deltaV r3.Vector
	deltaQ quat.Number

	linearizedBA r3.Vector
	linearizedBG r3.Vector

	jacobian   *mat.Dense // 15x15, identity at t=0
	covariance *mat.Dense // 15x15, zero at t=0
	noise      *mat.Dense // 18x18 diagonal, fixed at construction

	// first sample of the interval, restored as the left integration
	// endpoint when the buffer is replayed
	firstAcc r3.Vector
	firstGyr r3.Vector

	acc0, gyr0 r3.Vector
	buf        []sample

	degraded bool
}

// New builds a Preintegrated anchored at an initial IMU sample and a pair of
// bias estimates. The initial sample becomes the left endpoint of the first
// integration step. A nil logger disables logging.
func New(cfg Config, acc0, gyr0, linearizedBA, linearizedBG r3.Vector, logger golog.Logger) (*Preintegrated, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for name, v := range map[string]r3.Vector{
		"initial accel sample": acc0,
		"initial gyro sample":  gyr0,
		"accel bias":           linearizedBA,
		"gyro bias":            linearizedBG,
	} {
		if !spatialmath.R3VectorValid(v) {
			return nil, errors.Errorf("%s is not finite: %v", name, v)
		}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	p := &Preintegrated{
		cfg:          cfg,
		logger:       logger,
		deltaQ:       quat.Number{Real: 1},
		linearizedBA: linearizedBA,
		linearizedBG: linearizedBG,
		jacobian:     identity15(),
		covariance:   mat.NewDense(ErrorStateDim, ErrorStateDim, nil),
		noise:        buildNoise(cfg),
		firstAcc:     acc0,
		firstGyr:     gyr0,
		acc0:         acc0,
		gyr0:         gyr0,
	}
	return p, nil
}

// buildNoise assembles the fixed 18x18 diagonal covariance of the raw noise
// vector: accel/gyro white noise at both endpoints of a step, then the accel
// and gyro bias random walks.
func buildNoise(cfg Config) *mat.Dense {
	n := mat.NewDense(NoiseDim, NoiseDim, nil)
	vars := []float64{
		cfg.AccelNoiseSigma * cfg.AccelNoiseSigma,
		cfg.GyroNoiseSigma * cfg.GyroNoiseSigma,
		cfg.AccelNoiseSigma * cfg.AccelNoiseSigma,
		cfg.GyroNoiseSigma * cfg.GyroNoiseSigma,
		cfg.AccelWalkSigma * cfg.AccelWalkSigma,
		cfg.GyroWalkSigma * cfg.GyroWalkSigma,
	}
	for i, v := range vars {
		for axis := 0; axis < 3; axis++ {
			n.Set(3*i+axis, 3*i+axis, v)
		}
	}
	return n
}

func identity15() *mat.Dense {
	m := mat.NewDense(ErrorStateDim, ErrorStateDim, nil)
	for i := 0; i < ErrorStateDim; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// PushBack appends one IMU sample to the interval and advances the increment,
// Jacobian, and covariance through it. Samples must arrive in time order with
// strictly positive dt.
func (p *Preintegrated) PushBack(dt float64, acc, gyr r3.Vector) error {
	if p.degraded {
		return ErrDegraded
	}
	if !utils.Float64Finite(dt) || dt <= 0 {
		return errors.Wrapf(ErrNonPositiveDT, "got %v", dt)
	}
	if !spatialmath.R3VectorValid(acc) || !spatialmath.R3VectorValid(gyr) {
		return errors.Errorf("sample is not finite: acc %v gyr %v", acc, gyr)
	}
	p.buf = append(p.buf, sample{dt: dt, acc: acc, gyr: gyr})
	return p.propagate(dt, acc, gyr)
}

// Repropagate resets the accumulated increment, Jacobian, and covariance to
// their initial values, installs new bias estimates, and replays every
// buffered sample in order. Cost is linear in the buffer length. With an
// empty buffer it is purely a reset.
func (p *Preintegrated) Repropagate(linearizedBA, linearizedBG r3.Vector) error {
	if !spatialmath.R3VectorValid(linearizedBA) || !spatialmath.R3VectorValid(linearizedBG) {
		return errors.Errorf("bias is not finite: ba %v bg %v", linearizedBA, linearizedBG)
	}
	p.logger.Debugw("repropagating interval", "samples", len(p.buf))

	p.sumDT = 0
	p.deltaP = r3.Vector{}
	p.deltaV = r3.Vector{}
	p.deltaQ = quat.Number{Real: 1}
	p.linearizedBA = linearizedBA
	p.linearizedBG = linearizedBG
	p.jacobian = identity15()
	p.covariance = mat.NewDense(ErrorStateDim, ErrorStateDim, nil)
	p.acc0 = p.firstAcc
	p.gyr0 = p.firstGyr
	p.degraded = false

	for _, s := range p.buf {
		if err := p.propagate(s.dt, s.acc, s.gyr); err != nil {
			return err
		}
	}
	return nil
}

// SumDT returns the elapsed time the interval covers.
func (p *Preintegrated) SumDT() float64 { return p.sumDT }

// DeltaP returns the integrated position increment in the start-of-interval
// body frame.
func (p *Preintegrated) DeltaP() r3.Vector { return p.deltaP }

// DeltaV returns the integrated velocity increment in the start-of-interval
// body frame.
func (p *Preintegrated) DeltaV() r3.Vector { return p.deltaV }

// DeltaQ returns the integrated orientation increment as a unit quaternion.
func (p *Preintegrated) DeltaQ() quat.Number { return p.deltaQ }

// LinearizedAccelBias returns the accelerometer bias the current integration
// was linearized around.
func (p *Preintegrated) LinearizedAccelBias() r3.Vector { return p.linearizedBA }

// LinearizedGyroBias returns the gyroscope bias the current integration was
// linearized around.
func (p *Preintegrated) LinearizedGyroBias() r3.Vector { return p.linearizedBG }

// Jacobian returns a copy of the accumulated 15x15 error-state Jacobian.
func (p *Preintegrated) Jacobian() *mat.Dense {
	return mat.DenseCopyOf(p.jacobian)
}

// Covariance returns a copy of the accumulated 15x15 error-state covariance.
func (p *Preintegrated) Covariance() *mat.Dense {
	return mat.DenseCopyOf(p.covariance)
}

// Len returns the number of buffered samples.
func (p *Preintegrated) Len() int { return len(p.buf) }

// Degraded reports whether a non-finite value has poisoned the accumulated
// state.
func (p *Preintegrated) Degraded() bool { return p.degraded }
