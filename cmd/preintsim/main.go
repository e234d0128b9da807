// Package main simulates an IMU stream through the preintegration core.
//
// It synthesizes samples for a chosen motion scenario, accumulates them into
// a Preintegrated, and prints the resulting increment, covariance diagonal,
// and the residual against the scenario's ground-truth endpoint states.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/vio/preintegration"
	"go.viam.com/vio/utils"
)

const (
	flagScenario = "scenario"
	flagSteps    = "steps"
	flagDT       = "dt"
	flagRate     = "rate"
	flagAccel    = "accel"
	flagNoisy    = "noisy"
	flagSeed     = "seed"
	flagDebug    = "debug"
)

func main() {
	var logger golog.Logger

	app := &cli.App{
		Name:  "preintsim",
		Usage: "simulate IMU preintegration over a synthetic motion scenario",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagScenario,
				Value: "static",
				Usage: "motion scenario: static, rotate, or accel",
			},
			&cli.IntFlag{
				Name:  flagSteps,
				Value: 100,
				Usage: "number of IMU samples to integrate",
			},
			&cli.Float64Flag{
				Name:  flagDT,
				Value: 0.01,
				Usage: "time step between samples in seconds",
			},
			&cli.Float64Flag{
				Name:  flagRate,
				Value: 57.29577951308232,
				Usage: "rotation rate about z in deg/s (rotate scenario)",
			},
			&cli.Float64Flag{
				Name:  flagAccel,
				Value: 1.0,
				Usage: "world-frame acceleration along x in m/s² (accel scenario)",
			},
			&cli.BoolFlag{
				Name:  flagNoisy,
				Usage: "corrupt samples with the configured sensor noise",
			},
			&cli.Int64Flag{
				Name:  flagSeed,
				Value: 1,
				Usage: "noise random seed",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = golog.NewDebugLogger("preintsim")
			} else {
				logger = zap.NewNop().Sugar()
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			return runSim(c, logger)
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runSim(c *cli.Context, logger golog.Logger) error {
	cfg := preintegration.DefaultConfig()
	steps := c.Int(flagSteps)
	dt := c.Float64(flagDT)
	if steps <= 0 || dt <= 0 {
		return errors.New("steps and dt must be positive")
	}

	var rate, accel float64
	switch c.String(flagScenario) {
	case "static":
	case "rotate":
		rate = utils.DegToRad(c.Float64(flagRate))
	case "accel":
		accel = c.Float64(flagAccel)
	default:
		return errors.Errorf("unknown scenario %q", c.String(flagScenario))
	}

	gravity := r3.Vector{Z: cfg.Gravity}
	firstAcc := specificForce(0, rate, accel, gravity)
	p, err := preintegration.New(cfg, firstAcc, r3.Vector{Z: rate}, r3.Vector{}, r3.Vector{}, logger)
	if err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(c.Int64(flagSeed)))
	noisy := c.Bool(flagNoisy)
	for i := 1; i <= steps; i++ {
		acc := specificForce(float64(i)*dt, rate, accel, gravity)
		gyr := r3.Vector{Z: rate}
		if noisy {
			accSigma := cfg.AccelNoiseSigma / math.Sqrt(dt)
			gyrSigma := cfg.GyroNoiseSigma / math.Sqrt(dt)
			acc = acc.Add(r3.Vector{X: rnd.NormFloat64(), Y: rnd.NormFloat64(), Z: rnd.NormFloat64()}.Mul(accSigma))
			gyr = gyr.Add(r3.Vector{X: rnd.NormFloat64(), Y: rnd.NormFloat64(), Z: rnd.NormFloat64()}.Mul(gyrSigma))
		}
		if err := p.PushBack(dt, acc, gyr); err != nil {
			return errors.Wrapf(err, "sample %d", i)
		}
	}

	w := c.App.Writer
	fmt.Fprintf(w, "integrated %d samples over %.3fs\n", p.Len(), p.SumDT())
	fmt.Fprintf(w, "delta_p: %+.6f %+.6f %+.6f\n", p.DeltaP().X, p.DeltaP().Y, p.DeltaP().Z)
	fmt.Fprintf(w, "delta_v: %+.6f %+.6f %+.6f\n", p.DeltaV().X, p.DeltaV().Y, p.DeltaV().Z)
	dq := p.DeltaQ()
	fmt.Fprintf(w, "delta_q: w=%+.6f x=%+.6f y=%+.6f z=%+.6f\n", dq.Real, dq.Imag, dq.Jmag, dq.Kmag)

	cov := p.Covariance()
	fmt.Fprintf(w, "covariance diagonal:\n")
	for _, seg := range []struct {
		name   string
		offset int
	}{
		{"position", preintegration.OrderP},
		{"rotation", preintegration.OrderR},
		{"velocity", preintegration.OrderV},
		{"accel bias", preintegration.OrderBA},
		{"gyro bias", preintegration.OrderBG},
	} {
		fmt.Fprintf(w, "  %-10s %.3e %.3e %.3e\n", seg.name,
			cov.At(seg.offset, seg.offset),
			cov.At(seg.offset+1, seg.offset+1),
			cov.At(seg.offset+2, seg.offset+2))
	}

	si, sj := truthStates(p.SumDT(), rate, accel)
	res, err := p.Evaluate(si, sj)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "residual vs ground truth (norm %.3e):\n", floats.Norm(res.RawVector().Data, 2))
	fmt.Fprintf(w, "  %+.3e %+.3e %+.3e | %+.3e %+.3e %+.3e | %+.3e %+.3e %+.3e\n",
		res.AtVec(0), res.AtVec(1), res.AtVec(2),
		res.AtVec(3), res.AtVec(4), res.AtVec(5),
		res.AtVec(6), res.AtVec(7), res.AtVec(8))
	return nil
}

// specificForce returns the body-frame accelerometer reading at time t for the
// scenario: gravity plus any commanded world acceleration, rotated into the
// body frame.
func specificForce(t, rate, accel float64, gravity r3.Vector) r3.Vector {
	world := gravity.Add(r3.Vector{X: accel})
	// body frame is rotated by rate*t about z; rotating the measurement the
	// opposite way brings the world-frame force into the body frame
	s, c := math.Sincos(-rate * t)
	return r3.Vector{
		X: c*world.X - s*world.Y,
		Y: s*world.X + c*world.Y,
		Z: world.Z,
	}
}

// truthStates returns the exact endpoint states for the scenario.
func truthStates(sumDT, rate, accel float64) (preintegration.State, preintegration.State) {
	si := preintegration.State{Orientation: quat.Number{Real: 1}}
	sj := preintegration.State{
		Position:    r3.Vector{X: 0.5 * accel * sumDT * sumDT},
		Velocity:    r3.Vector{X: accel * sumDT},
		Orientation: quat.Number{Real: math.Cos(rate * sumDT / 2), Kmag: math.Sin(rate * sumDT / 2)},
	}
	return si, sj
}
