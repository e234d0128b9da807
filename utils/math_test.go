package utils

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestDegRadConversions(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi, 1e-12)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90, 1e-12)
	test.That(t, RadToDeg(DegToRad(37.5)), test.ShouldAlmostEqual, 37.5, 1e-12)
}

func TestFloat64Finite(t *testing.T) {
	test.That(t, Float64Finite(0), test.ShouldBeTrue)
	test.That(t, Float64Finite(-1.5e308), test.ShouldBeTrue)
	test.That(t, Float64Finite(math.NaN()), test.ShouldBeFalse)
	test.That(t, Float64Finite(math.Inf(1)), test.ShouldBeFalse)
	test.That(t, Float64Finite(math.Inf(-1)), test.ShouldBeFalse)
}
