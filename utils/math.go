// Package utils contains small math helpers shared across the library.
package utils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// Float64Finite reports whether f is neither NaN nor an infinity.
func Float64Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
