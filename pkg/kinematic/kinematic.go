package kinematic

// This package moves entities between client location reports.

import "math"

// Displacement returns the displacement of an object given its initial velocity, time, and acceleration.
func Displacement(initialVelocity float64, time float64, acceleration float64) float64 {
	return initialVelocity*time + 0.5*acceleration*time*time
}

// Clamp limits v to the closed interval [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Step advances a position on one axis at constant velocity for dt seconds
// and keeps it inside [lo, hi].
func Step(position, velocity, dt, lo, hi float64) float64 {
	return Clamp(position+Displacement(velocity, dt, 0), lo, hi)
}
