package kinematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplacement(t *testing.T) {
	assert.InDelta(t, 10.0, Displacement(5, 2, 0), 1e-9)
	assert.InDelta(t, 14.0, Displacement(5, 2, 2), 1e-9)
}

func TestStep(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		velocity float64
		dt       float64
		want     float64
	}{
		{name: "at rest", position: 50, velocity: 0, dt: 1, want: 50},
		{name: "forward", position: 50, velocity: 20, dt: 0.5, want: 60},
		{name: "backward", position: 50, velocity: -20, dt: 0.5, want: 40},
		{name: "clamped high", position: 95, velocity: 100, dt: 1, want: 99},
		{name: "clamped low", position: 5, velocity: -100, dt: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Step(tt.position, tt.velocity, tt.dt, 0, 99), 1e-9)
		})
	}
}
