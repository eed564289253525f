package world

import (
	"errors"
	"math"
	"math/rand"
)

var ErrInvalidBounds = errors.New("world bounds must be positive")

// Map is the playable rectangle [0,Width]x[0,Height].
type Map struct {
	Width  int
	Height int
}

func NewMap(width, height int) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidBounds
	}
	return &Map{Width: width, Height: height}, nil
}

// Clamp stops v at the map edges, each axis independently.
func (m *Map) Clamp(v Vector) Vector {
	return Vector{
		X: math.Max(0, math.Min(float64(m.Width), v.X)),
		Y: math.Max(0, math.Min(float64(m.Height), v.Y)),
	}
}

func (m *Map) RandomPoint(rng *rand.Rand) Vector {
	return Vector{
		X: rng.Float64() * float64(m.Width),
		Y: rng.Float64() * float64(m.Height),
	}
}
