package world

import "math"

type Vector struct {
	X, Y float64
}

var Zero Vector

func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vector) Scale(f float64) Vector {
	return Vector{X: v.X * f, Y: v.Y * f}
}

func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

func (v Vector) Distance(o Vector) float64 {
	return v.Sub(o).Length()
}

func (v Vector) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// ClampLength scales v down to max while keeping its heading. Vectors that
// are already short enough are returned unchanged.
func (v Vector) ClampLength(max float64) Vector {
	l := v.Length()
	if l <= max || l == 0 {
		return v
	}
	return v.Scale(max / l)
}
