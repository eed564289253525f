package world

import "math"

const DefaultFoodMass = 100.0

// Entity is anything a player can eat.
type Entity interface {
	Identifier() string
	Coordinates() Vector
	EntityMass() float64
}

type Food struct {
	ID       string
	Position Vector
	Mass     float64
}

func (f Food) Identifier() string  { return f.ID }
func (f Food) Coordinates() Vector { return f.Position }
func (f Food) EntityMass() float64 { return f.Mass }

func radius(mass float64) float64 {
	return math.Sqrt(mass / math.Pi)
}
