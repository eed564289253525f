package world

import "math"

// Player is an immutable snapshot of a blob. Grow and MoveTo return copies.
type Player struct {
	ID       string
	Position Vector
	Mass     float64
}

func NewPlayer(ID string, x, y, mass float64) Player {
	return Player{ID: ID, Position: Vector{X: x, Y: y}, Mass: mass}
}

func (p Player) Identifier() string  { return p.ID }
func (p Player) Coordinates() Vector { return p.Position }
func (p Player) EntityMass() float64 { return p.Mass }

func (p Player) Radius() float64 {
	return radius(p.Mass)
}

func (p Player) Grow(e Entity) Player {
	p.Mass += e.EntityMass()
	return p
}

func (p Player) MoveTo(position Vector) Player {
	p.Position = position
	return p
}

// Reaches reports whether e lies strictly inside the player's radius.
func (p Player) Reaches(e Entity) bool {
	return p.Position.Distance(e.Coordinates()) < p.Radius()
}

func (p Player) valid() bool {
	return p.ID != "" && p.Position.IsFinite() &&
		p.Mass > 0 && !math.IsInf(p.Mass, 0) && !math.IsNaN(p.Mass)
}
