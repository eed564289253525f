package world

// Snapshot is a point-in-time copy of the world. Nothing in it aliases
// registry state.
type Snapshot struct {
	Tick    int64
	Width   int
	Height  int
	Players []Player
	Foods   []Food
}

func (s *Snapshot) Player(ID string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == ID {
			return p, true
		}
	}
	return Player{}, false
}

func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		Tick:    s.Tick,
		Width:   s.Width,
		Height:  s.Height,
		Players: append([]Player(nil), s.Players...),
		Foods:   append([]Food(nil), s.Foods...),
	}
}

// Elimination records one player being eaten during a tick. Eater is the
// first player, by id, that qualified to eat the victim.
type Elimination struct {
	Tick       int64
	Eater      string
	Victim     string
	VictimMass float64
}
