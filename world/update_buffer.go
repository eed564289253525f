package world

// Directions holds the last movement intent per player. It is not safe for
// concurrent use; World guards it.
type Directions struct {
	intents map[string]Vector
	max     float64
}

func NewDirections(max float64) *Directions {
	return &Directions{
		intents: make(map[string]Vector),
		max:     max,
	}
}

// Set stores a sanitized copy of v: non-finite vectors become zero and
// anything longer than the configured maximum is scaled down to it.
func (d *Directions) Set(ID string, v Vector) Vector {
	if !v.IsFinite() {
		v = Zero
	}
	if d.max > 0 {
		v = v.ClampLength(d.max)
	}
	d.intents[ID] = v
	return v
}

func (d *Directions) Get(ID string) Vector {
	return d.intents[ID]
}

func (d *Directions) Has(ID string) bool {
	_, ok := d.intents[ID]
	return ok
}

func (d *Directions) Remove(ID string) {
	delete(d.intents, ID)
}

func (d *Directions) Len() int {
	return len(d.intents)
}
