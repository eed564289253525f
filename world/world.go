package world

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/sasha-s/go-deadlock"
)

var ErrInvalidPlayer = errors.New("invalid player")

// Rules are the tunables of the simulation.
type Rules struct {
	Speed        float64
	EatMargin    float64
	InitialFood  int
	MaxFood      int
	FoodMass     float64
	MaxDirection float64

	// Move and CanEat replace the built-in movement and eating rules when
	// set. Move returns the target position before it is clamped.
	Move   func(p Player, direction Vector) Vector
	CanEat func(p, q Player) bool
}

func DefaultRules() Rules {
	return Rules{
		Speed:        2,
		EatMargin:    1.1,
		InitialFood:  100,
		MaxFood:      150,
		FoodMass:     DefaultFoodMass,
		MaxDirection: 1,
	}
}

// World is the registry of everything the server owns: player proxies,
// directions, observers and the food pool. All methods are safe for
// concurrent use. Observers are never called while the lock is held.
type World struct {
	mu         deadlock.RWMutex
	bounds     *Map
	rules      Rules
	rng        *rand.Rand
	tick       int64
	proxies    map[string]*PlayerProxy
	directions *Directions
	observers  map[string]Observer
	foods      []Food
	newFoodID  func() string
}

func NewWorld(bounds *Map, rules Rules, rng *rand.Rand) *World {
	w := &World{
		bounds:     bounds,
		rules:      rules,
		rng:        rng,
		proxies:    make(map[string]*PlayerProxy),
		directions: NewDirections(rules.MaxDirection),
		observers:  make(map[string]Observer),
		newFoodID:  newFoodID,
	}
	initial := rules.InitialFood
	if initial > rules.MaxFood {
		initial = rules.MaxFood
	}
	w.foods = make([]Food, 0, rules.MaxFood)
	for i := 0; i < initial; i++ {
		w.foods = append(w.foods, w.spawnFood())
	}
	return w
}

func (w *World) Width() int  { return w.bounds.Width }
func (w *World) Height() int { return w.bounds.Height }

// Register inserts or replaces the proxy for p.ID with a fresh, alive one
// and resets its direction.
func (w *World) Register(p Player) error {
	if !p.valid() {
		return ErrInvalidPlayer
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.proxies[p.ID] = NewPlayerProxy(p)
	w.directions.Set(p.ID, Zero)
	return nil
}

// RegisterObserver keys o by its player id. A previous observer for the
// same id is replaced and returned.
func (w *World) RegisterObserver(o Observer) Observer {
	w.mu.Lock()
	defer w.mu.Unlock()
	ID := o.PlayerID()
	previous := w.observers[ID]
	w.observers[ID] = o
	return previous
}

// Unregister drops the proxy, direction and observer for ID. It reports
// whether anything was removed.
func (w *World) Unregister(ID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unregisterLocked(ID)
}

func (w *World) unregisterLocked(ID string) bool {
	_, hadProxy := w.proxies[ID]
	_, hadObserver := w.observers[ID]
	hadDirection := w.directions.Has(ID)
	delete(w.proxies, ID)
	delete(w.observers, ID)
	w.directions.Remove(ID)
	return hadProxy || hadObserver || hadDirection
}

// Evict unregisters the player behind o, but only while o is still the
// registered observer for that id. A newer registration is left alone.
func (w *World) Evict(o Observer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ID := o.PlayerID()
	if current, ok := w.observers[ID]; !ok || current != o {
		return false
	}
	return w.unregisterLocked(ID)
}

// SetDirection stores the movement intent for a registered player. Unknown
// ids are ignored.
func (w *World) SetDirection(ID string, v Vector) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.proxies[ID]; !ok {
		return false
	}
	w.directions.Set(ID, v)
	return true
}

func (w *World) Direction(ID string) Vector {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.directions.Get(ID)
}

func (w *World) Proxy(ID string) *PlayerProxy {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.proxies[ID]
}

func (w *World) IsAlive(ID string) bool {
	proxy := w.Proxy(ID)
	return proxy != nil && proxy.Alive()
}

func (w *World) Observer(ID string) Observer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.observers[ID]
}

func (w *World) Observers() []Observer {
	w.mu.RLock()
	defer w.mu.RUnlock()
	observers := make([]Observer, 0, len(w.observers))
	for _, o := range w.observers {
		observers = append(observers, o)
	}
	return observers
}

// Players returns the alive players ordered by id.
func (w *World) Players() []Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.playersLocked()
}

func (w *World) Foods() []Food {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Food(nil), w.foods...)
}

func (w *World) Snapshot() *Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *World) Tick() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

func (w *World) playersLocked() []Player {
	players := make([]Player, 0, len(w.proxies))
	for _, proxy := range w.proxies {
		if proxy.Alive() {
			players = append(players, proxy.Player())
		}
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].ID < players[j].ID
	})
	return players
}

func (w *World) snapshotLocked() *Snapshot {
	return &Snapshot{
		Tick:    w.tick,
		Width:   w.bounds.Width,
		Height:  w.bounds.Height,
		Players: w.playersLocked(),
		Foods:   append([]Food(nil), w.foods...),
	}
}
