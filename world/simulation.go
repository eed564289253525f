package world

import (
	"fmt"
	"log"

	"github.com/segmentio/ksuid"
)

// StepResult is everything a tick produced that has to leave the lock:
// the broadcast snapshot and the deaths to announce.
type StepResult struct {
	Snapshot     *Snapshot
	Eliminations []Elimination
	Deaths       []Observer
	Failures     int
}

type growth struct {
	proxy *PlayerProxy
	next  Player
}

// Step advances the world by one tick: move, resolve eating, apply
// removals, replenish food, snapshot. Callers must not run two Steps at
// once; the scheduler in package server enforces that.
func (w *World) Step() *StepResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++
	result := &StepResult{}

	for ID, proxy := range w.proxies {
		if !proxy.Alive() {
			continue
		}
		if err := w.movePlayer(proxy, w.directions.Get(ID)); err != nil {
			log.Printf("tick %d: move %s: %v", w.tick, ID, err)
			result.Failures++
		}
	}

	players := w.playersLocked()
	eatenFoods := make(map[string]struct{})
	eaten := make(map[string]string)
	var grown []growth

	for _, player := range players {
		proxy := w.proxies[player.ID]
		next, foods, victims, err := w.resolveEating(player, players)
		if err != nil {
			log.Printf("tick %d: eat %s: %v", w.tick, player.ID, err)
			result.Failures++
			continue
		}
		for _, ID := range foods {
			eatenFoods[ID] = struct{}{}
		}
		for _, ID := range victims {
			if _, ok := eaten[ID]; !ok {
				eaten[ID] = player.ID
			}
		}
		if next.Mass != player.Mass {
			grown = append(grown, growth{proxy: proxy, next: next})
		}
	}

	// All growth lands before any death, so a player eaten this tick keeps
	// what it ate in the same tick.
	for _, g := range grown {
		g.proxy.Swap(g.next)
	}

	if len(eatenFoods) > 0 {
		remaining := w.foods[:0]
		for _, f := range w.foods {
			if _, ok := eatenFoods[f.ID]; !ok {
				remaining = append(remaining, f)
			}
		}
		w.foods = remaining
	}

	for _, victim := range players {
		eater, ok := eaten[victim.ID]
		if !ok {
			continue
		}
		proxy := w.proxies[victim.ID]
		if proxy == nil || !proxy.Kill() {
			continue
		}
		result.Eliminations = append(result.Eliminations, Elimination{
			Tick:       w.tick,
			Eater:      eater,
			Victim:     victim.ID,
			VictimMass: victim.Mass,
		})
		if o, ok := w.observers[victim.ID]; ok {
			result.Deaths = append(result.Deaths, o)
		}
	}

	for len(w.foods) < w.rules.MaxFood {
		w.foods = append(w.foods, w.spawnFood())
	}

	result.Snapshot = w.snapshotLocked()
	return result
}

func (w *World) movePlayer(proxy *PlayerProxy, direction Vector) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()
	current := proxy.Player()
	target := w.bounds.Clamp(w.target(current, direction))
	if !target.IsFinite() {
		return fmt.Errorf("non-finite position %+v", target)
	}
	proxy.Swap(current.MoveTo(target))
	return nil
}

// resolveEating computes the grown copy of player against the post-move
// players and the current food pool, along with the ids it ate. It touches
// no proxy.
func (w *World) resolveEating(player Player, players []Player) (next Player, foods, victims []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered: %v", r)
		}
	}()

	next = player
	for _, f := range w.foods {
		if player.Reaches(f) {
			next = next.Grow(f)
			foods = append(foods, f.ID)
		}
	}
	for _, other := range players {
		if other.ID == player.ID {
			continue
		}
		if w.canEat(player, other) {
			next = next.Grow(other)
			victims = append(victims, other.ID)
		}
	}
	return next, foods, victims, nil
}

// target is where p heads this tick, before clamping to the map.
func (w *World) target(p Player, direction Vector) Vector {
	if w.rules.Move != nil {
		return w.rules.Move(p, direction)
	}
	return p.Position.Add(direction.Scale(w.rules.Speed))
}

func (w *World) canEat(p, q Player) bool {
	if w.rules.CanEat != nil {
		return w.rules.CanEat(p, q)
	}
	return p.Reaches(q) && p.Mass > q.Mass*w.rules.EatMargin
}

func (w *World) spawnFood() Food {
	return Food{
		ID:       w.newFoodID(),
		Position: w.bounds.RandomPoint(w.rng),
		Mass:     w.rules.FoodMass,
	}
}

func newFoodID() string {
	return "f" + ksuid.New().String()
}
