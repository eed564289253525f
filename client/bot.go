package client

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"agar/world"
)

// InitialMass is what a freshly joined player weighs.
const InitialMass = 120.0

type BotConfig struct {
	// ID defaults to a random uuid.
	ID string
	// Period is how often the bot picks a new direction.
	Period time.Duration
	Seed   int64
}

// Bot is an automated player: it heads for the nearest food it can see,
// wanders when there is none, and stops once eaten.
type Bot struct {
	client *Client
	id     string
	period time.Duration
	rng    *rand.Rand
}

func NewBot(client *Client, cfg BotConfig) *Bot {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Period <= 0 {
		cfg.Period = 100 * time.Millisecond
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Bot{
		client: client,
		id:     cfg.ID,
		period: cfg.Period,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (b *Bot) ID() string { return b.id }

// Join registers the bot at a random spot and subscribes to its state.
func (b *Bot) Join(ctx context.Context) error {
	width, height, err := b.client.WorldSize(ctx)
	if err != nil {
		return err
	}
	p := world.NewPlayer(b.id, b.rng.Float64()*float64(width), b.rng.Float64()*float64(height), InitialMass)
	if err := b.client.RegisterPlayer(ctx, p); err != nil {
		return err
	}
	return b.client.RegisterObserver(ctx, b.id)
}

// Run steers until the bot dies, ctx ends or the connection drops. It
// returns nil when the bot was eaten.
func (b *Bot) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	heading := b.wander()
	for {
		select {
		case <-b.client.Deaths():
			log.Printf("bot %s was eaten", b.id)
			return nil
		case <-b.client.Done():
			return b.client.Err()
		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := b.client.Unregister(leaveCtx, b.id); err != nil {
				log.Println(err)
			}
			return ctx.Err()
		case <-ticker.C:
		}

		if state := b.client.State(); state != nil {
			if next, ok := Steer(state, b.id); ok {
				heading = next
			} else if b.rng.Intn(10) == 0 {
				heading = b.wander()
			}
		}
		if err := b.steer(heading); err != nil {
			return err
		}
	}
}

// steer writes under its own deadline: a write cut short by ctx would
// take the whole connection down with it.
func (b *Bot) steer(heading world.Vector) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*b.period)
	defer cancel()
	return b.client.SetDirection(ctx, b.id, heading.X, heading.Y)
}

func (b *Bot) wander() world.Vector {
	angle := b.rng.Float64() * 2 * math.Pi
	return world.Vector{X: math.Cos(angle), Y: math.Sin(angle)}
}

// Steer points the player at the closest food, running from any player
// that could eat it when one is closer still.
func Steer(state *world.Snapshot, ID string) (world.Vector, bool) {
	me, ok := state.Player(ID)
	if !ok {
		return world.Zero, false
	}

	best, bestDistance := world.Zero, math.Inf(1)
	for _, f := range state.Foods {
		if d := me.Position.Distance(f.Position); d < bestDistance {
			best, bestDistance = f.Position.Sub(me.Position), d
		}
	}
	for _, p := range state.Players {
		if p.ID == ID || p.Mass <= me.Mass {
			continue
		}
		if d := me.Position.Distance(p.Position); d < bestDistance {
			best, bestDistance = me.Position.Sub(p.Position), d
		}
	}
	if math.IsInf(bestDistance, 1) || best.Length() == 0 {
		return world.Zero, false
	}
	return best.Scale(1 / best.Length()), true
}
