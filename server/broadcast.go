package server

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"agar/world"
)

// Broadcaster delivers snapshots and death notices to observers, each
// bounded by timeout. Observers share the snapshot and must not modify it.
type Broadcaster struct {
	world   *world.World
	timeout time.Duration
}

func NewBroadcaster(w *world.World, timeout time.Duration) *Broadcaster {
	return &Broadcaster{world: w, timeout: timeout}
}

// NotifyAll pushes s to every registered observer in parallel. An observer
// that fails is treated as a player leaving: it is evicted together with
// its player. The evicted player ids are returned.
func (b *Broadcaster) NotifyAll(ctx context.Context, s *world.Snapshot) []string {
	observers := b.world.Observers()
	if len(observers) == 0 {
		return nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []world.Observer
	)
	for _, o := range observers {
		wg.Add(1)
		go func(o world.Observer) {
			defer wg.Done()
			if err := b.Push(ctx, o, s); err != nil {
				log.Printf("notify %s failed, removing: %v", o.PlayerID(), err)
				mu.Lock()
				failed = append(failed, o)
				mu.Unlock()
			}
		}(o)
	}
	wg.Wait()

	var evicted []string
	for _, o := range failed {
		if b.world.Evict(o) {
			evicted = append(evicted, o.PlayerID())
		}
	}
	return evicted
}

// Push delivers one snapshot to one observer.
func (b *Broadcaster) Push(ctx context.Context, o world.Observer, s *world.Snapshot) error {
	return b.call(ctx, func(ctx context.Context) error {
		return o.UpdateGameState(ctx, s)
	})
}

// NotifyDeath tells o its player was eaten. Failures are only logged; the
// player is already dead either way.
func (b *Broadcaster) NotifyDeath(ctx context.Context, o world.Observer) {
	err := b.call(ctx, func(ctx context.Context) error {
		return o.NotifyPlayerDeath(ctx)
	})
	if err != nil {
		log.Printf("death notice to %s failed: %v", o.PlayerID(), err)
	}
}

// call runs f with the write timeout and gives up once it expires, even if
// f does not. A stuck f is left to finish on its own goroutine.
func (b *Broadcaster) call(ctx context.Context, f func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("observer panicked: %v", r)
			}
		}()
		errc <- f(ctx)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NotifyDeaths sends every death notice of a tick concurrently and waits.
func (b *Broadcaster) NotifyDeaths(ctx context.Context, observers []world.Observer) {
	var wg sync.WaitGroup
	for _, o := range observers {
		wg.Add(1)
		go func(o world.Observer) {
			defer wg.Done()
			b.NotifyDeath(ctx, o)
		}(o)
	}
	wg.Wait()
}
