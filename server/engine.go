package server

import (
	"sync"
	"sync/atomic"
	"time"
)

// Engine runs tick on a fixed period. At most one tick executes at a
// time: an overlapping call is skipped, and a tick that overran its period
// discards the pending ticker value instead of running back to back.
type Engine struct {
	period time.Duration
	tick   func()

	tickMu  sync.Mutex
	ticks   atomic.Uint64
	skipped atomic.Uint64

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewEngine(period time.Duration, tick func()) *Engine {
	return &Engine{
		period: period,
		tick:   tick,
		stopCh: make(chan struct{}),
	}
}

func (e *Engine) Start() {
	if e.running.CompareAndSwap(false, true) {
		e.wg.Add(1)
		go e.loop()
	}
}

// Stop ends the loop and waits for an in-flight tick to finish.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
		e.running.Store(false)
	})
}

// Tick runs one tick now unless another is in progress. It reports whether
// the tick ran.
func (e *Engine) Tick() bool {
	if !e.tickMu.TryLock() {
		e.skipped.Add(1)
		return false
	}
	defer e.tickMu.Unlock()
	e.tick()
	e.ticks.Add(1)
	return true
}

func (e *Engine) Ticks() uint64   { return e.ticks.Load() }
func (e *Engine) Skipped() uint64 { return e.skipped.Load() }

func (e *Engine) loop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			start := time.Now()
			e.Tick()
			if time.Since(start) < e.period {
				continue
			}
			select {
			case <-ticker.C:
				e.skipped.Add(1)
			default:
			}
		}
	}
}
