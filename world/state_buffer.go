package world

import (
	"github.com/sasha-s/go-deadlock"
)

// StateBuffer keeps the last few snapshots, newest last, so a late reader
// can look a handful of ticks back.
type StateBuffer struct {
	mu     deadlock.RWMutex
	states []*Snapshot
	index  int
	size   int
}

func NewStateBuffer(maxCapacity int) *StateBuffer {
	if maxCapacity < 1 {
		maxCapacity = 1
	}
	return &StateBuffer{states: make([]*Snapshot, maxCapacity)}
}

// Add stores s, overwriting the oldest snapshot once full. Snapshots are
// expected in increasing tick order.
func (b *StateBuffer) Add(s *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size > 0 {
		b.index = (b.index + 1) % len(b.states)
	}
	b.states[b.index] = s
	if b.size < len(b.states) {
		b.size++
	}
}

// Current returns the newest snapshot, nil when empty.
func (b *StateBuffer) Current() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.size == 0 {
		return nil
	}
	return b.states[b.index]
}

// At finds the snapshot taken at tick, if it is still buffered.
func (b *StateBuffer) At(tick int64) (*Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var found *Snapshot
	b.walk(func(s *Snapshot) bool {
		if s.Tick == tick {
			found = s
			return false
		}
		return true
	})
	return found, found != nil
}

// Ticks lists the buffered ticks, oldest first.
func (b *StateBuffer) Ticks() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ticks := make([]int64, 0, b.size)
	b.walk(func(s *Snapshot) bool {
		ticks = append(ticks, s.Tick)
		return true
	})
	return ticks
}

func (b *StateBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// walk visits snapshots oldest first until callback returns false.
func (b *StateBuffer) walk(callback func(*Snapshot) bool) {
	start := b.index - b.size + 1
	for i := 0; i < b.size; i++ {
		index := (start + i + len(b.states)) % len(b.states)
		if !callback(b.states[index]) {
			return
		}
	}
}
