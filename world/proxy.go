package world

import "sync/atomic"

// PlayerProxy is the server-owned cell for one registered player. The
// Player value inside is swapped whole, never edited in place.
type PlayerProxy struct {
	data  atomic.Pointer[Player]
	alive atomic.Bool
}

func NewPlayerProxy(p Player) *PlayerProxy {
	proxy := &PlayerProxy{}
	proxy.data.Store(&p)
	proxy.alive.Store(true)
	return proxy
}

func (p *PlayerProxy) ID() string {
	return p.data.Load().ID
}

func (p *PlayerProxy) Player() Player {
	return *p.data.Load()
}

func (p *PlayerProxy) Swap(next Player) {
	p.data.Store(&next)
}

func (p *PlayerProxy) Alive() bool {
	return p.alive.Load()
}

// Kill clears the alive flag and reports whether it was set before.
func (p *PlayerProxy) Kill() bool {
	return p.alive.Swap(false)
}
