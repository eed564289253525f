package world

import "context"

// Observer receives state pushes for one player identity. Implementations
// may block on network I/O, so the registry never calls them under its lock.
// Both calls must return once ctx is done; the server stops waiting at that
// point and treats the call as failed.
type Observer interface {
	PlayerID() string
	UpdateGameState(ctx context.Context, s *Snapshot) error
	NotifyPlayerDeath(ctx context.Context) error
}
