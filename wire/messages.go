// Package wire defines the messages exchanged between the game server and
// its remote callers, and the codecs that put them on a websocket.
package wire

import "agar/world"

type ClientKind uint8

const (
	ClientUnknown ClientKind = iota
	ClientRegisterPlayer
	ClientRegisterObserver
	ClientUnregister
	ClientSetDirection
	ClientGetPlayers
	ClientGetFoods
	ClientGetWorldSize
	ClientIsAlive
)

func (k ClientKind) String() string {
	switch k {
	case ClientRegisterPlayer:
		return "register_player"
	case ClientRegisterObserver:
		return "register_observer"
	case ClientUnregister:
		return "unregister"
	case ClientSetDirection:
		return "set_direction"
	case ClientGetPlayers:
		return "get_players"
	case ClientGetFoods:
		return "get_foods"
	case ClientGetWorldSize:
		return "get_world_size"
	case ClientIsAlive:
		return "is_alive"
	}
	return "unknown"
}

type ServerKind uint8

const (
	ServerUnknown ServerKind = iota
	ServerAck
	ServerError
	ServerPlayers
	ServerFoods
	ServerWorldSize
	ServerAlive
	// Pushes, always with Seq 0.
	ServerGameState
	ServerDeath
)

type Player struct {
	ID   string  `json:"id" msgpack:"id"`
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
	Mass float64 `json:"m" msgpack:"m"`
}

type Food struct {
	ID   string  `json:"id" msgpack:"id"`
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
	Mass float64 `json:"m" msgpack:"m"`
}

// ClientEvent is a request from a remote caller. Seq is echoed in the
// response so callers can pipeline requests.
type ClientEvent struct {
	Seq      uint64     `json:"s,omitempty" msgpack:"s,omitempty"`
	Kind     ClientKind `json:"k" msgpack:"k"`
	PlayerID string     `json:"p,omitempty" msgpack:"p,omitempty"`
	Player   *Player    `json:"pl,omitempty" msgpack:"pl,omitempty"`
	DX       float64    `json:"dx,omitempty" msgpack:"dx,omitempty"`
	DY       float64    `json:"dy,omitempty" msgpack:"dy,omitempty"`
}

type ServerEvent struct {
	Seq     uint64     `json:"s,omitempty" msgpack:"s,omitempty"`
	Kind    ServerKind `json:"k" msgpack:"k"`
	Tick    int64      `json:"t,omitempty" msgpack:"t,omitempty"`
	Players []Player   `json:"pl,omitempty" msgpack:"pl,omitempty"`
	Foods   []Food     `json:"f,omitempty" msgpack:"f,omitempty"`
	Width   int32      `json:"w,omitempty" msgpack:"w,omitempty"`
	Height  int32      `json:"h,omitempty" msgpack:"h,omitempty"`
	Alive   bool       `json:"a,omitempty" msgpack:"a,omitempty"`
	Error   string     `json:"e,omitempty" msgpack:"e,omitempty"`
}

func FromPlayer(p world.Player) Player {
	return Player{ID: p.ID, X: p.Position.X, Y: p.Position.Y, Mass: p.Mass}
}

func (p Player) World() world.Player {
	return world.NewPlayer(p.ID, p.X, p.Y, p.Mass)
}

func FromFood(f world.Food) Food {
	return Food{ID: f.ID, X: f.Position.X, Y: f.Position.Y, Mass: f.Mass}
}

func (f Food) World() world.Food {
	return world.Food{ID: f.ID, Position: world.Vector{X: f.X, Y: f.Y}, Mass: f.Mass}
}

func FromPlayers(players []world.Player) []Player {
	out := make([]Player, 0, len(players))
	for _, p := range players {
		out = append(out, FromPlayer(p))
	}
	return out
}

func FromFoods(foods []world.Food) []Food {
	out := make([]Food, 0, len(foods))
	for _, f := range foods {
		out = append(out, FromFood(f))
	}
	return out
}

func PlayersToWorld(players []Player) []world.Player {
	out := make([]world.Player, 0, len(players))
	for _, p := range players {
		out = append(out, p.World())
	}
	return out
}

func FoodsToWorld(foods []Food) []world.Food {
	out := make([]world.Food, 0, len(foods))
	for _, f := range foods {
		out = append(out, f.World())
	}
	return out
}

// GameState builds the push sent to observers every tick.
func GameState(s *world.Snapshot) *ServerEvent {
	return &ServerEvent{
		Kind:    ServerGameState,
		Tick:    s.Tick,
		Players: FromPlayers(s.Players),
		Foods:   FromFoods(s.Foods),
		Width:   int32(s.Width),
		Height:  int32(s.Height),
	}
}

// Snapshot is the inverse of GameState.
func (e *ServerEvent) Snapshot() *world.Snapshot {
	return &world.Snapshot{
		Tick:    e.Tick,
		Width:   int(e.Width),
		Height:  int(e.Height),
		Players: PlayersToWorld(e.Players),
		Foods:   FoodsToWorld(e.Foods),
	}
}
